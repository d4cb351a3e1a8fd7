package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubhsaxena/tour-concierge/internal/config"
	"github.com/shubhsaxena/tour-concierge/internal/models"
)

// Producer publishes inventory changes and booking leads. Each kind goes to
// its own topic.
type Producer struct {
	inventory *kafka.Writer
	leads     *kafka.Writer
	brokers   []string
	logger    *zap.Logger
}

func NewProducer(cfg config.KafkaConfig, logger *zap.Logger) *Producer {
	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchSize:    cfg.BatchSize,
			BatchTimeout: cfg.BatchTimeout,
			MaxAttempts:  cfg.MaxRetries,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
		}
	}

	logger.Info("kafka producer created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("inventory_topic", cfg.TopicInventory),
		zap.String("leads_topic", cfg.TopicLeads),
	)

	return &Producer{
		inventory: newWriter(cfg.TopicInventory),
		leads:     newWriter(cfg.TopicLeads),
		brokers:   cfg.Brokers,
		logger:    logger,
	}
}

func (p *Producer) PublishInventory(ctx context.Context, events []*models.InventoryEvent) error {
	msgs := make([]kafka.Message, len(events))
	for i, event := range events {
		msg, err := inventoryMessage(event)
		if err != nil {
			return fmt.Errorf("encoding event %d: %w", i, err)
		}
		msgs[i] = msg
	}
	if err := p.inventory.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publishing batch of %d inventory events: %w", len(events), err)
	}
	return nil
}

func (p *Producer) Name() string { return "kafka" }

// Record publishes lead to the leads topic, keyed by chat so one chat's
// leads stay ordered.
func (p *Producer) Record(ctx context.Context, lead models.Lead) error {
	msg, err := leadMessage(lead)
	if err != nil {
		return err
	}
	if err := p.leads.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing lead %s: %w", lead.ID, err)
	}
	return nil
}

func (p *Producer) HealthCheck(ctx context.Context) error {
	return dialBrokers(ctx, p.brokers)
}

func (p *Producer) Close() error {
	errInv := p.inventory.Close()
	errLeads := p.leads.Close()
	if errInv != nil {
		return errInv
	}
	return errLeads
}

func inventoryMessage(event *models.InventoryEvent) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(event.TourID),
		Value: data,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "country_id", Value: []byte(strconv.Itoa(event.CountryID))},
		},
	}, nil
}

func leadMessage(lead models.Lead) (kafka.Message, error) {
	data, err := json.Marshal(lead)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding lead: %w", err)
	}
	return kafka.Message{
		Key:   []byte(lead.ChatID),
		Value: data,
		Time:  lead.Timestamp,
		Headers: []kafka.Header{
			{Key: "lead_id", Value: []byte(lead.ID)},
			{Key: "hotel_id", Value: []byte(strconv.Itoa(lead.HotelID))},
		},
	}, nil
}
