// Package leads persists booking requests. Every sink is append-only.
package leads

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shubhsaxena/tour-concierge/internal/models"
	"github.com/shubhsaxena/tour-concierge/internal/observability"
)

type Sink interface {
	Name() string
	Record(ctx context.Context, lead models.Lead) error
}

// FileSink appends one JSON document per line.
type FileSink struct {
	path string
	mu   sync.Mutex
}

func NewFileSink(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating lead directory: %w", err)
		}
	}
	return &FileSink{path: path}, nil
}

func (s *FileSink) Name() string { return "file" }

func (s *FileSink) Record(_ context.Context, lead models.Lead) error {
	line, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("encoding lead: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening lead file: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("appending lead: %w", err)
	}
	return f.Close()
}

// MultiSink writes a lead to every sink concurrently. The first sink is
// primary: its failure fails Record. Secondary failures are only logged.
type MultiSink struct {
	sinks  []Sink
	logger *zap.Logger
}

func NewMultiSink(logger *zap.Logger, primary Sink, secondary ...Sink) *MultiSink {
	return &MultiSink{sinks: append([]Sink{primary}, secondary...), logger: logger}
}

func (m *MultiSink) Name() string { return "multi" }

func (m *MultiSink) Record(ctx context.Context, lead models.Lead) error {
	var g errgroup.Group
	errs := make([]error, len(m.sinks))
	for i, s := range m.sinks {
		g.Go(func() error {
			err := s.Record(ctx, lead)
			status := "success"
			if err != nil {
				status = "error"
			}
			observability.LeadsRecorded.WithLabelValues(s.Name(), status).Inc()
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs[1:] {
		if err != nil {
			m.logger.Warn("secondary lead sink failed",
				zap.String("sink", m.sinks[i+1].Name()),
				zap.String("lead_id", lead.ID),
				zap.Error(err),
			)
		}
	}
	if errs[0] != nil {
		return fmt.Errorf("%s sink: %w", m.sinks[0].Name(), errs[0])
	}
	return nil
}
