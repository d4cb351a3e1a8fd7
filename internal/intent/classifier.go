// Package intent decides what a single chat message means: a search (or a
// partial one), a control command, smalltalk, a question about the assistant
// or a mention of a destination that is not sold. Rule-based readings always
// win; an optional language model is consulted only when no rule fires.
package intent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/shubhsaxena/tour-concierge/internal/config"
	"github.com/shubhsaxena/tour-concierge/internal/extract"
	"github.com/shubhsaxena/tour-concierge/internal/models"
	"github.com/shubhsaxena/tour-concierge/internal/observability"
	"github.com/shubhsaxena/tour-concierge/internal/resilience"
)

// Sources of a classification.
const (
	SourceRules    = "rules"
	SourceModel    = "model"
	SourceFallback = "fallback"
)

// Reasons attached to unknown intents.
const (
	ReasonEmpty         = "empty_message"
	ReasonNoSignal      = "no_search_parameters"
	ReasonNotUnderstood = "not_understood"
)

// Model is the external classifier collaborator: it answers a system prompt
// plus a user message with a JSON object.
type Model interface {
	CompleteJSON(ctx context.Context, systemPrompt, user string) (string, error)
}

// Classification is the classified intent together with the rule-based slot
// reading of the same message. Extracted is empty when the model answered.
type Classification struct {
	models.Intent
	Extracted extract.DraftResult
}

type Classifier struct {
	model       Model
	breaker     *gobreaker.CircuitBreaker
	timeout     time.Duration
	defaultYear int
	now         func() time.Time
	logger      *zap.Logger
}

type Option func(*Classifier)

func WithModel(m Model, cb *gobreaker.CircuitBreaker) Option {
	return func(c *Classifier) {
		c.model = m
		c.breaker = cb
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Classifier) { c.now = now }
}

func NewClassifier(cfg config.ClassifierConfig, dialog config.DialogConfig, logger *zap.Logger, opts ...Option) *Classifier {
	c := &Classifier{
		timeout:     cfg.Timeout,
		defaultYear: dialog.DefaultYear,
		now:         time.Now,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout <= 0 {
		c.timeout = 5 * time.Second
	}
	return c
}

// Year is the year assumed for a month named without one.
func (c *Classifier) Year() int {
	if c.defaultYear > 0 {
		return c.defaultYear
	}
	return c.now().Year()
}

// Classify never fails: model errors degrade to an unknown intent.
func (c *Classifier) Classify(ctx context.Context, text string, hasPriorSearch bool) Classification {
	if strings.TrimSpace(text) == "" {
		return unknown(ReasonEmpty, hasPriorSearch, SourceRules)
	}

	if label, ok := extract.UnsupportedCountry(text); ok {
		return Classification{Intent: models.Intent{
			Kind:   models.IntentUnsupportedCountry,
			Label:  label,
			Source: SourceRules,
		}}
	}

	res := extract.Draft(text, c.Year())
	if !hasPriorSearch && onlySort(res.Draft) {
		res.Draft.Sort = ""
	}

	if extract.IsReset(text) {
		cmd, ok := extract.Command(text)
		if !ok || !cmd.IsReset() {
			cmd = models.CommandNewSearch
		}
		return withSlots(models.Intent{Kind: models.IntentCommand, Command: cmd, Source: SourceRules}, res)
	}
	if cmd, ok := extract.Command(text); ok && !res.HasSignal() {
		return Classification{Intent: models.Intent{Kind: models.IntentCommand, Command: cmd, Source: SourceRules}}
	}
	if !res.HasSignal() {
		if extract.Meta(text) {
			return Classification{Intent: models.Intent{Kind: models.IntentMeta, Source: SourceRules}}
		}
		if extract.Smalltalk(text) {
			return Classification{Intent: models.Intent{Kind: models.IntentSmalltalk, Source: SourceRules}}
		}
	}
	if res.HasSignal() {
		return withSlots(models.Intent{Kind: models.IntentSearchTours, Source: SourceRules}, res)
	}

	if c.model != nil {
		return c.classifyWithModel(ctx, text, hasPriorSearch)
	}
	return unknown(ReasonNoSignal, hasPriorSearch, SourceRules)
}

func (c *Classifier) classifyWithModel(ctx context.Context, text string, hasPriorSearch bool) Classification {
	ctx, span := observability.StartSpan(ctx, "intent.model")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	call := func() (string, error) {
		return c.model.CompleteJSON(ctx, systemPrompt(c.now(), hasPriorSearch), text)
	}
	var (
		raw string
		err error
	)
	if c.breaker != nil {
		raw, err = resilience.Call(c.breaker, call)
	} else {
		raw, err = call()
	}
	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		} else if resilience.IsBreakerRejection(err) {
			outcome = "breaker_open"
		}
		observability.ClassifierCalls.WithLabelValues(outcome).Inc()
		c.logger.Warn("classifier call failed",
			zap.String("outcome", outcome),
			zap.String("trace_id", observability.TraceIDFromContext(ctx)),
			zap.Error(err),
		)
		return unknown(ReasonNotUnderstood, hasPriorSearch, SourceFallback)
	}

	in, err := ParseModelOutput(raw, c.Year())
	if err != nil {
		observability.ClassifierCalls.WithLabelValues("invalid").Inc()
		c.logger.Warn("classifier output rejected",
			zap.String("trace_id", observability.TraceIDFromContext(ctx)),
			zap.Error(err),
		)
		return unknown(ReasonNotUnderstood, hasPriorSearch, SourceFallback)
	}
	observability.ClassifierCalls.WithLabelValues("ok").Inc()
	in.Source = SourceModel
	if in.Kind == models.IntentUnknown && len(in.ClarifyingQuestions) == 0 {
		in.ClarifyingQuestions = clarifyingQuestions(hasPriorSearch)
	}
	return Classification{Intent: in}
}

func withSlots(in models.Intent, res extract.DraftResult) Classification {
	if !res.Draft.IsEmpty() {
		d := res.Draft
		in.Draft = &d
	}
	return Classification{Intent: in, Extracted: res}
}

func onlySort(d models.SearchDraft) bool {
	if d.Sort == "" {
		return false
	}
	d.Sort = ""
	return d.IsEmpty()
}

func unknown(reason string, hasPriorSearch bool, source string) Classification {
	return Classification{Intent: models.Intent{
		Kind:                models.IntentUnknown,
		Reason:              reason,
		ClarifyingQuestions: clarifyingQuestions(hasPriorSearch),
		Source:              source,
	}}
}

func clarifyingQuestions(hasPriorSearch bool) []string {
	if hasPriorSearch {
		return []string{
			"Изменить страну, даты или бюджет?",
			"Показать ещё варианты?",
			"Начать новый поиск?",
		}
	}
	return []string{
		"В какую страну хотите поехать?",
		"На сколько ночей?",
		"Какой бюджет на поездку?",
	}
}
