// Package orchestrator runs the conversation state machine. Each inbound
// event is processed under a per-chat lock: it is classified, routed through
// slot filling or refinement, and may start one search. Searches run outside
// the lock and their results are applied only if no newer search or reset
// happened in the meantime.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/tour-concierge/internal/config"
	"github.com/shubhsaxena/tour-concierge/internal/dialog"
	"github.com/shubhsaxena/tour-concierge/internal/extract"
	"github.com/shubhsaxena/tour-concierge/internal/intent"
	"github.com/shubhsaxena/tour-concierge/internal/leads"
	"github.com/shubhsaxena/tour-concierge/internal/models"
	"github.com/shubhsaxena/tour-concierge/internal/observability"
	"github.com/shubhsaxena/tour-concierge/internal/search"
	"github.com/shubhsaxena/tour-concierge/internal/session"
)

var (
	ErrRateLimited = errors.New("chat is sending messages too fast")
	ErrNoChat      = errors.New("inbound event has no chat id")
)

type Classifier interface {
	Classify(ctx context.Context, text string, hasPriorSearch bool) intent.Classification
	Year() int
}

type Searcher interface {
	Execute(ctx context.Context, spec models.SearchSpec) (models.SearchOutcome, error)
	Backend() string
}

type Orchestrator struct {
	store         session.Store
	classifier    Classifier
	searcher      Searcher
	deduper       session.Deduper
	leads         leads.Sink
	messenger     Messenger
	limiter       *session.ChatLimiter
	analytics     observability.AnalyticsWriter
	defaults      dialog.Defaults
	pageSize      int
	dedupeWindow  time.Duration
	collectionMax int
	locks         *chatLocks
	now           func() time.Time
	logger        *zap.Logger
	wg            sync.WaitGroup
}

type Option func(*Orchestrator)

// WithLimiter drops inbound events of chats above their message rate.
func WithLimiter(l *session.ChatLimiter) Option {
	return func(o *Orchestrator) { o.limiter = l }
}

// WithAnalytics records one event per executed search.
func WithAnalytics(aw observability.AnalyticsWriter) Option {
	return func(o *Orchestrator) { o.analytics = aw }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(
	store session.Store,
	classifier Classifier,
	searcher Searcher,
	deduper session.Deduper,
	sink leads.Sink,
	messenger Messenger,
	dialogCfg config.DialogConfig,
	searchCfg config.SearchConfig,
	logger *zap.Logger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		store:         store,
		classifier:    classifier,
		searcher:      searcher,
		deduper:       deduper,
		leads:         sink,
		messenger:     messenger,
		defaults:      dialog.DefaultsFrom(dialogCfg, searchCfg),
		pageSize:      searchCfg.PageSize,
		dedupeWindow:  dialogCfg.DedupeWindow,
		collectionMax: dialogCfg.CollectionMaxTours,
		locks:         newChatLocks(),
		now:           time.Now,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.pageSize <= 0 {
		o.pageSize = 5
	}
	if o.dedupeWindow <= 0 {
		o.dedupeWindow = 30 * time.Second
	}
	if o.collectionMax <= 0 {
		o.collectionMax = 10
	}
	return o
}

// turn is the handling of one inbound event while the chat lock is held.
type turn struct {
	in    Inbound
	st    *models.ConversationState
	out   outbox
	ack   string
	job   *searchJob
	label string
}

// searchJob is a search started by a turn. seq is the conversation sequence
// number at start; a result is applied only while it still matches. A
// show-more job carries the page it replaces.
type searchJob struct {
	chatID        string
	seq           uint64
	spec          models.SearchSpec
	prevRequestID string
	prevResults   []models.TourResult
}

// HandleText processes a free-text message. Button presses identified by
// their visible label arrive here too. It returns after any search the
// message started has been executed and delivered or discarded.
func (o *Orchestrator) HandleText(ctx context.Context, in Inbound) error {
	return o.handle(ctx, "text", in, o.routeText)
}

// HandleButton processes a button press carrying a token.
func (o *Orchestrator) HandleButton(ctx context.Context, in Inbound) error {
	return o.handle(ctx, "button", in, o.routeButton)
}

// Favorites returns the saved tours and collections of a chat.
func (o *Orchestrator) Favorites(ctx context.Context, chatID string) (models.Favorites, error) {
	st, err := o.store.Load(ctx, chatID)
	if err != nil {
		return models.Favorites{}, fmt.Errorf("loading conversation %s: %w", chatID, err)
	}
	return st.Favorites, nil
}

// Close waits for pending analytics writes.
func (o *Orchestrator) Close() {
	o.wg.Wait()
}

func (o *Orchestrator) handle(ctx context.Context, kind string, in Inbound, route func(context.Context, *turn)) error {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "orchestrator."+kind,
		attribute.String("chat_id", in.ChatID),
	)
	defer span.End()

	if in.ChatID == "" {
		return ErrNoChat
	}
	if o.limiter != nil && !o.limiter.Allow(in.ChatID) {
		observability.MessagesTotal.WithLabelValues(kind, "rate_limited").Inc()
		o.logger.Debug("inbound event rate limited", zap.String("chat_id", in.ChatID))
		return ErrRateLimited
	}

	t, err := o.process(ctx, in, route)
	if err != nil {
		observability.MessagesTotal.WithLabelValues(kind, "error").Inc()
		o.logger.Error("handling inbound event failed",
			zap.String("chat_id", in.ChatID),
			zap.String("trace_id", observability.TraceIDFromContext(ctx)),
			zap.Error(err),
		)
		return err
	}
	observability.MessagesTotal.WithLabelValues(kind, t.label).Inc()

	if in.CallbackID != "" {
		if err := o.messenger.AckButton(ctx, in.CallbackID, t.ack); err != nil {
			o.logger.Warn("acknowledging button failed", zap.String("chat_id", in.ChatID), zap.Error(err))
		}
	}
	o.deliver(ctx, in.ChatID, t.out)

	if t.job != nil {
		// The result must land even if the caller goes away mid-search.
		o.run(context.WithoutCancel(ctx), *t.job)
	}
	observability.MessageDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	return nil
}

func (o *Orchestrator) process(ctx context.Context, in Inbound, route func(context.Context, *turn)) (*turn, error) {
	unlock := o.locks.lock(in.ChatID)
	defer unlock()

	st, err := o.store.Load(ctx, in.ChatID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation %s: %w", in.ChatID, err)
	}
	t := &turn{in: in, st: st, label: "none"}
	route(ctx, t)
	if err := o.store.Save(ctx, st); err != nil {
		return nil, fmt.Errorf("saving conversation %s: %w", in.ChatID, err)
	}
	return t, nil
}

func (o *Orchestrator) routeText(ctx context.Context, t *turn) {
	st := t.st
	text := t.in.Text

	switch st.Mode {
	case models.ModeAwaitingPhone:
		if !extract.IsReset(text) {
			t.label = "phone"
			o.handlePhone(ctx, t)
			return
		}
	case models.ModeCollecting:
		if o.collectAnswer(ctx, t) {
			return
		}
	case models.ModeAwaitingClarification:
		if o.clarifyAnswer(ctx, t) {
			return
		}
	}

	cls := o.classifier.Classify(ctx, text, st.LastSpec != nil)
	t.label = cls.Kind.String()
	o.logger.Debug("message classified",
		zap.String("chat_id", st.ChatID),
		zap.String("mode", string(st.Mode)),
		zap.String("intent", t.label),
		zap.String("source", cls.Source),
		zap.String("trace_id", observability.TraceIDFromContext(ctx)),
	)

	if st.Mode == models.ModeAwaitingClarification {
		switch cls.Kind {
		case models.IntentSearchTours, models.IntentCommand:
			dropPending(st)
		case models.IntentUnknown:
			o.repeatPrompt(t)
			return
		}
	}

	switch cls.Kind {
	case models.IntentCommand:
		o.command(ctx, t, cls)
	case models.IntentUnsupportedCountry:
		t.out.say(unsupportedText(cls.Label))
		o.repeatPrompt(t)
	case models.IntentSmalltalk:
		if st.Mode == models.ModeIdle && st.LastSpec == nil {
			t.out.say(msgGreeting + " " + dialog.Prompt(models.SlotCountry))
			return
		}
		t.out.say(msgSmalltalkAck)
		o.repeatPrompt(t)
	case models.IntentMeta:
		t.out.say(msgMeta + " Сейчас ищу туры в: " + dialog.CountryList() + ".")
		o.repeatPrompt(t)
	case models.IntentSearchTours:
		res := cls.Extracted
		if res.Draft.IsEmpty() && cls.Draft != nil {
			res.Draft = *cls.Draft
		}
		if st.Mode != models.ModeCollecting {
			if st.LastSpec != nil && o.refine(ctx, t, cls) {
				return
			}
			st.Draft = nil
		}
		o.advance(ctx, t, res)
	default:
		if st.Mode == models.ModeCollecting {
			t.out.say(dialog.Prompt(st.Awaiting))
			return
		}
		t.out.say(clarifyText(cls.ClarifyingQuestions))
	}
}

// collectAnswer reads a reply to the pending slot prompt. It reports false
// when the reply answers nothing and must be classified instead.
func (o *Orchestrator) collectAnswer(ctx context.Context, t *turn) bool {
	text := t.in.Text
	if extract.IsReset(text) {
		return false
	}
	if _, ok := extract.UnsupportedCountry(text); ok {
		return false
	}
	res, err := dialog.Answer(text, t.st.Awaiting, o.classifier.Year())
	if err != nil && !errors.Is(err, extract.ErrOutOfRange) {
		return false
	}
	t.label = "slot_answer"
	o.advance(ctx, t, res)
	return true
}

// advance merges extracted slots into the active draft. A complete draft
// starts the search; otherwise the first missing slot is prompted for, with
// a corrective prompt if the user gave an out-of-range value for it.
func (o *Orchestrator) advance(ctx context.Context, t *turn, res extract.DraftResult) {
	st := t.st
	step := dialog.Advance(st.Draft, res.Draft)
	if step.Complete {
		spec, err := dialog.BuildSpec(step.Draft, o.defaults, o.now())
		if err == nil {
			o.startSearch(ctx, t, spec, searchingText(spec))
			return
		}
		o.logger.Warn("complete draft did not resolve", zap.String("chat_id", st.ChatID), zap.Error(err))
		step.Awaiting = models.SlotCountry
	}

	st.Mode = models.ModeCollecting
	st.Draft = step.Draft
	st.Awaiting = step.Awaiting
	for _, slot := range res.Invalid {
		if slot == step.Awaiting {
			t.out.say(dialog.Correction(slot))
			return
		}
	}
	t.out.say(dialog.Prompt(step.Awaiting))
}

// refine applies a follow-up to the last executed search. It reports false
// when the message is not a refinement. Slots read by the model patch the
// last search the same way extracted ones do.
func (o *Orchestrator) refine(ctx context.Context, t *turn, cls intent.Classification) bool {
	st := t.st
	ref := dialog.Resolve(t.in.Text, *st.LastSpec, o.classifier.Year())
	if ref == nil && cls.Source == intent.SourceModel && cls.Draft != nil {
		ref = dialog.FromDraft(*cls.Draft, *st.LastSpec)
	}
	if ref == nil {
		return false
	}
	if ref.Patch.IsEmpty() && !ref.Ambiguous() {
		t.out.say(dialog.Correction(ref.Invalid[0]))
		return true
	}

	next := dialog.Apply(*st.LastSpec, ref.Patch, o.now())
	if ref.Ambiguous() {
		origin := st.Mode
		if origin == models.ModeAwaitingClarification {
			origin = models.ModeResults
		}
		st.Pending = &models.PendingBudget{Value: ref.PendingAmount, Origin: origin, Base: next}
		st.Mode = models.ModeAwaitingClarification
		t.out.say(dialog.BudgetQuestion(ref.PendingAmount), budgetButtons()...)
		return true
	}
	o.startSearch(ctx, t, next, refiningText(next, ref.CountrySwitch))
	return true
}

// clarifyAnswer reads a reply to the ceiling-or-target question.
func (o *Orchestrator) clarifyAnswer(ctx context.Context, t *turn) bool {
	st := t.st
	if st.Pending == nil {
		st.Mode = models.ModeResults
		return false
	}
	if extract.IsReset(t.in.Text) {
		return false
	}
	b, ok := dialog.ResolveBudgetAnswer(t.in.Text, st.Pending.Value)
	if !ok {
		return false
	}
	t.label = "budget_answer"
	o.applyBudget(ctx, t, b)
	return true
}

func (o *Orchestrator) applyBudget(ctx context.Context, t *turn, b models.Budget) {
	st := t.st
	spec := st.Pending.Base
	spec.Budget = b
	spec.Offset = 0
	switched := st.LastSpec != nil && st.LastSpec.Country.ID != spec.Country.ID
	o.startSearch(ctx, t, spec, refiningText(spec, switched))
}

func dropPending(st *models.ConversationState) {
	if st.Pending != nil && st.Pending.Origin != "" {
		st.Mode = st.Pending.Origin
	}
	if st.Mode == models.ModeAwaitingClarification {
		st.Mode = models.ModeResults
	}
	st.Pending = nil
}

// repeatPrompt re-issues whatever question the conversation is waiting on.
func (o *Orchestrator) repeatPrompt(t *turn) {
	st := t.st
	switch st.Mode {
	case models.ModeCollecting:
		t.out.say(dialog.Prompt(st.Awaiting))
	case models.ModeAwaitingClarification:
		if st.Pending != nil {
			t.out.say(dialog.BudgetQuestion(st.Pending.Value), budgetButtons()...)
		}
	case models.ModeAwaitingPhone:
		t.out.say(msgPhonePrompt)
	}
}

func (o *Orchestrator) command(ctx context.Context, t *turn, cls intent.Classification) {
	st := t.st
	switch cls.Command {
	case models.CommandNewSearch, models.CommandCancel:
		o.reset(ctx, t, cls)
	case models.CommandStartSearch:
		if st.Mode == models.ModeCollecting {
			t.out.say(dialog.Prompt(st.Awaiting))
			return
		}
		st.Mode = models.ModeCollecting
		st.Draft = &models.SearchDraft{}
		st.Awaiting = models.SlotCountry
		t.out.say(dialog.Prompt(models.SlotCountry))
	case models.CommandShowMore:
		o.showMore(ctx, t)
	case models.CommandEditFilters:
		o.editFilters(t)
	case models.CommandFavorites:
		text, buttons := favoritesText(st.Favorites)
		t.out.say(text, buttons...)
	case models.CommandClearFavorites:
		st.Favorites.Clear()
		t.out.say(msgFavCleared)
	case models.CommandHelp:
		t.out.say(msgHelp)
		o.repeatPrompt(t)
	}
}

// reset clears search state but keeps favorites. A reset phrase that also
// carries search slots starts a new draft from them.
func (o *Orchestrator) reset(ctx context.Context, t *turn, cls intent.Classification) {
	st := t.st
	o.releaseSelection(ctx, st)
	st.Reset()

	if cls.Extracted.HasSignal() {
		o.advance(ctx, t, cls.Extracted)
		return
	}
	if cls.Command == models.CommandCancel {
		t.out.say(msgCancelled)
		return
	}
	st.Mode = models.ModeCollecting
	st.Draft = &models.SearchDraft{}
	st.Awaiting = models.SlotCountry
	t.out.say(msgStartOver + " " + dialog.Prompt(models.SlotCountry))
}

// showMore serves the next page from the cached results and re-executes the
// search at the next offset once they are exhausted.
func (o *Orchestrator) showMore(ctx context.Context, t *turn) {
	st := t.st
	dropPending(st)
	switch {
	case st.LastSpec == nil && st.Mode == models.ModeCollecting:
		o.repeatPrompt(t)
		return
	case st.LastSpec == nil:
		t.out.say(msgNothingToShow + " " + dialog.Prompt(models.SlotCountry))
		return
	case st.RetrySpec != nil:
		t.out.say(msgSearchFailed, failureButtons()...)
		return
	case st.LastRequestID == "":
		t.out.say("Ещё ищу, подождите немного.")
		return
	case st.Shown < len(st.Results):
		o.page(&t.out, st)
		return
	}

	limit := st.LastSpec.Limit
	if limit <= 0 {
		limit = o.pageSize
	}
	if st.Exhausted || len(st.Results) < limit {
		t.out.say(msgNoMoreResults, footerButtons(false)...)
		return
	}
	next := *st.LastSpec
	next.Offset += len(st.Results)
	prevID, prev := st.LastRequestID, st.Results
	o.startSearch(ctx, t, next, "Ищу ещё варианты.")
	t.job.prevRequestID, t.job.prevResults = prevID, prev
}

func (o *Orchestrator) editFilters(t *turn) {
	st := t.st
	dropPending(st)
	switch {
	case st.LastSpec != nil:
		t.out.say("Сейчас ищу: " + dialog.Summary(*st.LastSpec) + ". " + msgEditHint)
	case st.Mode == models.ModeCollecting:
		t.out.say(dialog.Prompt(st.Awaiting))
	default:
		t.out.say(msgNothingToShow + " " + dialog.Prompt(models.SlotCountry))
	}
}

// startSearch moves the conversation to results and schedules spec. Bumping
// the sequence number invalidates any search still in flight.
func (o *Orchestrator) startSearch(ctx context.Context, t *turn, spec models.SearchSpec, intro string) {
	st := t.st
	o.releaseSelection(ctx, st)
	st.Seq++
	st.Mode = models.ModeResults
	st.Awaiting = models.SlotNone
	st.Draft = nil
	st.Pending = nil
	st.RetrySpec = nil
	st.LastSpec = &spec
	st.LastRequestID = ""
	st.Results = nil
	st.Shown = 0
	st.Exhausted = false

	t.out.say(intro)
	t.job = &searchJob{chatID: st.ChatID, seq: st.Seq, spec: spec}
}

func (o *Orchestrator) run(ctx context.Context, job searchJob) {
	start := time.Now()
	outcome, err := o.searcher.Execute(ctx, job.spec)
	o.recordSearch(ctx, job, outcome, err, time.Since(start))

	out, err := o.finish(ctx, job, outcome, err)
	if err != nil {
		o.logger.Error("applying search result failed",
			zap.String("chat_id", job.chatID),
			zap.String("trace_id", observability.TraceIDFromContext(ctx)),
			zap.Error(err),
		)
		return
	}
	o.deliver(ctx, job.chatID, out)
}

func (o *Orchestrator) finish(ctx context.Context, job searchJob, outcome models.SearchOutcome, searchErr error) (outbox, error) {
	unlock := o.locks.lock(job.chatID)
	defer unlock()

	st, err := o.store.Load(ctx, job.chatID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation %s: %w", job.chatID, err)
	}
	if st.Seq != job.seq {
		observability.StaleResultsDiscarded.Inc()
		o.logger.Debug("discarding stale search result",
			zap.String("chat_id", job.chatID),
			zap.Uint64("search_seq", job.seq),
			zap.Uint64("current_seq", st.Seq),
		)
		return nil, nil
	}

	var out outbox
	switch {
	case searchErr != nil:
		spec := job.spec
		st.RetrySpec = &spec
		out.say(msgSearchFailed, failureButtons()...)
	case len(outcome.Results) == 0 && job.spec.Offset > 0:
		// The previous page stays selectable.
		st.LastRequestID = job.prevRequestID
		st.Results = job.prevResults
		st.Shown = len(job.prevResults)
		st.Exhausted = true
		out.say(msgNoMoreResults, footerButtons(false)...)
	case len(outcome.Results) == 0:
		st.LastRequestID = outcome.RequestID
		out.say(msgNoResults, failureButtons()[1:]...)
	default:
		st.LastRequestID = outcome.RequestID
		st.Results = outcome.Results
		st.Shown = 0
		if outcome.Source == search.SourceStale {
			out.say(msgStaleResults)
		}
		if outcome.TimedOut {
			out.say(msgTimedOut)
		}
		o.page(&out, st)
	}

	if err := o.store.Save(ctx, st); err != nil {
		return nil, fmt.Errorf("saving conversation %s: %w", job.chatID, err)
	}
	return out, nil
}

// page renders the next page of cached results with a navigation footer.
func (o *Orchestrator) page(out *outbox, st *models.ConversationState) {
	end := min(st.Shown+o.pageSize, len(st.Results))
	for _, r := range st.Results[st.Shown:end] {
		buttons := resultButtons(st.LastRequestID, r.HotelID)
		if r.ImageURL != "" {
			out.card(r.ImageURL, caption(r), buttons...)
		} else {
			out.say(caption(r), buttons...)
		}
	}
	st.Shown = end

	limit := o.pageSize
	if st.LastSpec != nil && st.LastSpec.Limit > 0 {
		limit = st.LastSpec.Limit
	}
	hasMore := st.Shown < len(st.Results) || len(st.Results) >= limit
	out.say(fmt.Sprintf("Показано вариантов: %d.", st.Shown), footerButtons(hasMore)...)
}

func (o *Orchestrator) handlePhone(ctx context.Context, t *turn) {
	st := t.st
	sel := st.Selection
	if sel == nil {
		st.Mode = models.ModeIdle
		t.out.say(msgResultExpired)
		return
	}

	phone, err := extract.Phone(t.in.Text)
	switch {
	case errors.Is(err, extract.ErrOutOfRange):
		t.out.say(msgPhoneInvalid)
		return
	case err != nil && extract.Meta(t.in.Text):
		t.label = models.IntentMeta.String()
		t.out.say(msgMeta)
		t.out.say(msgPhonePrompt)
		return
	case err != nil && extract.Smalltalk(t.in.Text):
		t.label = models.IntentSmalltalk.String()
		t.out.say(msgSmalltalkAck)
		t.out.say(msgPhonePrompt)
		return
	case err != nil:
		t.out.say(msgPhonePrompt)
		return
	}

	lead := models.Lead{
		ID:        uuid.NewString(),
		Timestamp: o.now().UTC(),
		ChatID:    st.ChatID,
		UserID:    t.in.UserID,
		Username:  t.in.Username,
		Name:      t.in.Name,
		Phone:     phone,
		RequestID: sel.RequestID,
		HotelID:   sel.HotelID,
		HotelName: sel.Tour.HotelName,
		Price:     sel.Tour.Price,
		Currency:  sel.Tour.Currency,
		Spec:      sel.Spec,
	}
	if err := o.leads.Record(ctx, lead); err != nil {
		o.logger.Error("recording lead failed",
			zap.String("chat_id", st.ChatID),
			zap.String("lead_id", lead.ID),
			zap.Error(err),
		)
		t.out.say(msgLeadFailed)
		return
	}
	o.logger.Info("lead recorded",
		zap.String("chat_id", st.ChatID),
		zap.String("lead_id", lead.ID),
		zap.String("request_id", lead.RequestID),
		zap.Int("hotel_id", lead.HotelID),
	)

	o.releaseSelection(ctx, st)
	st.Mode = models.ModeIdle
	t.out.say(leadText(phone))
}

func (o *Orchestrator) releaseSelection(ctx context.Context, st *models.ConversationState) {
	sel := st.Selection
	if sel == nil {
		return
	}
	st.Selection = nil
	if sel.DedupeKey == "" {
		return
	}
	if err := o.deduper.Release(ctx, sel.DedupeKey); err != nil {
		o.logger.Warn("releasing selection failed", zap.String("chat_id", st.ChatID), zap.Error(err))
	}
}

func (o *Orchestrator) routeButton(ctx context.Context, t *turn) {
	st := t.st
	kind, arg, _ := strings.Cut(t.in.Token, ":")
	t.label = "button_" + kind

	switch kind {
	case TokenSelect:
		o.selectResult(ctx, t, arg)
	case TokenFavorite:
		requestID, hotelID, ok := parseResultRef(arg)
		tour, found := st.FindResult(requestID, hotelID)
		switch {
		case !ok || !found:
			t.ack = msgResultExpired
		case st.Favorites.AddTour(tour):
			t.ack = msgFavAdded
		default:
			t.ack = msgFavExists
		}
	case TokenMore:
		o.showMore(ctx, t)
	case TokenEdit:
		o.editFilters(t)
	case TokenNew:
		o.reset(ctx, t, intent.Classification{Intent: models.Intent{
			Kind:    models.IntentCommand,
			Command: models.CommandNewSearch,
		}})
	case TokenRetry:
		dropPending(st)
		if st.RetrySpec == nil {
			t.ack = msgNothingToRetry
			return
		}
		spec := *st.RetrySpec
		o.startSearch(ctx, t, spec, searchingText(spec))
	case TokenSaveCollection:
		if st.LastSpec == nil || len(st.Results) == 0 {
			t.ack = msgNothingToShow
			return
		}
		st.Favorites.AddCollection(*st.LastSpec, st.Results, o.collectionMax, o.now())
		t.ack = msgCollectionSaved
	case TokenDelCollection:
		if !st.Favorites.RemoveCollection(arg) {
			t.ack = msgButtonExpired
			return
		}
		t.ack = msgCollectionRemoved
	case TokenFavorites:
		text, buttons := favoritesText(st.Favorites)
		t.out.say(text, buttons...)
	case TokenFavClear:
		st.Favorites.Clear()
		t.ack = msgFavCleared
	case TokenBudget:
		if st.Mode != models.ModeAwaitingClarification || st.Pending == nil {
			t.ack = msgButtonExpired
			return
		}
		b, ok := dialog.ResolveBudgetAnswer(arg, st.Pending.Value)
		if !ok {
			t.ack = msgButtonExpired
			return
		}
		o.applyBudget(ctx, t, b)
	default:
		t.label = "button_unknown"
		t.ack = msgButtonExpired
	}
}

// selectResult pins a result for booking. A repeated press on the same
// result within the dedupe window only gets an acknowledgement.
func (o *Orchestrator) selectResult(ctx context.Context, t *turn, arg string) {
	st := t.st
	requestID, hotelID, ok := parseResultRef(arg)
	if !ok {
		t.ack = msgButtonExpired
		return
	}

	key := session.SelectKey(t.in.actor(), requestID, hotelID)
	acquired, err := o.deduper.Acquire(ctx, key, o.dedupeWindow)
	if err != nil {
		o.logger.Warn("select dedupe unavailable", zap.String("chat_id", st.ChatID), zap.Error(err))
		acquired = true
	}
	if !acquired {
		observability.SelectDedupeHits.Inc()
		t.ack = msgAlreadyChecked
		return
	}

	tour, found := st.FindResult(requestID, hotelID)
	if !found || st.LastSpec == nil {
		if err := o.deduper.Release(ctx, key); err != nil {
			o.logger.Warn("releasing selection failed", zap.String("chat_id", st.ChatID), zap.Error(err))
		}
		t.ack = msgResultExpired
		return
	}

	if st.Selection != nil && st.Selection.DedupeKey != key {
		o.releaseSelection(ctx, st)
	}
	dropPending(st)
	st.Selection = &models.Selection{
		RequestID: requestID,
		HotelID:   hotelID,
		Tour:      tour,
		Spec:      *st.LastSpec,
		DedupeKey: key,
	}
	st.Mode = models.ModeAwaitingPhone
	t.out.say(bookingText(tour))
}

func (o *Orchestrator) recordSearch(ctx context.Context, job searchJob, outcome models.SearchOutcome, searchErr error, took time.Duration) {
	if o.analytics == nil {
		return
	}
	_, budgetMax := job.spec.Budget.Bounds()
	backend := outcome.Backend
	if backend == "" {
		backend = o.searcher.Backend()
	}
	event := &models.SearchEvent{
		EventType:  "search",
		ChatID:     job.chatID,
		RequestID:  outcome.RequestID,
		SpecHash:   observability.HashSpec(job.spec.FilterKey()),
		CountryID:  job.spec.Country.ID,
		Nights:     job.spec.Nights.Min,
		BudgetMax:  budgetMax,
		Meal:       string(job.spec.Meal),
		Backend:    backend,
		Source:     outcome.Source,
		DurationMs: float64(took.Milliseconds()),
		Results:    len(outcome.Results),
		PollCount:  outcome.PollCount,
		TimedOut:   outcome.TimedOut,
		Failed:     searchErr != nil,
		Timestamp:  o.now().UTC(),
		TraceID:    observability.TraceIDFromContext(ctx),
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		writeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := o.analytics.WriteSearchEvent(writeCtx, event); err != nil {
			o.logger.Error("failed to write search event",
				zap.String("chat_id", job.chatID),
				zap.String("trace_id", event.TraceID),
				zap.Error(err),
			)
		}
	}()
}

func (o *Orchestrator) deliver(ctx context.Context, chatID string, out outbox) {
	for _, r := range out {
		var err error
		if r.image != "" {
			err = o.messenger.SendImage(ctx, chatID, r.image, r.text, r.buttons)
		} else {
			err = o.messenger.SendText(ctx, chatID, r.text, r.buttons)
		}
		if err != nil {
			o.logger.Warn("sending message failed", zap.String("chat_id", chatID), zap.Error(err))
		}
	}
}
