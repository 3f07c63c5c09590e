// Package orchestrator runs the credit-gated generation workflow shared by
// every AI-backed feature:
//
//  1. Credit gate — atomically spend one credit and open a pending log
//  2. Remote invocation — single attempt against the named function
//  3. Step progress — cosmetic stepper running alongside the real call
//  4. Finalize — exactly one terminal log update, on every exit path
//  5. Reconcile — invalidate dependent cache keys on success
//
// All failures are absorbed at this boundary and converted to a toast, a
// logged diagnostic, and a terminal log state. The user can always retry by
// triggering the action again; nothing retries automatically.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nutrigen/nutrigen/internal/app/progress"
	"github.com/nutrigen/nutrigen/internal/domain"
	"github.com/nutrigen/nutrigen/internal/infra/observability"
)

// Config controls orchestration behavior.
type Config struct {
	// RefundOnFailure returns the spent credit when the remote call fails.
	// Off by default: credits are spent on attempt, not on success.
	RefundOnFailure bool

	// Progress paces the cosmetic stepper.
	Progress progress.Config
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		RefundOnFailure: false,
		Progress:        progress.DefaultConfig(),
	}
}

// GenerateRequest is one user-triggered generation action.
type GenerateRequest struct {
	Type        domain.GenerationType `json:"type"`
	Preferences json.RawMessage       `json:"preferences,omitempty"`
	Language    string                `json:"language,omitempty"` // overrides the profile language
}

// OutcomeStatus classifies how a generation attempt ended.
type OutcomeStatus string

const (
	OutcomeDenied    OutcomeStatus = "denied"
	OutcomeCompleted OutcomeStatus = "completed"
	OutcomeFailed    OutcomeStatus = "failed"
)

// Outcome is the boundary result of a generation attempt. A failed remote
// call is a valid outcome, not an error: the error return of Generate is
// reserved for infrastructure faults (store unreachable, unknown feature).
type Outcome struct {
	Status    OutcomeStatus           `json:"status"`
	LogID     string                  `json:"log_id,omitempty"`
	Result    domain.GenerationResult `json:"result,omitempty"`
	Message   string                  `json:"message"`
	Remaining int64                   `json:"remaining"`
}

// Service orchestrates generations.
type Service struct {
	cfg       Config
	features  map[domain.GenerationType]Feature
	store     domain.GenerationStore
	profiles  domain.ProfileStore
	invoker   domain.FunctionInvoker
	cache     domain.QueryCache
	notifier  domain.Notifier
	analytics domain.Analytics
	tracer    *observability.Tracer

	mu       sync.Mutex
	steppers map[string]*progress.Stepper // live stepper per user

	// onProgress, when set, receives every stepper snapshot (SSE feed).
	onProgress func(userID string, snap progress.Snapshot)
}

// New creates the orchestration service.
func New(cfg Config, store domain.GenerationStore, profiles domain.ProfileStore,
	invoker domain.FunctionInvoker, cache domain.QueryCache,
	notifier domain.Notifier, analytics domain.Analytics,
	tracer *observability.Tracer) *Service {
	return &Service{
		cfg:       cfg,
		features:  Features(),
		store:     store,
		profiles:  profiles,
		invoker:   invoker,
		cache:     cache,
		notifier:  notifier,
		analytics: analytics,
		tracer:    tracer,
		steppers:  make(map[string]*progress.Stepper),
	}
}

// SetProgressSink registers the live progress consumer. Must be called
// before the first Generate.
func (s *Service) SetProgressSink(fn func(userID string, snap progress.Snapshot)) {
	s.onProgress = fn
}

// Feature returns the registered feature for a generation type.
func (s *Service) Feature(t domain.GenerationType) (Feature, bool) {
	f, ok := s.features[t]
	return f, ok
}

// Progress returns the latest stepper snapshot for a user. The boolean
// reports whether a generation is currently running; a settled stepper
// still yields its final snapshot.
func (s *Service) Progress(userID string) (progress.Snapshot, bool) {
	s.mu.Lock()
	st, ok := s.steppers[userID]
	s.mu.Unlock()
	if !ok {
		return progress.Snapshot{}, false
	}
	return st.Snapshot(), st.Active()
}

// Generate runs one credit-gated generation end to end. The gate completes
// strictly before the invocation starts; the finalizer runs strictly after
// the invocation settles, exactly once, on every exit path.
func (s *Service) Generate(ctx context.Context, userID string, req GenerateRequest) (Outcome, error) {
	feature, ok := s.features[req.Type]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %q", domain.ErrUnknownFeature, req.Type)
	}

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load profile: %w", err)
	}

	span := s.startSpan(ctx, "generation."+string(req.Type), map[string]string{"user": userID})

	// ── Credit gate ─────────────────────────────────────────────────────
	gate, err := s.store.CheckAndUseCredit(ctx, userID, req.Type, req.Preferences)
	if err != nil {
		s.endSpan(span, err)
		s.toast(userID, "error", feature.FallbackMessage)
		return Outcome{}, fmt.Errorf("credit gate: %w", err)
	}
	if !gate.Allowed {
		s.endSpan(span, domain.ErrQuotaExhausted)
		observability.GateDenials.WithLabelValues(string(req.Type)).Inc()
		s.toast(userID, "warning", "No AI credits remaining")
		s.track(userID, "generation_blocked", map[string]string{"type": string(req.Type)})
		return Outcome{Status: OutcomeDenied, Message: "No AI credits remaining", Remaining: gate.Remaining}, nil
	}

	observability.CreditsSpent.Inc()
	observability.ActiveGenerations.Inc()
	defer observability.ActiveGenerations.Dec()

	// ── Cosmetic stepper, decoupled from the real call ──────────────────
	stepper := progress.NewStepper(s.cfg.Progress, feature.Steps, func(snap progress.Snapshot) {
		if s.onProgress != nil {
			s.onProgress(userID, snap)
		}
	})
	s.mu.Lock()
	s.steppers[userID] = stepper
	s.mu.Unlock()
	stepper.Start()
	defer stepper.Stop()

	// ── Finalizer: exactly one terminal update per log ──────────────────
	// The terminal write must land even when the invocation died because
	// the request context did (client disconnect, router timeout), so the
	// finalizer runs detached from the caller's cancellation.
	success := false
	var responseData []byte
	var failMsg string
	defer func() {
		fctx := context.WithoutCancel(ctx)
		ferr := s.store.FinalizeGeneration(fctx, gate.LogID, success, responseData, failMsg)
		if ferr != nil && !errors.Is(ferr, domain.ErrAlreadyFinalized) {
			log.Printf("[orchestrator] finalize log %s: %v", gate.LogID, ferr)
		}
		if !success && s.cfg.RefundOnFailure {
			if rerr := s.store.RefundCredit(fctx, userID, gate.LogID); rerr != nil {
				log.Printf("[orchestrator] refund log %s: %v", gate.LogID, rerr)
			} else {
				observability.CreditsRefunded.Inc()
			}
		}
	}()

	// ── Remote invocation: single attempt, no automatic retry ───────────
	lang := req.Language
	if lang == "" {
		lang = profile.Language
	}
	payload := domain.InvocationPayload{
		UserID:      userID,
		Profile:     profile,
		Preferences: req.Preferences,
		Language:    lang,
	}

	started := time.Now()
	result, invokeErr := s.invoker.Invoke(ctx, feature.Function, payload)
	observability.InvokeDuration.WithLabelValues(feature.Function).Observe(time.Since(started).Seconds())

	if invokeErr != nil {
		failMsg = invokeErr.Error()
		msg := feature.FallbackMessage
		var ie *domain.InvocationError
		if errors.As(invokeErr, &ie) && ie.Kind == domain.InvocationRemote && ie.Message != "" {
			msg = ie.Message
		}
		log.Printf("[orchestrator] generation %s failed for %s: %v", gate.LogID, userID, invokeErr)
		observability.GenerationsTotal.WithLabelValues(string(req.Type), "failed").Inc()
		s.endSpan(span, invokeErr)
		s.toast(userID, "error", msg)
		return Outcome{Status: OutcomeFailed, LogID: gate.LogID, Message: msg, Remaining: gate.Remaining}, nil
	}

	success = true
	responseData = result

	// ── Reconciliation: dependent views refetch from the store ──────────
	s.reconcile(userID, feature)

	observability.GenerationsTotal.WithLabelValues(string(req.Type), "completed").Inc()
	s.endSpan(span, nil)
	s.toast(userID, "success", feature.SuccessMessage)
	s.track(userID, feature.AnalyticsEvent, map[string]string{"type": string(req.Type)})

	return Outcome{
		Status:    OutcomeCompleted,
		LogID:     gate.LogID,
		Result:    result,
		Message:   feature.SuccessMessage,
		Remaining: gate.Remaining,
	}, nil
}

// reconcile invalidates the cache keys the feature dirties. Invalidation
// problems never abort the flow — the mutation already settled on its own.
func (s *Service) reconcile(userID string, feature Feature) {
	if s.cache == nil {
		return
	}
	for _, pattern := range feature.InvalidationPatterns {
		key := fmt.Sprintf(pattern, userID)
		n := s.cache.Invalidate(key)
		observability.CacheInvalidations.WithLabelValues(string(feature.Type)).Inc()
		if n > 0 {
			log.Printf("[orchestrator] invalidated %d cache entries for %s", n, key)
		}
	}
}

// toast fires a user-visible message. Never blocks the flow.
func (s *Service) toast(userID, level, message string) {
	if s.notifier != nil {
		s.notifier.Notify(userID, level, message)
	}
}

// track fires an analytics event. Failures are the implementation's problem.
func (s *Service) track(userID, event string, props map[string]string) {
	if s.analytics != nil {
		s.analytics.Track(userID, event, props)
	}
}

func (s *Service) startSpan(ctx context.Context, op string, attrs map[string]string) *observability.Span {
	if s.tracer == nil {
		return nil
	}
	return s.tracer.StartSpan(ctx, op, attrs)
}

func (s *Service) endSpan(span *observability.Span, err error) {
	if s.tracer != nil && span != nil {
		s.tracer.EndSpan(span, err)
	}
}
