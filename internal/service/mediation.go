package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/neverl0se/forgeModsConflictMediator/internal/analysis"
	"github.com/neverl0se/forgeModsConflictMediator/internal/domain"
	"go.uber.org/zap"
)

const defaultDumpDepth = 32

// MediationService turns reported failures into operator decisions applied
// to the disablement registry.
type MediationService struct {
	analyzer  *analysis.Analyzer
	registry  domain.DisablementRegistry
	journal   domain.JournalStore
	logger    *zap.Logger
	dumpDepth int

	mu        sync.RWMutex
	presenter domain.Presenter
	hooks     []domain.MediationHook
}

// NewMediationService wires the coordinator. presenter and journal may be nil:
// a nil presenter means every session ends headless.
func NewMediationService(an *analysis.Analyzer, reg domain.DisablementRegistry, presenter domain.Presenter, journal domain.JournalStore, logger *zap.Logger) *MediationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MediationService{
		analyzer:  an,
		registry:  reg,
		presenter: presenter,
		journal:   journal,
		logger:    logger,
		dumpDepth: defaultDumpDepth,
	}
}

func (s *MediationService) SetPresenter(p domain.Presenter) {
	s.mu.Lock()
	s.presenter = p
	s.mu.Unlock()
}

// Subscribe registers a hook that sees every record before options are built.
func (s *MediationService) Subscribe(hook domain.MediationHook) {
	if hook == nil {
		return
	}
	s.mu.Lock()
	s.hooks = append(s.hooks, hook)
	s.mu.Unlock()
}

// Analyze runs analysis only; it never touches the registry.
func (s *MediationService) Analyze(f *domain.FailureDescriptor) []domain.ConflictRecord {
	start := time.Now()
	records := s.analyzer.Analyze(f)
	analysisDuration.Observe(time.Since(start).Seconds())
	return records
}

// Mediate runs one detect, decide, apply cycle for f.
func (s *MediationService) Mediate(ctx context.Context, f *domain.FailureDescriptor) *domain.MediationOutcome {
	return s.mediateFailure(ctx, uuid.New(), f)
}

// MediateSignal runs the decision cycle for a host-reported conflict,
// skipping analysis.
func (s *MediationService) MediateSignal(ctx context.Context, sig domain.ConflictSignal) *domain.MediationOutcome {
	return s.mediateSignal(ctx, uuid.New(), sig)
}

func (s *MediationService) mediateFailure(ctx context.Context, id uuid.UUID, f *domain.FailureDescriptor) *domain.MediationOutcome {
	session := s.newSession(id, f)
	s.transition(session, domain.StateAnalyzing)
	session.Records = s.Analyze(f)
	return s.decide(ctx, session)
}

func (s *MediationService) mediateSignal(ctx context.Context, id uuid.UUID, sig domain.ConflictSignal) *domain.MediationOutcome {
	session := s.newSession(id, nil)
	rec := sig.Record()
	session.Failure = &domain.FailureDescriptor{Message: rec.Description, Context: "conflict signal"}
	session.Records = []domain.ConflictRecord{rec}
	s.logger.Info("conflict signal received",
		zap.String("session_id", id.String()),
		zap.String("kind", string(rec.Kind)),
		zap.String("owner_a", rec.OwnerA),
		zap.String("owner_b", rec.OwnerB),
	)
	return s.decide(ctx, session)
}

func (s *MediationService) newSession(id uuid.UUID, f *domain.FailureDescriptor) *domain.MediationSession {
	return &domain.MediationSession{
		ID:        id,
		Failure:   f,
		State:     domain.StateIdle,
		StartedAt: time.Now().UTC(),
	}
}

func (s *MediationService) transition(session *domain.MediationSession, to domain.MediationState) {
	s.logger.Debug("mediation state change",
		zap.String("session_id", session.ID.String()),
		zap.String("from", string(session.State)),
		zap.String("to", string(to)),
	)
	session.State = to
}

func (s *MediationService) decide(ctx context.Context, session *domain.MediationSession) *domain.MediationOutcome {
	if len(session.Records) == 0 {
		s.transition(session, domain.StateNoConflict)
		s.logger.Info("no conflict identified in failure",
			zap.String("session_id", session.ID.String()),
			zap.String("message", failureMessage(session.Failure)),
		)
		return s.finish(ctx, session, &domain.MediationOutcome{Status: domain.OutcomeNoConflict})
	}

	s.logRecords(session)

	active := s.runHooks(ctx, session)
	if len(active) == 0 {
		return s.finish(ctx, session, &domain.MediationOutcome{Status: domain.OutcomeHandled})
	}

	session.Options = buildOptions(s.registry, active)
	s.transition(session, domain.StateAwaitingDecision)

	s.mu.RLock()
	presenter := s.presenter
	s.mu.RUnlock()
	if presenter == nil {
		return s.headless(ctx, session, domain.OutcomeHeadless)
	}

	selected, err := presenter.Present(ctx, session)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrPresenterUnavailable):
		return s.headless(ctx, session, domain.OutcomeHeadless)
	case errors.Is(err, domain.ErrDecisionSkipped), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return s.headless(ctx, session, domain.OutcomeSkipped)
	default:
		s.logger.Error("presentation failed, falling back to headless",
			zap.String("session_id", session.ID.String()), zap.Error(err))
		return s.headless(ctx, session, domain.OutcomeHeadless)
	}

	indices := normalizeSelection(selected, len(session.Options))
	if len(indices) < len(selected) {
		s.logger.Warn("ignored invalid option indices",
			zap.String("session_id", session.ID.String()),
			zap.Ints("selected", selected),
			zap.Int("options", len(session.Options)),
		)
	}
	if len(indices) == 0 {
		s.transition(session, domain.StateIdle)
		s.logger.Info("operator selected no options",
			zap.String("session_id", session.ID.String()))
		return s.finish(ctx, session, &domain.MediationOutcome{Status: domain.OutcomeDismissed})
	}

	return s.apply(ctx, session, indices)
}

func (s *MediationService) apply(ctx context.Context, session *domain.MediationSession, indices []int) *domain.MediationOutcome {
	s.transition(session, domain.StateApplying)
	out := &domain.MediationOutcome{Status: domain.OutcomeApplied, Selected: indices, RestartRequired: true}

	for _, i := range indices {
		opt := &session.Options[i]
		opt.Selected = true
		changed := opt.Apply(s.registry)
		optionsAppliedTotal.WithLabelValues(string(opt.Kind)).Inc()
		out.Applied = append(out.Applied, opt.Label)
		s.logger.Info("resolution applied",
			zap.String("session_id", session.ID.String()),
			zap.String("option", opt.Label),
			zap.Bool("changed", changed),
		)
	}

	if err := s.registry.Save(); err != nil {
		registrySaveFailures.Inc()
		out.PersistError = err.Error()
		s.logger.Error("failed to persist registry, decisions kept in memory",
			zap.String("session_id", session.ID.String()), zap.Error(err))
	} else {
		s.transition(session, domain.StatePersisted)
	}

	s.logger.Warn("restart required for disabled artifacts to take effect",
		zap.String("session_id", session.ID.String()),
		zap.Strings("applied", out.Applied),
	)
	return s.finish(ctx, session, out)
}

// headless logs full evidence and leaves the registry untouched.
func (s *MediationService) headless(ctx context.Context, session *domain.MediationSession, status domain.OutcomeStatus) *domain.MediationOutcome {
	s.transition(session, domain.StateHeadless)
	s.logger.Error("conflict detected, no action taken",
		zap.String("session_id", session.ID.String()),
		zap.String("status", string(status)),
		zap.Int("conflicts", len(session.Records)),
		zap.String("failure", session.Failure.Dump(s.dumpDepth)),
	)
	for _, rec := range session.Records {
		s.logger.Error("unresolved conflict",
			zap.String("session_id", session.ID.String()),
			zap.Stringer("conflict", rec),
			zap.String("evidence", rec.RawEvidence),
		)
	}
	return s.finish(ctx, session, &domain.MediationOutcome{Status: status})
}

func (s *MediationService) finish(ctx context.Context, session *domain.MediationSession, out *domain.MediationOutcome) *domain.MediationOutcome {
	out.SessionID = session.ID
	out.Records = session.Records
	out.Options = session.Options
	out.StartedAt = session.StartedAt
	out.FinishedAt = time.Now().UTC()
	mediationsTotal.WithLabelValues(string(out.Status)).Inc()

	if s.journal != nil {
		// A cancelled caller context must not lose the journal entry.
		jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.journal.Append(jctx, out); err != nil {
			s.logger.Warn("failed to journal mediation outcome",
				zap.String("session_id", session.ID.String()), zap.Error(err))
		}
	}
	if session.State != domain.StateIdle {
		s.transition(session, domain.StateIdle)
	}
	return out
}

func (s *MediationService) logRecords(session *domain.MediationSession) {
	s.logger.Warn("potential conflicts detected",
		zap.String("session_id", session.ID.String()),
		zap.Int("count", len(session.Records)),
	)
	for _, rec := range session.Records {
		conflictsDetectedTotal.WithLabelValues(string(rec.Kind)).Inc()
		s.logger.Warn("conflict",
			zap.String("session_id", session.ID.String()),
			zap.String("kind", string(rec.Kind)),
			zap.String("owner_a", rec.OwnerA),
			zap.String("owner_b", rec.OwnerB),
			zap.String("artifact_a", rec.ArtifactA),
			zap.String("artifact_b", rec.ArtifactB),
			zap.String("description", rec.Description),
			zap.String("evidence", rec.RawEvidence),
		)
	}
}

// runHooks returns the records no hook resolved.
func (s *MediationService) runHooks(ctx context.Context, session *domain.MediationSession) []indexedRecord {
	s.mu.RLock()
	hooks := make([]domain.MediationHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.RUnlock()

	active := make([]indexedRecord, 0, len(session.Records))
	for i, rec := range session.Records {
		event := &domain.MediationEvent{SessionID: session.ID, Record: rec}
		for _, hook := range hooks {
			s.callHook(ctx, hook, event)
			if event.Handled() {
				break
			}
		}
		if event.Handled() {
			s.logger.Info("conflict handled by hook",
				zap.String("session_id", session.ID.String()),
				zap.Stringer("conflict", rec),
				zap.String("resolution", event.Resolution()),
			)
			continue
		}
		active = append(active, indexedRecord{index: i, record: rec})
	}
	return active
}

func (s *MediationService) callHook(ctx context.Context, hook domain.MediationHook, event *domain.MediationEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("mediation hook panicked", zap.Any("panic", r))
		}
	}()
	hook(ctx, event)
}

// normalizeSelection drops out-of-range and repeated indices and sorts the rest.
func normalizeSelection(selected []int, n int) []int {
	seen := make(map[int]struct{}, len(selected))
	out := make([]int, 0, len(selected))
	for _, i := range selected {
		if i < 0 || i >= n {
			continue
		}
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func failureMessage(f *domain.FailureDescriptor) string {
	if f == nil {
		return ""
	}
	return f.Message
}
