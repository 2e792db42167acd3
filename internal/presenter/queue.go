package presenter

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/neverl0se/forgeModsConflictMediator/internal/domain"
	"go.uber.org/zap"
)

var (
	ErrDecisionNotFound = errors.New("no pending decision for session")
	ErrInvalidSelection = errors.New("selected option index out of range")
)

// PendingDecision is a session waiting for an operator.
type PendingDecision struct {
	SessionID uuid.UUID                 `json:"session_id"`
	Failure   *domain.FailureDescriptor `json:"failure,omitempty"`
	Records   []domain.ConflictRecord   `json:"records"`
	Options   []domain.ResolutionOption `json:"options"`
	CreatedAt time.Time                 `json:"created_at"`
}

type decision struct {
	selected []int
	skip     bool
}

type pending struct {
	view  PendingDecision
	reply chan decision
}

// DecisionQueue is a presentation surface driven over HTTP. Present parks the
// session until an operator resolves or skips it; there is no deadline.
type DecisionQueue struct {
	logger *zap.Logger

	mu      sync.Mutex
	pending map[uuid.UUID]*pending
	order   []uuid.UUID
	closed  bool
	done    chan struct{}
}

func NewDecisionQueue(logger *zap.Logger) *DecisionQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DecisionQueue{
		logger:  logger,
		pending: map[uuid.UUID]*pending{},
		done:    make(chan struct{}),
	}
}

func (q *DecisionQueue) Present(ctx context.Context, session *domain.MediationSession) ([]int, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, domain.ErrPresenterUnavailable
	}
	p := &pending{
		view: PendingDecision{
			SessionID: session.ID,
			Failure:   session.Failure,
			Records:   session.Records,
			Options:   session.Options,
			CreatedAt: time.Now().UTC(),
		},
		reply: make(chan decision, 1),
	}
	q.pending[session.ID] = p
	q.order = append(q.order, session.ID)
	q.mu.Unlock()

	q.logger.Info("awaiting operator decision",
		zap.String("session_id", session.ID.String()),
		zap.Int("options", len(session.Options)),
	)

	select {
	case d := <-p.reply:
		if d.skip {
			return nil, domain.ErrDecisionSkipped
		}
		return d.selected, nil
	case <-ctx.Done():
		q.remove(session.ID)
		return nil, ctx.Err()
	case <-q.done:
		q.remove(session.ID)
		return nil, domain.ErrDecisionSkipped
	}
}

// Pending lists waiting decisions, oldest first.
func (q *DecisionQueue) Pending() []PendingDecision {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]PendingDecision, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, q.pending[id].view)
	}
	return out
}

func (q *DecisionQueue) Get(id uuid.UUID) (PendingDecision, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	p, ok := q.pending[id]
	if !ok {
		return PendingDecision{}, false
	}
	return p.view, true
}

func (q *DecisionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// Resolve delivers the operator's selection. An empty selection is valid.
func (q *DecisionQueue) Resolve(id uuid.UUID, selected []int) error {
	q.mu.Lock()
	p, ok := q.pending[id]
	if !ok {
		q.mu.Unlock()
		return ErrDecisionNotFound
	}
	for _, i := range selected {
		if i < 0 || i >= len(p.view.Options) {
			q.mu.Unlock()
			return ErrInvalidSelection
		}
	}
	q.removeLocked(id)
	q.mu.Unlock()

	p.reply <- decision{selected: append([]int(nil), selected...)}
	return nil
}

// Skip dismisses the decision; the session ends without touching the registry.
func (q *DecisionQueue) Skip(id uuid.UUID) error {
	q.mu.Lock()
	p, ok := q.pending[id]
	if !ok {
		q.mu.Unlock()
		return ErrDecisionNotFound
	}
	q.removeLocked(id)
	q.mu.Unlock()

	p.reply <- decision{skip: true}
	return nil
}

// Close makes the queue unavailable and releases every waiting session as skipped.
func (q *DecisionQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

func (q *DecisionQueue) remove(id uuid.UUID) {
	q.mu.Lock()
	q.removeLocked(id)
	q.mu.Unlock()
}

func (q *DecisionQueue) removeLocked(id uuid.UUID) {
	if _, ok := q.pending[id]; !ok {
		return
	}
	delete(q.pending, id)
	for i, existing := range q.order {
		if existing == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}
