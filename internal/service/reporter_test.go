package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/neverl0se/forgeModsConflictMediator/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// blockingPresenter parks every session until its context is cancelled.
type blockingPresenter struct {
	entered chan uuid.UUID
}

func (p *blockingPresenter) Present(ctx context.Context, s *domain.MediationSession) ([]int, error) {
	p.entered <- s.ID
	<-ctx.Done()
	return nil, ctx.Err()
}

type panickingPresenter struct{}

func (panickingPresenter) Present(context.Context, *domain.MediationSession) ([]int, error) {
	panic("presenter bug")
}

func TestReporter_SubmitMediatesInBackground(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newTestEnv(t, &fakePresenter{selected: []int{0}})
	r := NewReporter(env.svc, 2, 8, nil)
	r.Start()

	id, err := r.Submit(overlapFailure())
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	require.Eventually(t, func() bool {
		_, err := env.journal.GetByID(context.Background(), id)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	r.Stop()

	got, err := env.journal.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, got.Status)
	assert.True(t, env.registry.IsPatchDisabled("alpha.mixin.FooMixin"))
}

func TestReporter_SubmitSignal(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newTestEnv(t, nil)
	r := NewReporter(env.svc, 1, 4, nil)
	r.Start()

	id, err := r.SubmitSignal(domain.ConflictSignal{Kind: domain.ConflictKindCapabilityCollision, OwnerA: "alpha", OwnerB: "beta"})
	require.NoError(t, err)
	r.Stop()

	got, err := env.journal.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeHeadless, got.Status)
}

func TestReporter_RejectsWhenStopped(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newTestEnv(t, nil)
	r := NewReporter(env.svc, 1, 1, nil)

	_, err := r.Submit(overlapFailure())
	assert.ErrorIs(t, err, ErrReporterStopped)

	r.Start()
	r.Stop()
	r.Stop()
	r.Start()

	_, err = r.Submit(overlapFailure())
	assert.ErrorIs(t, err, ErrReporterStopped)
}

func TestReporter_EmptyReport(t *testing.T) {
	env := newTestEnv(t, nil)
	r := NewReporter(env.svc, 1, 1, nil)
	r.Start()
	defer r.Stop()

	_, err := r.Submit(nil)
	assert.ErrorIs(t, err, ErrEmptyReport)
	assert.Nil(t, r.ReportFailure(context.Background(), nil))
}

func TestReporter_QueueFullAndStopReleasesWaiters(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := &blockingPresenter{entered: make(chan uuid.UUID, 4)}
	env := newTestEnv(t, p)
	r := NewReporter(env.svc, 1, 1, nil)
	r.Start()

	first, err := r.Submit(overlapFailure())
	require.NoError(t, err)
	select {
	case got := <-p.entered:
		assert.Equal(t, first, got)
	case <-time.After(2 * time.Second):
		t.Fatal("worker never presented the first session")
	}

	_, err = r.Submit(overlapFailure())
	require.NoError(t, err)
	_, err = r.Submit(overlapFailure())
	assert.ErrorIs(t, err, ErrQueueFull)

	r.Stop()

	list, err := env.journal.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, o := range list {
		assert.Equal(t, domain.OutcomeSkipped, o.Status)
	}
	assert.Equal(t, 0, env.registry.Snapshot().Count())
}

func TestReporter_ReportFailureIsSynchronous(t *testing.T) {
	env := newTestEnv(t, &fakePresenter{selected: []int{1}})
	r := NewReporter(env.svc, 1, 1, nil)

	out := r.ReportFailure(context.Background(), overlapFailure())

	require.NotNil(t, out)
	assert.Equal(t, domain.OutcomeApplied, out.Status)
	assert.True(t, env.registry.IsPatchDisabled("beta.mixin.FooMixin"))
}

func TestReporter_ReportFailureNeverPanics(t *testing.T) {
	env := newTestEnv(t, panickingPresenter{})
	r := NewReporter(env.svc, 1, 1, nil)

	var out *domain.MediationOutcome
	require.NotPanics(t, func() { out = r.ReportFailure(context.Background(), overlapFailure()) })
	assert.Nil(t, out)
	assert.Equal(t, 0, env.registry.Snapshot().Count())
}

func TestReporter_ReportSignal(t *testing.T) {
	env := newTestEnv(t, nil)
	r := NewReporter(env.svc, 1, 1, nil)

	out := r.ReportSignal(context.Background(), domain.ConflictSignal{OwnerA: "alpha", OwnerB: "beta", Description: "duplicate capability"})

	require.NotNil(t, out)
	assert.Equal(t, domain.OutcomeHeadless, out.Status)
}
