package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrPresenterUnavailable means no interactive surface can show the options.
	ErrPresenterUnavailable = errors.New("presentation surface unavailable")
	// ErrDecisionSkipped means the operator dismissed the decision without choosing.
	ErrDecisionSkipped = errors.New("decision skipped")
)

// Disabler is the registry surface resolution options act on.
type Disabler interface {
	Disable(owner, artifactID string) bool
	DisablePatch(patchID string) bool
	IsDisabled(owner, artifactID string) bool
	IsPatchDisabled(patchID string) bool
}

type OptionKind string

const (
	OptionDisableArtifact OptionKind = "disable_artifact"
	OptionDisableFeature  OptionKind = "disable_feature"
	OptionDisableModule   OptionKind = "disable_module"
)

// ResolutionOption is one candidate action offered to the operator.
type ResolutionOption struct {
	Label       string     `json:"label"`
	Kind        OptionKind `json:"kind"`
	Owner       string     `json:"owner"`
	Artifact    string     `json:"artifact,omitempty"`
	RecordIndex int        `json:"record_index"`
	Selected    bool       `json:"selected"`

	apply func(Disabler) bool
}

func NewResolutionOption(label string, kind OptionKind, owner, artifact string, recordIndex int, apply func(Disabler) bool) ResolutionOption {
	return ResolutionOption{
		Label:       label,
		Kind:        kind,
		Owner:       owner,
		Artifact:    artifact,
		RecordIndex: recordIndex,
		apply:       apply,
	}
}

// Apply performs the option's registry mutation and reports whether anything changed.
func (o ResolutionOption) Apply(d Disabler) bool {
	if o.apply == nil {
		return false
	}
	return o.apply(d)
}

// Key identifies the action independent of which record produced it.
func (o ResolutionOption) Key() string {
	return string(o.Kind) + "\x00" + o.Owner + "\x00" + o.Artifact
}

type MediationState string

const (
	StateIdle             MediationState = "idle"
	StateAnalyzing        MediationState = "analyzing"
	StateNoConflict       MediationState = "no_conflict"
	StateAwaitingDecision MediationState = "awaiting_decision"
	StateHeadless         MediationState = "headless"
	StateApplying         MediationState = "applying"
	StatePersisted        MediationState = "persisted"
)

// MediationSession lives for one detect, decide, apply cycle.
type MediationSession struct {
	ID        uuid.UUID          `json:"id"`
	Failure   *FailureDescriptor `json:"failure,omitempty"`
	Records   []ConflictRecord   `json:"records"`
	Options   []ResolutionOption `json:"options"`
	State     MediationState     `json:"state"`
	StartedAt time.Time          `json:"started_at"`
}

type OutcomeStatus string

const (
	OutcomeNoConflict OutcomeStatus = "no_conflict"
	OutcomeHeadless   OutcomeStatus = "headless"
	OutcomeSkipped    OutcomeStatus = "skipped"
	OutcomeDismissed  OutcomeStatus = "dismissed"
	OutcomeHandled    OutcomeStatus = "handled"
	OutcomeApplied    OutcomeStatus = "applied"
)

// MediationOutcome summarizes a finished session.
type MediationOutcome struct {
	SessionID       uuid.UUID          `json:"session_id"`
	Status          OutcomeStatus      `json:"status"`
	Records         []ConflictRecord   `json:"records"`
	Options         []ResolutionOption `json:"options,omitempty"`
	Selected        []int              `json:"selected,omitempty"`
	Applied         []string           `json:"applied,omitempty"`
	PersistError    string             `json:"persist_error,omitempty"`
	RestartRequired bool               `json:"restart_required"`
	StartedAt       time.Time          `json:"started_at"`
	FinishedAt      time.Time          `json:"finished_at"`
}

// Presenter shows the option list to an operator and returns the selected indices.
// It returns ErrPresenterUnavailable when no surface exists and ErrDecisionSkipped
// when the operator skips.
type Presenter interface {
	Present(ctx context.Context, session *MediationSession) ([]int, error)
}

// MediationEvent is delivered to hooks once per record before options are built.
type MediationEvent struct {
	SessionID  uuid.UUID
	Record     ConflictRecord
	handled    bool
	resolution string
}

// Resolve marks the record as handled by the hook.
func (e *MediationEvent) Resolve(resolution string) {
	e.handled = true
	e.resolution = resolution
}

func (e *MediationEvent) Handled() bool      { return e.handled }
func (e *MediationEvent) Resolution() string { return e.resolution }

type MediationHook func(ctx context.Context, event *MediationEvent)

// ComponentSource supplies the identifiers of currently loaded components.
type ComponentSource interface {
	LoadedComponents() []string
}

// StaticComponents is a fixed ComponentSource.
type StaticComponents []string

func (s StaticComponents) LoadedComponents() []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}

type JournalStore interface {
	Append(ctx context.Context, outcome *MediationOutcome) error
	List(ctx context.Context, limit int) ([]MediationOutcome, error)
	GetByID(ctx context.Context, id uuid.UUID) (*MediationOutcome, error)
}
