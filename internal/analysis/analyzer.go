package analysis

import (
	"fmt"
	"strings"

	"github.com/neverl0se/forgeModsConflictMediator/internal/domain"
	"go.uber.org/zap"
)

const defaultMaxCauseDepth = 32

var defaultDuplicateMarkers = []string{"duplicate", "already exists"}

// Analyzer turns a failure descriptor into conflict records. It keeps no
// state between calls and is safe for concurrent use.
type Analyzer struct {
	extractor  *Extractor
	components domain.ComponentSource
	logger     *zap.Logger

	markers  []string
	ignored  map[string]struct{}
	maxDepth int
}

func NewAnalyzer(extractor *Extractor, components domain.ComponentSource, logger *zap.Logger) *Analyzer {
	if extractor == nil {
		extractor = NewExtractor(DefaultPatchNamespace)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		extractor:  extractor,
		components: components,
		logger:     logger,
		markers:    defaultDuplicateMarkers,
		ignored:    map[string]struct{}{},
		maxDepth:   defaultMaxCauseDepth,
	}
}

// SetDuplicateMarkers replaces the phrases that flag a duplicate-member failure.
// Matching is case-insensitive.
func (a *Analyzer) SetDuplicateMarkers(markers []string) {
	cleaned := make([]string, 0, len(markers))
	for _, m := range markers {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" {
			cleaned = append(cleaned, m)
		}
	}
	a.markers = cleaned
}

func (a *Analyzer) SetMaxCauseDepth(depth int) {
	if depth > 0 {
		a.maxDepth = depth
	}
}

// SetIgnoredOwners excludes identifiers that belong to the host or its patch
// framework rather than to a plugin.
func (a *Analyzer) SetIgnoredOwners(owners []string) {
	a.ignored = make(map[string]struct{}, len(owners))
	for _, o := range owners {
		if o = strings.TrimSpace(o); o != "" {
			a.ignored[o] = struct{}{}
		}
	}
}

func (a *Analyzer) Extractor() *Extractor {
	return a.extractor
}

// Analyze returns the deduplicated conflict records for f and its causes.
// Records from the outer failure come before those of its causes; within a
// level, message detectors run before the trace detector.
func (a *Analyzer) Analyze(f *domain.FailureDescriptor) []domain.ConflictRecord {
	if f == nil {
		return nil
	}
	known := a.knownOwners()

	var records []domain.ConflictRecord
	for _, level := range f.Chain(a.maxDepth) {
		records = append(records, a.safely("patch_overlap", func() []domain.ConflictRecord {
			return a.detectPatchOverlap(level.Message)
		})...)
		records = append(records, a.safely("duplicate_member", func() []domain.ConflictRecord {
			return a.detectDuplicateMember(level.Message, level.Frames, known)
		})...)
		records = append(records, a.safely("trace_cooccurrence", func() []domain.ConflictRecord {
			return a.detectTraceCooccurrence(level.Frames, known)
		})...)
	}
	return Dedupe(records)
}

// Dedupe drops records whose kind and unordered owner pair were already seen.
func Dedupe(records []domain.ConflictRecord) []domain.ConflictRecord {
	if len(records) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(records))
	out := make([]domain.ConflictRecord, 0, len(records))
	for _, r := range records {
		key := r.DedupKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

func (a *Analyzer) safely(detector string, fn func() []domain.ConflictRecord) (out []domain.ConflictRecord) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("conflict detector failed", zap.String("detector", detector), zap.Any("panic", r))
			out = nil
		}
	}()
	return fn()
}

func (a *Analyzer) knownOwners() []string {
	if a.components == nil {
		return nil
	}
	loaded := a.components.LoadedComponents()
	known := make([]string, 0, len(loaded))
	for _, id := range loaded {
		id = strings.TrimSpace(id)
		if id == "" || a.isIgnored(id) {
			continue
		}
		known = append(known, id)
	}
	return known
}

func (a *Analyzer) isIgnored(owner string) bool {
	_, ok := a.ignored[owner]
	return ok
}

func (a *Analyzer) detectPatchOverlap(message string) []domain.ConflictRecord {
	refs := a.extractor.PatchRefs(message)
	if len(refs) < 2 {
		return nil
	}

	var owners []string
	firstRef := map[string]string{}
	var identifiers []string
	seenIdent := map[string]struct{}{}
	for _, ref := range refs {
		if a.isIgnored(ref.Owner) {
			continue
		}
		if _, ok := seenIdent[ref.Identifier]; !ok {
			seenIdent[ref.Identifier] = struct{}{}
			identifiers = append(identifiers, ref.Identifier)
		}
		if _, ok := firstRef[ref.Owner]; !ok {
			firstRef[ref.Owner] = ref.Identifier
			owners = append(owners, ref.Owner)
		}
	}
	if len(owners) < 2 {
		return nil
	}

	rec := domain.NewConflictRecord(
		domain.ConflictKindPatchOverlap,
		owners[0], owners[1],
		"patch overlap: "+strings.Join(identifiers, ", "),
		message,
	).WithArtifacts(firstRef[owners[0]], firstRef[owners[1]])
	return []domain.ConflictRecord{rec}
}

func (a *Analyzer) detectDuplicateMember(message string, frames []domain.Frame, known []string) []domain.ConflictRecord {
	if !a.hasDuplicateMarker(message) {
		return nil
	}
	rec := domain.NewConflictRecord(
		domain.ConflictKindDuplicateMember,
		frameOwner(frames, 0, known),
		frameOwner(frames, 1, known),
		"duplicate member or field",
		message,
	)
	return []domain.ConflictRecord{rec}
}

func (a *Analyzer) hasDuplicateMarker(message string) bool {
	lower := strings.ToLower(message)
	for _, m := range a.markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func frameOwner(frames []domain.Frame, index int, known []string) string {
	if index < 0 || index >= len(frames) {
		return domain.UnknownOwner
	}
	if owner, ok := IdentifierFromKnownOwners(frames[index].Class, known); ok {
		return owner
	}
	return domain.UnknownOwner
}

type traceHit struct {
	owner    string
	frame    domain.Frame
	artifact string
}

func (a *Analyzer) detectTraceCooccurrence(frames []domain.Frame, known []string) []domain.ConflictRecord {
	var hits []traceHit
	seen := map[string]struct{}{}
	for _, f := range frames {
		for _, hit := range a.attributeFrame(f, known) {
			if _, dup := seen[hit.owner]; dup {
				continue
			}
			seen[hit.owner] = struct{}{}
			hits = append(hits, hit)
		}
	}
	if len(hits) < 2 {
		return nil
	}

	owners := make([]string, len(hits))
	for i, h := range hits {
		owners[i] = h.owner
	}
	rec := domain.NewConflictRecord(
		domain.ConflictKindUnknown,
		hits[0].owner, hits[1].owner,
		"components co-occur in trace: "+strings.Join(owners, ", "),
		fmt.Sprintf("%s | %s", hits[0].frame, hits[1].frame),
	).WithArtifacts(hits[0].artifact, hits[1].artifact)
	return []domain.ConflictRecord{rec}
}

// attributeFrame credits a frame to the known owner its class names and to
// the owner of a patch class, in that order. A patch frame carries the full
// class name as its artifact, which is what the host matches on next start.
func (a *Analyzer) attributeFrame(f domain.Frame, known []string) []traceHit {
	var hits []traceHit
	ref, isPatch := a.extractor.PatchRef(f.Class)
	isPatch = isPatch && !a.isIgnored(ref.Owner)

	if owner, ok := IdentifierFromKnownOwners(f.Class, known); ok {
		hit := traceHit{owner: owner, frame: f}
		if isPatch && ref.Owner == owner {
			hit.artifact = f.Class
		}
		hits = append(hits, hit)
	}
	if isPatch {
		hits = append(hits, traceHit{owner: ref.Owner, frame: f, artifact: f.Class})
	}
	return hits
}
