package domain

import (
	"fmt"
	"strings"
)

// UnknownOwner is used when a conflict side cannot be attributed to a component.
const UnknownOwner = "unknown"

type ConflictKind string

const (
	ConflictKindPatchOverlap        ConflictKind = "patch_overlap"
	ConflictKindDuplicateMember     ConflictKind = "duplicate_member"
	ConflictKindRegistryCollision   ConflictKind = "registry_collision"
	ConflictKindCapabilityCollision ConflictKind = "capability_collision"
	ConflictKindUnknown             ConflictKind = "unknown"
)

func ValidConflictKind(k string) bool {
	switch ConflictKind(k) {
	case ConflictKindPatchOverlap, ConflictKindDuplicateMember, ConflictKindRegistryCollision,
		ConflictKindCapabilityCollision, ConflictKindUnknown:
		return true
	}
	return false
}

// ConflictRecord describes a suspected collision between two components.
// Records are values: the analyzer builds them and nothing mutates them afterwards.
type ConflictRecord struct {
	Kind        ConflictKind `json:"kind"`
	OwnerA      string       `json:"owner_a"`
	OwnerB      string       `json:"owner_b"`
	Description string       `json:"description"`
	RawEvidence string       `json:"raw_evidence"`
	ArtifactA   string       `json:"artifact_a,omitempty"`
	ArtifactB   string       `json:"artifact_b,omitempty"`
}

// NewConflictRecord normalizes empty owners to UnknownOwner.
func NewConflictRecord(kind ConflictKind, ownerA, ownerB, description, evidence string) ConflictRecord {
	return ConflictRecord{
		Kind:        kind,
		OwnerA:      ownerOrUnknown(ownerA),
		OwnerB:      ownerOrUnknown(ownerB),
		Description: description,
		RawEvidence: evidence,
	}
}

// WithArtifacts returns a copy of r carrying the given artifact identifiers.
func (r ConflictRecord) WithArtifacts(a, b string) ConflictRecord {
	r.ArtifactA = a
	r.ArtifactB = b
	return r
}

// DedupKey identifies a record by kind and the unordered owner pair.
func (r ConflictRecord) DedupKey() string {
	a, b := r.OwnerA, r.OwnerB
	if b < a {
		a, b = b, a
	}
	return string(r.Kind) + "\x00" + a + "\x00" + b
}

// Owners returns the owner pair in record order.
func (r ConflictRecord) Owners() [2]string {
	return [2]string{r.OwnerA, r.OwnerB}
}

func (r ConflictRecord) String() string {
	return fmt.Sprintf("conflict[%s] between %s and %s: %s", r.Kind, r.OwnerA, r.OwnerB, r.Description)
}

func ownerOrUnknown(owner string) string {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return UnknownOwner
	}
	return owner
}

// ConflictSignal is a host-reported conflict whose owners are already known.
type ConflictSignal struct {
	Kind        ConflictKind `json:"kind"`
	OwnerA      string       `json:"owner_a"`
	OwnerB      string       `json:"owner_b"`
	ArtifactA   string       `json:"artifact_a,omitempty"`
	ArtifactB   string       `json:"artifact_b,omitempty"`
	Description string       `json:"description,omitempty"`
	Evidence    string       `json:"evidence,omitempty"`
}

// Record converts the signal into a conflict record, bypassing analysis.
func (s ConflictSignal) Record() ConflictRecord {
	kind := s.Kind
	if !ValidConflictKind(string(kind)) {
		kind = ConflictKindUnknown
	}
	desc := s.Description
	if desc == "" {
		desc = fmt.Sprintf("host reported %s conflict", kind)
	}
	return NewConflictRecord(kind, s.OwnerA, s.OwnerB, desc, s.Evidence).WithArtifacts(s.ArtifactA, s.ArtifactB)
}
