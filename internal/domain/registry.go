package domain

// FeatureConflictResolution is the feature id disabled by owner-level options.
const FeatureConflictResolution = "conflict_resolution"

// DisablementRegistry is the persisted registry surface used during mediation.
type DisablementRegistry interface {
	Disabler
	RegisterArtifact(owner, artifactID string)
	RegisteredArtifacts(owner string) []string
	Save() error
}
