package analysis

import (
	"regexp"
	"strings"
)

// DefaultPatchNamespace is the package segment that marks a patch class.
const DefaultPatchNamespace = "mixin"

// PatchRef is one patch-style identifier found in text, e.g. alpha.mixin.FooMixin.
type PatchRef struct {
	Owner      string
	Name       string
	Identifier string
}

// Extractor attributes text spans to owning components.
type Extractor struct {
	namespace string
	pattern   *regexp.Regexp
}

// NewExtractor builds an extractor for identifiers of the form
// <owner>.<namespace>.<ArtifactName>.
func NewExtractor(namespace string) *Extractor {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = DefaultPatchNamespace
	}
	pattern := regexp.MustCompile(`\b([a-z][a-z0-9_]+)\.` + regexp.QuoteMeta(namespace) + `\.([A-Z][A-Za-z0-9_$]*)`)
	return &Extractor{namespace: namespace, pattern: pattern}
}

func (e *Extractor) Namespace() string {
	return e.namespace
}

// PatchRefs returns every patch-style identifier in text in order of appearance.
func (e *Extractor) PatchRefs(text string) []PatchRef {
	matches := e.pattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	refs := make([]PatchRef, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, PatchRef{Owner: m[1], Name: m[2], Identifier: m[0]})
	}
	return refs
}

// IdentifierFromPatchName returns the owner of the first patch-style identifier in text.
func (e *Extractor) IdentifierFromPatchName(text string) (string, bool) {
	m := e.pattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// PatchRef returns the first patch-style identifier in text.
func (e *Extractor) PatchRef(text string) (PatchRef, bool) {
	m := e.pattern.FindStringSubmatch(text)
	if m == nil {
		return PatchRef{}, false
	}
	return PatchRef{Owner: m[1], Name: m[2], Identifier: m[0]}, true
}

// IdentifierFromKnownOwners returns the first known owner occurring as a substring
// of text. Ties resolve in the order knownOwners is given.
func IdentifierFromKnownOwners(text string, knownOwners []string) (string, bool) {
	for _, owner := range knownOwners {
		if owner == "" {
			continue
		}
		if strings.Contains(text, owner) {
			return owner, true
		}
	}
	return "", false
}

// OwnerOfPatchIdentifier returns the text before the first dot of a patch identifier.
func OwnerOfPatchIdentifier(identifier string) (string, bool) {
	i := strings.IndexByte(identifier, '.')
	if i <= 0 {
		return "", false
	}
	return identifier[:i], true
}
