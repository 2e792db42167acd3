package service

import (
	"fmt"

	"github.com/neverl0se/forgeModsConflictMediator/internal/domain"
)

// indexedRecord pairs a record with its position in the session record list.
type indexedRecord struct {
	index  int
	record domain.ConflictRecord
}

// buildOptions derives the resolution options for records. Options whose
// effect is already fully present in the registry are omitted, and an action
// offered by an earlier record is not repeated.
func buildOptions(reg domain.DisablementRegistry, records []indexedRecord) []domain.ResolutionOption {
	var options []domain.ResolutionOption
	seen := map[string]struct{}{}

	add := func(opt domain.ResolutionOption, alreadyApplied bool) {
		if alreadyApplied {
			return
		}
		if _, ok := seen[opt.Key()]; ok {
			return
		}
		seen[opt.Key()] = struct{}{}
		options = append(options, opt)
	}

	for _, ir := range records {
		rec := ir.record
		sides := []struct{ owner, artifact string }{
			{rec.OwnerA, rec.ArtifactA},
			{rec.OwnerB, rec.ArtifactB},
		}
		for _, side := range sides {
			if side.artifact != "" {
				add(artifactOption(ir.index, side.owner, side.artifact), artifactDisabled(reg, side.owner, side.artifact))
			}
		}
		for _, side := range sides {
			if !knownOwner(side.owner) {
				continue
			}
			add(featureOption(ir.index, side.owner), reg.IsDisabled(side.owner, domain.FeatureConflictResolution))
		}
		for _, side := range sides {
			if !knownOwner(side.owner) {
				continue
			}
			for _, module := range reg.RegisteredArtifacts(side.owner) {
				if module == domain.FeatureConflictResolution {
					continue
				}
				add(moduleOption(ir.index, side.owner, module), reg.IsDisabled(side.owner, module))
			}
		}
	}
	return options
}

func knownOwner(owner string) bool {
	return owner != "" && owner != domain.UnknownOwner
}

func artifactDisabled(reg domain.Disabler, owner, artifact string) bool {
	if !reg.IsPatchDisabled(artifact) {
		return false
	}
	return !knownOwner(owner) || reg.IsDisabled(owner, artifact)
}

func artifactOption(index int, owner, artifact string) domain.ResolutionOption {
	label := fmt.Sprintf("Disable patch %s", artifact)
	if knownOwner(owner) {
		label = fmt.Sprintf("Disable patch %s from %s", artifact, owner)
	}
	return domain.NewResolutionOption(label, domain.OptionDisableArtifact, owner, artifact, index,
		func(d domain.Disabler) bool {
			changed := d.DisablePatch(artifact)
			if knownOwner(owner) {
				changed = d.Disable(owner, artifact) || changed
			}
			return changed
		})
}

func featureOption(index int, owner string) domain.ResolutionOption {
	return domain.NewResolutionOption(
		fmt.Sprintf("Disable the conflicting feature of %s", owner),
		domain.OptionDisableFeature, owner, domain.FeatureConflictResolution, index,
		func(d domain.Disabler) bool {
			return d.Disable(owner, domain.FeatureConflictResolution)
		})
}

func moduleOption(index int, owner, module string) domain.ResolutionOption {
	return domain.NewResolutionOption(
		fmt.Sprintf("Disable module %s of %s", module, owner),
		domain.OptionDisableModule, owner, module, index,
		func(d domain.Disabler) bool {
			return d.Disable(owner, module)
		})
}
