package application

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog/log"
	"vn.io.arda/rolesync/internal/domain"
)

// CheckFunc reports whether identifier is listed in the file at filePath.
type CheckFunc func(identifier, filePath string) domain.Membership

// Reconcile computes the role delta for one user:
//
//	grant    = ⋃ roles of mappings whose file lists the user
//	toAdd    = grant − current
//	toRemove = current − grant − unmapped
//
// The result does not depend on mapping order. An unknown membership grants
// nothing, same as a confirmed absence, but is logged as a degraded check.
// Both lists are sorted.
func Reconcile(identifier string, currentRoles []string, mappings []domain.Mapping, unmapped []string, check CheckFunc) domain.Delta {
	grant := mapset.NewThreadUnsafeSet[string]()
	for _, m := range mappings {
		if len(m.Roles) == 0 {
			continue
		}
		switch check(identifier, m.FilePath) {
		case domain.MembershipTrue:
			grant.Append(m.Roles...)
		case domain.MembershipUnknown:
			log.Warn().
				Str("user", identifier).
				Str("path", m.FilePath).
				Strs("roles", m.Roles).
				Msg("membership unknown, mapping not applied (degraded check)")
		}
	}

	current := mapset.NewThreadUnsafeSet(currentRoles...)
	protected := mapset.NewThreadUnsafeSet(unmapped...)

	return domain.Delta{
		ToAdd:    sorted(grant.Difference(current)),
		ToRemove: sorted(current.Difference(grant).Difference(protected)),
	}
}

func sorted(s mapset.Set[string]) []string {
	out := s.ToSlice()
	slices.Sort(out)
	return out
}
