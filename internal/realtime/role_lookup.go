package realtime

import (
	"context"

	"github.com/spec-kit/commerce-support/internal/repository"
)

// RepositoryRoleLookup resolves role membership from the user store.
type RepositoryRoleLookup struct {
	users repository.UserRepository
}

// NewRepositoryRoleLookup constructs the lookup.
func NewRepositoryRoleLookup(users repository.UserRepository) *RepositoryRoleLookup {
	return &RepositoryRoleLookup{users: users}
}

// MemberIDs returns actor IDs holding the role. Only the admin role is
// broadcast-addressable.
func (l *RepositoryRoleLookup) MemberIDs(ctx context.Context, role string) ([]string, error) {
	if role != RoleAdmin {
		return nil, nil
	}
	return l.users.ListAdminIDs(ctx)
}
