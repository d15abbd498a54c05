package access

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var ErrUnauthorized = errors.New("unauthorized")

// Role names a capability. RoleAdmin may change fee config, grant roles, and
// cancel any order; RoleBooker may register new trading pairs.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleBooker Role = "BOOKER"
)

// Registry is the access-control collaborator: a role -> holders map
// consulted by the exchange before privileged operations. The matching core
// never sees it.
type Registry struct {
	mu     sync.RWMutex
	grants map[Role]map[common.Address]struct{}
}

// NewRegistry creates a registry with admin holding both roles.
func NewRegistry(admin common.Address) *Registry {
	r := &Registry{
		grants: make(map[Role]map[common.Address]struct{}),
	}
	r.grant(RoleAdmin, admin)
	r.grant(RoleBooker, admin)
	return r
}

// HasRole reports whether the identity holds the role.
func (r *Registry) HasRole(who common.Address, role Role) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.grants[role][who]
	return ok
}

// Require fails with ErrUnauthorized unless the identity holds the role.
func (r *Registry) Require(who common.Address, role Role) error {
	if !r.HasRole(who, role) {
		return fmt.Errorf("%s lacks role %s: %w", who.Hex(), role, ErrUnauthorized)
	}
	return nil
}

// Grant gives a role to an identity. Only an admin may grant.
func (r *Registry) Grant(caller, to common.Address, role Role) error {
	if err := r.Require(caller, RoleAdmin); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grant(role, to)
	return nil
}

// Revoke removes a role from an identity. Only an admin may revoke.
func (r *Registry) Revoke(caller, from common.Address, role Role) error {
	if err := r.Require(caller, RoleAdmin); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if holders, ok := r.grants[role]; ok {
		delete(holders, from)
	}
	return nil
}

func (r *Registry) grant(role Role, to common.Address) {
	holders, ok := r.grants[role]
	if !ok {
		holders = make(map[common.Address]struct{})
		r.grants[role] = holders
	}
	holders[to] = struct{}{}
}
