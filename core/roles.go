package core

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultAdminRole is the sentinel role that administers itself and, by
// default, every role whose admin has not been explicitly reassigned.
const DefaultAdminRole = "DEFAULT_ADMIN_ROLE"

// roleAdmin records the current admin-role assignment for a role plus
// bookkeeping for when an admin-role was first assigned to it.
type roleAdmin struct {
	AdminRole string    `json:"admin_role"`
	CreatedAt time.Time `json:"created_at"`
}

// RoleManager is a (role, address) -> granted mapping, a role -> admin-role
// mapping, and per-role member counts, all persisted through a KVStore.
type RoleManager struct {
	mu    sync.Mutex
	store KVStore
}

// NewRoleManager constructs a RoleManager over store and seeds
// DefaultAdminRole to instantiator. Calling it twice over the same store
// is idempotent.
func NewRoleManager(store KVStore, instantiator Address) *RoleManager {
	rm := &RoleManager{store: store}
	if !rm.HasRole(DefaultAdminRole, instantiator) {
		_ = rm.grantUnchecked(DefaultAdminRole, instantiator)
	}
	return rm
}

func roleGrantKey(role string, addr Address) []byte {
	return []byte(fmt.Sprintf("role:%s:%s", role, addr.Hex()))
}

func roleAdminKey(role string) []byte {
	return []byte(fmt.Sprintf("role_admin:%s", role))
}

func roleCountKey(role string) []byte {
	return []byte(fmt.Sprintf("role_count:%s", role))
}

// HasRole reports whether addr currently holds role.
func (rm *RoleManager) HasRole(role string, addr Address) bool {
	ok, _ := rm.store.Has(roleGrantKey(role, addr))
	return ok
}

// GetRoleAdmin returns the admin-role of role, defaulting to
// DefaultAdminRole if role has never had an admin assigned.
func (rm *RoleManager) GetRoleAdmin(role string) string {
	if role == DefaultAdminRole {
		return DefaultAdminRole
	}
	raw, _ := rm.store.Get(roleAdminKey(role))
	if len(raw) == 0 {
		return DefaultAdminRole
	}
	var ra roleAdmin
	if err := json.Unmarshal(raw, &ra); err != nil {
		return DefaultAdminRole
	}
	return ra.AdminRole
}

// IsRoleAdmin reports whether addr holds role's current admin-role. This is
// a single direct lookup, not a transitive graph walk: hierarchical
// capability only ever emerges from chained grants, never from an implicit
// "admin of admin" inference.
func (rm *RoleManager) IsRoleAdmin(role string, addr Address) bool {
	return rm.HasRole(rm.GetRoleAdmin(role), addr)
}

// GetRoleMemberCount returns the cardinality of addresses currently holding
// role. Unused roles report 0.
func (rm *RoleManager) GetRoleMemberCount(role string) uint64 {
	raw, _ := rm.store.Get(roleCountKey(role))
	if len(raw) == 0 {
		return 0
	}
	var n uint64
	_, _ = fmt.Sscanf(string(raw), "%d", &n)
	return n
}

// GetRoles returns, in insertion order, every role granted to addr.
func (rm *RoleManager) GetRoles(addr Address) []string {
	raw, _ := rm.store.Get(rolesByAddrKey(addr))
	if len(raw) == 0 {
		return nil
	}
	var roles []string
	if err := json.Unmarshal(raw, &roles); err != nil {
		return nil
	}
	return roles
}

func rolesByAddrKey(addr Address) []byte {
	return []byte(fmt.Sprintf("role_list:%s", addr.Hex()))
}

// GrantRole assigns role to addr. Caller must be admin of role (per
// IsRoleAdmin); granting an already-granted role is a no-op and does not
// touch the member count.
func (rm *RoleManager) GrantRole(caller Address, role string, addr Address) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if !rm.IsRoleAdmin(role, caller) {
		return ErrMissingRole.withContext("role", role, "caller", caller.Hex())
	}
	if rm.HasRole(role, addr) {
		return nil
	}
	if err := rm.grantUnchecked(role, addr); err != nil {
		return err
	}
	log.WithFields(log.Fields{"role": role, "addr": addr.Short(), "caller": caller.Short()}).Info("role granted")
	Broadcast(Event{Action: "grant_role", Caller: caller, Attributes: map[string]any{"role": role, "address": addr.Hex()}})
	return nil
}

func (rm *RoleManager) grantUnchecked(role string, addr Address) error {
	if err := rm.store.Set(roleGrantKey(role, addr), []byte{1}); err != nil {
		return err
	}
	if err := rm.bumpCount(role, 1); err != nil {
		return err
	}
	roles := rm.GetRoles(addr)
	roles = append(roles, role)
	raw, _ := json.Marshal(roles)
	return rm.store.Set(rolesByAddrKey(addr), raw)
}

func (rm *RoleManager) bumpCount(role string, delta int64) error {
	cur := int64(rm.GetRoleMemberCount(role))
	cur += delta
	if cur < 0 {
		cur = 0
	}
	return rm.store.Set(roleCountKey(role), []byte(fmt.Sprintf("%d", cur)))
}

// RevokeRole removes role from addr. Caller must be admin of role. Revoking
// a role the address does not hold is a no-op.
func (rm *RoleManager) RevokeRole(caller Address, role string, addr Address) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if !rm.IsRoleAdmin(role, caller) {
		return ErrMissingRole.withContext("role", role, "caller", caller.Hex())
	}
	if !rm.HasRole(role, addr) {
		return nil
	}
	if err := rm.revokeUnchecked(role, addr); err != nil {
		return err
	}
	log.WithFields(log.Fields{"role": role, "addr": addr.Short(), "caller": caller.Short()}).Info("role revoked")
	Broadcast(Event{Action: "revoke_role", Caller: caller, Attributes: map[string]any{"role": role, "address": addr.Hex()}})
	return nil
}

func (rm *RoleManager) revokeUnchecked(role string, addr Address) error {
	if err := rm.store.Delete(roleGrantKey(role, addr)); err != nil {
		return err
	}
	if err := rm.bumpCount(role, -1); err != nil {
		return err
	}
	roles := rm.GetRoles(addr)
	filtered := roles[:0]
	for _, r := range roles {
		if r != role {
			filtered = append(filtered, r)
		}
	}
	raw, _ := json.Marshal(filtered)
	return rm.store.Set(rolesByAddrKey(addr), raw)
}

// RenounceRole drops role from the caller's own address. There is
// deliberately no address parameter: a caller can never renounce on
// another address's behalf.
func (rm *RoleManager) RenounceRole(caller Address, role string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if !rm.HasRole(role, caller) {
		return ErrCannotRenounce.withContext("role", role)
	}
	if err := rm.revokeUnchecked(role, caller); err != nil {
		return err
	}
	log.WithFields(log.Fields{"role": role, "addr": caller.Short()}).Info("role renounced")
	Broadcast(Event{Action: "renounce_role", Caller: caller, Attributes: map[string]any{"role": role}})
	return nil
}

// SetRoleAdmin reassigns role's admin-role. Caller must be admin of role
// under its *current* assignment. DefaultAdminRole's admin assignment
// (itself) is immutable.
func (rm *RoleManager) SetRoleAdmin(caller Address, role, adminRole string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if role == DefaultAdminRole {
		return ErrUnauthorized.withContext("reason", "default admin role is self-administered")
	}
	if !rm.IsRoleAdmin(role, caller) {
		return ErrMissingRole.withContext("role", role, "caller", caller.Hex())
	}
	ra := roleAdmin{AdminRole: adminRole, CreatedAt: time.Now().UTC()}
	if prevRaw, _ := rm.store.Get(roleAdminKey(role)); len(prevRaw) > 0 {
		var prev roleAdmin
		if err := json.Unmarshal(prevRaw, &prev); err == nil && !prev.CreatedAt.IsZero() {
			ra.CreatedAt = prev.CreatedAt
		}
	}
	raw, _ := json.Marshal(ra)
	if err := rm.store.Set(roleAdminKey(role), raw); err != nil {
		return err
	}
	log.WithFields(log.Fields{"role": role, "admin_role": adminRole, "caller": caller.Short()}).Info("role admin set")
	Broadcast(Event{Action: "set_role_admin", Caller: caller, Attributes: map[string]any{"role": role, "admin_role": adminRole}})
	return nil
}
