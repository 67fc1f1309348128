package authz

import (
	"context"
	"errors"
	"time"

	"github.com/guardrail-dev/guardrail/pkg/cache/lru"
	gerrors "github.com/guardrail-dev/guardrail/pkg/common/errors"
	"github.com/guardrail-dev/guardrail/pkg/metrics"
)

// DefaultRole is the least-privileged role, returned whenever the
// authoritative store cannot produce one.
const DefaultRole = "user"

const (
	roleKeyPrefix  = "role:"
	permsKeyPrefix = "perms:"
)

// ErrNotFound reports that the store holds no record for the given key.
// Stores return it to distinguish "no record" from a lookup failure.
var ErrNotFound = errors.New("authz: record not found")

// RoleStore reads roles from the authoritative store.
type RoleStore interface {
	RoleByAddress(ctx context.Context, address string) (string, error)
}

// GrantStore reads permission grants from the authoritative store.
type GrantStore interface {
	PermissionsByAccount(ctx context.Context, accountID string) ([]string, error)
}

// RoleWriter mutates roles in the authoritative store.
type RoleWriter interface {
	SetRole(ctx context.Context, address, role string) error
}

// GrantWriter mutates permission grants in the authoritative store.
type GrantWriter interface {
	AddPermission(ctx context.Context, accountID, permission string) error
	RemovePermission(ctx context.Context, accountID, permission string) error
}

// Config holds configuration for an Authorizer.
type Config struct {
	// Roles and Grants are the authoritative read paths. Both are required.
	Roles  RoleStore
	Grants GrantStore

	// RoleWriter and GrantWriter enable the mutating operations. Optional.
	RoleWriter  RoleWriter
	GrantWriter GrantWriter

	// CacheSize and CacheTTL bound the two caches. Non-positive values fall
	// back to the lru package defaults (1000 entries, 60 seconds).
	CacheSize int
	CacheTTL  time.Duration

	// Clock provides the current time for cache expiry. If nil, system time.
	Clock lru.Clock

	// Metrics enables Prometheus instrumentation when non-nil.
	Metrics *metrics.Registry
}

// Authorizer caches role and permission lookups in front of the
// authoritative store. Construct exactly one per process at the composition
// root and share it; the caches are intentionally process-wide.
type Authorizer struct {
	cfg Config

	roles *lru.Cache[string]
	perms *lru.Cache[[]string]

	registry *metrics.Registry
}

// New creates an Authorizer. The role and grant read stores are required.
func New(cfg Config) (*Authorizer, error) {
	if cfg.Roles == nil {
		return nil, gerrors.NewValidationError("authz", "Roles", nil, "role store is required")
	}
	if cfg.Grants == nil {
		return nil, gerrors.NewValidationError("authz", "Grants", nil, "grant store is required")
	}

	roleOpts := []lru.Option[string]{}
	permOpts := []lru.Option[[]string]{}
	if cfg.Clock != nil {
		roleOpts = append(roleOpts, lru.WithClock[string](cfg.Clock))
		permOpts = append(permOpts, lru.WithClock[[]string](cfg.Clock))
	}
	if cfg.Metrics != nil {
		roleOpts = append(roleOpts, lru.WithMetrics[string]("authz_roles", cfg.Metrics))
		permOpts = append(permOpts, lru.WithMetrics[[]string]("authz_perms", cfg.Metrics))
	}

	return &Authorizer{
		cfg:      cfg,
		roles:    lru.New(cfg.CacheSize, cfg.CacheTTL, roleOpts...),
		perms:    lru.New(cfg.CacheSize, cfg.CacheTTL, permOpts...),
		registry: cfg.Metrics,
	}, nil
}

// Role returns the role for address. On a cache miss the authoritative
// store is consulted and the result cached. A store error or missing record
// resolves to DefaultRole; a role lookup never fails open to elevated
// privilege and never returns an error.
func (a *Authorizer) Role(ctx context.Context, address string) string {
	key := roleKeyPrefix + address
	if role, ok := a.roles.Get(key); ok {
		return role
	}

	a.countLookup("role")
	role, err := a.cfg.Roles.RoleByAddress(ctx, address)
	if err != nil || role == "" {
		if err != nil && !errors.Is(err, ErrNotFound) {
			a.countLookupError("role")
		}
		role = DefaultRole
	}

	a.roles.Set(key, role)
	return role
}

// Permissions returns the permission strings granted to accountID. A
// missing record resolves to an empty list; any other store error
// propagates so callers fail closed.
func (a *Authorizer) Permissions(ctx context.Context, accountID string) ([]string, error) {
	key := permsKeyPrefix + accountID
	if perms, ok := a.perms.Get(key); ok {
		return perms, nil
	}

	a.countLookup("perms")
	perms, err := a.cfg.Grants.PermissionsByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			perms = []string{}
		} else {
			a.countLookupError("perms")
			return nil, err
		}
	}
	if perms == nil {
		perms = []string{}
	}

	a.perms.Set(key, perms)
	return perms, nil
}

// HasPermission reports whether accountID holds the given permission.
func (a *Authorizer) HasPermission(ctx context.Context, accountID, permission string) (bool, error) {
	perms, err := a.Permissions(ctx, accountID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p == permission {
			return true, nil
		}
	}
	return false, nil
}

// UpdateRole writes a role to the authoritative store and invalidates the
// cached entry before returning, so the very next lookup observes the new
// value.
func (a *Authorizer) UpdateRole(ctx context.Context, address, role string) error {
	if a.cfg.RoleWriter == nil {
		return errors.New("authz: role writer is not configured")
	}
	if err := a.cfg.RoleWriter.SetRole(ctx, address, role); err != nil {
		return err
	}
	a.InvalidateRole(address)
	return nil
}

// GrantPermission adds a grant and invalidates the cached permission list
// before returning.
func (a *Authorizer) GrantPermission(ctx context.Context, accountID, permission string) error {
	if a.cfg.GrantWriter == nil {
		return errors.New("authz: grant writer is not configured")
	}
	if err := a.cfg.GrantWriter.AddPermission(ctx, accountID, permission); err != nil {
		return err
	}
	a.InvalidatePermissions(accountID)
	return nil
}

// RevokePermission removes a grant and invalidates the cached permission
// list before returning.
func (a *Authorizer) RevokePermission(ctx context.Context, accountID, permission string) error {
	if a.cfg.GrantWriter == nil {
		return errors.New("authz: grant writer is not configured")
	}
	if err := a.cfg.GrantWriter.RemovePermission(ctx, accountID, permission); err != nil {
		return err
	}
	a.InvalidatePermissions(accountID)
	return nil
}

// InvalidateRole evicts one address's cached role.
func (a *Authorizer) InvalidateRole(address string) {
	a.roles.Delete(roleKeyPrefix + address)
	a.countInvalidation("role")
}

// InvalidatePermissions evicts one account's cached permission list.
func (a *Authorizer) InvalidatePermissions(accountID string) {
	a.perms.Delete(permsKeyPrefix + accountID)
	a.countInvalidation("perms")
}

// InvalidateAllRoles evicts every cached role. Used when a mutation's reach
// is not precisely known by key.
func (a *Authorizer) InvalidateAllRoles() {
	a.roles.InvalidatePrefix(roleKeyPrefix)
	a.countInvalidation("role")
}

// Reset clears both caches wholesale.
func (a *Authorizer) Reset() {
	a.roles.Clear()
	a.perms.Clear()
}

func (a *Authorizer) countLookup(lookup string) {
	if a.registry != nil {
		a.registry.AuthzStoreLookups.WithLabelValues(lookup).Inc()
	}
}

func (a *Authorizer) countLookupError(lookup string) {
	if a.registry != nil {
		a.registry.AuthzStoreErrors.WithLabelValues(lookup).Inc()
	}
}

func (a *Authorizer) countInvalidation(lookup string) {
	if a.registry != nil {
		a.registry.AuthzInvalidations.WithLabelValues(lookup).Inc()
	}
}
