package authz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/guardrail-dev/guardrail/internal/testutil"
	gerrors "github.com/guardrail-dev/guardrail/pkg/common/errors"
)

type fakeStore struct {
	roles map[string]string
	perms map[string][]string

	roleLookups int
	permLookups int

	roleErr error
	permErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		roles: make(map[string]string),
		perms: make(map[string][]string),
	}
}

func (f *fakeStore) RoleByAddress(_ context.Context, address string) (string, error) {
	f.roleLookups++
	if f.roleErr != nil {
		return "", f.roleErr
	}
	role, ok := f.roles[address]
	if !ok {
		return "", ErrNotFound
	}
	return role, nil
}

func (f *fakeStore) PermissionsByAccount(_ context.Context, accountID string) ([]string, error) {
	f.permLookups++
	if f.permErr != nil {
		return nil, f.permErr
	}
	perms, ok := f.perms[accountID]
	if !ok {
		return nil, ErrNotFound
	}
	return perms, nil
}

func (f *fakeStore) SetRole(_ context.Context, address, role string) error {
	f.roles[address] = role
	return nil
}

func (f *fakeStore) AddPermission(_ context.Context, accountID, permission string) error {
	f.perms[accountID] = append(f.perms[accountID], permission)
	return nil
}

func (f *fakeStore) RemovePermission(_ context.Context, accountID, permission string) error {
	kept := f.perms[accountID][:0]
	for _, p := range f.perms[accountID] {
		if p != permission {
			kept = append(kept, p)
		}
	}
	f.perms[accountID] = kept
	return nil
}

func newTestAuthorizer(t *testing.T, store *fakeStore) *Authorizer {
	t.Helper()
	a, err := New(Config{
		Roles:       store,
		Grants:      store,
		RoleWriter:  store,
		GrantWriter: store,
	})
	if err != nil {
		t.Fatalf("failed to create authorizer: %v", err)
	}
	return a
}

func TestNewRequiresStores(t *testing.T) {
	if _, err := New(Config{}); !gerrors.IsValidationError(err) {
		t.Fatalf("expected validation error without stores, got %v", err)
	}
	if _, err := New(Config{Roles: newFakeStore()}); !gerrors.IsValidationError(err) {
		t.Fatalf("expected validation error without grant store, got %v", err)
	}
}

func TestRoleReadThrough(t *testing.T) {
	store := newFakeStore()
	store.roles["0xabc"] = "admin"
	a := newTestAuthorizer(t, store)
	ctx := context.Background()

	testutil.AssertEqual(t, a.Role(ctx, "0xabc"), "admin")
	testutil.AssertEqual(t, a.Role(ctx, "0xabc"), "admin")
	// Second lookup is served from cache.
	testutil.AssertEqual(t, store.roleLookups, 1)
}

func TestRoleMissingRecordDefaultsToLeastPrivilege(t *testing.T) {
	store := newFakeStore()
	a := newTestAuthorizer(t, store)

	testutil.AssertEqual(t, a.Role(context.Background(), "0xunknown"), DefaultRole)
}

func TestRoleStoreErrorDefaultsToLeastPrivilege(t *testing.T) {
	store := newFakeStore()
	store.roleErr = errors.New("db down")
	a := newTestAuthorizer(t, store)

	testutil.AssertEqual(t, a.Role(context.Background(), "0xabc"), DefaultRole)
}

func TestPermissionsReadThrough(t *testing.T) {
	store := newFakeStore()
	store.perms["acct1"] = []string{"mint", "burn"}
	a := newTestAuthorizer(t, store)
	ctx := context.Background()

	perms, err := a.Permissions(ctx, "acct1")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(perms), 2)

	if _, err := a.Permissions(ctx, "acct1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, store.permLookups, 1)
}

func TestPermissionsMissingRecordIsEmpty(t *testing.T) {
	store := newFakeStore()
	a := newTestAuthorizer(t, store)

	perms, err := a.Permissions(context.Background(), "nobody")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(perms), 0)
}

func TestPermissionsStoreErrorFailsClosed(t *testing.T) {
	store := newFakeStore()
	store.permErr = errors.New("db down")
	a := newTestAuthorizer(t, store)

	_, err := a.Permissions(context.Background(), "acct1")
	testutil.AssertError(t, err)

	ok, err := a.HasPermission(context.Background(), "acct1", "mint")
	testutil.AssertError(t, err)
	testutil.AssertEqual(t, ok, false)
}

func TestHasPermission(t *testing.T) {
	store := newFakeStore()
	store.perms["acct1"] = []string{"mint"}
	a := newTestAuthorizer(t, store)
	ctx := context.Background()

	ok, err := a.HasPermission(ctx, "acct1", "mint")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, ok, true)

	ok, err = a.HasPermission(ctx, "acct1", "burn")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, ok, false)
}

func TestUpdateRoleInvalidatesBeforeReturn(t *testing.T) {
	store := newFakeStore()
	store.roles["0xabc"] = "user"
	a := newTestAuthorizer(t, store)
	ctx := context.Background()

	testutil.AssertEqual(t, a.Role(ctx, "0xabc"), "user")

	testutil.AssertNoError(t, a.UpdateRole(ctx, "0xabc", "admin"))

	// The very next lookup on the same process observes the new value.
	testutil.AssertEqual(t, a.Role(ctx, "0xabc"), "admin")
}

func TestGrantAndRevokeInvalidate(t *testing.T) {
	store := newFakeStore()
	a := newTestAuthorizer(t, store)
	ctx := context.Background()

	ok, err := a.HasPermission(ctx, "acct1", "mint")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, ok, false)

	testutil.AssertNoError(t, a.GrantPermission(ctx, "acct1", "mint"))
	ok, err = a.HasPermission(ctx, "acct1", "mint")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, ok, true)

	testutil.AssertNoError(t, a.RevokePermission(ctx, "acct1", "mint"))
	ok, err = a.HasPermission(ctx, "acct1", "mint")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, ok, false)
}

func TestMutationsRequireWriters(t *testing.T) {
	store := newFakeStore()
	a, err := New(Config{Roles: store, Grants: store})
	testutil.AssertNoError(t, err)
	ctx := context.Background()

	testutil.AssertError(t, a.UpdateRole(ctx, "0xabc", "admin"))
	testutil.AssertError(t, a.GrantPermission(ctx, "acct1", "mint"))
	testutil.AssertError(t, a.RevokePermission(ctx, "acct1", "mint"))
}

func TestInvalidateAllRoles(t *testing.T) {
	store := newFakeStore()
	store.roles["0xabc"] = "admin"
	store.roles["0xdef"] = "minter"
	a := newTestAuthorizer(t, store)
	ctx := context.Background()

	a.Role(ctx, "0xabc")
	a.Role(ctx, "0xdef")
	a.Permissions(ctx, "0xabc")
	testutil.AssertEqual(t, store.roleLookups, 2)

	a.InvalidateAllRoles()

	a.Role(ctx, "0xabc")
	testutil.AssertEqual(t, store.roleLookups, 3)
	// The permission cache is untouched by a role-wide invalidation.
	a.Permissions(ctx, "0xabc")
	testutil.AssertEqual(t, store.permLookups, 1)
}

func TestCachedRoleExpiresAfterTTL(t *testing.T) {
	store := newFakeStore()
	store.roles["0xabc"] = "admin"
	clock := testutil.NewMockClock(time.Unix(1700000000, 0))
	a, err := New(Config{
		Roles:    store,
		Grants:   store,
		CacheTTL: 60 * time.Second,
		Clock:    clock,
	})
	testutil.AssertNoError(t, err)
	ctx := context.Background()

	a.Role(ctx, "0xabc")
	clock.Advance(61 * time.Second)
	a.Role(ctx, "0xabc")
	testutil.AssertEqual(t, store.roleLookups, 2)
}

func TestReset(t *testing.T) {
	store := newFakeStore()
	store.roles["0xabc"] = "admin"
	a := newTestAuthorizer(t, store)
	ctx := context.Background()

	a.Role(ctx, "0xabc")
	a.Permissions(ctx, "acct1")
	a.Reset()

	a.Role(ctx, "0xabc")
	a.Permissions(ctx, "acct1")
	testutil.AssertEqual(t, store.roleLookups, 2)
	testutil.AssertEqual(t, store.permLookups, 2)
}
