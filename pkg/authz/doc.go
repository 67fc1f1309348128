// Package authz shields an authoritative authorization store behind
// read-through caches for roles and permission grants.
//
// Lookups consult the cache first and fall back to the store on a miss. A
// failed or empty role lookup resolves to the least-privileged default role
// rather than an error, so callers can never fail open to elevated
// privilege. Permission lookups fail closed: store errors propagate.
//
// Every mutation of a role or grant invalidates the corresponding cache
// entry synchronously before the mutating call returns, so the very next
// request on the same process observes the new value. The caches are local
// to one process and may serve values up to one TTL stale relative to
// another instance's writes.
package authz
