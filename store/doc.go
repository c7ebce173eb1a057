// Package store is the persistence adapter used by the session coordinator.
//
// A [Store] is an opaque string key-value surface. The coordinator holds two
// of them: a local scope (durable, never sent over the wire) and a cookie
// scope (visible to subsequent outbound requests made by the host
// environment). The package owns no credential logic; it only moves bytes.
//
// Two backends are provided: [Memory] for browser-embedded hosts and tests,
// and [Redis] for headless or server-side deployments.
package store
