// Package hooks binds domain resources to the query cache and the remote
// stores.
//
// Reads are declared as Query values: a collection, a staleness window, the
// parameters that make up the cache key and a loader that talks to the
// store. Writes are declared as Mutation values listing the collections
// they write and the cache dependencies they invalidate on success. Every
// declared query and mutation is recorded in Catalog so tests can check
// that no write leaves a dependent read stale-forever.
//
// The domain façades (Profile, ActivityTypes, Rewards, Events, admin
// moderation, images) are methods on Client. A Client is an explicit
// instance: build one per process, or per test, with New.
package hooks
