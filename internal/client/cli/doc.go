// Package cli provides the agita command-line client.
//
// It stands in for the app's screens: every command is a consumer of the
// resource hooks in package hooks, so reads go through the shared query
// cache and writes invalidate what they affect. Stores are opened lazily in
// the root command's pre-run, after flags (and an optional token prompt)
// are known.
//
// Command groups:
//   - profile: show, update, watch
//   - activity-types / activities / rewards / events: catalog reads and
//     the user's own writes
//   - admin: activity moderation and reward management
//   - onboarding: the device-local onboarding-completed flag
//   - session: the identity carried by the access token
//
// Results are printed as JSON on stdout; notifications from failed uploads
// and the like go to stderr.
package cli
