// Package resident models the resident directory consumed by the matcher.
//
// The directory itself is owned elsewhere; this package only reads it.
//
// Key types:
//   - Record: one resident (ID, name, apartment, block)
//   - Directory: anything that can list residents for a search
//   - HTTPDirectory: fetches the {success, data} envelope over HTTP
//   - StaticDirectory: an in-memory list, optionally loaded from a fixture file
package resident
