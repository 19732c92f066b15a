// Package diagnostic provides the error taxonomy reported by a resident search.
//
// Key capabilities:
//   - Kind: configuration vs. transport failures
//   - Error: a kinded error carrying the failing operation and a user message
//   - Message: the single human-readable line shown to the caller
package diagnostic
