// Package search is the public entry point of the resident matcher.
//
// An Orchestrator fetches the resident directory once per call, ranks every
// raw OCR string against it, and merges the per-string candidates into one
// deduplicated, capped list.
//
// Each Search returns an immutable Result. The Orchestrator additionally keeps
// a State view (loading flag, last error message, last candidates) for callers
// that render progress; concurrent searches resolve that view in favor of the
// most recently started call.
package search
