// Package ir provides the record types exchanged by the stepwise engine.
//
// This package contains value types only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Records are plain values, safe to copy between goroutines
//   - Every record names its destination entity via Destination()
//   - Every record defines a total routing order via Compare()
//   - Simulation time is an int64 count of seconds, never wall-clock time
//   - NO float types in canonical summaries (digests must be reproducible)
package ir
