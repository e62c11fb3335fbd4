// Package diagnostic provides structured warnings, errors, and informational
// notes collected while validating, planning, and applying a class import.
//
// Key capabilities:
//   - Input validation errors keyed by class and entity
//   - Unknown base and missing method warnings
//   - Conflict rename notes for the session summary
package diagnostic
