// Package identity checks that a class description was produced for the
// binary currently loaded in the program database.
//
// The description carries an optional MD5 of the binary it was computed
// from. A missing hash cannot be checked and is trusted. A mismatch is never
// decided here: it is surfaced to a Decider, which may ask a user.
package identity
