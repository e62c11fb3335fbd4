// Package session drives one import attempt from a parsed class description
// to a committed or rolled back transaction.
//
// A session checks the program precondition, verifies the description's
// hash, builds the import plan, then applies every planned class inside a
// single transaction. Cancellation is polled between classes and, like any
// database error, rolls the whole transaction back.
package session
