// Package materialize writes planned classes into a program database
// transaction.
//
// For each class it ensures the namespace chain, lays out the class
// composite (bases, members, preserved fields and filler), writes one
// function-pointer composite per vtable, binds vtable instances found inside
// the program, and moves the class's methods into its namespace.
//
// Layout is a pure function so the field arithmetic can be tested without a
// database.
package materialize
