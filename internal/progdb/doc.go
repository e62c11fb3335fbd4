// Package progdb defines the port between the importer and a program
// database: the persistent store of namespaces, functions, data types and
// data references a binary analysis environment keeps for one program.
//
// The importer reads through Reader to plan, and writes through a Tx so
// that an import either lands completely or not at all. Adapters live in
// the memdb, sqlitedb and boltdb subpackages.
package progdb
