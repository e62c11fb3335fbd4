// Package graph builds the inheritance graph of a class description and
// orders classes so that every base is materialized before the classes that
// derive from it.
//
// Ordering is deterministic: among classes whose bases are all placed, the
// one that comes first in the description goes next. Base names that match
// no described class are dropped with a warning; a cycle is fatal.
package graph
