// Package names splits and normalizes C++ qualified names for the namespace
// hierarchy, and generates disambiguated names when a name is already taken.
package names
