// Package match suggests the closest known class name for a name that could
// not be resolved, so diagnostics can point at likely typos.
package match
