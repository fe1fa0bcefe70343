// Package fault defines the error taxonomy shared by the mapping, compiler,
// unit-of-work and execution layers.
package fault
