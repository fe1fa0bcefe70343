// Package uow manages units of work: one connection plus an optional
// transaction, committed on close only when completed and never diverged.
//
// The ambient unit of work travels in a context.Context. AmbientScope
// installs one for a flow; ContextScope nests flows under the Required,
// RequiresNew, RequiresNone and Suppress policies.
package uow
