// Package command holds the backend-neutral command model produced by the
// compiler: commands, parameters, result fields and per-type data source maps.
package command
