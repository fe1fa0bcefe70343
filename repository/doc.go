// Package repository provides a generic repository over compiled data
// source maps. Reads are gated on exact row counts, writes on affected rows,
// and all of them run on the ambient unit of work of the context.
package repository
