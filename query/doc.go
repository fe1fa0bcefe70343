// Package query is a small backend-independent algebra describing filter,
// sort and paging intent over mapped properties.
package query
