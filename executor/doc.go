// Package executor runs compiled commands on the ambient unit of work and
// gates their row counts. Fetch-style calls require an exact count and fail
// with an idempotency error; persist-style calls require more than a
// threshold and report a lost race as false. Either way a mismatch marks
// the unit of work divergent so it rolls back.
package executor
