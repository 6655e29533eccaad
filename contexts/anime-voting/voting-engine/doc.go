// Package votingengine implements graded anime voting inside the
// anime-voting context.
//
// A session master publishes a list of catalog item ids, participants grade
// those items on a fixed six-level scale, and results are recomputed from the
// vote ledger on every read. The ledger keeps at most one vote per
// (session, user); resubmitting replaces the earlier ballot in one atomic
// storage step. Business rules live in the domain and application layers and
// storage, catalog lookup and event publishing sit behind ports.
package votingengine
