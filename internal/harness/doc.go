// Package harness runs resolution scenarios against the coordinator.
//
// A scenario declares the documents a registry serves, a list of
// coordinator operations, and assertions over the final cache, the
// notification log, and the fetches performed. Every scenario runs with a
// deterministic clock, a fixed run token, and a fresh in-memory SQLite
// database, so its snapshot is byte-identical across runs and can be
// compared against a golden file.
//
// # Scenario Format
//
//	name: chain_single
//	description: "Resolving a root pulls in its whole obsoletes chain"
//	run_token: run-chain
//	registry:
//	  - name: rfc8200
//	    title: "IPv6 Specification"
//	    relations:
//	      obsoletes: [rfc2460]
//	  - name: rfc2460
//	fail: [rfc9999]
//	steps:
//	  - op: import
//	    ids: [rfc8200]
//	  - op: resolve
//	    target: single
//	    ids: [rfc8200]
//	  - op: wait
//	assertions:
//	  - type: cached
//	    ids: [rfc2460, rfc8200]
//	  - type: missing_deps
//	    id: rfc8200
//	    count: 0
//
// # Operations
//
//   - import, remove, select, deselect, mark_read, mark_unread,
//     mark_to_resolve: take ids
//   - remove_selected, reset: no arguments
//   - resolve: target all | single | multiple, optional depth and no_query
//   - tick, wait, drain: advance the background run
//   - snapshot: save the cache to SQLite and load it back
//
// A step may declare expect.error with an error code (NOT_CACHED, BUSY,
// NOTHING_TO_RESOLVE, ALREADY_RUNNING, NOT_FOUND, ...). Without it the
// step must succeed.
//
// # Assertion Types
//
//   - cached: the cache holds exactly ids
//   - incomplete: exactly ids still have unknown relations
//   - missing_deps: id has count missing dependencies
//   - references: id's references render as refs, in order
//   - flags: id's read and selected flags
//   - notification: some notification has level and contains text
//   - notification_count: count notifications have level
//   - fetch_count: id was fetched count times
//   - halt: the last collected run stopped for reason halt
package harness
