// Package cache implements the dependency-resolution cache.
//
// A Cache is an ordered keyed store. Values stored in it may hold References
// to other entries, each tagged Unknown (believed absent) or Cached (believed
// present). Resolve repeatedly discovers Unknown references, optionally
// fetches the missing entries, and rewrites every entry's tags against the
// keys now present, reporting the per-entry change in unknown references.
//
// ARCHITECTURE:
//
// One iteration of Resolve is one depth level:
//  1. Frontier selection: every entry (All) or the roots, then the entries
//     whose tags changed in the previous iteration (Single / Multiple). A
//     fetched entry joins the frontier only if its own tags change.
//  2. Discovery: union of UnknownRelations over the frontier. Empty means
//     converged, except on the first iteration, which always runs the
//     rewrite pass so that stale Cached tags are corrected.
//  3. Acquisition: when Params.Query is set, missing keys are fetched in
//     parallel. Failures are recorded and never abort the run.
//  4. Rewrite: UpdateReferences on every entry of the store, not only the
//     frontier, since a fetched entry may satisfy references held anywhere.
//  5. Termination: stop when Params.Depth iterations have run.
//
// Tags are a cached belief. They go stale whenever the store changes and are
// corrected by the next Resolve or UpdateRelations call.
//
// CONCURRENCY:
//
// A Resolver runs Resolve on one background goroutine. It takes the whole
// cache out of the caller's Cache (leaving it empty), works on it exclusively,
// and merges it back on Poll. The merge is the only synchronization point;
// the store itself is never shared between goroutines.
package cache
