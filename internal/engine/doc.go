// Package engine implements the headless rfcdep coordinator.
//
// The engine owns the document cache and the background resolver, and
// turns their outcomes into a notification log. It replaces the
// interactive application loop: a CLI command or a test drives it by
// calling operations and then Tick or Wait.
//
// ARCHITECTURE:
//
// Single-Writer Coordination:
// Every Engine method must be called from one goroutine. The only other
// goroutine is the resolver's worker, which owns the entries moved to it
// by Resolve and never touches the engine's fields.
//
// Resolution Flow:
// 1. Resolve (or Tick, for entries marked ToResolve) starts a run; the
// cache is moved to the worker and the engine's cache is left empty
// 2. Operations keep working on the (empty) foreground cache meanwhile
// 3. Tick or Wait collects the finished run: the worker's entries are
// merged back, relations are rewritten, and notifications are recorded
//
// Only one run is in flight at a time. A second Resolve records an error
// notification and returns cache.ErrAlreadyRunning.
//
// Notifications are stamped with a logical sequence number, never a
// wall-clock time, so scenario traces are reproducible.
package engine
