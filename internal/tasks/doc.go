// Package tasks holds the convergence run itself: the ordered, tag-labeled
// task graph and the engine that executes it.
//
// # Task Graph
//
// A Graph is an ordered list of idempotent state assertions. Each task
// carries a set of tags; a run selects a tag subset (default: all) and
// executes the tasks whose tags intersect the selection, strictly in
// declaration order. Deselected tasks are recorded as skipped.
//
//	┌──────────────────────┬──────────┬──────────────────────────────────────────┐
//	│ Task                 │ Tags     │ Asserts                                  │
//	├──────────────────────┼──────────┼──────────────────────────────────────────┤
//	│ uv                   │ uv       │ uv binary at the pinned version          │
//	│ base-packages        │ install  │ OS packages present                      │
//	│ service-account      │ install  │ service user and group exist             │
//	│ directories          │ install  │ config/data/log directories exist        │
//	│ python-runtime       │ install  │ pinned Python available to uv            │
//	│ virtualenv           │ install  │ virtualenv on the pinned interpreter     │
//	│ application          │ install  │ application at the pinned release        │
//	│ configuration-files  │ install  │ environment file + registrations placed  │
//	│ database-migrations  │ database │ schema at the target revision            │
//	│ storage-sources      │ database │ Storage Services registered in the app   │
//	│ service-units        │ service  │ unit definitions placed                  │
//	│ application-services │ service  │ units enabled, running, restarted on     │
//	│                      │          │ restart-class artifact changes           │
//	│ reverse-proxy        │ service  │ vhost placed, nginx running, reloaded on │
//	│                      │          │ reload-class artifact changes            │
//	└──────────────────────┴──────────┴──────────────────────────────────────────┘
//
// The graph is built fresh for every run: tasks share per-run pending state
// (which services need a restart or reload because an artifact they consume
// changed), so a Graph must never be executed twice.
//
// # Execution
//
//	Build ──▶ Engine.Execute ──▶ RunReport
//	              │
//	              ├── task succeeded, state already right → unchanged
//	              ├── task succeeded, state amended       → changed
//	              ├── task failed → failed, remaining graph aborted
//	              └── tag not selected → skipped
//
// The second execution of the full graph against an unchanged configuration
// must report zero changed tasks. Schema migrations are declared before any
// service (re)start; a migration failure therefore always aborts the run
// before a service could come up against an inconsistent schema.
//
// # Failure semantics
//
// The first failed task short-circuits the run. Partial convergence state is
// left on the host for inspection; there is no rollback. Recovery is a
// subsequent full or tag-scoped rerun.
//
// # Secret handling
//
// Task error messages pass through a scrubber that replaces every secret
// literal from the configuration before the message reaches the report or
// the log.
package tasks
