// Package store implements the run ledger for aipscan-deploy.
//
// Every convergence run is recorded in a DuckDB database under the agent
// state directory, so operators can answer "when did this host last
// converge, and what changed" without scraping logs.
//
// # Architecture Overview
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                         Store (facade)                          │
//	├─────────────────────────────────────────────────────────────────┤
//	│                            RunStore                             │
//	│                               ▼                                 │
//	│                       runs, task_results                        │
//	└─────────────────────────────────────────────────────────────────┘
//
// # Tables
//
// Created by internal/store/migrations (sql/ files, version-tracked):
//
//	┌────────────────────┬─────────────────────────────────────────────┐
//	│  Table             │  Purpose                                    │
//	├────────────────────┼─────────────────────────────────────────────┤
//	│  runs              │  One row per run: tags, timing, outcome     │
//	│  task_results      │  Per-task status rows, ordered by seq       │
//	│  schema_migrations │  Migration version tracking                 │
//	└────────────────────┴─────────────────────────────────────────────┘
//
// Schema:
//
//	runs (
//	    id VARCHAR PRIMARY KEY,          -- run UUID
//	    tags VARCHAR,                    -- comma-joined selection
//	    started_at, finished_at TIMESTAMP,
//	    changed, unchanged, skipped INTEGER,
//	    failed BOOLEAN,
//	    error VARCHAR
//	)
//
//	task_results (
//	    run_id VARCHAR, seq INTEGER,     -- declaration order within the run
//	    task VARCHAR, status VARCHAR,
//	    duration_us BIGINT, message VARCHAR
//	)
//
// Task messages are written after the engine has scrubbed secret literals,
// so the ledger is safe to export.
//
// # RunStore
//
// Methods:
//   - Save(ctx, report) → error (run row plus one row per task result)
//   - Get(ctx, id) → *models.RunReport (RunNotFoundError when absent)
//   - Latest(ctx) → *models.RunReport (most recently started)
//   - List(ctx, opts...) → []models.RunSummary (summary columns only)
//   - Count(ctx, opts...) → int
//
// # List Options
//
// RunStore.List uses the functional options pattern. Each ListOption
// modifies the SQL query builder and options combine freely:
//
//	summaries, err := store.Runs().List(ctx,
//	    store.ByFailed(true),
//	    store.WithDefaultSort(),
//	    store.WithLimit(20),
//	    store.WithOffset(0),
//	)
//
//   - ByFailed(failed bool)
//     Filters runs by outcome.
//     SQL: WHERE failed = ?
//
//   - WithLimit(limit uint64) / WithOffset(offset uint64)
//     Pagination.
//
//   - WithDefaultSort()
//     Most recent run first, run ID as tie-breaker.
//     SQL: ORDER BY started_at DESC, id DESC
//
// # QueryInterceptor
//
// All database operations go through a QueryInterceptor that logs every
// statement at debug level. Statement arguments are never logged.
//
// Logged operations:
//   - QueryRowContext
//   - QueryContext
//   - ExecContext
package store
