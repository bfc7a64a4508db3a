// Package services implements the business logic layer for aipscan-deploy.
//
// This package contains services that act as intermediaries between HTTP
// handlers and the convergence engine and ledger, providing a clean
// separation of concerns.
//
// # Architecture Overview
//
// The services layer follows these design principles:
//   - Interface-based dependencies for testability
//   - Mutex-protected state for thread safety
//   - Async work execution through a shared scheduler
//
// # Service Dependency Graph
//
//	Handlers (HTTP endpoints)
//	    │
//	    ▼
//	Services Layer
//	    ├── ConvergeService ──► Converger, Store, Scheduler
//	    ├── RunService ───────► Store
//	    └── Watcher ──────────► fsnotify
//
// # ConvergeService
//
// ConvergeService manages convergence runs, handling state transitions and
// asynchronous execution.
//
// State Machine:
//
//	┌───────┐      ┌────────────┐      ┌───────────┐
//	│ Ready │─────►│ Converging │─────►│ Converged │
//	└───────┘      └────────────┘      └───────────┘
//	                  │      ▲               │
//	                  │      │   (trigger)   │
//	                  ▼      ├───────────────┘
//	               ┌───────┐ │
//	               │ Error │─┘
//	               └───────┘
//
// States:
//   - Ready: no run recorded yet
//   - Converging: a run is executing
//   - Converged: the last run completed with no failed task
//   - Error: the last run failed, or could not start
//
// Unlike a collection pipeline there is no terminal state: convergence is
// repeatable, so Converged and Error both accept a new trigger.
//
// Key behaviors:
//   - Only one run can be in flight (ConvergenceInProgressError otherwise)
//   - Every completed run is recorded in the ledger before the state flips
//   - On service construction the last ledger entry restores the state, so
//     a restarted agent still reports converged or error
//   - Stop cancels the in-flight run at the next task boundary
//
// Usage:
//
//	converge := services.NewConvergeService(ctx, converger, store, scheduler)
//	err := converge.Converge(ctx, models.AllTags())
//	status := converge.Status()
//	converge.Stop() // Cancel if needed
//
// # Converger / EngineConverger
//
// Converger is the seam between the service and the engine. The production
// implementation, EngineConverger, runs the full pipeline per trigger:
//
//	load config ──► validate ──► resolve versions ──► build graph ──► execute
//
// The configuration file is re-read on every run, so what is on disk is
// what converges.
//
// # RunService
//
// RunService exposes the ledger to the API and CLI: paginated listing with
// outcome filtering, and single-run retrieval with per-task results.
//
// # Watcher
//
// Watcher flags configuration drift using fsnotify. It watches the parent
// directory of the configuration file (rename-safe) and raises a dirty
// flag with the modification time. It never triggers a run: surfacing
// "converge needed" is the whole job.
//
// # Thread Safety
//
// ConvergeService and Watcher:
//   - State protected by sync.Mutex
//   - Goroutine lifecycle managed via channels and context cancellation
//
// RunService and EngineConverger:
//   - Stateless (only hold store / collaborator references)
package services
