// Package handlers implements the HTTP API layer for aipscan-deploy.
//
// This package contains HTTP handlers that expose the convergence engine
// via a RESTful API. Handlers delegate business logic to the services layer
// and focus on request validation, response formatting, and HTTP semantics.
//
// # Architecture Overview
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                     HTTP Request (Gin)                          │
//	└─────────────────────────────────────────────────────────────────┘
//	                              │
//	                              ▼
//	┌─────────────────────────────────────────────────────────────────┐
//	│                      Handler (this package)                     │
//	│  - Request validation                                           │
//	│  - Parameter parsing                                            │
//	│  - Error mapping to HTTP status codes                           │
//	│  - Model-to-API conversion                                      │
//	└─────────────────────────────────────────────────────────────────┘
//	                              │
//	                              ▼
//	┌─────────────────────────────────────────────────────────────────┐
//	│                      Services Layer                             │
//	│  ConvergeService │ RunService │ Watcher                         │
//	└─────────────────────────────────────────────────────────────────┘
//
// # Handler Structure
//
// All handlers are methods on a single Handler struct that holds service
// dependencies:
//
//	type Handler struct {
//	    convergeSrv *services.ConvergeService
//	    runSrv      *services.RunService
//	    watcher     *services.Watcher
//	}
//
// Routes are registered explicitly on the /api/v1 group:
//
//	handler.Routes(api)
//
// # API Endpoints
//
// Status Endpoint (status.go):
//
//	┌────────┬──────────┬─────────────────────────────────────────────┐
//	│ Method │ Endpoint │ Description                                 │
//	├────────┼──────────┼─────────────────────────────────────────────┤
//	│ GET    │ /status  │ Convergence state, last run, drift flag     │
//	└────────┴──────────┴─────────────────────────────────────────────┘
//
// Converge Endpoint (converge.go):
//
//	┌────────┬────────────┬───────────────────────────────────────────┐
//	│ Method │ Endpoint   │ Description                               │
//	├────────┼────────────┼───────────────────────────────────────────┤
//	│ POST   │ /converge  │ Trigger an asynchronous convergence run   │
//	└────────┴────────────┴───────────────────────────────────────────┘
//
// Run Ledger Endpoints (runs.go):
//
//	┌────────┬─────────────┬──────────────────────────────────────────┐
//	│ Method │ Endpoint    │ Description                              │
//	├────────┼─────────────┼──────────────────────────────────────────┤
//	│ GET    │ /runs       │ List runs with filtering/pagination      │
//	│ GET    │ /runs/{id}  │ Get one run with per-task results        │
//	└────────┴─────────────┴──────────────────────────────────────────┘
//
// # Status Handler
//
// GET /status - Returns the current convergence status:
//
//	{
//	    "state": "converged",        // ready|converging|converged|error
//	    "drift": {
//	        "convergeNeeded": true,  // config changed after last trigger
//	        "modifiedAt": "2026-08-20T10:00:00Z"
//	    },
//	    "lastRun": { ... },          // full run report, omitted when none
//	    "error": null                // optional error message
//	}
//
// # Converge Handler
//
// POST /converge - Triggers a convergence run:
//
// Request (body optional):
//
//	{ "tags": ["database", "service"] }  // empty or absent = all tags
//
// Validation:
//   - Tags must come from uv, install, database, service
//
// Response: 202 Accepted with the convergence status. An accepted trigger
// clears the drift flag, since the run reads the configuration file as it
// is on disk right now.
//
// Errors:
//   - 400 Bad Request: Malformed body or unknown tag
//   - 409 Conflict: A run is already in progress (status body with error)
//
// # Run Ledger Handlers
//
// GET /runs - Lists recorded runs, newest first.
//
// Query Parameters:
//
//	┌───────────┬────────┬─────────────────────────────────────────┐
//	│ Parameter │ Type   │ Description                             │
//	├───────────┼────────┼─────────────────────────────────────────┤
//	│ failed    │ bool   │ Filter by run outcome                   │
//	│ page      │ int    │ Page number (default: 1)                │
//	│ pageSize  │ int    │ Items per page (default: 20, max: 100)  │
//	└───────────┴────────┴─────────────────────────────────────────┘
//
// Response:
//
//	{
//	    "page": 1,
//	    "pageCount": 3,
//	    "total": 42,
//	    "runs": [
//	        {
//	            "id": "0d9fb7f3-...",
//	            "tags": ["uv", "install", "database", "service"],
//	            "startedAt": "2026-08-20T10:00:00Z",
//	            "finishedAt": "2026-08-20T10:02:10Z",
//	            "changed": 3,
//	            "unchanged": 11,
//	            "skipped": 0,
//	            "failed": false
//	        }
//	    ]
//	}
//
// GET /runs/{id} - Returns one run including its ordered task results.
//
// Errors:
//   - 400 Bad Request: id is not a UUID
//   - 404 Not Found: No run with that id
//
// # Error Handling
//
// Handlers use a consistent error response format:
//
//	{ "error": "error message" }
//
// HTTP Status Code Mapping:
//
//	┌─────────────────────────────┬────────┬──────────────────────────────┐
//	│ Error Type                  │ Status │ When                         │
//	├─────────────────────────────┼────────┼──────────────────────────────┤
//	│ Validation error            │ 400    │ Invalid request params       │
//	│ ResourceNotFoundError       │ 404    │ Run doesn't exist            │
//	│ ConvergenceInProgressError  │ 409    │ Run already executing        │
//	│ Internal error              │ 500    │ Unexpected service errors    │
//	└─────────────────────────────┴────────┴──────────────────────────────┘
//
// # Model Conversion
//
// Handlers convert between internal models and API types using extension
// functions defined in api/v1/extension.go:
//
//   - v1.NewStatus(models.RunStatus) → v1.Status
//   - v1.NewRunFromReport(*models.RunReport) → v1.Run
//   - v1.NewRunSummaryFromModel(models.RunSummary) → v1.RunSummary
//   - v1.NewDrift(bool, time.Time) → v1.Drift
package handlers
