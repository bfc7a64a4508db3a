// Package server provides the HTTP status API for aipscan-deploy.
//
// The server uses the Gin web framework. It exposes the convergence state
// machine, the run ledger and a converge trigger to operators and to the
// test harness, plus Prometheus metrics and a liveness probe.
//
// # Architecture Overview
//
//	┌───────────────────────────────────────────────────────────────┐
//	│                         HTTP Server                           │
//	├───────────────────────────────────────────────────────────────┤
//	│                       Middleware Stack                        │
//	│  ┌─────────────────────────────────────────────────────────┐  │
//	│  │  Logger (request/response logging, "http" zap logger)   │  │
//	│  │  Metrics (request counters + latency histograms)        │  │
//	│  │  Recovery (panic recovery with zap logging)             │  │
//	│  └─────────────────────────────────────────────────────────┘  │
//	├───────────────────────────────────────────────────────────────┤
//	│  Root routes                                                  │
//	│    GET /healthz   - liveness probe                            │
//	│    GET /metrics   - Prometheus exposition                     │
//	├───────────────────────────────────────────────────────────────┤
//	│  /api/v1 group  (+ Authentication middleware when enabled)    │
//	│  ┌─────────────────────────────────────────────────────────┐  │
//	│  │  Handlers (registered via callback)                     │  │
//	│  └─────────────────────────────────────────────────────────┘  │
//	└───────────────────────────────────────────────────────────────┘
//
// # Server Modes
//
// Development Mode (server.mode = "dev"):
//   - Gin runs in debug mode
//
// Production Mode (server.mode = "prod"):
//   - Gin runs in release mode
//
// Both modes serve plain HTTP. The API is an operator surface on the
// deployment host; TLS termination, when wanted, belongs to the nginx
// vhost this tool itself converges.
//
// # Server Lifecycle
//
// Creation:
//
//	srv, err := server.New(cfg, func(api *gin.RouterGroup) {
//	    handler.Routes(api)
//	})
//
// New binds the listener, so a configured port of 0 resolves to a concrete
// address immediately; Addr returns it.
//
// Starting:
//
//	// Blocks until error or shutdown
//	err := srv.Start(ctx)
//
// Stopping:
//
//	srv.Stop(ctx)
//
// Performs graceful shutdown, waiting for in-flight requests to complete.
// After a clean Stop, Start returns http.ErrServerClosed.
//
// # Middleware
//
// Logger Middleware (middlewares.Logger):
//   - Logs request start at debug: method, path, query, IP, user-agent
//   - Logs request end: all above + status code, latency
//   - Completion level follows the status code: 2xx/3xx info, 4xx warn,
//     5xx error
//   - Uses zap structured logging with the "http" logger name
//
// Metrics Middleware (middlewares.Metrics):
//   - Records aipscan_deploy_http_requests_total and
//     aipscan_deploy_http_request_duration_seconds
//   - Labels by method, route template and status
//
// Recovery Middleware (ginzap.RecoveryWithZap):
//   - Recovers from panics in handlers
//   - Logs panic details with stack trace
//   - Returns 500 Internal Server Error
//
// # Authentication
//
// When auth.enabled is set, the /api/v1 group requires HS256-signed bearer
// tokens. The signing secret is read from auth.jwt_secret_file at server
// construction. Root routes (/healthz, /metrics) stay unauthenticated so
// probes and scrapers need no credentials.
//
// # Usage Example
//
//	srv, err := server.New(cfg, func(api *gin.RouterGroup) {
//	    handlers.New(convergeSrv, runSrv, watcher).Routes(api)
//	})
//	if err != nil {
//	    return err
//	}
//
//	go func() {
//	    if err := srv.Start(ctx); err != http.ErrServerClosed {
//	        zap.S().Errorw("server error", "error", err)
//	    }
//	}()
//
//	<-shutdownCh
//	srv.Stop(ctx)
package server
