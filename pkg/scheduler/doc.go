// Package scheduler implements a typed worker pool for executing async work
// with futures.
//
// The scheduler manages a fixed pool of workers that execute work functions
// concurrently. Work is submitted via AddWork and returns a Future that can
// be used to retrieve the result or cancel the work. The pool is generic
// over the result type, so callers receive typed results without assertions.
//
// # Architecture Overview
//
//	┌─────────────────────────────────────────────────────────────────────┐
//	│                         Scheduler[T]                                │
//	│                                                                     │
//	│  ┌──────────────┐      ┌──────────────┐      ┌──────────────┐       │
//	│  │   Worker 1   │      │   Worker 2   │      │   Worker N   │       │
//	│  └──────────────┘      └──────────────┘      └──────────────┘       │
//	│         ▲                     ▲                     ▲               │
//	│         │                     │                     │               │
//	│         └─────────────────────┼─────────────────────┘               │
//	│                               │                                     │
//	│                        ┌──────┴──────┐                              │
//	│                        │  dispatch() │                              │
//	│                        └──────┬──────┘                              │
//	│                               │                                     │
//	│  ┌────────────────────────────┴────────────────────────────┐        │
//	│  │                        Backlog                          │        │
//	│  │  [job1] [job2] [job3] ...                               │        │
//	│  └─────────────────────────────────────────────────────────┘        │
//	│                               ▲                                     │
//	│                               │                                     │
//	│                        AddWork(fn)                                  │
//	└─────────────────────────────────────────────────────────────────────┘
//
// # Core Components
//
// Scheduler[T]:
//   - Manages a pool of N workers (configured at creation)
//   - Maintains a backlog of pending jobs
//   - Runs an event loop dispatching jobs to idle workers
//   - Supports graceful shutdown via Close()
//
// Worker:
//   - Executes a single work function
//   - Returns to the idle pool after completion
//   - Recovers from panics and reports them as errors
//
// Future[Result[T]]:
//   - Represents a pending result from submitted work
//   - C() receives exactly one Result[T]
//   - Stop() cancels the work's context
//
// # Event Loop
//
// The scheduler's run loop handles three events:
//
//	for {
//	    select {
//	    case j := <-s.work:      // New work submitted
//	        s.backlog.Push(j)
//	        s.dispatch()
//
//	    case <-s.done:           // Worker completed
//	        s.idle.Push(newWorker(...))
//	        s.dispatch()         // Try to assign queued work
//
//	    case <-s.close:          // Shutdown requested
//	        s.wg.Wait()          // Wait for in-flight work
//	        return
//	    }
//	}
//
// dispatch() runs both when new work arrives and when a worker completes,
// so queued work starts as soon as a worker is free.
//
// # Cancellation
//
// Each job gets a context derived from the scheduler's main context:
//
//   - future.Stop() cancels that one job's context
//   - scheduler.Close() cancels the main context, reaching every job
//
// Work functions are expected to watch ctx.Done(). After Close, AddWork
// refuses new work: the returned future delivers context.Canceled.
//
// # Usage Example
//
//	sched := scheduler.NewScheduler[*models.RunReport](1)
//	defer sched.Close()
//
//	future := sched.AddWork(func(ctx context.Context) (*models.RunReport, error) {
//	    return engine.Execute(ctx, graph, tags), nil
//	})
//
//	result := <-future.C()
//	if result.Err != nil {
//	    log.Errorw("run failed to execute", "error", result.Err)
//	}
package scheduler
