package services

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/rayzilt/aipscan-deploy/internal/models"
	"github.com/rayzilt/aipscan-deploy/internal/observability"
	"github.com/rayzilt/aipscan-deploy/internal/store"
	srvErrors "github.com/rayzilt/aipscan-deploy/pkg/errors"
	"github.com/rayzilt/aipscan-deploy/pkg/scheduler"
)

// ConvergeService owns the convergence state machine. At most one run is in
// flight at a time; every completed run is recorded in the ledger.
type ConvergeService struct {
	converger Converger
	store     *store.Store
	scheduler *scheduler.Scheduler[*models.RunReport]
	log       *zap.SugaredLogger

	mu      sync.Mutex
	state   models.RunState
	last    *models.RunReport
	lastErr error
	future  *scheduler.Future[scheduler.Result[*models.RunReport]]
}

// NewConvergeService restores the state of the last recorded run, so a
// restarted agent keeps reporting converged or error instead of ready.
func NewConvergeService(ctx context.Context, converger Converger, st *store.Store, sched *scheduler.Scheduler[*models.RunReport]) *ConvergeService {
	s := &ConvergeService{
		converger: converger,
		store:     st,
		scheduler: sched,
		log:       zap.S().Named("converge"),
		state:     models.RunStateReady,
	}

	last, err := st.Runs().Latest(ctx)
	switch {
	case err == nil:
		s.last = last
		if last.Failed {
			s.state = models.RunStateError
			s.lastErr = errors.New(last.Error)
		} else {
			s.state = models.RunStateConverged
		}
	case !srvErrors.IsResourceNotFoundError(err):
		s.log.Errorw("failed to read last run from ledger", "error", err)
	}

	return s
}

// Converge triggers an asynchronous run. It returns
// ConvergenceInProgressError while another run is still executing;
// completed states never block a new trigger.
func (s *ConvergeService) Converge(ctx context.Context, selection sets.Set[string]) error {
	s.mu.Lock()
	if s.state == models.RunStateConverging {
		s.mu.Unlock()
		return srvErrors.NewConvergenceInProgressError()
	}
	s.state = models.RunStateConverging

	future := s.scheduler.AddWork(func(ctx context.Context) (*models.RunReport, error) {
		return s.converger.Converge(ctx, selection)
	})
	s.future = future
	s.mu.Unlock()

	s.log.Infow("convergence triggered", "tags", sets.List(selection))
	go s.watch(future)
	return nil
}

// Status reports the current state and the last completed run.
func (s *ConvergeService) Status() models.RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.RunStatus{
		State:      s.state,
		LastReport: s.last,
		Error:      s.lastErr,
	}
}

// Stop cancels the in-flight run, if any. The engine aborts at the next
// task boundary and the partial run is recorded as failed.
func (s *ConvergeService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.future != nil {
		s.future.Stop()
	}
}

func (s *ConvergeService) watch(future *scheduler.Future[scheduler.Result[*models.RunReport]]) {
	result := <-future.C()

	if result.Data != nil {
		observability.RecordRun(result.Data)
		if err := s.store.Runs().Save(context.Background(), result.Data); err != nil {
			s.log.Errorw("failed to record run", "run", result.Data.ID, "error", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.future = nil
	switch {
	case result.Err != nil:
		s.state = models.RunStateError
		s.lastErr = result.Err
		s.log.Errorw("convergence did not start", "error", result.Err)
	case result.Data.Failed:
		s.state = models.RunStateError
		s.last = result.Data
		s.lastErr = errors.New(result.Data.Error)
	default:
		s.state = models.RunStateConverged
		s.last = result.Data
		s.lastErr = nil
	}
}
