package services_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/rayzilt/aipscan-deploy/internal/models"
	"github.com/rayzilt/aipscan-deploy/internal/services"
	"github.com/rayzilt/aipscan-deploy/internal/store"
	"github.com/rayzilt/aipscan-deploy/internal/store/migrations"
	srvErrors "github.com/rayzilt/aipscan-deploy/pkg/errors"
	"github.com/rayzilt/aipscan-deploy/pkg/scheduler"
)

func TestServices(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Services Suite")
}

// fakeConverger returns a canned outcome. When gate is set it blocks until
// the gate closes or the run context is cancelled; cancellation produces a
// failed report the way the engine aborts a real run.
type fakeConverger struct {
	mu     sync.Mutex
	report *models.RunReport
	err    error
	gate   chan struct{}
	calls  int
}

func (f *fakeConverger) Converge(ctx context.Context, selection sets.Set[string]) (*models.RunReport, error) {
	f.mu.Lock()
	f.calls++
	report, err, gate := f.report, f.err, f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			aborted := *report
			aborted.Failed = true
			aborted.Error = "run aborted: " + ctx.Err().Error()
			return &aborted, nil
		}
	}
	return report, err
}

func (f *fakeConverger) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func successReport(started time.Time) *models.RunReport {
	return &models.RunReport{
		ID:         uuid.New(),
		Tags:       []string{"database", "install", "service", "uv"},
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		Results: []models.TaskResult{
			{Task: "uv", Status: models.TaskStatusChanged, Duration: 900 * time.Microsecond},
			{Task: "base-packages", Status: models.TaskStatusUnchanged, Duration: 100 * time.Microsecond},
		},
	}
}

func failedReport(started time.Time) *models.RunReport {
	report := successReport(started)
	report.Results[1].Status = models.TaskStatusFailed
	report.Results[1].Message = "E: Unable to locate package nginx"
	report.Failed = true
	report.Error = `task "base-packages" failed: E: Unable to locate package nginx`
	return report
}

var _ = Describe("ConvergeService", func() {
	var (
		ctx       context.Context
		db        *sql.DB
		st        *store.Store
		sched     *scheduler.Scheduler[*models.RunReport]
		converger *fakeConverger
		base      time.Time
	)

	newService := func() *services.ConvergeService {
		return services.NewConvergeService(ctx, converger, st, sched)
	}

	BeforeEach(func() {
		ctx = context.Background()
		base = time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

		var err error
		db, err = store.NewDB(":memory:")
		Expect(err).NotTo(HaveOccurred())
		Expect(migrations.Run(ctx, db)).To(Succeed())
		st = store.NewStore(db)

		sched = scheduler.NewScheduler[*models.RunReport](1)
		converger = &fakeConverger{report: successReport(base)}
	})

	AfterEach(func() {
		sched.Close()
		if db != nil {
			db.Close()
		}
	})

	Describe("Converge", func() {
		// Given a ready service
		// When a run is triggered and completes successfully
		// Then the state becomes converged and the run is in the ledger
		It("should execute a run and record it", func() {
			// Arrange
			service := newService()

			// Act
			err := service.Converge(ctx, models.AllTags())

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Eventually(func() models.RunState {
				return service.Status().State
			}, 2*time.Second).Should(Equal(models.RunStateConverged))

			status := service.Status()
			Expect(status.LastReport).NotTo(BeNil())
			Expect(status.LastReport.ID).To(Equal(converger.report.ID))
			Expect(status.Error).To(BeNil())

			count, err := st.Runs().Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})

		// Given a run in progress
		// When a second run is triggered
		// Then it is rejected with ConvergenceInProgressError
		It("should reject a concurrent trigger", func() {
			// Arrange
			converger.gate = make(chan struct{})
			service := newService()
			Expect(service.Converge(ctx, models.AllTags())).To(Succeed())
			Eventually(func() models.RunState {
				return service.Status().State
			}, 2*time.Second).Should(Equal(models.RunStateConverging))

			// Act
			err := service.Converge(ctx, models.AllTags())

			// Assert
			Expect(err).To(HaveOccurred())
			Expect(srvErrors.IsConvergenceInProgressError(err)).To(BeTrue())

			close(converger.gate)
			Eventually(func() models.RunState {
				return service.Status().State
			}, 2*time.Second).Should(Equal(models.RunStateConverged))
		})

		// Converged is not terminal: convergence is repeatable
		It("should accept a new trigger after completion", func() {
			// Arrange
			service := newService()
			Expect(service.Converge(ctx, models.AllTags())).To(Succeed())
			Eventually(func() models.RunState {
				return service.Status().State
			}, 2*time.Second).Should(Equal(models.RunStateConverged))
			converger.mu.Lock()
			converger.report = successReport(base.Add(time.Hour))
			converger.mu.Unlock()

			// Act
			err := service.Converge(ctx, models.AllTags())

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Eventually(func() int {
				count, _ := st.Runs().Count(ctx)
				return count
			}, 2*time.Second).Should(Equal(2))
			Expect(converger.callCount()).To(Equal(2))
		})

		// Given a run whose task fails
		// When the run completes
		// Then the state is error and the failed run is still recorded
		It("should enter error state when a task fails", func() {
			// Arrange
			converger.report = failedReport(base)
			service := newService()

			// Act
			Expect(service.Converge(ctx, models.AllTags())).To(Succeed())

			// Assert
			Eventually(func() models.RunState {
				return service.Status().State
			}, 2*time.Second).Should(Equal(models.RunStateError))

			status := service.Status()
			Expect(status.Error).To(MatchError(ContainSubstring("base-packages")))
			count, err := st.Runs().Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})

		// Given a configuration that does not validate
		// When a run is triggered
		// Then the state is error and nothing is recorded
		It("should enter error state when the run cannot start", func() {
			// Arrange
			converger.report = nil
			converger.err = errors.New("invalid configuration: app.secret_key is required")
			service := newService()

			// Act
			Expect(service.Converge(ctx, models.AllTags())).To(Succeed())

			// Assert
			Eventually(func() models.RunState {
				return service.Status().State
			}, 2*time.Second).Should(Equal(models.RunStateError))

			count, err := st.Runs().Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())
		})
	})

	Describe("Stop", func() {
		// Given a run in progress
		// When Stop is called
		// Then the run aborts and is recorded as failed
		It("should cancel the in-flight run", func() {
			// Arrange
			converger.gate = make(chan struct{})
			service := newService()
			Expect(service.Converge(ctx, models.AllTags())).To(Succeed())
			Eventually(func() models.RunState {
				return service.Status().State
			}, 2*time.Second).Should(Equal(models.RunStateConverging))

			// Act
			service.Stop()

			// Assert
			Eventually(func() models.RunState {
				return service.Status().State
			}, 2*time.Second).Should(Equal(models.RunStateError))
			Expect(service.Status().Error).To(MatchError(ContainSubstring("run aborted")))
		})
	})

	Describe("State restoration", func() {
		// Given a ledger whose last run failed
		// When a new service starts
		// Then it reports error instead of ready
		It("should restore the error state from the ledger", func() {
			// Arrange
			Expect(st.Runs().Save(ctx, failedReport(base))).To(Succeed())

			// Act
			service := newService()

			// Assert
			status := service.Status()
			Expect(status.State).To(Equal(models.RunStateError))
			Expect(status.LastReport).NotTo(BeNil())
			Expect(status.Error).To(MatchError(ContainSubstring("base-packages")))
		})

		It("should restore the converged state from the ledger", func() {
			// Arrange
			Expect(st.Runs().Save(ctx, successReport(base))).To(Succeed())

			// Act
			service := newService()

			// Assert
			Expect(service.Status().State).To(Equal(models.RunStateConverged))
		})

		It("should start ready on an empty ledger", func() {
			// Act
			service := newService()

			// Assert
			Expect(service.Status().State).To(Equal(models.RunStateReady))
			Expect(service.Status().LastReport).To(BeNil())
		})
	})
})

var _ = Describe("RunService", func() {
	var (
		ctx  context.Context
		db   *sql.DB
		st   *store.Store
		runs *services.RunService
		base time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		base = time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

		var err error
		db, err = store.NewDB(":memory:")
		Expect(err).NotTo(HaveOccurred())
		Expect(migrations.Run(ctx, db)).To(Succeed())
		st = store.NewStore(db)
		runs = services.NewRunService(st)

		for i := 0; i < 4; i++ {
			report := successReport(base.Add(time.Duration(i) * time.Hour))
			if i%2 == 1 {
				report = failedReport(base.Add(time.Duration(i) * time.Hour))
			}
			Expect(st.Runs().Save(ctx, report)).To(Succeed())
		}
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	It("should page through runs with a stable total", func() {
		// Act
		page, err := runs.List(ctx, services.RunListParams{Limit: 3})

		// Assert
		Expect(err).NotTo(HaveOccurred())
		Expect(page.Runs).To(HaveLen(3))
		Expect(page.Total).To(Equal(4))
		Expect(page.Runs[0].StartedAt.After(page.Runs[1].StartedAt)).To(BeTrue())
	})

	It("should filter by outcome while counting the filtered set", func() {
		// Arrange
		failed := true

		// Act
		result, err := runs.List(ctx, services.RunListParams{Failed: &failed, Limit: 1})

		// Assert
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Runs).To(HaveLen(1))
		Expect(result.Total).To(Equal(2))
		Expect(result.Runs[0].Failed).To(BeTrue())
	})

	It("should fetch a single run with its task results", func() {
		// Arrange
		listed, err := runs.List(ctx, services.RunListParams{Limit: 1})
		Expect(err).NotTo(HaveOccurred())

		// Act
		report, err := runs.Get(ctx, listed.Runs[0].ID)

		// Assert
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Results).To(HaveLen(2))
	})

	It("should return RunNotFoundError for an unknown run", func() {
		// Act
		_, err := runs.Get(ctx, uuid.New())

		// Assert
		Expect(srvErrors.IsResourceNotFoundError(err)).To(BeTrue())
	})
})
