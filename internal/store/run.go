package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/rayzilt/aipscan-deploy/internal/models"
	srvErrors "github.com/rayzilt/aipscan-deploy/pkg/errors"
)

// RunStore persists convergence run reports in the DuckDB ledger.
type RunStore struct {
	db QueryInterceptor
}

func NewRunStore(db QueryInterceptor) *RunStore {
	return &RunStore{db: db}
}

// Save records a completed run and its per-task results.
func (s *RunStore) Save(ctx context.Context, report *models.RunReport) error {
	_, err := s.db.ExecContext(ctx, queryInsertRun,
		report.ID.String(),
		strings.Join(report.Tags, ","),
		report.StartedAt,
		report.FinishedAt,
		report.Changed(),
		report.Unchanged(),
		report.Skipped(),
		report.Failed,
		report.Error,
	)
	if err != nil {
		return err
	}

	for seq, result := range report.Results {
		_, err := s.db.ExecContext(ctx, queryInsertTaskResult,
			report.ID.String(),
			seq,
			result.Task,
			string(result.Status),
			result.Duration.Microseconds(),
			result.Message,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// Get retrieves one run with its per-task results.
func (s *RunStore) Get(ctx context.Context, id uuid.UUID) (*models.RunReport, error) {
	row := s.db.QueryRowContext(ctx, queryGetRun, id.String())
	return s.scanReport(ctx, row)
}

// Latest retrieves the most recent run, or RunNotFoundError when the ledger
// is empty.
func (s *RunStore) Latest(ctx context.Context) (*models.RunReport, error) {
	row := s.db.QueryRowContext(ctx, queryLatestRun)
	return s.scanReport(ctx, row)
}

// List returns run summaries, most recent first unless a sort option says
// otherwise.
func (s *RunStore) List(ctx context.Context, opts ...ListOption) ([]models.RunSummary, error) {
	builder := sq.Select(
		"id", "tags", "started_at", "finished_at",
		"changed", "unchanged", "skipped", "failed", "error",
	).From("runs")

	for _, opt := range opts {
		builder = opt(builder)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []models.RunSummary
	for rows.Next() {
		var (
			summary models.RunSummary
			id      string
			tags    string
		)
		err := rows.Scan(
			&id,
			&tags,
			&summary.StartedAt,
			&summary.FinishedAt,
			&summary.Changed,
			&summary.Unchanged,
			&summary.Skipped,
			&summary.Failed,
			&summary.Error,
		)
		if err != nil {
			return nil, err
		}
		summary.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, err
		}
		summary.Tags = splitTags(tags)
		summaries = append(summaries, summary)
	}

	return summaries, rows.Err()
}

func (s *RunStore) Count(ctx context.Context, opts ...ListOption) (int, error) {
	builder := sq.Select("COUNT(*)").From("runs")

	for _, opt := range opts {
		builder = opt(builder)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

func (s *RunStore) scanReport(ctx context.Context, row *sql.Row) (*models.RunReport, error) {
	var (
		report models.RunReport
		id     string
		tags   string
	)
	err := row.Scan(&id, &tags, &report.StartedAt, &report.FinishedAt, &report.Failed, &report.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, srvErrors.NewRunNotFoundError()
	}
	if err != nil {
		return nil, err
	}

	report.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	report.Tags = splitTags(tags)

	report.Results, err = s.taskResults(ctx, id)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *RunStore) taskResults(ctx context.Context, runID string) ([]models.TaskResult, error) {
	rows, err := s.db.QueryContext(ctx, queryGetTaskResults, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.TaskResult
	for rows.Next() {
		var (
			result     models.TaskResult
			status     string
			durationUs int64
		)
		if err := rows.Scan(&result.Task, &status, &durationUs, &result.Message); err != nil {
			return nil, err
		}
		result.Status, err = models.ParseTaskStatus(status)
		if err != nil {
			return nil, err
		}
		result.Duration = time.Duration(durationUs) * time.Microsecond
		results = append(results, result)
	}

	return results, rows.Err()
}

type ListOption func(sq.SelectBuilder) sq.SelectBuilder

func ByFailed(failed bool) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		return b.Where(sq.Eq{"failed": failed})
	}
}

func WithLimit(limit uint64) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		return b.Limit(limit)
	}
}

func WithOffset(offset uint64) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		return b.Offset(offset)
	}
}

// WithDefaultSort orders runs most recent first, run ID as tie-breaker.
func WithDefaultSort() ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		return b.OrderBy("started_at DESC", "id DESC")
	}
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
