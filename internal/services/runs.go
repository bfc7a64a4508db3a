package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/rayzilt/aipscan-deploy/internal/models"
	"github.com/rayzilt/aipscan-deploy/internal/store"
)

// RunService exposes the run ledger to the API and the CLI.
type RunService struct {
	store *store.Store
}

func NewRunService(st *store.Store) *RunService {
	return &RunService{store: st}
}

type RunListParams struct {
	Failed *bool
	Limit  uint64
	Offset uint64
}

type RunListResult struct {
	Runs  []models.RunSummary
	Total int
}

func (s *RunService) List(ctx context.Context, params RunListParams) (*RunListResult, error) {
	opts := s.buildListOptions(params)
	opts = append(opts, store.WithDefaultSort())

	runs, err := s.store.Runs().List(ctx, opts...)
	if err != nil {
		return nil, err
	}

	// Get total count without pagination
	total, err := s.store.Runs().Count(ctx, s.buildListOptions(RunListParams{Failed: params.Failed})...)
	if err != nil {
		return nil, err
	}

	return &RunListResult{
		Runs:  runs,
		Total: total,
	}, nil
}

func (s *RunService) Get(ctx context.Context, id uuid.UUID) (*models.RunReport, error) {
	return s.store.Runs().Get(ctx, id)
}

func (s *RunService) buildListOptions(params RunListParams) []store.ListOption {
	var opts []store.ListOption

	if params.Failed != nil {
		opts = append(opts, store.ByFailed(*params.Failed))
	}
	if params.Limit > 0 {
		opts = append(opts, store.WithLimit(params.Limit))
	}
	if params.Offset > 0 {
		opts = append(opts, store.WithOffset(params.Offset))
	}

	return opts
}
