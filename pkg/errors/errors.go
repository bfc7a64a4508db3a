// Package errors defines the typed errors shared between the convergence
// engine, the services layer and the HTTP handlers.
//
// Errors are grouped by the stage that produces them: configuration errors
// surface before any task runs, task errors abort the remaining graph,
// migration errors abort before any service restart, and verification errors
// are reported by the harness as a distinct phase failure. None of them
// trigger a rollback; recovery is always a subsequent full or tag-scoped
// rerun.
package errors

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed or missing configuration field. It is
// raised eagerly by Configuration.Validate, before the task graph runs.
type ValidationError struct {
	Err error
}

func NewValidationError(err error) *ValidationError {
	return &ValidationError{Err: err}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// TaskFailedError wraps the failure of a single task. The underlying message
// is preserved verbatim so operators see the failing command output.
type TaskFailedError struct {
	Task string
	Err  error
}

func NewTaskFailedError(task string, err error) *TaskFailedError {
	return &TaskFailedError{Task: task, Err: err}
}

func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("task %q failed: %v", e.Task, e.Err)
}

func (e *TaskFailedError) Unwrap() error { return e.Err }

func IsTaskFailedError(err error) bool {
	var t *TaskFailedError
	return errors.As(err, &t)
}

// MigrationError reports a failed database schema migration. The engine
// guarantees it is raised before any service (re)start task runs.
type MigrationError struct {
	Err error
}

func NewMigrationError(err error) *MigrationError {
	return &MigrationError{Err: err}
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("schema migration failed: %v", e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

func IsMigrationError(err error) bool {
	var m *MigrationError
	return errors.As(err, &m)
}

// VerificationError reports a harness phase failure. The harness verifies a
// build by walking a scenario through its phases; the failing phase is named
// so an aborted pipeline says where it stopped.
type VerificationError struct {
	Phase string
	Err   error
}

func NewVerificationError(phase string, err error) *VerificationError {
	return &VerificationError{Phase: phase, Err: err}
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s phase failed: %v", e.Phase, e.Err)
}

func (e *VerificationError) Unwrap() error { return e.Err }

func IsVerificationError(err error) bool {
	var v *VerificationError
	return errors.As(err, &v)
}

// ConvergenceInProgressError is returned when a convergence run is requested
// while another one is still running. Concurrent runs against the same host
// are an operator error, not a supported scenario.
type ConvergenceInProgressError struct{}

func NewConvergenceInProgressError() *ConvergenceInProgressError {
	return &ConvergenceInProgressError{}
}

func (e *ConvergenceInProgressError) Error() string {
	return "a convergence run is already in progress"
}

func IsConvergenceInProgressError(err error) bool {
	var c *ConvergenceInProgressError
	return errors.As(err, &c)
}

// ResourceNotFoundError is returned by stores and services when the requested
// entity does not exist.
type ResourceNotFoundError struct {
	Resource string
}

func NewResourceNotFoundError(resource string) *ResourceNotFoundError {
	return &ResourceNotFoundError{Resource: resource}
}

func NewRunNotFoundError() *ResourceNotFoundError {
	return &ResourceNotFoundError{Resource: "run"}
}

func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

func IsResourceNotFoundError(err error) bool {
	var r *ResourceNotFoundError
	return errors.As(err, &r)
}

// VersionResolutionError reports that a component version could not be
// determined from its upstream source.
type VersionResolutionError struct {
	Component string
	Err       error
}

func NewVersionResolutionError(component string, err error) *VersionResolutionError {
	return &VersionResolutionError{Component: component, Err: err}
}

func (e *VersionResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %s version: %v", e.Component, e.Err)
}

func (e *VersionResolutionError) Unwrap() error { return e.Err }

func IsVersionResolutionError(err error) bool {
	var v *VersionResolutionError
	return errors.As(err, &v)
}
