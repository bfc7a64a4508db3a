// Package systemtest provides a scripted CommandRunner for unit tests of
// the system managers and the task graph.
package systemtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rayzilt/aipscan-deploy/internal/system"
)

type response struct {
	out system.Output
	err error
}

// FakeRunner answers commands from a scripted table and records every
// invocation in order. Unscripted commands fail the caller loudly instead of
// succeeding silently.
type FakeRunner struct {
	mu        sync.Mutex
	responses map[string][]response
	commands  []system.Command
}

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{responses: map[string][]response{}}
}

// CommandLine renders a command the way stubs are keyed.
func CommandLine(cmd system.Command) string {
	return strings.Join(append([]string{cmd.Name}, cmd.Args...), " ")
}

// Stub registers the response for a command line. Stubbing the same line
// again queues responses consumed in order, the last one sticking.
func (r *FakeRunner) Stub(line string, out system.Output) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[line] = append(r.responses[line], response{out: out})
}

// StubError registers a runner-level failure for a command line.
func (r *FakeRunner) StubError(line string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[line] = append(r.responses[line], response{err: err})
}

func (r *FakeRunner) Run(_ context.Context, cmd system.Command) (system.Output, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.commands = append(r.commands, cmd)

	line := CommandLine(cmd)
	queue, ok := r.responses[line]
	if !ok {
		return system.Output{}, fmt.Errorf("unexpected command: %s", line)
	}
	resp := queue[0]
	if len(queue) > 1 {
		r.responses[line] = queue[1:]
	}
	return resp.out, resp.err
}

// Calls returns the recorded command lines in invocation order.
func (r *FakeRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	lines := make([]string, 0, len(r.commands))
	for _, cmd := range r.commands {
		lines = append(lines, CommandLine(cmd))
	}
	return lines
}

// Commands returns the recorded commands, environments included.
func (r *FakeRunner) Commands() []system.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]system.Command(nil), r.commands...)
}

// CallCount returns how often a command line was run.
func (r *FakeRunner) CallCount(line string) int {
	count := 0
	for _, called := range r.Calls() {
		if called == line {
			count++
		}
	}
	return count
}
