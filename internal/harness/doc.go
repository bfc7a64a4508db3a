// Package harness runs convergence scenarios against disposable container
// environments to prove that a build of aipscan-deploy actually converges,
// converges idempotently and leaves the host serving.
//
// # Scenario Pipeline
//
// Each selected platform walks the same pipeline in its own environment:
//
//	┌────────┐   ┌────────┐   ┌──────────┐   ┌─────────────┐   ┌────────┐   ┌─────────┐
//	│ create │──►│ syntax │──►│ converge │──►│ idempotence │──►│ verify │──►│ destroy │
//	└────────┘   └────────┘   └──────────┘   └─────────────┘   └────────┘   └─────────┘
//
// Phases:
//   - create: pull the platform image, start a systemd container, bind mount
//     the artifact directory and the role configuration read-only
//   - syntax: run "converge --check" inside the environment, validating the
//     configuration, the task graph and the rendered templates without
//     touching the host
//   - converge: run the deploy binary and parse the JSON run report it
//     prints
//   - idempotence: converge again and fail unless the second report counts
//     zero changed tasks
//   - verify: poll the published HTTP port until the application answers,
//     assert systemd units are active, assert unwanted paths are absent
//   - destroy: remove the container and its volumes; this phase runs even
//     after a failure, unless the scenario keeps environments for debugging
//
// The pipeline aborts at the first failing phase and the error names it, so
// "idempotence phase failed" distinguishes a flapping task from a task that
// never converged at all.
//
// # Scenarios
//
// A scenario file declares platforms, the artifact and configuration to
// mount, the tag selection to converge and the assertions to verify:
//
//	name: default
//	artifact: ./dist
//	config: ./examples/config.yaml
//	platforms:
//	  - id: ubuntu-24.04
//	    image: docker.io/geerlingguy/docker-ubuntu2404-ansible:latest
//	    host_port: 8080
//	converge:
//	  tags: []
//	verify:
//	  http:
//	    path: /
//	    timeout: 90s
//	  services: [aipscan, nginx]
//
// Platforms run in parallel, each against its own environment, and their
// failures are joined into one report.
//
// # Environments
//
// The Env interface hides how environments are provisioned. The production
// implementation drives the Podman REST API and runs each platform as a
// systemd container; tests substitute an in-memory implementation through
// EnvFactory.
package harness
