/*
Package main drives the end-to-end suite: real containers, the real binary,
the full scenario pipeline.

# Package Structure

	test/e2e/
	├── main.go          Entry point: flags, scenario loading, Ginkgo runner
	├── specs.go         Ginkgo specs (full pipeline, tag isolation)
	└── doc.go           This file

The heavy lifting lives in internal/harness: the suite only loads scenario
files, builds Podman-backed runners and asserts on the platform results the
pipeline returns.

# Running

The suite is a binary, not part of `go test ./...`. It needs a Podman API
service and a linux build of the deploy binary in the artifact directory the
scenarios name:

	GOOS=linux GOARCH=amd64 go build -o dist/aipscan-deploy ./cmd/aipscan-deploy
	podman system service --time=0 unix:///run/podman/podman.sock &
	go run ./test/e2e \
	    -scenario examples/harness.yaml \
	    -isolation-scenario examples/uv-only.yaml

# Flags

  - -scenario: scenario file for the full pipeline spec
  - -isolation-scenario: tag-isolation scenario; its spec is skipped when unset
  - -platform: comma-separated platform ids (default: all in the scenario)
  - -podman-socket: Podman API socket
  - -keep-env: keep environments running after the suite for debugging
*/
package main
