package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/rayzilt/aipscan-deploy/internal/harness"
)

type configuration struct {
	ScenarioPath  string
	IsolationPath string
	PodmanSocket  string
	Platforms     string
	KeepEnv       bool
}

var (
	cfg            configuration
	platformFilter []string

	pipelineRunner  *harness.Runner
	isolationRunner *harness.Runner
)

func (c configuration) Validate() error {
	if c.ScenarioPath == "" {
		return fmt.Errorf("a scenario file is required, pass -scenario")
	}
	return nil
}

func main() {
	flag.StringVar(&cfg.ScenarioPath, "scenario", "examples/harness.yaml", "Scenario file for the full pipeline spec")
	flag.StringVar(&cfg.IsolationPath, "isolation-scenario", "", "Tag-isolation scenario file; its spec is skipped when unset")
	flag.StringVar(&cfg.Platforms, "platform", "", "Comma-separated platform ids (default: all in the scenario)")
	flag.StringVar(&cfg.PodmanSocket, "podman-socket", harness.DefaultPodmanSocket, "Podman API socket")
	flag.BoolVar(&cfg.KeepEnv, "keep-env", false, "Keep environments running after the suite (useful for debugging)")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	zap.ReplaceGlobals(logger)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("failed to validate configuration: %v", err)
	}
	if cfg.Platforms != "" {
		platformFilter = strings.Split(cfg.Platforms, ",")
	}

	ctx := context.Background()
	pipelineRunner, err = buildRunner(ctx, cfg.ScenarioPath)
	if err != nil {
		log.Fatalf("failed to set up pipeline scenario: %v", err)
	}
	if cfg.IsolationPath != "" {
		isolationRunner, err = buildRunner(ctx, cfg.IsolationPath)
		if err != nil {
			log.Fatalf("failed to set up isolation scenario: %v", err)
		}
	}

	RegisterFailHandler(Fail)
	if !RunSpecs(&testing.T{}, "E2E Suite") {
		os.Exit(1)
	}
}

func buildRunner(ctx context.Context, path string) (*harness.Runner, error) {
	sc, err := harness.LoadScenario(path)
	if err != nil {
		return nil, err
	}
	if cfg.KeepEnv {
		sc.KeepEnv = true
	}
	factory, err := harness.NewPodmanFactory(ctx, cfg.PodmanSocket, sc)
	if err != nil {
		return nil, err
	}
	return harness.NewRunner(sc, factory), nil
}
