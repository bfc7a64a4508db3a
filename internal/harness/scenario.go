package harness

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/rayzilt/aipscan-deploy/internal/models"
	srvErrors "github.com/rayzilt/aipscan-deploy/pkg/errors"
)

// Duration wraps time.Duration so scenario files can use scalars like "90s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Scenario describes one harness run: the platforms to provision, the
// artifact and configuration to place inside them, what to converge and how
// to verify the outcome.
type Scenario struct {
	Name      string     `yaml:"name"`
	Artifact  string     `yaml:"artifact"`
	Config    string     `yaml:"config"`
	Platforms []Platform `yaml:"platforms"`
	Converge  Converge   `yaml:"converge"`
	Verify    Verify     `yaml:"verify"`
	KeepEnv   bool       `yaml:"keep_env"`
}

// Platform maps a platform identifier to the container image provisioned
// for it. HostPort publishes ContainerPort on the harness host so the HTTP
// check can reach the converged service.
type Platform struct {
	ID            string   `yaml:"id"`
	Image         string   `yaml:"image"`
	HostPort      int      `yaml:"host_port"`
	ContainerPort int      `yaml:"container_port"`
	Privileged    bool     `yaml:"privileged"`
	Command       []string `yaml:"command"`
}

// Converge selects what runs inside each environment. An empty tag list
// converges everything.
type Converge struct {
	Tags []string `yaml:"tags"`
}

// Verify lists the post-convergence assertions. All fields are optional; an
// empty Verify makes the verify phase a no-op. Absent names paths that must
// NOT exist after the run, which is how tag-isolation scenarios assert that
// a partial selection left the rest of the host untouched.
type Verify struct {
	HTTP     *HTTPCheck `yaml:"http"`
	Services []string   `yaml:"services"`
	Absent   []string   `yaml:"absent"`
}

// HTTPCheck polls a path on the platform's published port until it answers
// with a success status or the timeout elapses.
type HTTPCheck struct {
	Path    string   `yaml:"path"`
	Timeout Duration `yaml:"timeout"`
}

// LoadScenario reads and validates a scenario file. Unknown keys are
// rejected so a typo cannot silently disable an assertion.
func LoadScenario(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	sc := &Scenario{}
	if err := dec.Decode(sc); err != nil {
		return nil, fmt.Errorf("failed to decode scenario file %s: %w", path, err)
	}

	sc.applyDefaults()
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

func (s *Scenario) applyDefaults() {
	if s.Name == "" {
		s.Name = "default"
	}
	for i := range s.Platforms {
		if s.Platforms[i].ContainerPort == 0 {
			s.Platforms[i].ContainerPort = 80
		}
	}
	if s.Verify.HTTP != nil {
		if s.Verify.HTTP.Path == "" {
			s.Verify.HTTP.Path = "/"
		}
		if s.Verify.HTTP.Timeout == 0 {
			s.Verify.HTTP.Timeout = Duration(90 * time.Second)
		}
	}
}

// Validate checks the scenario shape. All problems are reported at once.
func (s *Scenario) Validate() error {
	var result *multierror.Error

	if s.Artifact == "" {
		result = multierror.Append(result, fmt.Errorf("artifact is required"))
	}
	if s.Config == "" {
		result = multierror.Append(result, fmt.Errorf("config is required"))
	}
	if len(s.Platforms) == 0 {
		result = multierror.Append(result, fmt.Errorf("at least one platform is required"))
	}

	seen := sets.New[string]()
	for _, p := range s.Platforms {
		switch {
		case p.ID == "":
			result = multierror.Append(result, fmt.Errorf("platform id is required"))
		case seen.Has(p.ID):
			result = multierror.Append(result, fmt.Errorf("duplicate platform id %q", p.ID))
		default:
			seen.Insert(p.ID)
		}
		if p.Image == "" {
			result = multierror.Append(result, fmt.Errorf("platform %q: image is required", p.ID))
		}
		if s.Verify.HTTP != nil && p.HostPort == 0 {
			result = multierror.Append(result, fmt.Errorf("platform %q: host_port is required for the http check", p.ID))
		}
	}

	if _, err := models.ParseTags(s.Converge.Tags); err != nil {
		result = multierror.Append(result, err)
	}

	if err := result.ErrorOrNil(); err != nil {
		return srvErrors.NewValidationError(err)
	}
	return nil
}

// Platform returns the platform with the given id.
func (s *Scenario) Platform(id string) (Platform, error) {
	for _, p := range s.Platforms {
		if p.ID == id {
			return p, nil
		}
	}
	return Platform{}, srvErrors.NewResourceNotFoundError(fmt.Sprintf("platform %q", id))
}

// SelectPlatforms resolves a platform id filter; an empty filter selects
// every platform in the scenario.
func (s *Scenario) SelectPlatforms(ids []string) ([]Platform, error) {
	if len(ids) == 0 {
		return s.Platforms, nil
	}
	out := make([]Platform, 0, len(ids))
	for _, id := range ids {
		p, err := s.Platform(id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
