// Package versions resolves the component versions a convergence run
// installs when the configuration leaves them unpinned: the AIPscan release
// from PyPI metadata, the uv release from GitHub's latest-release redirect,
// and the Python version from the .python-version file of the resolved
// AIPscan release.
//
// Explicitly pinned versions short-circuit resolution for their component,
// so fully pinned configurations never touch the network.
package versions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	srvErrors "github.com/rayzilt/aipscan-deploy/pkg/errors"
)

const (
	pypiMetadataURL       = "https://pypi.org/pypi/aipscan/json"
	uvLatestReleaseURL    = "https://github.com/astral-sh/uv/releases/latest"
	pythonVersionTemplate = "https://raw.githubusercontent.com/artefactual-labs/AIPscan/refs/tags/%s/.python-version"

	userAgent      = "aipscan-deploy/1.0"
	defaultTimeout = 15 * time.Second
	maxTries       = 3
	retryInterval  = 500 * time.Millisecond
)

var tagPattern = regexp.MustCompile(`/tag/([^/?#]+)`)

// Pins carries explicitly configured versions. A non-empty value is used
// verbatim instead of asking the upstream source.
type Pins struct {
	AIPscan string
	Uv      string
	Python  string
}

// Set is a fully resolved version selection for one convergence run.
type Set struct {
	AIPscan string `json:"aipscan"`
	Uv      string `json:"uv"`
	Python  string `json:"python"`
}

// Resolver queries the upstream sources for component versions. Transient
// failures (transport errors and 5xx responses) are retried with exponential
// backoff; 4xx responses fail immediately.
type Resolver struct {
	client     *http.Client
	noRedirect *http.Client

	pypiURL       string
	uvURL         string
	pythonURL     func(tag string) string
	retryInterval time.Duration
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithPyPIMetadataURL points AIPscan version resolution at an alternate
// metadata endpoint.
func WithPyPIMetadataURL(u string) Option {
	return func(r *Resolver) { r.pypiURL = u }
}

// WithUvReleaseURL points uv version resolution at an alternate
// latest-release endpoint.
func WithUvReleaseURL(u string) Option {
	return func(r *Resolver) { r.uvURL = u }
}

// WithPythonVersionURL overrides how the .python-version URL is derived from
// the AIPscan release tag.
func WithPythonVersionURL(fn func(tag string) string) Option {
	return func(r *Resolver) { r.pythonURL = fn }
}

// WithRetryInterval overrides the initial retry interval.
func WithRetryInterval(d time.Duration) Option {
	return func(r *Resolver) { r.retryInterval = d }
}

// NewResolver returns a Resolver with the given per-request timeout. A
// non-positive timeout falls back to the default of 15s.
func NewResolver(timeout time.Duration, opts ...Option) *Resolver {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	r := &Resolver{
		client: &http.Client{Timeout: timeout},
		noRedirect: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		pypiURL:       pypiMetadataURL,
		uvURL:         uvLatestReleaseURL,
		pythonURL:     func(tag string) string { return fmt.Sprintf(pythonVersionTemplate, tag) },
		retryInterval: retryInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve produces a complete version Set, consulting the upstream sources
// only for components the pins leave empty. The Python version depends on
// the AIPscan version, so AIPscan resolves first.
func (r *Resolver) Resolve(ctx context.Context, pins Pins) (Set, error) {
	aipscan := strings.TrimSpace(pins.AIPscan)
	if aipscan == "" {
		v, err := r.AIPscanVersion(ctx)
		if err != nil {
			return Set{}, err
		}
		aipscan = v
	}

	uv := strings.TrimSpace(pins.Uv)
	if uv == "" {
		v, err := r.UvVersion(ctx)
		if err != nil {
			return Set{}, err
		}
		uv = v
	}

	python := strings.TrimSpace(pins.Python)
	if python == "" {
		v, err := r.PythonVersion(ctx, aipscan)
		if err != nil {
			return Set{}, err
		}
		python = v
	}

	return Set{AIPscan: aipscan, Uv: uv, Python: python}, nil
}

// AIPscanVersion returns the latest published AIPscan release according to
// PyPI metadata.
func (r *Resolver) AIPscanVersion(ctx context.Context) (string, error) {
	body, err := r.getBytes(ctx, r.pypiURL)
	if err != nil {
		return "", srvErrors.NewVersionResolutionError("aipscan", err)
	}

	var payload struct {
		Info struct {
			Version string `json:"version"`
		} `json:"info"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", srvErrors.NewVersionResolutionError("aipscan", fmt.Errorf("failed to parse JSON from %s: %w", r.pypiURL, err))
	}

	version := strings.TrimSpace(payload.Info.Version)
	if version == "" {
		return "", srvErrors.NewVersionResolutionError("aipscan", fmt.Errorf("PyPI metadata did not include a version field"))
	}
	return version, nil
}

// UvVersion returns the latest uv release tag. GitHub answers the
// latest-release URL with a redirect to the tagged release page; the tag is
// taken from the Location header without following the redirect.
func (r *Resolver) UvVersion(ctx context.Context) (string, error) {
	location, err := r.headLocation(ctx, r.uvURL)
	if err != nil {
		return "", srvErrors.NewVersionResolutionError("uv", err)
	}

	m := tagPattern.FindStringSubmatch(location)
	if m == nil {
		return "", srvErrors.NewVersionResolutionError("uv", fmt.Errorf("failed to extract a release tag from redirect Location %q", location))
	}
	return strings.TrimSpace(m[1]), nil
}

// PythonVersion returns the Python version required by the given AIPscan
// release, read from the .python-version file of its tag.
func (r *Resolver) PythonVersion(ctx context.Context, aipscanVersion string) (string, error) {
	if strings.TrimSpace(aipscanVersion) == "" {
		return "", srvErrors.NewVersionResolutionError("python", fmt.Errorf("the AIPscan version is unset"))
	}

	sourceURL := r.pythonURL(aipscanVersion)
	body, err := r.getBytes(ctx, sourceURL)
	if err != nil {
		return "", srvErrors.NewVersionResolutionError("python", err)
	}

	version := strings.TrimSpace(string(body))
	if version == "" {
		return "", srvErrors.NewVersionResolutionError("python", fmt.Errorf("the .python-version file for AIPscan %s is empty", aipscanVersion))
	}
	return version, nil
}

func (r *Resolver) getBytes(ctx context.Context, rawURL string) ([]byte, error) {
	op := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := r.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("HTTP %d retrieving %s", resp.StatusCode, rawURL)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, backoff.Permanent(fmt.Errorf("HTTP %d retrieving %s", resp.StatusCode, rawURL))
		}
		return body, nil
	}
	return backoff.Retry(ctx, op, backoff.WithBackOff(r.newBackOff()), backoff.WithMaxTries(maxTries))
}

func (r *Resolver) headLocation(ctx context.Context, rawURL string) (string, error) {
	op := func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
		if err != nil {
			return "", backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := r.noRedirect.Do(req)
		if err != nil {
			return "", err
		}
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 300 && resp.StatusCode < 400:
			location := resp.Header.Get("Location")
			if location == "" {
				return "", backoff.Permanent(fmt.Errorf("redirect for %s carried no Location header", rawURL))
			}
			return location, nil
		case resp.StatusCode >= 500:
			return "", fmt.Errorf("HTTP %d retrieving %s", resp.StatusCode, rawURL)
		default:
			return "", backoff.Permanent(fmt.Errorf("expected a redirect for %s, got HTTP %d", rawURL, resp.StatusCode))
		}
	}
	return backoff.Retry(ctx, op, backoff.WithBackOff(r.newBackOff()), backoff.WithMaxTries(maxTries))
}

func (r *Resolver) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.retryInterval
	return b
}
