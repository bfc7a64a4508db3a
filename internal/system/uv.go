package system

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

const (
	defaultUvBinaryPath    = "/usr/local/bin/uv"
	defaultUvReleaseFormat = "https://github.com/astral-sh/uv/releases/download/%s/uv-%s-unknown-linux-gnu.tar.gz"
)

// UvManager drives the uv tooling: the binary itself, managed Python
// installs, the application virtualenv and the application package.
type UvManager interface {
	// CurrentVersion returns the installed uv version, or "" when uv is not
	// installed.
	CurrentVersion(ctx context.Context) (string, error)
	// EnsureInstalled places the uv binary at the pinned version and reports
	// whether it had to be (re)installed.
	EnsureInstalled(ctx context.Context, version string) (bool, error)
	// EnsurePython makes the pinned Python version available to uv.
	EnsurePython(ctx context.Context, version string) (bool, error)
	// EnsureVenv creates the virtualenv with the pinned Python, recreating
	// it when the interpreter version diverges.
	EnsureVenv(ctx context.Context, venvDir, pythonVersion string) (bool, error)
	// EnsureApp installs the application at the pinned version into the
	// virtualenv, together with the gunicorn entrypoint.
	EnsureApp(ctx context.Context, venvDir, appVersion string) (bool, error)
}

// ExecUvManager implements UvManager against the local host. The uv binary
// itself is fetched from the GitHub release tarball for the pinned version.
type ExecUvManager struct {
	runner     CommandRunner
	httpClient *http.Client
	binaryPath string
	releaseURL func(version, arch string) string
	log        *zap.SugaredLogger
}

// UvOption customizes an ExecUvManager.
type UvOption func(*ExecUvManager)

// WithUvBinaryPath overrides where the uv binary is placed.
func WithUvBinaryPath(path string) UvOption {
	return func(m *ExecUvManager) { m.binaryPath = path }
}

// WithUvReleaseURL overrides where release tarballs are fetched from.
func WithUvReleaseURL(fn func(version, arch string) string) UvOption {
	return func(m *ExecUvManager) { m.releaseURL = fn }
}

// WithUvHTTPClient overrides the download client.
func WithUvHTTPClient(client *http.Client) UvOption {
	return func(m *ExecUvManager) { m.httpClient = client }
}

func NewExecUvManager(runner CommandRunner, opts ...UvOption) *ExecUvManager {
	m := &ExecUvManager{
		runner:     runner,
		httpClient: http.DefaultClient,
		binaryPath: defaultUvBinaryPath,
		releaseURL: func(version, arch string) string {
			return fmt.Sprintf(defaultUvReleaseFormat, version, arch)
		},
		log: zap.S().Named("uv"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *ExecUvManager) CurrentVersion(ctx context.Context) (string, error) {
	out, err := m.runner.Run(ctx, Command{Name: m.binaryPath, Args: []string{"--version"}})
	if err != nil {
		if isMissingBinary(err) {
			return "", nil
		}
		return "", err
	}
	if !out.Success() {
		return "", nil
	}
	// "uv 0.4.18" or "uv 0.4.18 (hash date)"
	fields := strings.Fields(out.Stdout)
	if len(fields) < 2 {
		return "", nil
	}
	return fields[1], nil
}

func (m *ExecUvManager) EnsureInstalled(ctx context.Context, version string) (bool, error) {
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return false, err
	}
	if current == version {
		return false, nil
	}

	m.log.Infow("installing uv", "version", version, "replacing", current)
	if err := m.download(ctx, version); err != nil {
		return false, err
	}
	return true, nil
}

func (m *ExecUvManager) EnsurePython(ctx context.Context, version string) (bool, error) {
	out, err := m.runner.Run(ctx, Command{Name: m.binaryPath, Args: []string{"python", "find", version}})
	if err != nil {
		return false, err
	}
	if out.Success() {
		return false, nil
	}

	m.log.Infow("installing python", "version", version)
	out, err = m.runner.Run(ctx, Command{Name: m.binaryPath, Args: []string{"python", "install", version}})
	if err != nil {
		return false, err
	}
	if !out.Success() {
		return false, fmt.Errorf("uv python install %s failed: %s", version, out.Text())
	}
	return true, nil
}

func (m *ExecUvManager) EnsureVenv(ctx context.Context, venvDir, pythonVersion string) (bool, error) {
	current, err := m.venvPythonVersion(ctx, venvDir)
	if err != nil {
		return false, err
	}
	if versionSatisfies(current, pythonVersion) {
		return false, nil
	}

	m.log.Infow("creating virtualenv", "dir", venvDir, "python", pythonVersion)
	out, err := m.runner.Run(ctx, Command{
		Name: m.binaryPath,
		Args: []string{"venv", "--python", pythonVersion, venvDir},
	})
	if err != nil {
		return false, err
	}
	if !out.Success() {
		return false, fmt.Errorf("uv venv failed: %s", out.Text())
	}
	return true, nil
}

func (m *ExecUvManager) EnsureApp(ctx context.Context, venvDir, appVersion string) (bool, error) {
	python := filepath.Join(venvDir, "bin", "python")

	out, err := m.runner.Run(ctx, Command{
		Name: m.binaryPath,
		Args: []string{"pip", "show", "aipscan", "--python", python},
	})
	if err != nil {
		return false, err
	}
	if out.Success() && installedVersion(out.Stdout) == appVersion {
		return false, nil
	}

	m.log.Infow("installing application", "version", appVersion)
	out, err = m.runner.Run(ctx, Command{
		Name: m.binaryPath,
		Args: []string{"pip", "install", "--python", python, fmt.Sprintf("aipscan==%s", appVersion), "gunicorn"},
	})
	if err != nil {
		return false, err
	}
	if !out.Success() {
		return false, fmt.Errorf("uv pip install failed: %s", out.Text())
	}
	return true, nil
}

func (m *ExecUvManager) venvPythonVersion(ctx context.Context, venvDir string) (string, error) {
	out, err := m.runner.Run(ctx, Command{
		Name: filepath.Join(venvDir, "bin", "python"),
		Args: []string{"--version"},
	})
	if err != nil {
		if isMissingBinary(err) {
			return "", nil
		}
		return "", err
	}
	if !out.Success() {
		return "", nil
	}
	// "Python 3.12.4"
	fields := strings.Fields(out.Stdout)
	if len(fields) < 2 {
		return "", nil
	}
	return fields[1], nil
}

func (m *ExecUvManager) download(ctx context.Context, version string) error {
	arch, err := uvArch()
	if err != nil {
		return err
	}

	url := m.releaseURL(version, arch)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download uv %s: %w", version, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download uv %s: HTTP %d", version, resp.StatusCode)
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read uv tarball: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return fmt.Errorf("uv tarball for %s carries no uv binary", version)
		}
		if err != nil {
			return fmt.Errorf("failed to read uv tarball: %w", err)
		}
		if header.Typeflag != tar.TypeReg || filepath.Base(header.Name) != "uv" {
			continue
		}
		return m.place(tr)
	}
}

func (m *ExecUvManager) place(content io.Reader) error {
	dir := filepath.Dir(m.binaryPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".uv.*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o755); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), m.binaryPath)
}

// versionSatisfies reports whether the installed version matches the pin,
// allowing a minor pin such as "3.12" to accept "3.12.4".
func versionSatisfies(installed, pinned string) bool {
	if installed == "" {
		return false
	}
	return installed == pinned || strings.HasPrefix(installed, pinned+".")
}

// installedVersion extracts the Version field from pip show output.
func installedVersion(stdout string) string {
	for _, line := range strings.Split(stdout, "\n") {
		if after, ok := strings.CutPrefix(line, "Version:"); ok {
			return strings.TrimSpace(after)
		}
	}
	return ""
}

func isMissingBinary(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, exec.ErrNotFound)
}

func uvArch() (string, error) {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64", nil
	case "arm64":
		return "aarch64", nil
	default:
		return "", fmt.Errorf("no uv release for architecture %s", runtime.GOARCH)
	}
}
