package system_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rayzilt/aipscan-deploy/internal/system"
	"github.com/rayzilt/aipscan-deploy/internal/system/systemtest"
)

var _ = Describe("AptPackageManager", func() {
	var (
		ctx    context.Context
		runner *systemtest.FakeRunner
		m      *system.AptPackageManager
	)

	BeforeEach(func() {
		ctx = context.Background()
		runner = systemtest.NewFakeRunner()
		m = system.NewAptPackageManager(runner)
	})

	// Given every package already installed
	// When packages are ensured
	// Then apt-get is never invoked
	It("should not touch apt when everything is installed", func() {
		// Arrange
		runner.Stub("dpkg-query -W -f ${Status} nginx", system.Output{Stdout: "install ok installed"})

		// Act
		changed, err := m.EnsurePackages(ctx, []string{"nginx"})

		// Assert
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeFalse())
		Expect(runner.CallCount("apt-get update")).To(BeZero())
	})

	It("should install only the missing packages", func() {
		// Arrange
		runner.Stub("dpkg-query -W -f ${Status} nginx", system.Output{ExitCode: 1})
		runner.Stub("dpkg-query -W -f ${Status} ca-certificates", system.Output{Stdout: "install ok installed"})
		runner.Stub("apt-get update", system.Output{})
		runner.Stub("apt-get install -y --no-install-recommends nginx", system.Output{})

		// Act
		changed, err := m.EnsurePackages(ctx, []string{"nginx", "ca-certificates"})

		// Assert
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeTrue())
		Expect(runner.CallCount("apt-get install -y --no-install-recommends nginx")).To(Equal(1))
	})

	It("should surface the apt error verbatim", func() {
		// Arrange
		runner.Stub("dpkg-query -W -f ${Status} nginx", system.Output{ExitCode: 1})
		runner.Stub("apt-get update", system.Output{})
		runner.Stub("apt-get install -y --no-install-recommends nginx",
			system.Output{ExitCode: 100, Stderr: "E: Unable to locate package nginx"})

		// Act
		_, err := m.EnsurePackages(ctx, []string{"nginx"})

		// Assert
		Expect(err).To(MatchError(ContainSubstring("E: Unable to locate package nginx")))
	})
})

var _ = Describe("SystemdManager", func() {
	var (
		ctx    context.Context
		runner *systemtest.FakeRunner
		m      *system.SystemdManager
	)

	BeforeEach(func() {
		ctx = context.Background()
		runner = systemtest.NewFakeRunner()
		m = system.NewSystemdManager(runner)
	})

	Describe("EnsureStarted", func() {
		It("should leave an active unit alone", func() {
			// Arrange
			runner.Stub("systemctl is-active aipscan", system.Output{Stdout: "active\n"})

			// Act
			changed, err := m.EnsureStarted(ctx, "aipscan")

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeFalse())
		})

		It("should start an inactive unit", func() {
			// Arrange
			runner.Stub("systemctl is-active aipscan", system.Output{ExitCode: 3, Stdout: "inactive\n"})
			runner.Stub("systemctl start aipscan", system.Output{})

			// Act
			changed, err := m.EnsureStarted(ctx, "aipscan")

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeTrue())
		})
	})

	Describe("EnsureEnabled", func() {
		It("should enable a disabled unit once", func() {
			// Arrange
			runner.Stub("systemctl is-enabled aipscan", system.Output{ExitCode: 1, Stdout: "disabled\n"})
			runner.Stub("systemctl enable aipscan", system.Output{})

			// Act
			changed, err := m.EnsureEnabled(ctx, "aipscan")

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeTrue())
		})
	})
})

var _ = Describe("ExecUvManager", func() {
	var (
		ctx    context.Context
		runner *systemtest.FakeRunner
		m      *system.ExecUvManager
	)

	BeforeEach(func() {
		ctx = context.Background()
		runner = systemtest.NewFakeRunner()
		m = system.NewExecUvManager(runner, system.WithUvBinaryPath("/usr/local/bin/uv"))
	})

	Describe("CurrentVersion", func() {
		It("should parse the version banner", func() {
			// Arrange
			runner.Stub("/usr/local/bin/uv --version", system.Output{Stdout: "uv 0.4.18\n"})

			// Act
			v, err := m.CurrentVersion(ctx)

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("0.4.18"))
		})
	})

	Describe("EnsureInstalled", func() {
		It("should converge when the pinned version is installed", func() {
			// Arrange
			runner.Stub("/usr/local/bin/uv --version", system.Output{Stdout: "uv 0.4.18\n"})

			// Act
			changed, err := m.EnsureInstalled(ctx, "0.4.18")

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeFalse())
		})
	})

	Describe("EnsureVenv", func() {
		// A minor pin accepts any patch release of that minor
		It("should accept a patch release for a minor pin", func() {
			// Arrange
			runner.Stub("/opt/aipscan/venv/bin/python --version", system.Output{Stdout: "Python 3.12.4\n"})

			// Act
			changed, err := m.EnsureVenv(ctx, "/opt/aipscan/venv", "3.12")

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeFalse())
		})

		It("should recreate the virtualenv when the interpreter diverges", func() {
			// Arrange
			runner.Stub("/opt/aipscan/venv/bin/python --version", system.Output{Stdout: "Python 3.11.9\n"})
			runner.Stub("/usr/local/bin/uv venv --python 3.12 /opt/aipscan/venv", system.Output{})

			// Act
			changed, err := m.EnsureVenv(ctx, "/opt/aipscan/venv", "3.12")

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeTrue())
		})
	})

	Describe("EnsureApp", func() {
		It("should converge when the pinned release is installed", func() {
			// Arrange
			runner.Stub("/usr/local/bin/uv pip show aipscan --python /opt/aipscan/venv/bin/python",
				system.Output{Stdout: "Name: aipscan\nVersion: 0.7.0\n"})

			// Act
			changed, err := m.EnsureApp(ctx, "/opt/aipscan/venv", "0.7.0")

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeFalse())
		})

		It("should install when the release diverges", func() {
			// Arrange
			runner.Stub("/usr/local/bin/uv pip show aipscan --python /opt/aipscan/venv/bin/python",
				system.Output{Stdout: "Name: aipscan\nVersion: 0.6.0\n"})
			runner.Stub("/usr/local/bin/uv pip install --python /opt/aipscan/venv/bin/python aipscan==0.7.0 gunicorn",
				system.Output{})

			// Act
			changed, err := m.EnsureApp(ctx, "/opt/aipscan/venv", "0.7.0")

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeTrue())
		})
	})
})

var _ = Describe("FlaskMigrationRunner", func() {
	var (
		ctx    context.Context
		runner *systemtest.FakeRunner
		m      *system.FlaskMigrationRunner
	)

	BeforeEach(func() {
		ctx = context.Background()
		runner = systemtest.NewFakeRunner()
		m = system.NewFlaskMigrationRunner(runner, "/opt/aipscan", "/opt/aipscan/venv",
			[]string{"SQLALCHEMY_DATABASE_URI=sqlite:////var/lib/aipscan/aipscan.db"})
	})

	// Given an up-to-date schema
	// When an upgrade runs
	// Then the revision does not move and no change is reported
	It("should report no change for an up-to-date schema", func() {
		// Arrange
		runner.Stub("/opt/aipscan/venv/bin/flask db current", system.Output{Stdout: "abc123 (head)\n"})
		runner.Stub("/opt/aipscan/venv/bin/flask db upgrade", system.Output{})
		runner.Stub("/opt/aipscan/venv/bin/flask db current", system.Output{Stdout: "abc123 (head)\n"})

		// Act
		changed, err := m.Upgrade(ctx)

		// Assert
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeFalse())
	})

	It("should report a change when the revision moves", func() {
		// Arrange
		runner.Stub("/opt/aipscan/venv/bin/flask db current", system.Output{Stdout: "\n"})
		runner.Stub("/opt/aipscan/venv/bin/flask db upgrade", system.Output{})
		runner.Stub("/opt/aipscan/venv/bin/flask db current", system.Output{Stdout: "abc123 (head)\n"})

		// Act
		changed, err := m.Upgrade(ctx)

		// Assert
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeTrue())
	})

	It("should pass the application settings through the environment", func() {
		// Arrange
		runner.Stub("/opt/aipscan/venv/bin/flask db current", system.Output{Stdout: "abc123 (head)\n"})

		// Act
		_, err := m.CurrentRevision(ctx)

		// Assert
		Expect(err).NotTo(HaveOccurred())
		cmds := runner.Commands()
		Expect(cmds).To(HaveLen(1))
		Expect(cmds[0].Env).To(ContainElement("FLASK_APP=AIPscan"))
		Expect(cmds[0].Env).To(ContainElement("SQLALCHEMY_DATABASE_URI=sqlite:////var/lib/aipscan/aipscan.db"))
		Expect(cmds[0].Dir).To(Equal("/opt/aipscan"))
	})
})

var _ = Describe("FlaskStorageRegistrar", func() {
	var (
		ctx    context.Context
		runner *systemtest.FakeRunner
		r      *system.FlaskStorageRegistrar
	)

	BeforeEach(func() {
		ctx = context.Background()
		runner = systemtest.NewFakeRunner()
		r = system.NewFlaskStorageRegistrar(runner, "/opt/aipscan", "/opt/aipscan/venv", nil)
	})

	It("should report the registration state printed by the script", func() {
		// Arrange
		runner.Stub("/opt/aipscan/venv/bin/python - /etc/aipscan/storage-sources.json",
			system.Output{Stdout: "changed\n"})

		// Act
		changed, err := r.Sync(ctx, "/etc/aipscan/storage-sources.json")

		// Assert
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeTrue())
	})

	// Secrets travel through the registration file, never through arguments
	It("should never pass registration values as arguments", func() {
		// Arrange
		runner.Stub("/opt/aipscan/venv/bin/python - /etc/aipscan/storage-sources.json",
			system.Output{Stdout: "unchanged\n"})

		// Act
		_, err := r.Sync(ctx, "/etc/aipscan/storage-sources.json")

		// Assert
		Expect(err).NotTo(HaveOccurred())
		cmds := runner.Commands()
		Expect(cmds).To(HaveLen(1))
		Expect(cmds[0].Args).To(Equal([]string{"-", "/etc/aipscan/storage-sources.json"}))
		Expect(cmds[0].Stdin).NotTo(BeEmpty())
	})
})

var _ = Describe("ExecUserManager", func() {
	var (
		ctx    context.Context
		runner *systemtest.FakeRunner
		m      *system.ExecUserManager
	)

	BeforeEach(func() {
		ctx = context.Background()
		runner = systemtest.NewFakeRunner()
		m = system.NewExecUserManager(runner)
	})

	It("should leave an existing account alone", func() {
		// Arrange
		runner.Stub("getent passwd aipscan", system.Output{Stdout: "aipscan:x:990:990::/var/lib/aipscan:/usr/sbin/nologin"})

		// Act
		changed, err := m.EnsureUser(ctx, "aipscan", "aipscan", "/var/lib/aipscan")

		// Assert
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeFalse())
	})

	It("should create a missing account", func() {
		// Arrange
		runner.Stub("getent passwd aipscan", system.Output{ExitCode: 2})
		runner.Stub("useradd --system --gid aipscan --home-dir /var/lib/aipscan --no-create-home --shell /usr/sbin/nologin aipscan",
			system.Output{})

		// Act
		changed, err := m.EnsureUser(ctx, "aipscan", "aipscan", "/var/lib/aipscan")

		// Assert
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeTrue())
	})
})
