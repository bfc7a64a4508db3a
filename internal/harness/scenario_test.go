package harness_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rayzilt/aipscan-deploy/internal/harness"
	srvErrors "github.com/rayzilt/aipscan-deploy/pkg/errors"
)

var _ = Describe("Scenario", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	write := func(content string) string {
		path := filepath.Join(dir, "scenario.yaml")
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())
		return path
	}

	Describe("LoadScenario", func() {
		// Given a scenario file with explicit values
		// When it is loaded
		// Then the values survive and the omitted ones get defaults
		It("should load a scenario and fill defaults", func() {
			// Arrange
			path := write(`
artifact: ./dist
config: ./harness-config.yaml
platforms:
  - id: ubuntu-24.04
    image: example.org/harness/ubuntu-systemd:24.04
    host_port: 8080
  - id: rocky-9
    image: example.org/harness/rocky-systemd:9
    host_port: 8081
    container_port: 8000
    privileged: true
converge:
  tags: [install, service]
verify:
  http:
    timeout: 2m
  services: [aipscan, nginx]
  absent: [/etc/nginx/sites-enabled/aipscan]
`)

			// Act
			sc, err := harness.LoadScenario(path)

			// Assert
			Expect(err).ToNot(HaveOccurred())
			Expect(sc.Name).To(Equal("default"))
			Expect(sc.Artifact).To(Equal("./dist"))
			Expect(sc.Platforms).To(HaveLen(2))
			Expect(sc.Platforms[0].ContainerPort).To(Equal(80))
			Expect(sc.Platforms[1].ContainerPort).To(Equal(8000))
			Expect(sc.Platforms[1].Privileged).To(BeTrue())
			Expect(sc.Converge.Tags).To(Equal([]string{"install", "service"}))
			Expect(sc.Verify.HTTP.Path).To(Equal("/"))
			Expect(time.Duration(sc.Verify.HTTP.Timeout)).To(Equal(2 * time.Minute))
			Expect(sc.Verify.Services).To(Equal([]string{"aipscan", "nginx"}))
			Expect(sc.KeepEnv).To(BeFalse())
		})

		// Given a file with a misspelled key
		// When it is loaded
		// Then the key is rejected instead of silently dropping an assertion
		It("should reject unknown keys", func() {
			// Arrange
			path := write(`
artifact: ./dist
config: ./c.yaml
platforms:
  - id: ubuntu-24.04
    image: example.org/u:1
verifyy:
  services: [aipscan]
`)

			// Act
			_, err := harness.LoadScenario(path)

			// Assert
			Expect(err).To(MatchError(ContainSubstring("verifyy")))
		})

		// Given a timeout that is not a duration
		// When it is loaded
		// Then the bad scalar is named
		It("should reject an invalid duration", func() {
			// Arrange
			path := write(`
artifact: ./dist
config: ./c.yaml
platforms:
  - id: ubuntu-24.04
    image: example.org/u:1
    host_port: 8080
verify:
  http:
    timeout: fast
`)

			// Act
			_, err := harness.LoadScenario(path)

			// Assert
			Expect(err).To(MatchError(ContainSubstring(`invalid duration "fast"`)))
		})

		// Given a file that does not exist
		// When it is loaded
		// Then the caller learns which file was meant
		It("should fail on a missing file", func() {
			// Act
			_, err := harness.LoadScenario(filepath.Join(dir, "nope.yaml"))

			// Assert
			Expect(err).To(MatchError(ContainSubstring("failed to read scenario file")))
		})
	})

	Describe("Validate", func() {
		// Given an empty scenario
		// When it is validated
		// Then every missing field is reported at once
		It("should aggregate all problems", func() {
			// Arrange
			sc := &harness.Scenario{}

			// Act
			err := sc.Validate()

			// Assert
			Expect(srvErrors.IsValidationError(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("artifact is required"))
			Expect(err.Error()).To(ContainSubstring("config is required"))
			Expect(err.Error()).To(ContainSubstring("at least one platform is required"))
		})

		// Given two platforms sharing an id
		// When the scenario is validated
		// Then the duplicate is rejected
		It("should reject duplicate platform ids", func() {
			// Arrange
			sc := &harness.Scenario{
				Artifact: "./dist",
				Config:   "./c.yaml",
				Platforms: []harness.Platform{
					{ID: "ubuntu-24.04", Image: "example.org/u:1"},
					{ID: "ubuntu-24.04", Image: "example.org/u:2"},
				},
			}

			// Act
			err := sc.Validate()

			// Assert
			Expect(err).To(MatchError(ContainSubstring(`duplicate platform id "ubuntu-24.04"`)))
		})

		// Given an http check but no published port
		// When the scenario is validated
		// Then the unreachable check is rejected
		It("should require host_port when an http check is configured", func() {
			// Arrange
			sc := &harness.Scenario{
				Artifact: "./dist",
				Config:   "./c.yaml",
				Platforms: []harness.Platform{
					{ID: "ubuntu-24.04", Image: "example.org/u:1"},
				},
				Verify: harness.Verify{HTTP: &harness.HTTPCheck{Path: "/"}},
			}

			// Act
			err := sc.Validate()

			// Assert
			Expect(err).To(MatchError(ContainSubstring(`platform "ubuntu-24.04": host_port is required for the http check`)))
		})

		// Given a converge selection with a tag the role does not know
		// When the scenario is validated
		// Then the tag is rejected
		It("should reject unknown converge tags", func() {
			// Arrange
			sc := &harness.Scenario{
				Artifact: "./dist",
				Config:   "./c.yaml",
				Platforms: []harness.Platform{
					{ID: "ubuntu-24.04", Image: "example.org/u:1"},
				},
				Converge: harness.Converge{Tags: []string{"networking"}},
			}

			// Act
			err := sc.Validate()

			// Assert
			Expect(err).To(MatchError(ContainSubstring("unknown tag")))
		})
	})

	Describe("SelectPlatforms", func() {
		var sc *harness.Scenario

		BeforeEach(func() {
			sc = &harness.Scenario{
				Platforms: []harness.Platform{
					{ID: "ubuntu-24.04", Image: "example.org/u:1"},
					{ID: "rocky-9", Image: "example.org/r:1"},
				},
			}
		})

		// Given no filter
		// When platforms are selected
		// Then all of them run
		It("should select every platform for an empty filter", func() {
			// Act
			platforms, err := sc.SelectPlatforms(nil)

			// Assert
			Expect(err).ToNot(HaveOccurred())
			Expect(platforms).To(HaveLen(2))
		})

		// Given a filter naming one platform
		// When platforms are selected
		// Then only that one runs
		It("should select the named platform", func() {
			// Act
			platforms, err := sc.SelectPlatforms([]string{"rocky-9"})

			// Assert
			Expect(err).ToNot(HaveOccurred())
			Expect(platforms).To(HaveLen(1))
			Expect(platforms[0].ID).To(Equal("rocky-9"))
		})

		// Given a filter naming an unknown platform
		// When platforms are selected
		// Then the filter is rejected
		It("should reject an unknown platform id", func() {
			// Act
			_, err := sc.SelectPlatforms([]string{"debian-13"})

			// Assert
			Expect(srvErrors.IsResourceNotFoundError(err)).To(BeTrue())
			Expect(err).To(MatchError(ContainSubstring(`platform "debian-13" not found`)))
		})
	})
})
