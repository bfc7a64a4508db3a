package services_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rayzilt/aipscan-deploy/internal/services"
)

var _ = Describe("Watcher", func() {
	var (
		dir        string
		configPath string
		watcher    *services.Watcher
	)

	dirty := func() bool {
		d, _ := watcher.Dirty()
		return d
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		configPath = filepath.Join(dir, "aipscan-deploy.yaml")
		Expect(os.WriteFile(configPath, []byte("app:\n  port: 4573\n"), 0o600)).To(Succeed())

		var err error
		watcher, err = services.NewWatcher(configPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(watcher.Close()).To(Succeed())
	})

	It("should start clean", func() {
		Consistently(dirty, 200*time.Millisecond).Should(BeFalse())
	})

	// Given a watched configuration file
	// When the file is rewritten in place
	// Then drift is flagged with a modification time
	It("should flag drift on write", func() {
		// Act
		Expect(os.WriteFile(configPath, []byte("app:\n  port: 9000\n"), 0o600)).To(Succeed())

		// Assert
		Eventually(dirty, 2*time.Second).Should(BeTrue())
		_, modifiedAt := watcher.Dirty()
		Expect(modifiedAt).NotTo(BeZero())
	})

	// Editors and provisioners replace files by rename
	It("should flag drift on atomic replace", func() {
		// Arrange
		tmp := filepath.Join(dir, ".aipscan-deploy.yaml.tmp")
		Expect(os.WriteFile(tmp, []byte("app:\n  port: 9001\n"), 0o600)).To(Succeed())

		// Act
		Expect(os.Rename(tmp, configPath)).To(Succeed())

		// Assert
		Eventually(dirty, 2*time.Second).Should(BeTrue())
	})

	It("should ignore other files in the directory", func() {
		// Act
		Expect(os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o600)).To(Succeed())

		// Assert
		Consistently(dirty, 300*time.Millisecond).Should(BeFalse())
	})

	It("should clear the flag on MarkClean", func() {
		// Arrange
		Expect(os.WriteFile(configPath, []byte("app:\n  port: 9002\n"), 0o600)).To(Succeed())
		Eventually(dirty, 2*time.Second).Should(BeTrue())

		// Act
		watcher.MarkClean()

		// Assert
		Expect(dirty()).To(BeFalse())
	})
})
