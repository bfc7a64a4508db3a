package main

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Convergence pipeline", func() {
	// Given a fresh environment for every selected platform
	// When the full pipeline runs
	// Then each platform converges, stays converged and answers the checks
	It("converges every platform to a live service", func() {
		// Act
		results, err := pipelineRunner.Test(context.Background(), platformFilter)

		// Assert
		Expect(err).NotTo(HaveOccurred())
		Expect(results).NotTo(BeEmpty())
		for _, res := range results {
			Expect(res.Err()).NotTo(HaveOccurred(), "platform %s", res.Platform)
			Expect(res.Converge).NotTo(BeNil())
			Expect(res.Converge.Changed()).To(BeNumerically(">", 0),
				"a fresh environment must require changes")
			Expect(res.Repeat).NotTo(BeNil())
			Expect(res.Repeat.Changed()).To(BeZero(),
				"a second run against a converged host must change nothing")
		}
	})
})

var _ = Describe("Tag isolation", func() {
	// Given a scenario converging a partial tag selection
	// When the full pipeline runs
	// Then unselected tasks are skipped and the absent-path assertions in
	// the verify phase prove their state never reached the host
	It("leaves unselected state untouched", func() {
		if isolationRunner == nil {
			Skip("no isolation scenario configured, pass -isolation-scenario")
		}

		// Act
		results, err := isolationRunner.Test(context.Background(), nil)

		// Assert
		Expect(err).NotTo(HaveOccurred())
		Expect(results).NotTo(BeEmpty())
		for _, res := range results {
			Expect(res.Err()).NotTo(HaveOccurred(), "platform %s", res.Platform)
			Expect(res.Converge).NotTo(BeNil())
			Expect(res.Converge.Skipped()).To(BeNumerically(">", 0),
				"a partial selection must skip the unselected tasks")
		}
	})
})
