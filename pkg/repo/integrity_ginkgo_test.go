package repo

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Repository integrity", func() {
	var (
		r       *Repo
		repoDir string
	)

	BeforeEach(func() {
		repoDir = GinkgoT().TempDir()
		var err error
		r, err = Open(repoDir)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(r.Close()).To(Succeed())
	})

	Describe("Get", func() {
		Context("when two links claim the same project directory", func() {
			It("reports the duplicate as an error", func() {
				projectDir := GinkgoT().TempDir()
				info, err := r.InitProject(projectDir)
				Expect(err).NotTo(HaveOccurred())

				// Forge a second link for the same project directory
				_, err = r.writeLink(projectDir, info.MetaID)
				Expect(err).NotTo(HaveOccurred())

				_, err = r.Get(projectDir)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("more than one link"))
			})

			It("flags both links as trash", func() {
				projectDir := GinkgoT().TempDir()
				info, err := r.InitProject(projectDir)
				Expect(err).NotTo(HaveOccurred())
				_, err = r.writeLink(projectDir, info.MetaID)
				Expect(err).NotTo(HaveOccurred())

				trash, err := r.ComputeTrash()
				Expect(err).NotTo(HaveOccurred())
				Expect(trash.InvalidLinks).To(HaveLen(2))
			})
		})

		Context("when a link record does not parse", func() {
			It("surfaces the parse failure", func() {
				projectDir := GinkgoT().TempDir()
				info, err := r.InitProject(projectDir)
				Expect(err).NotTo(HaveOccurred())

				linkPath := filepath.Join(repoDir, "links", info.LinkID+".yaml")
				Expect(os.WriteFile(linkPath, []byte("{invalid"), 0644)).To(Succeed())

				_, err = r.Get(projectDir)
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("Close", func() {
		It("releases the lock for the next process", func() {
			Expect(r.Close()).To(Succeed())

			second, err := Open(repoDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Close()).To(Succeed())

			// Reacquire so AfterEach can close cleanly
			r, err = Open(repoDir)
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
