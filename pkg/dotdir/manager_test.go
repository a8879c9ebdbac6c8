package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/callctx/pkg/dotdir"
)

var _ = Describe("dotdir", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dotdir-test-*")
		Expect(err).NotTo(HaveOccurred())

		// Resolve symlinks so paths match filepath.Abs results
		// (e.g. on macOS /var -> /private/var).
		tmpDir, err = filepath.EvalSymlinks(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		m = dotdir.NewManager()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	chdir := func(dir string) {
		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(dir)).To(Succeed())
		DeferCleanup(func() { _ = os.Chdir(origDir) })
	}

	Describe("Target", func() {
		It("creates the directory if it doesn't exist", func() {
			dir := filepath.Join(tmpDir, "newdir")
			result, err := m.Target(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(dir))

			info, err := os.Stat(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.IsDir()).To(BeTrue())
		})

		It("returns the override dir even when a local .callctx dir exists", func() {
			Expect(os.Mkdir(filepath.Join(tmpDir, ".callctx"), 0o755)).To(Succeed())
			chdir(tmpDir)

			overrideDir := filepath.Join(tmpDir, "override")
			result, err := m.Target(overrideDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(overrideDir))
		})

		It("returns the local .callctx dir when it exists and no override is provided", func() {
			local := filepath.Join(tmpDir, ".callctx")
			Expect(os.Mkdir(local, 0o755)).To(Succeed())
			chdir(tmpDir)

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(local))
		})

		It("falls back to the home directory", func() {
			emptyDir := filepath.Join(tmpDir, "empty")
			Expect(os.Mkdir(emptyDir, 0o755)).To(Succeed())
			chdir(emptyDir)

			home := filepath.Join(tmpDir, "home")
			Expect(os.Mkdir(home, 0o755)).To(Succeed())
			origHome := os.Getenv("HOME")
			Expect(os.Setenv("HOME", home)).To(Succeed())
			DeferCleanup(func() { _ = os.Setenv("HOME", origHome) })

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(filepath.Join(home, ".callctx")))
		})
	})

	Describe("SQLiteTarget", func() {
		It("returns a sqlite DSN inside the directory", func() {
			target, err := m.SQLiteTarget(tmpDir, dotdir.VectorsDB)
			Expect(err).NotTo(HaveOccurred())
			Expect(target).To(Equal("sqlite://" + filepath.Join(tmpDir, "vectors.db")))
		})
	})
})
