package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/callctx/internal/dagger"
)

// C compilers per GOARCH. go-sqlite3 needs cgo, so every target is built
// with a matching cross compiler.
var linuxCompilers = map[string]string{
	"amd64": "gcc",
	"arm64": "aarch64-linux-gnu-gcc",
}

// Build and return directory of go binaries
func (c *Callctx) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	// create empty directory to put build artifacts
	outputs := dag.Directory()

	for _, goarch := range []string{"amd64", "arm64"} {
		path := fmt.Sprintf("linux/%s/", goarch)

		build := c.goContainer().
			WithEnvVariable("GOOS", "linux").
			WithEnvVariable("GOARCH", goarch).
			WithEnvVariable("CC", linuxCompilers[goarch]).
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/callctx"})

		outputs = outputs.WithDirectory(path, build.Directory(path))
	}

	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (c *Callctx) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now()

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/papercomputeco/callctx/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/papercomputeco/callctx/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/papercomputeco/callctx/pkg/utils.Buildtime=%s'", buildtime),
	}

	return c.Build(ctx, strings.Join(ldflags, " "))
}
