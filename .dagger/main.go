// callctx CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
package main

import (
	"context"

	"dagger/callctx/internal/dagger"
)

// Callctx is the main module for the callctx CI/CD pipeline
type Callctx struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new callctx CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".devenv", "build", "tmp", ".callctx"]
	source *dagger.Directory,
) *Callctx {
	return &Callctx{
		Source: source,
	}
}

// goContainer returns a Debian Bookworm-based Go container with gcc,
// libsqlite3-dev, CGO enabled, and the project source mounted.
//
// It is the shared foundation for tests and builds.
func (c *Callctx) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc", "gcc-aarch64-linux-gnu", "libsqlite3-dev"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", c.Source)
}

// Test runs the callctx unit tests via "go test"
func (c *Callctx) Test(ctx context.Context) (string, error) {
	return c.goContainer().
		WithExec([]string{"go", "test", "-v", "./..."}).
		Stdout(ctx)
}
