// DevLens CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
package main

import (
	"context"

	"dagger/devlens/internal/dagger"
)

// Devlens is the main module for the DevLens gateway CI/CD pipeline
type Devlens struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Devlens CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".devenv", "build", "tmp"]
	source *dagger.Directory,
) *Devlens {
	return &Devlens{
		Source: source,
	}
}

// goContainer returns an Alpine Go container with CGO disabled and the
// project source mounted.
func (d *Devlens) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-alpine").
		WithEnvVariable("CGO_ENABLED", "0").
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", d.Source)
}

// Test runs go vet and the unit tests
func (d *Devlens) Test(ctx context.Context) (string, error) {
	return d.goContainer().
		WithExec([]string{"go", "vet", "./..."}).
		WithExec([]string{"go", "test", "-v", "./..."}).
		Stdout(ctx)
}
