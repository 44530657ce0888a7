package main

import (
	"context"
	"errors"
	"fmt"

	"dagger/devlens/internal/dagger"
)

// CheckGoModTidy fails when go.mod or go.sum would change under "go mod tidy".
//
// +check
func (d *Devlens) CheckGoModTidy(ctx context.Context) (string, error) {
	_, err := d.goContainer().
		WithExec([]string{"go", "mod", "tidy", "-diff"}).
		Stdout(ctx)

	var e *dagger.ExecError
	switch {
	case errors.As(err, &e):
		return "", fmt.Errorf("module files are not tidy, run 'go mod tidy':\n\n%s", e.Stdout)
	case err != nil:
		return "", fmt.Errorf("running go mod tidy: %w", err)
	}
	return "go.mod and go.sum are tidy", nil
}
