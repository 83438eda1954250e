// Package backend holds the pipeline stages that compile and execute a
// token stream.
package backend

import (
	"github.com/funvibe/alla/internal/pipeline"
	"github.com/funvibe/alla/internal/vm"
)

// Backend is the interface for execution backends
type Backend interface {
	// Run executes ctx.Program and returns the value left by the program
	Run(ctx *pipeline.PipelineContext) (vm.Value, error)

	// Name returns the backend name for display
	Name() string
}
