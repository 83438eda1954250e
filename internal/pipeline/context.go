package pipeline

import (
	"context"
	"time"

	"github.com/funvibe/alla/internal/diagnostics"
	"github.com/funvibe/alla/internal/token"
)

// PipelineContext carries the state shared by all stages of one run.
type PipelineContext struct {
	// Ctx bounds execution; nil means context.Background().
	Ctx context.Context

	SourceCode  string
	FilePath    string
	TokenStream []token.Token

	// Program is the compiled *vm.Program. Typed as any so this package
	// stays below the VM in the import graph.
	Program interface{}

	// Result is the vm.Value produced by execution, if any.
	Result interface{}

	// CacheHit reports that Program was loaded from the bytecode cache.
	CacheHit bool

	Errors  []*diagnostics.DiagnosticError
	Timings []StageTiming
}

// StageTiming records how long one processor took.
type StageTiming struct {
	Stage    string
	Duration time.Duration
}

func NewPipelineContext(source string) *PipelineContext {
	return &PipelineContext{SourceCode: source}
}

// Context returns Ctx or context.Background() when unset.
func (ctx *PipelineContext) Context() context.Context {
	if ctx.Ctx == nil {
		return context.Background()
	}
	return ctx.Ctx
}

// Failed reports whether any stage has recorded an error.
func (ctx *PipelineContext) Failed() bool {
	return len(ctx.Errors) > 0
}

// Total sums the recorded stage timings.
func (ctx *PipelineContext) Total() time.Duration {
	var total time.Duration
	for _, t := range ctx.Timings {
		total += t.Duration
	}
	return total
}

// Processor is one stage of the pipeline.
type Processor interface {
	Name() string
	Process(ctx *PipelineContext) *PipelineContext
}
