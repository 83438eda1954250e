package backend

import (
	"errors"
	"strconv"
	"strings"

	"github.com/funvibe/alla/internal/diagnostics"
	"github.com/funvibe/alla/internal/pipeline"
	"github.com/funvibe/alla/internal/token"
	"github.com/funvibe/alla/internal/vm"
)

// ExecutionProcessor is the pipeline stage that runs a Backend
type ExecutionProcessor struct {
	Backend Backend
}

// NewExecutionProcessor creates a new pipeline step for the given backend
func NewExecutionProcessor(b Backend) *ExecutionProcessor {
	return &ExecutionProcessor{Backend: b}
}

func (p *ExecutionProcessor) Name() string { return "execute" }

func (p *ExecutionProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	// If previous steps failed, don't run execution
	if ctx.Program == nil || ctx.Failed() {
		return ctx
	}

	result, err := p.Backend.Run(ctx)
	if err != nil {
		p.handleError(ctx, err)
		return ctx
	}
	ctx.Result = result
	return ctx
}

func (p *ExecutionProcessor) handleError(ctx *pipeline.PipelineContext, err error) {
	var re *vm.RuntimeError
	if !errors.As(err, &re) {
		diag := diagnostics.NewError(diagnostics.ErrR001, token.Token{}, err.Error())
		diag.File = ctx.FilePath
		ctx.Errors = append(ctx.Errors, diag)
		return
	}

	var sb strings.Builder
	sb.WriteString(re.Message())
	if len(re.Trace) > 0 {
		sb.WriteString("\nStack trace:")
		for _, frame := range re.Trace {
			sb.WriteString("\n  at ")
			if ctx.FilePath != "" {
				sb.WriteString(ctx.FilePath + ":")
			} else {
				sb.WriteString("line ")
			}
			sb.WriteString(strconv.Itoa(frame.Line) + " (called " + frame.Function + ")")
		}
	}

	diag := diagnostics.NewError(diagnostics.ErrR001, token.Token{Line: re.Line()}, sb.String())
	diag.File = ctx.FilePath
	ctx.Errors = append(ctx.Errors, diag)
}
