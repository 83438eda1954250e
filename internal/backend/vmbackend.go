package backend

import (
	"fmt"
	"io"

	"github.com/funvibe/alla/internal/config"
	"github.com/funvibe/alla/internal/pipeline"
	"github.com/funvibe/alla/internal/vm"
)

// VMBackend executes programs on the bytecode VM
type VMBackend struct {
	// Output and Input replace stdout and stdin when set
	Output io.Writer
	Input  io.Reader

	// MaxCallDepth bounds nested calls; zero keeps the VM default
	MaxCallDepth int
}

// NewVM creates a VM backend using the process stdio
func NewVM() *VMBackend {
	return &VMBackend{}
}

// Run executes the compiled program in a fresh VM
func (b *VMBackend) Run(ctx *pipeline.PipelineContext) (vm.Value, error) {
	prog, ok := ctx.Program.(*vm.Program)
	if !ok || prog == nil {
		return vm.NilVal(), fmt.Errorf("no compiled program in context (%T)", ctx.Program)
	}

	machine := vm.New()
	if b.Output != nil {
		machine.SetOutput(b.Output)
	}
	if b.Input != nil {
		machine.SetInput(b.Input)
	}
	machine.SetMaxCallDepth(b.MaxCallDepth)
	machine.SetContext(ctx.Context())

	return machine.Run(prog)
}

// Name returns the backend name
func (b *VMBackend) Name() string {
	return "vm"
}

// Disassemble returns the bytecode disassembly of the compiled program
func (b *VMBackend) Disassemble(ctx *pipeline.PipelineContext) (string, error) {
	prog, ok := ctx.Program.(*vm.Program)
	if !ok || prog == nil {
		return "", fmt.Errorf("no compiled program in context (%T)", ctx.Program)
	}
	return vm.Disassemble(prog, ScriptLabel(ctx)), nil
}

// ScriptLabel names the top-level program in listings and traces
func ScriptLabel(ctx *pipeline.PipelineContext) string {
	if ctx.FilePath != "" {
		return ctx.FilePath
	}
	return config.ScriptName
}
