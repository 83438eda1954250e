package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/funvibe/alla/internal/backend"
	"github.com/funvibe/alla/internal/diagnostics"
	"github.com/funvibe/alla/internal/pipeline"
	"github.com/funvibe/alla/internal/token"
	"github.com/funvibe/alla/internal/vm"
)

const (
	ansiRed   = "\033[31m"
	ansiReset = "\033[0m"
)

var tokenless = token.Token{}

// reporter prints failures, in red when the stream is a terminal
type reporter struct {
	w     io.Writer
	color bool
}

func newReporter(f *os.File, mode string) *reporter {
	return &reporter{w: f, color: useColor(f, mode)}
}

// useColor resolves the color setting against the terminal and NO_COLOR
func useColor(f *os.File, mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (r *reporter) line(s string) {
	if r.color {
		fmt.Fprintf(r.w, "%s%s%s\n", ansiRed, s, ansiReset)
		return
	}
	fmt.Fprintln(r.w, s)
}

func (r *reporter) fail(err error) {
	r.line("Error: " + err.Error())
}

func (r *reporter) diagnostics(errs []*diagnostics.DiagnosticError) {
	for _, err := range errs {
		r.line(err.Error())
	}
}

// disasmProcessor prints the compiled program between compile and execute
type disasmProcessor struct {
	out     io.Writer
	backend *backend.VMBackend
}

func (p *disasmProcessor) Name() string { return "disasm" }

func (p *disasmProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.Failed() {
		return ctx
	}
	listing, err := p.backend.Disassemble(ctx)
	if err != nil {
		ctx.Errors = append(ctx.Errors, diagnostics.NewError(diagnostics.ErrB001, tokenless, err.Error()))
		return ctx
	}
	fmt.Fprintln(p.out, listing)
	return ctx
}

// printStats reports stage timings and the size of the compiled program
func printStats(w io.Writer, ctx *pipeline.PipelineContext) {
	for _, t := range ctx.Timings {
		fmt.Fprintf(w, "[%s finish] %s\n", t.Stage, formatDuration(t.Duration))
	}
	fmt.Fprintf(w, "[total] %s\n", formatDuration(ctx.Total()))
	if ctx.CacheHit {
		fmt.Fprintln(w, "program loaded from cache")
	}

	prog, ok := ctx.Program.(*vm.Program)
	if !ok || prog == nil {
		return
	}
	fmt.Fprintf(w, "%d constants\n", len(prog.Constants))
	fmt.Fprintf(w, "%d variables\n", len(prog.Variables))
	fmt.Fprintf(w, "%d instructions (%s)\n", prog.InstructionCount(), formatBytes(len(prog.Code)))
	if data, err := vm.EncodeProgram(prog); err == nil {
		fmt.Fprintf(w, "%s encoded\n", formatBytes(len(data)))
	}
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
}

func formatBytes(n int) string {
	return humanize.Bytes(uint64(n))
}
