package backend

import (
	"errors"

	"github.com/tliron/commonlog"

	"github.com/funvibe/alla/internal/cache"
	"github.com/funvibe/alla/internal/diagnostics"
	"github.com/funvibe/alla/internal/pipeline"
	"github.com/funvibe/alla/internal/token"
	"github.com/funvibe/alla/internal/vm"
)

// CompileProcessor is the pipeline stage that turns ctx.TokenStream into
// ctx.Program. With a Cache set, programs are looked up by source digest
// first and stored after a successful compile.
type CompileProcessor struct {
	Cache *cache.Cache
}

func (p *CompileProcessor) Name() string { return "compiler" }

func (p *CompileProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.Failed() {
		return ctx
	}
	log := commonlog.GetLogger("alla.cache")

	var key string
	if p.Cache != nil {
		key = cache.Key(ctx.SourceCode)
		prog, err := p.Cache.Get(key)
		switch {
		case err == nil:
			ctx.Program = prog
			ctx.CacheHit = true
			return ctx
		case !errors.Is(err, cache.ErrMiss):
			// A broken row is recompiled and overwritten
			log.Warningf("%s", err)
		}
	}

	prog, err := vm.NewCompiler(ctx.TokenStream).Compile()
	if err != nil {
		ctx.Errors = append(ctx.Errors, syntaxDiagnostic(ctx, err))
		return ctx
	}
	ctx.Program = prog

	if p.Cache != nil {
		if err := p.Cache.Put(key, prog); err != nil {
			log.Warningf("%s", err)
		}
	}
	return ctx
}

func syntaxDiagnostic(ctx *pipeline.PipelineContext, err error) *diagnostics.DiagnosticError {
	var tok token.Token
	var se *vm.SyntaxError
	if errors.As(err, &se) {
		tok = se.Found
	}
	diag := diagnostics.NewError(diagnostics.ErrP001, tok, err.Error())
	diag.File = ctx.FilePath
	return diag
}
