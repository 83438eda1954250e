package lexer

import (
	"errors"

	"github.com/funvibe/alla/internal/diagnostics"
	"github.com/funvibe/alla/internal/pipeline"
	"github.com/funvibe/alla/internal/token"
)

// LexerProcessor is the pipeline stage that fills ctx.TokenStream.
type LexerProcessor struct{}

func (lp *LexerProcessor) Name() string { return "lexer" }

func (lp *LexerProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	tokens, err := Tokenize(ctx.SourceCode)
	if err != nil {
		var diag *diagnostics.DiagnosticError
		if !errors.As(err, &diag) {
			diag = diagnostics.NewError(diagnostics.ErrL001, token.Token{}, err.Error())
		}
		diag.File = ctx.FilePath
		ctx.Errors = append(ctx.Errors, diag)
		return ctx
	}
	ctx.TokenStream = tokens
	return ctx
}
