package pipeline

import (
	"time"

	"github.com/tliron/commonlog"
)

// logger is resolved per call so it picks up the backend the driver configures.
func logger() commonlog.Logger {
	return commonlog.GetLogger("alla.pipeline")
}

// Pipeline represents a sequence of processing stages.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Run executes the pipeline. Each stage is timed; the run stops at the
// first stage that records an error.
func (p *Pipeline) Run(initialCtx *PipelineContext) *PipelineContext {
	ctx := initialCtx
	for _, processor := range p.processors {
		start := time.Now()
		ctx = processor.Process(ctx)
		elapsed := time.Since(start)

		ctx.Timings = append(ctx.Timings, StageTiming{Stage: processor.Name(), Duration: elapsed})
		log := logger()
		log.Infof("[%s finish] %s", processor.Name(), elapsed)

		if ctx.Failed() {
			log.Debugf("stopping after %s: %d error(s)", processor.Name(), len(ctx.Errors))
			break
		}
	}
	return ctx
}
