package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/funvibe/alla/internal/backend"
	"github.com/funvibe/alla/internal/cache"
	"github.com/funvibe/alla/internal/config"
	"github.com/funvibe/alla/internal/diagnostics"
	"github.com/funvibe/alla/internal/lexer"
	"github.com/funvibe/alla/internal/pipeline"
	"github.com/funvibe/alla/internal/vm"
)

const usage = `Usage:
  alla [flags] <file.alla>      run a script (stdin when the file is - or missing)
  alla -c <file.alla> [-o out]  compile a script to a bundle
  alla -r <file.allac>          run a compiled bundle

Flags:
  -d            print the disassembly before running
  -stats        print stage timings and program sizes
  -debug        verbose logging
  -cache PATH   reuse compiled programs stored in the SQLite database at PATH
  -no-cache     ignore the cache configured in alla.yaml / alla.toml
`

// options are the command-line flags, applied over the settings file
type options struct {
	debug     bool
	stats     bool
	disasm    bool
	noCache   bool
	cachePath string
	output    string
	compile   bool
	runBundle bool
	help      bool
	file      string
}

func parseArgs(args []string) (options, error) {
	var opts options
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-h", "-help", "--help", "help":
			opts.help = true
		case "-debug", "--debug":
			opts.debug = true
		case "-stats", "--stats":
			opts.stats = true
		case "-d", "--disasm":
			opts.disasm = true
		case "-no-cache", "--no-cache":
			opts.noCache = true
		case "-c", "--compile":
			opts.compile = true
		case "-r", "--run":
			opts.runBundle = true
		case "-cache", "--cache", "-o", "--output":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("%s needs a value", arg)
			}
			i++
			if arg == "-o" || arg == "--output" {
				opts.output = args[i]
			} else {
				opts.cachePath = args[i]
			}
		default:
			if arg != "-" && strings.HasPrefix(arg, "-") {
				return opts, fmt.Errorf("unknown flag %s", arg)
			}
			if opts.file != "" {
				return opts, fmt.Errorf("unexpected argument %s", arg)
			}
			opts.file = arg
		}
	}
	if opts.compile && opts.runBundle {
		return opts, fmt.Errorf("-c and -r cannot be combined")
	}
	if (opts.compile || opts.runBundle) && (opts.file == "" || opts.file == "-") {
		return opts, fmt.Errorf("a file is required with -c and -r")
	}
	return opts, nil
}

// loadSettings finds the settings file next to the script and applies the flags
func loadSettings(opts options) (*config.Settings, error) {
	dir := "."
	if opts.file != "" && opts.file != "-" {
		dir = filepath.Dir(opts.file)
	}
	settings, err := config.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}

	if opts.stats {
		settings.Stats = true
	}
	if opts.disasm {
		settings.Disasm = true
	}
	if opts.debug && settings.Log.Verbosity < 2 {
		settings.Log.Verbosity = 2
	}
	if opts.cachePath != "" {
		settings.Cache.Enabled = true
		settings.Cache.Path = opts.cachePath
		settings.Dir = ""
	}
	if opts.noCache {
		settings.Cache.Enabled = false
	}
	return settings, nil
}

func configureLogging(settings *config.Settings) {
	var path *string
	if settings.Log.File != "" {
		path = &settings.Log.File
	}
	commonlog.Configure(settings.Log.Verbosity, path)
}

func main() {
	// Catch panics and show user-friendly error
	defer func() {
		if r := recover(); r != nil {
			if os.Getenv("DEBUG") == "1" {
				panic(r) // Re-panic to get stack trace
			}
			fmt.Fprintf(os.Stderr, "Internal error: %v\n", r)
			fmt.Fprintln(os.Stderr, "This is a bug. Please report it.")
			os.Exit(1)
		}
	}()

	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n\n%s", err, usage)
		os.Exit(2)
	}
	if opts.help {
		fmt.Print(usage)
		return
	}

	settings, err := loadSettings(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	configureLogging(settings)
	rep := newReporter(os.Stderr, settings.Color)

	log := commonlog.GetLogger("alla.cli")
	if settings.Path != "" {
		log.Debugf("settings from %s", settings.Path)
	}

	switch {
	case opts.compile:
		os.Exit(handleCompile(opts, settings, rep))
	case opts.runBundle:
		os.Exit(handleRunCompiled(opts, settings, rep))
	default:
		os.Exit(handleRun(opts, settings, rep))
	}
}

// handleRun lexes, compiles and executes a script
func handleRun(opts options, settings *config.Settings, rep *reporter) int {
	sourceCode, err := readInput(opts.file)
	if err != nil {
		rep.fail(err)
		return 1
	}

	var c *cache.Cache
	if settings.Cache.Enabled {
		c, err = cache.Open(settings.CachePath())
		if err != nil {
			rep.fail(err)
			return 1
		}
		defer c.Close()
	}

	initialContext := pipeline.NewPipelineContext(sourceCode)
	if opts.file != "" && opts.file != "-" {
		initialContext.FilePath = opts.file
	}

	execBackend := backend.NewVM()
	execBackend.MaxCallDepth = settings.MaxCallDepth

	stages := []pipeline.Processor{
		&lexer.LexerProcessor{},
		&backend.CompileProcessor{Cache: c},
	}
	if settings.Disasm {
		stages = append(stages, &disasmProcessor{out: os.Stdout, backend: execBackend})
	}
	stages = append(stages, backend.NewExecutionProcessor(execBackend))

	finalContext := pipeline.New(stages...).Run(initialContext)

	if settings.Stats {
		printStats(os.Stderr, finalContext)
	}
	if finalContext.Failed() {
		rep.diagnostics(finalContext.Errors)
		return 1
	}
	return 0
}

// handleCompile writes a bundle next to the source (or to -o)
func handleCompile(opts options, settings *config.Settings, rep *reporter) int {
	sourceCode, err := os.ReadFile(opts.file)
	if err != nil {
		rep.fail(fmt.Errorf("reading source file: %w", err))
		return 1
	}

	initialContext := pipeline.NewPipelineContext(string(sourceCode))
	initialContext.FilePath = opts.file

	finalContext := pipeline.New(
		&lexer.LexerProcessor{},
		&backend.CompileProcessor{},
	).Run(initialContext)
	if finalContext.Failed() {
		rep.diagnostics(finalContext.Errors)
		return 1
	}

	prog := finalContext.Program.(*vm.Program)
	bundle := vm.NewBundle(prog, filepath.Base(opts.file))
	data, err := bundle.Serialize()
	if err != nil {
		rep.fail(fmt.Errorf("serialization error: %w", err))
		return 1
	}

	outputPath := opts.output
	if outputPath == "" {
		outputPath = config.TrimSourceExt(opts.file) + config.BytecodeFileExt
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		rep.fail(fmt.Errorf("writing bytecode file: %w", err))
		return 1
	}

	fmt.Printf("Compiled %s -> %s\n", opts.file, outputPath)
	fmt.Printf("Bytecode size: %s (build %s)\n", formatBytes(len(data)), bundle.BuildID)
	if settings.Stats {
		printStats(os.Stderr, finalContext)
	}
	return 0
}

// handleRunCompiled runs a bundle written by handleCompile
func handleRunCompiled(opts options, settings *config.Settings, rep *reporter) int {
	data, err := os.ReadFile(opts.file)
	if err != nil {
		rep.fail(fmt.Errorf("reading bytecode file: %w", err))
		return 1
	}
	bundle, err := vm.DeserializeBundle(data)
	if err != nil {
		diag := diagnostics.NewError(diagnostics.ErrB001, tokenless, err.Error())
		diag.File = opts.file
		rep.diagnostics([]*diagnostics.DiagnosticError{diag})
		return 1
	}
	commonlog.GetLogger("alla.cli").Debugf("bundle %s from %s", bundle.BuildID, bundle.SourceFile)

	initialContext := pipeline.NewPipelineContext("")
	initialContext.FilePath = bundle.SourceFile
	initialContext.Program = bundle.Main

	execBackend := backend.NewVM()
	execBackend.MaxCallDepth = settings.MaxCallDepth

	var stages []pipeline.Processor
	if settings.Disasm {
		stages = append(stages, &disasmProcessor{out: os.Stdout, backend: execBackend})
	}
	stages = append(stages, backend.NewExecutionProcessor(execBackend))

	finalContext := pipeline.New(stages...).Run(initialContext)
	if settings.Stats {
		printStats(os.Stderr, finalContext)
	}
	if finalContext.Failed() {
		rep.diagnostics(finalContext.Errors)
		return 1
	}
	return 0
}

func readInput(path string) (string, error) {
	var input []byte
	var err error

	if path == "" || path == "-" {
		stat, _ := os.Stdin.Stat()
		if path == "" && stat != nil && (stat.Mode()&os.ModeCharDevice) != 0 {
			return "", fmt.Errorf("no input: pass a file or pipe a script on stdin")
		}
		input, err = io.ReadAll(os.Stdin)
	} else {
		input, err = os.ReadFile(path)
	}

	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return string(input), nil
}
