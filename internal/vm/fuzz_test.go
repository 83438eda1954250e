package vm

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/funvibe/alla/internal/lexer"
)

var fuzzSeeds = []string{
	"writeline(1 + 2)",
	"x = 42\nwriteline(x)",
	"function add(a, b) { return a + b }\nwriteline(add(1, 2))",
	"function f(n) {\n  if (n == 0) { return 0 }\n  return f(n - 1)\n}\nf(3)",
	"class P {\n  this.x = 1\n  function P(v) { this.x = v }\n}\nwriteline(P(2).x)",
	"a = true && !false || 1 < 2\nwriteline(a)",
	"if (1 == 1) { writeline(\"yes\") } else { writeline(\"no\") }",
	"function f() { return 1 + true }\nf()",
	"writeline(read(), readline())",
}

// fuzzRun runs prog with a bounded depth and deadline
func fuzzRun(prog *Program) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	machine := New()
	machine.SetOutput(&out)
	machine.SetInput(strings.NewReader("ab\ncd\n"))
	machine.SetContext(ctx)
	machine.SetMaxCallDepth(32)
	_, err := machine.Run(prog)
	return out.String(), err
}

func fuzzCompile(input string) (*Program, bool) {
	tokens, err := lexer.Tokenize(input)
	if err != nil {
		return nil, false
	}
	prog, err := NewCompiler(tokens).Compile()
	if err != nil {
		if !errors.Is(err, ErrSyntax) {
			panic("compile error is not a syntax error: " + err.Error())
		}
		return nil, false
	}
	return prog, true
}

// FuzzCompileAndRun checks that arbitrary source never panics the
// compiler or the VM.
func FuzzCompileAndRun(f *testing.F) {
	for _, seed := range fuzzSeeds {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, input string) {
		if len(input) > 4000 {
			return
		}
		prog, ok := fuzzCompile(input)
		if !ok {
			return
		}
		fuzzRun(prog)
		Disassemble(prog, "<fuzz>")
	})
}

// FuzzBundleRoundTrip compiles, serializes and deserializes a program and
// expects the copy to behave exactly like the directly compiled program.
func FuzzBundleRoundTrip(f *testing.F) {
	for _, seed := range fuzzSeeds {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, input string) {
		if len(input) > 4000 {
			return
		}
		prog, ok := fuzzCompile(input)
		if !ok {
			return
		}

		data, err := NewBundle(prog, "fuzz.alla").Serialize()
		if err != nil {
			t.Fatalf("serialize: %v", err)
		}
		bundle, err := DeserializeBundle(data)
		if err != nil {
			t.Fatalf("deserialize: %v", err)
		}

		wantOut, wantErr := fuzzRun(prog)
		gotOut, gotErr := fuzzRun(bundle.Main)
		if errors.Is(wantErr, context.DeadlineExceeded) || errors.Is(gotErr, context.DeadlineExceeded) {
			return
		}
		if wantOut != gotOut {
			t.Errorf("output differs after round trip:\n--- direct ---\n%s\n--- bundle ---\n%s", wantOut, gotOut)
		}
		if (wantErr == nil) != (gotErr == nil) || (wantErr != nil && wantErr.Error() != gotErr.Error()) {
			t.Errorf("error differs after round trip: %v vs %v", wantErr, gotErr)
		}
	})
}
