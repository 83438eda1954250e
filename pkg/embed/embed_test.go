package alla_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	alla "github.com/funvibe/alla/pkg/embed"
)

type Point struct {
	X int
	Y int
}

func TestEmbedAPI(t *testing.T) {
	machine := alla.New()

	if err := machine.Bind("double", func(x int) int { return x * 2 }); err != nil {
		t.Fatal(err)
	}
	res, err := machine.Eval(`double(21)`)
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	if res != 42 {
		t.Errorf("expected 42, got %#v", res)
	}
}

func TestSetGet(t *testing.T) {
	machine := alla.New()
	if err := machine.Set("base", 10); err != nil {
		t.Fatal(err)
	}
	res, err := machine.Eval(`doubled = base * 2
doubled + 1`)
	if err != nil {
		t.Fatal(err)
	}
	if res != 21.0 {
		t.Errorf("expected 21.0, got %#v", res)
	}

	doubled, err := machine.Get("doubled")
	if err != nil {
		t.Fatal(err)
	}
	if doubled != 20.0 {
		t.Errorf("doubled = %#v", doubled)
	}

	if _, err := machine.Get("missing"); err == nil {
		t.Error("expected error for an unknown variable")
	}
}

func TestEvalKeepsDefinitions(t *testing.T) {
	machine := alla.New()
	if _, err := machine.Eval(`counter = 5`); err != nil {
		t.Fatal(err)
	}
	res, err := machine.Eval(`counter + 1`)
	if err != nil {
		t.Fatal(err)
	}
	if res != 6.0 {
		t.Errorf("expected 6.0, got %#v", res)
	}
}

func TestCallScriptFunction(t *testing.T) {
	machine := alla.New()
	if _, err := machine.Eval(`function greet(name) {
  return "hi " + name
}`); err != nil {
		t.Fatal(err)
	}
	res, err := machine.Call("greet", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if res != "hi bob" {
		t.Errorf("expected %q, got %#v", "hi bob", res)
	}

	if _, err := machine.Call("nope"); err == nil {
		t.Error("expected error for an unknown function")
	}
}

func TestInstanceToMap(t *testing.T) {
	machine := alla.New()
	res, err := machine.Eval(`class P { this.x = 1 }
P()`)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]interface{}{"x": 1}
	if !reflect.DeepEqual(res, want) {
		t.Errorf("expected %v, got %#v", want, res)
	}
}

func TestMapBinding(t *testing.T) {
	machine := alla.New()
	if err := machine.Set("cfg", map[string]int{"port": 80, "workers": 4}); err != nil {
		t.Fatal(err)
	}
	res, err := machine.Eval(`cfg.port`)
	if err != nil {
		t.Fatal(err)
	}
	if res != 80 {
		t.Errorf("expected 80, got %#v", res)
	}

	if err := machine.Set("bad", map[int]int{1: 1}); err == nil {
		t.Error("expected error for non-string map keys")
	}
}

func TestStructRoundTrip(t *testing.T) {
	machine := alla.New()
	if err := machine.Set("pt", &Point{X: 1, Y: 2}); err != nil {
		t.Fatal(err)
	}
	if _, err := machine.Eval(`pt.X = 5`); err != nil {
		t.Fatal(err)
	}

	var got Point
	if err := machine.GetInto("pt", &got); err != nil {
		t.Fatal(err)
	}
	if got != (Point{X: 5, Y: 2}) {
		t.Errorf("got %+v", got)
	}

	if err := machine.GetInto("pt", got); err == nil {
		t.Error("expected error for a non-pointer target")
	}
}

func TestHostFunctions(t *testing.T) {
	machine := alla.New()
	machine.Bind("join", func(sep string, parts ...string) string {
		return strings.Join(parts, sep)
	})
	machine.Bind("fail", func() error { return errors.New("boom") })
	machine.Bind("check", func(ok bool) (string, error) {
		if !ok {
			return "", errors.New("not ok")
		}
		return "ok", nil
	})

	tests := []struct {
		name    string
		code    string
		want    interface{}
		wantErr string
	}{
		{"variadic", `join("-", "a", "b", "c")`, "a-b-c", ""},
		{"variadic empty", `join("-")`, "", ""},
		{"value and nil error", `check(true)`, "ok", ""},
		{"error result", `check(false)`, nil, "not ok"},
		{"error only", `fail()`, nil, "boom"},
		{"arity", `join()`, nil, "wrong number of arguments"},
		{"argument type", `join(1, "a")`, nil, "argument 0"},
		{"argument kind", `join("-", true)`, nil, "type mismatch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := machine.Eval(tt.code)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if res != tt.want {
				t.Errorf("expected %#v, got %#v", tt.want, res)
			}
		})
	}
}

func TestHostFunctionNames(t *testing.T) {
	machine := alla.New()
	machine.Bind("inc", func(x int) int { return x + 1 })
	machine.Set("anon", func(x int) int { return x + 1 })

	tests := []struct {
		code string
		want string
	}{
		{`inc()`, "inc takes 1, got 0"},
		{`anon()`, "<host fn> takes 1, got 0"},
	}
	for _, tt := range tests {
		_, err := machine.Eval(tt.code)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: expected error containing %q, got %v", tt.code, tt.want, err)
		}
	}
}

func TestCompileErrors(t *testing.T) {
	machine := alla.New()
	_, err := machine.Eval(`if (`)
	if err == nil {
		t.Fatal("expected compile error")
	}
	if !strings.Contains(err.Error(), "Errors during compilation") || !strings.Contains(err.Error(), "[P001]") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOutputAndInput(t *testing.T) {
	machine := alla.New()
	var out bytes.Buffer
	machine.SetOutput(&out)
	machine.SetInput(strings.NewReader("ada\n"))

	if _, err := machine.Eval(`writeline("name?")
name = readline()
writeline("hello " + name)`); err != nil {
		t.Fatal(err)
	}
	if out.String() != "name?\nhello ada\n" {
		t.Errorf("output %q", out.String())
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lib.alla")
	if err := os.WriteFile(path, []byte("function square(n) { return n * n }\n"), 0644); err != nil {
		t.Fatal(err)
	}

	machine := alla.New()
	if err := machine.LoadFile(path); err != nil {
		t.Fatal(err)
	}
	res, err := machine.Call("square", 3)
	if err != nil {
		t.Fatal(err)
	}
	if res != 9.0 {
		t.Errorf("expected 9.0, got %#v", res)
	}

	if err := machine.LoadFile(filepath.Join(dir, "missing.alla")); err == nil {
		t.Error("expected error for a missing file")
	}
}
