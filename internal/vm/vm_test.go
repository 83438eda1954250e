package vm

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/funvibe/alla/internal/lexer"
)

func compile(t *testing.T, input string) *Program {
	t.Helper()
	tokens, err := lexer.Tokenize(input)
	if err != nil {
		t.Fatalf("lexer error: %s", err)
	}
	prog, err := NewCompiler(tokens).Compile()
	if err != nil {
		t.Fatalf("compilation error: %s", err)
	}
	return prog
}

func runVM(t *testing.T, input string) Value {
	t.Helper()
	result, _ := runVMWithOutput(t, input, "")
	return result
}

func runVMWithOutput(t *testing.T, input, stdin string) (Value, string) {
	t.Helper()
	prog := compile(t, input)

	var out bytes.Buffer
	machine := New()
	machine.SetOutput(&out)
	machine.SetInput(strings.NewReader(stdin))
	result, err := machine.Run(prog)
	if err != nil {
		t.Fatalf("runtime error: %s", err)
	}
	return result, out.String()
}

func testIntValue(t *testing.T, v Value, expected int64) {
	t.Helper()
	if !v.IsInt() {
		t.Fatalf("value is not int. got=%s (%s)", v.TypeName(), v.Inspect())
	}
	if v.AsInt() != expected {
		t.Errorf("value has wrong value. got=%d, want=%d", v.AsInt(), expected)
	}
}

func testFloatValue(t *testing.T, v Value, expected float64) {
	t.Helper()
	if !v.IsFloat() {
		t.Fatalf("value is not float. got=%s (%s)", v.TypeName(), v.Inspect())
	}
	if v.AsFloat() != expected {
		t.Errorf("value has wrong value. got=%g, want=%g", v.AsFloat(), expected)
	}
}

func testBoolValue(t *testing.T, v Value, expected bool) {
	t.Helper()
	if !v.IsBool() {
		t.Fatalf("value is not bool. got=%s (%s)", v.TypeName(), v.Inspect())
	}
	if v.AsBool() != expected {
		t.Errorf("value has wrong value. got=%t, want=%t", v.AsBool(), expected)
	}
}

func testStringValue(t *testing.T, v Value, expected string) {
	t.Helper()
	s, ok := v.AsString()
	if !ok {
		t.Fatalf("value is not string. got=%s (%s)", v.TypeName(), v.Inspect())
	}
	if s != expected {
		t.Errorf("value has wrong value. got=%q, want=%q", s, expected)
	}
}

func TestNumericLiterals(t *testing.T) {
	testIntValue(t, runVM(t, "5"), 5)
	testIntValue(t, runVM(t, "0"), 0)
	testIntValue(t, runVM(t, "123456789"), 123456789)
	testFloatValue(t, runVM(t, "2.5"), 2.5)
	testFloatValue(t, runVM(t, "2.0"), 2.0)
	testFloatValue(t, runVM(t, ".5"), 0.5)
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"1 + 2", 3},
		{"7 / 2", 3.5},
		{"2 * 3 - 1", 5},
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"10 - 2 - 3", 5},
		{"1.5 + 1", 2.5},
		{"-2 * 3", -6},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			testFloatValue(t, runVM(t, tt.input), tt.expected)
		})
	}
}

func TestNegationKeepsKind(t *testing.T) {
	testIntValue(t, runVM(t, "-2"), -2)
	testIntValue(t, runVM(t, "--2"), 2)
	testFloatValue(t, runVM(t, "-2.5"), -2.5)
}

func TestStringConcat(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`"a" + "b"`, "ab"},
		{`"x" + 1`, "x1"},
		{`1 + "x"`, "1x"},
		{`"n=" + 2.5`, "n=2.5"},
		{`"x" + 2 * 3`, "x6"},
		{`"ok: " + true`, "ok: true"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			testStringValue(t, runVM(t, tt.input), tt.expected)
		})
	}
}

func TestEquality(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"2 == 2.0", true},
		{"2 != 2.0", false},
		{"1 == 2", false},
		{"1 != 2", true},
		{`"a" == "a"`, true},
		{`"a" == "b"`, false},
		{`"1" == 1`, false},
		{"true == true", true},
		{"true == 1", false},
		{"1 + 1 == 2", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			testBoolValue(t, runVM(t, tt.input), tt.expected)
		})
	}
}

func TestLogicalOperators(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"true & true", true},
		{"true & false", false},
		{"false & true", false},
		{"false | true", true},
		{"false | false", false},
		{"true | false & false", true},
		{"!true", false},
		{"!(1 == 2)", true},
		{"!false & true", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			testBoolValue(t, runVM(t, tt.input), tt.expected)
		})
	}
}

func TestShortCircuit(t *testing.T) {
	result, out := runVMWithOutput(t, `false & writeline("boom")`, "")
	testBoolValue(t, result, false)
	if out != "" {
		t.Errorf("right side of & ran: %q", out)
	}

	result, out = runVMWithOutput(t, `true | writeline("boom")`, "")
	testBoolValue(t, result, true)
	if out != "" {
		t.Errorf("right side of | ran: %q", out)
	}

	_, out = runVMWithOutput(t, `true & writeline("ran")`, "")
	if out != "ran\n" {
		t.Errorf("right side of & should run, output %q", out)
	}
}

func TestConditionals(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
	}{
		{"then branch", "if (true) { r = 1 } else { r = 2 }\nr", 1},
		{"else branch", "if (false) { r = 1 } else { r = 2 }\nr", 2},
		{"no else", "r = 0\nif (false) { r = 1 }\nr", 0},
		{"no else taken", "r = 0\nif (1 == 1) { r = 1 }\nr", 1},
		{"else if", "x = 2\nif (x == 1) { r = 1 } else if (x == 2) { r = 2 } else { r = 3 }\nr", 2},
		{"else if fallthrough", "x = 9\nif (x == 1) { r = 1 } else if (x == 2) { r = 2 } else { r = 3 }\nr", 3},
		{"nested", "if (true) { if (false) { r = 1 } else { r = 4 } }\nr", 4},
		{"compound condition", "a = 1\nif (a == 1 & a != 2 | false) { r = 5 }\nr", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testIntValue(t, runVM(t, tt.input), tt.expected)
		})
	}
}

func TestFunctionCall(t *testing.T) {
	input := `
function sum(a, b) {
  return a + b
}
sum(2, 3)`
	testFloatValue(t, runVM(t, input), 5)
}

func TestNestedCall(t *testing.T) {
	input := `
function sum(a,b){return a+b}
function test(t){result=sum(t,t*2) return result}
test(10)`
	testFloatValue(t, runVM(t, input), 30)
}

func TestRecursion(t *testing.T) {
	input := `
function fact(n) {
  if (n == 0) { return 1 }
  return n * fact(n - 1)
}
fact(5)`
	testFloatValue(t, runVM(t, input), 120)
}

func TestFunctionResults(t *testing.T) {
	t.Run("bare return", func(t *testing.T) {
		result := runVM(t, "function f() { return }\nf()")
		if !result.IsNil() {
			t.Errorf("expected no result, got %s", result.Inspect())
		}
	})
	t.Run("return stops execution", func(t *testing.T) {
		result, out := runVMWithOutput(t, "function f() { return 1\nwriteline(\"after\") }\nf()", "")
		testIntValue(t, result, 1)
		if out != "" {
			t.Errorf("code after return ran: %q", out)
		}
	})
	t.Run("falls off the end", func(t *testing.T) {
		testIntValue(t, runVM(t, "function f() { 7 }\nf()"), 7)
	})
	t.Run("missing parameter stays undefined", func(t *testing.T) {
		testIntValue(t, runVM(t, "function f(a, b) { return a }\nf(1)"), 1)
	})
	t.Run("function value", func(t *testing.T) {
		testStringValue(t, runVM(t, `function f() {}
"" + f`), "<function f>")
	})
}

func TestClosures(t *testing.T) {
	t.Run("captures by reference", func(t *testing.T) {
		input := `
x = 10
function f() { return x }
x = 20
f()`
		testIntValue(t, runVM(t, input), 20)
	})

	t.Run("outlives its activation", func(t *testing.T) {
		input := `
function make() {
  n = 5
  function get() { return n }
  return get
}
g = make()
g()`
		testIntValue(t, runVM(t, input), 5)
	})

	t.Run("two levels deep", func(t *testing.T) {
		input := `
base = 100
function outer(a) {
  function inner(b) { return base + a + b }
  return inner(2)
}
outer(1)`
		testFloatValue(t, runVM(t, input), 103)
	})

	t.Run("forward reference", func(t *testing.T) {
		input := `
function a() { return b() }
function b() { return 7 }
a()`
		testIntValue(t, runVM(t, input), 7)
	})

	t.Run("assignment is local", func(t *testing.T) {
		input := `
x = 1
function f() {
  x = 2
  return x
}
f()
x`
		testIntValue(t, runVM(t, input), 1)
	})

	t.Run("no access to caller locals", func(t *testing.T) {
		input := `
function show() { return secret }
function caller() {
  secret = 1
  return show()
}
caller()`
		err := runVMExpectError(t, input)
		if !strings.Contains(err, "undefined variable: secret") {
			t.Errorf("unexpected error %q", err)
		}
	})
}

func TestVariableRedeclaration(t *testing.T) {
	prog := compile(t, "x = 1\nx = 2\nx")
	if len(prog.Variables) != 1 {
		t.Errorf("expected one slot, got %v", prog.Variables)
	}
	result, err := New().Run(prog)
	if err != nil {
		t.Fatal(err)
	}
	testIntValue(t, result, 2)
}

func TestConditionalDeclarationDoesNotShiftSlots(t *testing.T) {
	input := `
if (false) { a = 1 }
b = 2
b`
	testIntValue(t, runVM(t, input), 2)
}

func TestClasses(t *testing.T) {
	person := `
class Person {
  this.greeting = "hi"

  function Person(name) {
    this.name = name
  }

  function greet() {
    return this.greeting + " " + this.name
  }
}
`
	t.Run("constructor and method", func(t *testing.T) {
		testStringValue(t, runVM(t, person+`p = Person("ali")
p.greet()`), "hi ali")
	})

	t.Run("instances own their fields", func(t *testing.T) {
		testStringValue(t, runVM(t, person+`a = Person("a")
b = Person("b")
a.greeting = "yo"
a.greeting + b.greeting + a.name + b.name`), "yohiab")
	})

	t.Run("defaults on the class", func(t *testing.T) {
		testStringValue(t, runVM(t, person+"Person.greeting"), "hi")
	})

	t.Run("postfix chain", func(t *testing.T) {
		testStringValue(t, runVM(t, person+`Person("z").greet()`), "hi z")
	})

	t.Run("bound method value", func(t *testing.T) {
		testStringValue(t, runVM(t, person+`g = Person("q").greet
g()`), "hi q")
	})

	t.Run("no constructor", func(t *testing.T) {
		testIntValue(t, runVM(t, "class P { this.x = 1 }\np = P()\np.x"), 1)
	})

	t.Run("initializers run at declaration", func(t *testing.T) {
		input := `
n = 1
class P { this.x = n + 1 }
n = 10
P().x`
		testFloatValue(t, runVM(t, input), 2)
	})

	t.Run("nested property assignment", func(t *testing.T) {
		input := `
class Box { this.inner = 0 }
b = Box()
b.inner = Box()
b.inner.inner = 5
b.inner.inner`
		testIntValue(t, runVM(t, input), 5)
	})

	t.Run("method calls method", func(t *testing.T) {
		input := `
class Counter {
  this.n = 0
  function inc() { this.n = this.n + 1 }
  function twice() {
    this.inc()
    this.inc()
    return this.n
  }
}
c = Counter()
c.inc()
c.twice()`
		testFloatValue(t, runVM(t, input), 3)
	})

	t.Run("inspect", func(t *testing.T) {
		testStringValue(t, runVM(t, person+`"" + Person + " " + Person("x")`), "<class Person> <Person instance>")
	})
}

func TestBuiltins(t *testing.T) {
	t.Run("write", func(t *testing.T) {
		_, out := runVMWithOutput(t, `write("a")
write(1, 2.5)
write(true)
writeline()`, "")
		if out != "a12.5true\n" {
			t.Errorf("output %q", out)
		}
	})

	t.Run("writeline", func(t *testing.T) {
		_, out := runVMWithOutput(t, `writeline("x", 1 + 1, 1 == 1)`, "")
		if out != "x\n2\ntrue\n" {
			t.Errorf("output %q", out)
		}
	})

	t.Run("read and readline", func(t *testing.T) {
		_, out := runVMWithOutput(t, `c = read()
rest = readline()
next = readline()
eof = readline()
writeline(c, rest, next, eof == "")`, "ab\nline two\n")
		if out != "a\nb\nline two\ntrue\n" {
			t.Errorf("output %q", out)
		}
	})

	t.Run("builtins push no result", func(t *testing.T) {
		result, _ := runVMWithOutput(t, `writeline("x")`, "")
		if !result.IsNil() {
			t.Errorf("expected no result, got %s", result.Inspect())
		}
	})
}

// A call to a callable that produces no value pushes nothing, so an
// operand position consumes whatever an earlier expression statement left.
func TestNoValueCallAsOperand(t *testing.T) {
	t.Run("takes leftover value", func(t *testing.T) {
		result, out := runVMWithOutput(t, "5\nx = 1 + write(\"a\")\nx", "")
		testFloatValue(t, result, 6)
		if out != "a" {
			t.Errorf("output %q", out)
		}
	})

	t.Run("underflows on an empty stack", func(t *testing.T) {
		err := runVMError(t, `x = 1 + write("a")`)
		if !errors.Is(err, ErrStackUnderflow) {
			t.Errorf("error %v is not %v", err, ErrStackUnderflow)
		}
	})
}

func TestSampleProgram(t *testing.T) {
	input := `
name = "mahdi"
family = "khalilzadeh"
fullname = name + " " + family
writeline(fullname, fullname == "mahdi khalilzadeh")

function sum(a,b) {
  return a + b
}

function test(t) {
  result = sum(t, t * 2)
  writeline(result)
  return result
}

writeline(test(10))
`
	_, out := runVMWithOutput(t, input, "")
	want := "mahdi khalilzadeh\ntrue\n30\n30\n"
	if out != want {
		t.Errorf("output %q, want %q", out, want)
	}
}

func TestCallFromHost(t *testing.T) {
	prog := compile(t, "function twice(x) { return x * 2 }\ntwice")
	machine := New()
	fn, err := machine.Run(prog)
	if err != nil {
		t.Fatal(err)
	}
	result, err := machine.Call(fn, IntVal(21))
	if err != nil {
		t.Fatal(err)
	}
	testFloatValue(t, result, 42)
}

func TestHostGlobals(t *testing.T) {
	prog := compile(t, `function scaled() { return base * 2 }
answer = scaled()
base = 100`)

	machine := New()
	machine.SetGlobal("base", IntVal(21))
	machine.SetGlobal("unused", StringVal("x"))
	if _, err := machine.Run(prog); err != nil {
		t.Fatal(err)
	}

	answer, ok := machine.Global("answer")
	if !ok {
		t.Fatal("answer not defined")
	}
	testFloatValue(t, answer, 42)

	base, _ := machine.Global("base")
	testIntValue(t, base, 100)

	unused, ok := machine.Global("unused")
	if !ok {
		t.Fatal("host global should still be readable")
	}
	testStringValue(t, unused, "x")

	if _, ok := machine.Global("nope"); ok {
		t.Error("unknown name should not resolve")
	}
}
