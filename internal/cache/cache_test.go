package cache

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/funvibe/alla/internal/lexer"
	"github.com/funvibe/alla/internal/vm"
)

func openTemp(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "nested", "cache.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func compile(t *testing.T, source string) *vm.Program {
	t.Helper()
	tokens, err := lexer.Tokenize(source)
	if err != nil {
		t.Fatal(err)
	}
	prog, err := vm.NewCompiler(tokens).Compile()
	if err != nil {
		t.Fatal(err)
	}
	return prog
}

func TestKey(t *testing.T) {
	a := Key("x = 1")
	if len(a) != 64 {
		t.Errorf("key should be hex sha256, got %q", a)
	}
	if a != Key("x = 1") {
		t.Error("key is not stable")
	}
	if a == Key("x = 2") {
		t.Error("different sources share a key")
	}
}

func TestGetMiss(t *testing.T) {
	c := openTemp(t)
	if _, err := c.Get(Key("nothing")); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss, got %v", err)
	}
}

func TestPutGet(t *testing.T) {
	c := openTemp(t)
	source := `function double(x) { return x * 2 }
writeline(double(21))`
	key := Key(source)
	prog := compile(t, source)

	if err := c.Put(key, prog); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := c.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got.Code, prog.Code) {
		t.Error("cached code differs")
	}

	var out bytes.Buffer
	machine := vm.New()
	machine.SetOutput(&out)
	if _, err := machine.Run(got); err != nil {
		t.Fatal(err)
	}
	if out.String() != "42\n" {
		t.Errorf("output %q", out.String())
	}
}

func TestPutReplaces(t *testing.T) {
	c := openTemp(t)
	key := Key("k")
	if err := c.Put(key, compile(t, "1")); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(key, compile(t, "1 + 1")); err != nil {
		t.Fatal(err)
	}
	n, err := c.Len()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 row, got %d", n)
	}
	got, err := c.Get(key)
	if err != nil {
		t.Fatal(err)
	}
	if got.InstructionCount() != 4 {
		t.Errorf("expected the replacement program, got %d instructions", got.InstructionCount())
	}
}

func TestPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Put(Key("x"), compile(t, "x = 1")); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	c, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if _, err := c.Get(Key("x")); err != nil {
		t.Errorf("entry lost after reopen: %v", err)
	}
	if c.Path() != path {
		t.Errorf("Path() = %q", c.Path())
	}
}

func TestClear(t *testing.T) {
	c := openTemp(t)
	for _, src := range []string{"1", "2", "3"} {
		if err := c.Put(Key(src), compile(t, src)); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Clear(); err != nil {
		t.Fatal(err)
	}
	if n, _ := c.Len(); n != 0 {
		t.Errorf("expected empty cache, got %d", n)
	}
}
