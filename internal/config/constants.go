package config

import "strings"

const SourceFileExt = ".alla"

// BytecodeFileExt is the extension of compiled bundles written by `alla -c`.
const BytecodeFileExt = ".allac"

// SourceFileExtensions are all recognized source file extensions
var SourceFileExtensions = []string{".alla", ".al"}

// SettingsFileNames are searched in order by FindAndLoad.
var SettingsFileNames = []string{"alla.yaml", "alla.yml", "alla.toml"}

// Built-in function names
const (
	WriteFuncName     = "write"
	WriteLineFuncName = "writeline"
	ReadFuncName      = "read"
	ReadLineFuncName  = "readline"
)

// ThisName is the implicit receiver parameter of class methods.
const ThisName = "this"

// ScriptName labels top-level code in traces and disassembly.
const ScriptName = "<script>"

// DefaultMaxCallDepth bounds nested VM activations.
const DefaultMaxCallDepth = 1024

// IsBuiltinName reports whether name is one of the host I/O primitives.
func IsBuiltinName(name string) bool {
	switch name {
	case WriteFuncName, WriteLineFuncName, ReadFuncName, ReadLineFuncName:
		return true
	}
	return false
}

// TrimSourceExt removes a recognized source extension from path.
func TrimSourceExt(path string) string {
	for _, ext := range SourceFileExtensions {
		if strings.HasSuffix(path, ext) {
			return strings.TrimSuffix(path, ext)
		}
	}
	return path
}

// IsSourceFile checks if a file has a recognized source extension
func IsSourceFile(path string) bool {
	for _, ext := range SourceFileExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}
