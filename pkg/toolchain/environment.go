// Package toolchain builds the process environment native build tools run
// with, and installs pinned compilers and SDKs on demand.
package toolchain

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Compiler selects the C/C++ compiler and linker
type Compiler struct {
	CC   string
	CXX  string
	LINK string
}

// DefaultCompiler is the compiler every build starts from
var DefaultCompiler = Compiler{CC: "gcc", CXX: "g++", LINK: "g++"}

// ClangCompiler points at the clang binaries of an installed LLVM toolchain
func ClangCompiler(dir string) Compiler {
	return Compiler{
		CC:   filepath.Join(dir, "bin", "clang"),
		CXX:  filepath.Join(dir, "bin", "clang++"),
		LINK: filepath.Join(dir, "bin", "clang++"),
	}
}

// Builder accumulates environment changes for one orchestration run. It
// never touches the host environment; Environment takes a snapshot.
type Builder struct {
	vars  map[string]string
	flags []string
}

// NewBuilder seeds a builder from the host environment and the default compiler
func NewBuilder() *Builder {
	return NewBuilderFrom(os.Environ())
}

// NewBuilderFrom seeds a builder from a KEY=VALUE list and the default compiler
func NewBuilderFrom(base []string) *Builder {
	b := &Builder{vars: make(map[string]string, len(base)+3)}
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			b.vars[k] = v
		}
	}
	return b.UseCompiler(DefaultCompiler)
}

// Set overrides one variable
func (b *Builder) Set(name, value string) *Builder {
	b.vars[name] = value
	return b
}

// Unset removes variables; absent names are ignored
func (b *Builder) Unset(names ...string) *Builder {
	for _, name := range names {
		delete(b.vars, name)
	}
	return b
}

// UseCompiler replaces CC, CXX and LINK
func (b *Builder) UseCompiler(c Compiler) *Builder {
	return b.Set("CC", c.CC).Set("CXX", c.CXX).Set("LINK", c.LINK)
}

// AddCompilerFlag appends flags that are added to CC and CXX when a snapshot is taken
func (b *Builder) AddCompilerFlag(flags ...string) *Builder {
	b.flags = append(b.flags, flags...)
	return b
}

// PrependPath puts dir first on PATH
func (b *Builder) PrependPath(dir string) *Builder {
	if cur, ok := b.vars["PATH"]; ok && cur != "" {
		b.vars["PATH"] = dir + string(os.PathListSeparator) + cur
	} else {
		b.vars["PATH"] = dir
	}
	return b
}

// Lookup returns the raw value of a variable, without compiler flags
func (b *Builder) Lookup(name string) (string, bool) {
	v, ok := b.vars[name]
	return v, ok
}

// Environment materializes an immutable snapshot. Compiler flags are joined
// with single spaces and appended to CC and CXX in the snapshot only, so
// repeated snapshots never accumulate them.
func (b *Builder) Environment() Environment {
	vars := make(map[string]string, len(b.vars))
	for k, v := range b.vars {
		vars[k] = v
	}
	if len(b.flags) > 0 {
		extra := strings.Join(b.flags, " ")
		for _, name := range []string{"CC", "CXX"} {
			if v, ok := vars[name]; ok {
				vars[name] = v + " " + extra
			}
		}
	}
	return Environment{vars: vars}
}

// Environment is a read-only set of variables passed to every spawned process
type Environment struct {
	vars map[string]string
}

// Lookup returns a variable and whether it is set
func (e Environment) Lookup(name string) (string, bool) {
	v, ok := e.vars[name]
	return v, ok
}

// Get returns a variable or the empty string
func (e Environment) Get(name string) string {
	return e.vars[name]
}

// Len returns the number of variables
func (e Environment) Len() int {
	return len(e.vars)
}

// Environ renders the snapshot as sorted KEY=VALUE pairs, a fresh slice per call
func (e Environment) Environ() []string {
	keys := make([]string, 0, len(e.vars))
	for k := range e.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, len(keys))
	for i, k := range keys {
		env[i] = k + "=" + e.vars[k]
	}
	return env
}
