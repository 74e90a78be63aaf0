// Package profile defines language profiles used by the sandbox.
package profile

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind selects how a language is prepared and launched.
type Kind string

const (
	// KindInterpreted runs the source file directly through an interpreter.
	KindInterpreted Kind = "interpreted"
	// KindEntryPoint compiles to bytecode whose entry class name is fixed.
	KindEntryPoint Kind = "entry_point"
	// KindNative compiles to a standalone executable.
	KindNative Kind = "native"
)

// Placeholders understood by SourceFile, BinaryFile and the command templates.
const (
	PlaceholderID    = "{id}"
	PlaceholderSrc   = "{src}"
	PlaceholderBin   = "{bin}"
	PlaceholderDir   = "{dir}"
	PlaceholderEntry = "{entry}"
)

// LanguageSpec defines how to compile and run a language.
type LanguageSpec struct {
	ID            string   `yaml:"id" json:"id"`
	Name          string   `yaml:"name" json:"name"`
	Kind          Kind     `yaml:"kind" json:"kind"`
	SourceFile    string   `yaml:"sourceFile" json:"source_file"`
	BinaryFile    string   `yaml:"binaryFile" json:"binary_file,omitempty"`
	EntryPoint    string   `yaml:"entryPoint" json:"entry_point,omitempty"`
	CompileCmdTpl string   `yaml:"compileCmd" json:"-"`
	RunCmdTpl     string   `yaml:"runCmd" json:"-"`
	Env           []string `yaml:"env" json:"-"`
}

// CompileEnabled reports whether the language has a compile phase.
func (l LanguageSpec) CompileEnabled() bool {
	return l.Kind == KindEntryPoint || l.Kind == KindNative
}

// Validate checks that the spec is complete for its kind.
func (l LanguageSpec) Validate() error {
	if strings.TrimSpace(l.ID) == "" {
		return fmt.Errorf("language id is required")
	}
	if l.SourceFile == "" {
		return fmt.Errorf("language %s: source file is required", l.ID)
	}
	if strings.TrimSpace(l.RunCmdTpl) == "" {
		return fmt.Errorf("language %s: run command is required", l.ID)
	}
	switch l.Kind {
	case KindInterpreted:
	case KindEntryPoint:
		if l.EntryPoint == "" {
			return fmt.Errorf("language %s: entry point is required", l.ID)
		}
		fallthrough
	case KindNative:
		if strings.TrimSpace(l.CompileCmdTpl) == "" {
			return fmt.Errorf("language %s: compile command is required", l.ID)
		}
		if l.BinaryFile == "" {
			return fmt.Errorf("language %s: binary file is required", l.ID)
		}
	default:
		return fmt.Errorf("language %s: unknown kind %q", l.ID, l.Kind)
	}
	return nil
}

// FileName expands a file name template for one sandbox.
func (l LanguageSpec) FileName(tpl, sandboxID string) string {
	name := strings.ReplaceAll(tpl, PlaceholderID, sandboxID)
	return strings.ReplaceAll(name, PlaceholderEntry, l.EntryPoint)
}

// DeclaresEntryPoint reports whether code defines the fixed entry class.
// Languages without a fixed entry point always pass.
func (l LanguageSpec) DeclaresEntryPoint(code string) bool {
	if l.Kind != KindEntryPoint || l.EntryPoint == "" {
		return true
	}
	pattern := `\bclass\s+` + regexp.QuoteMeta(l.EntryPoint) + `\b`
	matched, err := regexp.MatchString(pattern, code)
	return err == nil && matched
}
