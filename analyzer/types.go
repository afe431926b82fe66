// Copyright (C) 2026 Atlasview (dev@atlasview.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package analyzer extracts method definitions and call sites from raw
// source text in Ruby, JavaScript, TypeScript/TSX, and ERB templates.
//
// Each language has its own analyzer behind a common contract. Analyzers are
// heuristic and partial-syntax tolerant: a malformed region of a file must
// never discard the definitions found before it. The package produces the
// flat Method/MethodCall model consumed by the graph package.
package analyzer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Resource ceilings shared by all analyzers.
const (
	// DefaultMaxFileSize is the maximum content size an analyzer accepts (1MB).
	// Larger files degrade to the cheapest available path instead of failing.
	DefaultMaxFileSize = 1 * 1024 * 1024

	// WarnFileSize is the size above which a warning is logged (256KB).
	WarnFileSize = 256 * 1024

	// DefaultMaxLineCount is the maximum number of lines an analyzer scans.
	DefaultMaxLineCount = 50_000

	// MaxCallSitesPerMethod caps call extraction per method body to prevent
	// memory exhaustion on generated code.
	MaxCallSitesPerMethod = 1000

	// MaxCallExpressionDepth is the maximum AST nesting depth walked during
	// call extraction.
	MaxCallExpressionDepth = 50
)

// Language identifies a supported source language.
//
// The set is closed: dispatch happens on this enum, never on the raw
// language tag supplied by the upstream splitter.
type Language int

const (
	// LanguageUnknown is the zero value for unrecognized language tags.
	LanguageUnknown Language = iota

	// LanguageRuby covers .rb sources.
	LanguageRuby

	// LanguageJavaScript covers .js/.jsx sources.
	LanguageJavaScript

	// LanguageTypeScript covers .ts/.tsx sources.
	LanguageTypeScript

	// LanguageERB covers embedded-Ruby templates (.erb).
	LanguageERB
)

// String returns the canonical lowercase name of the language.
func (l Language) String() string {
	switch l {
	case LanguageRuby:
		return "ruby"
	case LanguageJavaScript:
		return "javascript"
	case LanguageTypeScript:
		return "typescript"
	case LanguageERB:
		return "erb"
	default:
		return "unknown"
	}
}

// ParseLanguage maps an upstream language tag to a Language.
//
// Recognized tags (case-insensitive): "ruby", "rb", "javascript", "js",
// "jsx", "typescript", "ts", "tsx", "erb", "eruby". Anything else maps to
// LanguageUnknown.
func ParseLanguage(tag string) Language {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "ruby", "rb":
		return LanguageRuby
	case "javascript", "js", "jsx":
		return LanguageJavaScript
	case "typescript", "ts", "tsx":
		return LanguageTypeScript
	case "erb", "eruby":
		return LanguageERB
	default:
		return LanguageUnknown
	}
}

// ParsedFile is one source file as delivered by the upstream text splitter.
//
// ParsedFile is immutable: analyzers read it and never modify it.
type ParsedFile struct {
	// Path is the file path relative to the project root, forward slashes.
	Path string `json:"path"`

	// Language is the detected source language.
	Language Language `json:"language"`

	// Content is the raw file text.
	Content string `json:"content"`

	// Directory is the containing directory of Path.
	Directory string `json:"directory"`

	// FileName is the base name of Path.
	FileName string `json:"file_name"`

	// TotalLines is the number of lines in Content.
	TotalLines int `json:"total_lines"`
}

// MethodKind classifies an extracted Method.
type MethodKind string

// Method kinds produced by the analyzers.
const (
	KindFunction        MethodKind = "function"
	KindMethod          MethodKind = "method"
	KindClassMethod     MethodKind = "class_method"
	KindInterfaceMethod MethodKind = "interface_method"
	KindTypeAlias       MethodKind = "type_alias"
	KindEnum            MethodKind = "enum"
	KindComponent       MethodKind = "component"
	KindCustomHook      MethodKind = "custom_hook"
	KindImport          MethodKind = "import"
	KindImportUsage     MethodKind = "import_usage"
	KindExport          MethodKind = "export"
	KindERBCall         MethodKind = "erb_call"
)

// IsDefinition reports whether methods of this kind can be offered as call
// resolution targets. Import bookkeeping pseudo-methods and type-only kinds
// are not definitions.
func (k MethodKind) IsDefinition() bool {
	switch k {
	case KindFunction, KindMethod, KindClassMethod, KindComponent, KindCustomHook:
		return true
	default:
		return false
	}
}

// MethodCall is one occurrence of a name being invoked inside a Method body.
type MethodCall struct {
	// Name is the invoked method name.
	Name string `json:"method_name"`

	// Line is the 1-based line number of the call site.
	Line int `json:"line"`

	// Column is the 0-based column of the call, or 0 when unknown.
	Column int `json:"column,omitempty"`

	// Context is the trimmed source line containing the call.
	Context string `json:"context,omitempty"`

	// ResolvedPath is the file path of the resolved definition, when known.
	// Graph extraction records resolution on dependency edges rather than
	// writing here, so results shared through the cache stay immutable.
	ResolvedPath string `json:"resolved_path,omitempty"`
}

// Method is a named callable (or call-carrying) unit extracted from source.
//
// A Method is created once per analysis pass and never mutated in place,
// which keeps identical inputs producing byte-identical outputs.
type Method struct {
	// Name is the declared name, e.g. "validate" or "UserCard".
	Name string `json:"name"`

	// Kind classifies the method.
	Kind MethodKind `json:"kind"`

	// StartLine and EndLine delimit the definition, 1-based inclusive.
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`

	// FilePath is the path of the defining file.
	FilePath string `json:"file_path"`

	// Source is the snippet of the definition body.
	Source string `json:"source,omitempty"`

	// Calls holds the call sites found inside the body, in source order.
	Calls []MethodCall `json:"calls"`

	// IsPrivate marks Ruby methods following a private section marker.
	IsPrivate bool `json:"is_private,omitempty"`

	// Parameters are the declared parameter names, defaults stripped.
	Parameters []string `json:"parameters,omitempty"`

	// IsExcluded marks names suppressed by the exclusion policy. Excluded
	// methods still resolve as callees but are not jump-to-definition targets.
	IsExcluded bool `json:"is_excluded,omitempty"`

	// ImportSource is the line of the owning import statement for
	// import_usage pseudo-methods, 0 otherwise.
	ImportSource int `json:"import_source,omitempty"`
}

// ErrorType categorizes an AnalysisError.
type ErrorType string

// Analysis error taxonomy.
const (
	// ErrorTypeSyntax marks AST parse failures.
	ErrorTypeSyntax ErrorType = "syntax"

	// ErrorTypeExtraction marks constructs that could not be converted to a Method.
	ErrorTypeExtraction ErrorType = "extraction"

	// ErrorTypeValidation marks unsupported languages and oversized input.
	ErrorTypeValidation ErrorType = "validation"

	// ErrorTypeRuntime marks unexpected analyzer failures caught at the
	// registry boundary.
	ErrorTypeRuntime ErrorType = "runtime"
)

// AnalysisError is one recoverable failure raised during analysis.
type AnalysisError struct {
	// Message is the human-readable description.
	Message string `json:"message"`

	// Type is the error category.
	Type ErrorType `json:"type"`

	// Severity is "error" or "warning".
	Severity string `json:"severity"`

	// Line is the 1-based line the error refers to, 0 when not line-bound.
	Line int `json:"line,omitempty"`
}

// Metadata describes one analyzer run.
type Metadata struct {
	// Language is the analyzed language.
	Language string `json:"language"`

	// FilePath is the analyzed file.
	FilePath string `json:"file_path"`

	// LineCount is the number of lines scanned.
	LineCount int `json:"line_count"`

	// DurationMicro is the wall-clock analysis time in microseconds.
	DurationMicro int64 `json:"duration_micro"`

	// AnalyzedAtMilli is the Unix timestamp in milliseconds of the run.
	AnalyzedAtMilli int64 `json:"analyzed_at_milli"`

	// CacheHit is true when the result was served from the analysis cache.
	CacheHit bool `json:"cache_hit,omitempty"`

	// Fallback is true when the AST path failed and the regex path produced
	// this result instead.
	Fallback bool `json:"fallback,omitempty"`
}

// Result is the structured outcome of analyzing one file.
//
// Result is always populated: failures surface as Errors entries next to
// whatever Methods were recovered, never as a bare Go error past the registry.
type Result struct {
	// Methods are the extracted methods in source order.
	Methods []*Method `json:"methods"`

	// Errors are the recoverable failures encountered.
	Errors []AnalysisError `json:"errors"`

	// Metadata describes the run.
	Metadata Metadata `json:"metadata"`
}

// Validate checks internal consistency of the result.
//
// Outputs:
//   - error: Non-nil when a method has an empty name, a non-positive start
//     line, or an end line before its start line.
func (r *Result) Validate() error {
	for i, m := range r.Methods {
		if m == nil {
			return fmt.Errorf("method[%d] is nil", i)
		}
		if m.Name == "" {
			return fmt.Errorf("method[%d] has empty name", i)
		}
		if m.StartLine < 1 {
			return fmt.Errorf("method %q has start line %d", m.Name, m.StartLine)
		}
		if m.EndLine < m.StartLine {
			return fmt.Errorf("method %q ends at %d before start %d", m.Name, m.EndLine, m.StartLine)
		}
	}
	return nil
}

// DefinedMethodSet is the run-scoped set of names considered real
// definitions. It is built once per batch (pass 1) and consulted by call
// extraction to reject variable references masquerading as calls.
type DefinedMethodSet struct {
	names map[string]struct{}
}

// NewDefinedMethodSet creates an empty set, optionally seeded with names.
func NewDefinedMethodSet(names ...string) *DefinedMethodSet {
	s := &DefinedMethodSet{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add inserts a name. Empty names are ignored.
func (s *DefinedMethodSet) Add(name string) {
	if name == "" {
		return
	}
	s.names[name] = struct{}{}
}

// Has reports whether name is in the set. Safe on a nil receiver.
func (s *DefinedMethodSet) Has(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.names[name]
	return ok
}

// Merge adds every name from other into s. Safe when other is nil.
func (s *DefinedMethodSet) Merge(other *DefinedMethodSet) {
	if other == nil {
		return
	}
	for n := range other.names {
		s.names[n] = struct{}{}
	}
}

// Len returns the number of names in the set. Safe on a nil receiver.
func (s *DefinedMethodSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Names returns the sorted name list. Safe on a nil receiver.
func (s *DefinedMethodSet) Names() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Hash returns a deterministic SHA-256 digest of the sorted names, used for
// cache keying. Safe on a nil receiver (returns the empty-set digest).
func (s *DefinedMethodSet) Hash() string {
	h := sha256.New()
	for _, n := range s.Names() {
		h.Write([]byte(n))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
