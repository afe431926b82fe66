// Copyright (C) 2026 Atlasview (dev@atlasview.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// JavaScript declaration patterns. These run over comment/string-stripped
// lines so braces and keywords inside literals never confuse the scan.
var (
	// jsFunctionDeclRe matches plain and exported function declarations,
	// including async and generator forms.
	jsFunctionDeclRe = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*([A-Za-z_$][\w$]*)\s*\(([^)]*)`)

	// jsArrowBindingRe matches "const name = (args) =>" and the single-
	// parameter form "const name = arg =>".
	jsArrowBindingRe = regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*(?:async\s+)?(?:\(([^)]*)\)|([A-Za-z_$][\w$]*))\s*=>`)

	// jsHookWrappedRe matches hook-wrapped bindings like
	// "const handler = useCallback((e) => {...}, [deps])".
	jsHookWrappedRe = regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*(use[A-Z]\w*)\s*\(`)

	// jsClassRe matches class declarations.
	jsClassRe = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+([A-Za-z_$][\w$]*)`)

	// jsClassMethodRe matches class methods with optional access modifiers.
	// The opening brace requirement separates methods from bare calls.
	jsClassMethodRe = regexp.MustCompile(`^\s*((?:(?:public|private|protected|static|async|override|readonly)\s+)*)(?:get\s+|set\s+)?\*?\s*([A-Za-z_$#][\w$]*)\s*\(([^)]*)\)\s*\{`)

	// jsObjectMethodRe matches object-literal methods in both function and
	// arrow form: "name: function (args)" and "name: (args) =>".
	jsObjectMethodRe = regexp.MustCompile(`^\s*([A-Za-z_$][\w$]*)\s*:\s*(?:async\s+)?(?:function\s*\*?\s*\(([^)]*)\)|\(([^)]*)\)\s*=>)`)

	// jsDotCallRe matches ".name(" and "?.name(" call shapes.
	jsDotCallRe = regexp.MustCompile(`\??\.\s*([A-Za-z_$][\w$]*)\s*\(`)

	// jsBareCallRe matches bare "name(" call shapes.
	jsBareCallRe = regexp.MustCompile(`(^|[^.\w$])([A-Za-z_$][\w$]*)\s*\(`)
)

// jsKeywords are names that look like calls but never are.
var jsKeywords = map[string]struct{}{
	"if": {}, "else": {}, "for": {}, "while": {}, "do": {}, "switch": {},
	"case": {}, "catch": {}, "try": {}, "finally": {}, "function": {},
	"return": {}, "new": {}, "delete": {}, "typeof": {}, "instanceof": {},
	"in": {}, "of": {}, "void": {}, "throw": {}, "await": {}, "async": {},
	"yield": {}, "import": {}, "export": {}, "super": {}, "this": {},
	"class": {}, "extends": {}, "require": {}, "constructor": {},
}

// jsControlNames are additionally rejected as class-method names, since a
// control statement with a block looks identical to a method declaration.
var jsControlNames = map[string]struct{}{
	"if": {}, "for": {}, "while": {}, "switch": {}, "catch": {},
	"function": {}, "return": {}, "else": {}, "do": {}, "try": {},
}

// JavaScriptAnalyzerOption configures a JavaScriptAnalyzer instance.
type JavaScriptAnalyzerOption func(*JavaScriptAnalyzer)

// WithJavaScriptMaxFileSize sets the maximum content size the analyzer accepts.
func WithJavaScriptMaxFileSize(bytes int64) JavaScriptAnalyzerOption {
	return func(a *JavaScriptAnalyzer) {
		if bytes > 0 {
			a.maxFileSize = bytes
		}
	}
}

// WithJavaScriptExclusionPolicy sets the definition exclusion policy.
func WithJavaScriptExclusionPolicy(p *ExclusionPolicy) JavaScriptAnalyzerOption {
	return func(a *JavaScriptAnalyzer) {
		a.policy = p
	}
}

// JavaScriptAnalyzer extracts methods and call sites from JavaScript source
// using regex heuristics over stripped lines. It also serves as the fallback
// path when the TypeScript AST analyzer cannot parse a file.
//
// Thread Safety: stateless per call, safe for concurrent use.
type JavaScriptAnalyzer struct {
	maxFileSize int64
	maxLines    int
	policy      *ExclusionPolicy
}

// NewJavaScriptAnalyzer creates a JavaScriptAnalyzer with the given options.
func NewJavaScriptAnalyzer(opts ...JavaScriptAnalyzerOption) *JavaScriptAnalyzer {
	a := &JavaScriptAnalyzer{
		maxFileSize: DefaultMaxFileSize,
		maxLines:    DefaultMaxLineCount,
		policy:      DefaultExclusionPolicy(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Language returns LanguageJavaScript.
func (a *JavaScriptAnalyzer) Language() Language { return LanguageJavaScript }

// Supports reports whether lang is JavaScript.
func (a *JavaScriptAnalyzer) Supports(lang Language) bool { return lang == LanguageJavaScript }

// Analyze extracts function-like declarations, imports, and call sites.
//
// Description:
//
//	Strips comments and string literals, scans for the four declaration
//	shapes (function declarations, arrow bindings including hook-wrapped
//	forms, class methods, object-literal methods), delimits bodies by
//	brace-depth counting, and extracts calls per body against the combined
//	DefinedMethodSet. Import statements produce the bidirectional
//	import/import_usage model.
func (a *JavaScriptAnalyzer) Analyze(ctx context.Context, file *ParsedFile, defined *DefinedMethodSet) (*Result, error) {
	ctx, span := startAnalyzeSpan(ctx, "javascript", file.Path, len(file.Content))
	defer span.End()
	start := time.Now()

	if err := a.validate(file); err != nil {
		return nil, err
	}

	lines := strings.Split(file.Content, "\n")
	stripped := stripCommentsAndStrings(lines)

	methods := a.extractMethods(lines, stripped, file.Path)
	imports := extractImportMethods(lines, stripped, file.Path)

	combined := NewDefinedMethodSet()
	for _, m := range methods {
		combined.Add(m.Name)
	}
	combined.Merge(defined)

	for _, m := range methods {
		m.Calls = a.extractCalls(lines, stripped, m.StartLine, m.EndLine, combined)
	}
	methods = append(methods, imports...)
	a.policy.Apply(methods)

	result := &Result{
		Methods: methods,
		Errors:  make([]AnalysisError, 0),
		Metadata: Metadata{
			Language:        "javascript",
			FilePath:        file.Path,
			LineCount:       len(lines),
			DurationMicro:   time.Since(start).Microseconds(),
			AnalyzedAtMilli: start.UnixMilli(),
		},
	}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("result validation failed: %w", err)
	}

	setAnalyzeSpanResult(span, len(result.Methods), len(result.Errors), false)
	recordAnalyzeMetrics(ctx, "javascript", time.Since(start), len(result.Methods), len(result.Errors))
	return result, nil
}

// validate enforces the per-file ceilings.
func (a *JavaScriptAnalyzer) validate(file *ParsedFile) error {
	if int64(len(file.Content)) > a.maxFileSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(file.Content), a.maxFileSize)
	}
	if !utf8.ValidString(file.Content) {
		return ErrInvalidContent
	}
	if n := strings.Count(file.Content, "\n") + 1; n > a.maxLines {
		return fmt.Errorf("%w: %d lines exceeds limit %d", ErrTooManyLines, n, a.maxLines)
	}
	return nil
}

// classRange is one class body span, used to classify methods found inside.
type classRange struct {
	name       string
	start, end int // 1-based inclusive
}

// extractMethods scans stripped lines for the declaration shapes.
func (a *JavaScriptAnalyzer) extractMethods(lines, stripped []string, filePath string) []*Method {
	methods := make([]*Method, 0, 8)
	classes := a.findClassRanges(stripped)

	for i := 0; i < len(stripped); i++ {
		line := stripped[i]

		if m := jsFunctionDeclRe.FindStringSubmatch(line); m != nil {
			end := findBraceEnd(stripped, i)
			methods = append(methods, a.newMethod(m[1], classifyFunction(m[1]), lines, i+1, end, filePath, m[2], false))
			continue
		}

		if m := jsHookWrappedRe.FindStringSubmatch(line); m != nil {
			end := findBraceEnd(stripped, i)
			methods = append(methods, a.newMethod(m[1], KindFunction, lines, i+1, end, filePath, "", false))
			continue
		}

		if m := jsArrowBindingRe.FindStringSubmatch(line); m != nil {
			params := m[2]
			if params == "" {
				params = m[3]
			}
			end := findBraceEnd(stripped, i)
			methods = append(methods, a.newMethod(m[1], classifyFunction(m[1]), lines, i+1, end, filePath, params, false))
			continue
		}

		if cls := enclosingClass(classes, i+1); cls != nil {
			if m := jsClassMethodRe.FindStringSubmatch(line); m != nil {
				name := m[2]
				if _, ctl := jsControlNames[name]; ctl {
					continue
				}
				kind := KindMethod
				if strings.Contains(m[1], "static") {
					kind = KindClassMethod
				}
				private := strings.Contains(m[1], "private") || strings.HasPrefix(name, "#")
				end := findBraceEnd(stripped, i)
				methods = append(methods, a.newMethod(strings.TrimPrefix(name, "#"), kind, lines, i+1, end, filePath, m[3], private))
			}
			continue
		}

		if m := jsObjectMethodRe.FindStringSubmatch(line); m != nil {
			params := m[2]
			if params == "" {
				params = m[3]
			}
			end := findBraceEnd(stripped, i)
			methods = append(methods, a.newMethod(m[1], KindMethod, lines, i+1, end, filePath, params, false))
		}
	}

	return methods
}

// newMethod assembles one Method value from a declaration match.
func (a *JavaScriptAnalyzer) newMethod(name string, kind MethodKind, lines []string, startLine, endLine int, filePath, rawParams string, private bool) *Method {
	if endLine < startLine {
		endLine = startLine
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}
	return &Method{
		Name:       name,
		Kind:       kind,
		StartLine:  startLine,
		EndLine:    endLine,
		FilePath:   filePath,
		Source:     strings.Join(lines[startLine-1:endLine], "\n"),
		Calls:      make([]MethodCall, 0),
		IsPrivate:  private,
		Parameters: parseParameters(rawParams),
	}
}

// findClassRanges locates class bodies so methods inside them are classified
// as method/class_method rather than free functions.
func (a *JavaScriptAnalyzer) findClassRanges(stripped []string) []classRange {
	ranges := make([]classRange, 0, 2)
	for i, line := range stripped {
		if m := jsClassRe.FindStringSubmatch(line); m != nil {
			ranges = append(ranges, classRange{
				name:  m[1],
				start: i + 1,
				end:   findBraceEnd(stripped, i),
			})
		}
	}
	return ranges
}

// enclosingClass returns the innermost class containing the 1-based line, or
// nil. The class declaration line itself does not count as inside.
func enclosingClass(classes []classRange, line int) *classRange {
	for i := len(classes) - 1; i >= 0; i-- {
		if line > classes[i].start && line <= classes[i].end {
			return &classes[i]
		}
	}
	return nil
}

// findBraceEnd returns the 1-based line where the brace block opened at
// startIdx closes, found by depth counting over stripped lines. Declarations
// with no braces (one-line arrows) end on their own line. Unterminated
// blocks run to end of file, the defensive bound for malformed input.
func findBraceEnd(stripped []string, startIdx int) int {
	depth := 0
	opened := false
	for i := startIdx; i < len(stripped); i++ {
		for _, r := range stripped[i] {
			switch r {
			case '{':
				depth++
				opened = true
			case '}':
				depth--
			}
		}
		if opened && depth <= 0 {
			return i + 1
		}
		if !opened && i == startIdx && !strings.Contains(stripped[i], "{") {
			// Braceless one-liner: "const f = x => x * 2".
			return startIdx + 1
		}
	}
	return len(stripped)
}

// extractCalls finds call sites in one body, matching ".name(", "?.name(",
// and bare "name(" against the combined DefinedMethodSet. The declaration
// line is scanned too, with the declaration match masked out, so one-line
// bodies ("const twice = n => double(n)") contribute their calls without
// the declaration counting as a self-call.
func (a *JavaScriptAnalyzer) extractCalls(lines, stripped []string, startLine, endLine int, defined *DefinedMethodSet) []MethodCall {
	calls := make([]MethodCall, 0, 4)

	for ln := startLine - 1; ln < endLine; ln++ {
		if ln < 0 || ln >= len(stripped) {
			continue
		}
		line := stripped[ln]
		if ln == startLine-1 {
			line = maskDeclaration(line)
		}
		if len(calls) >= MaxCallSitesPerMethod {
			slog.Warn("max call sites per method reached",
				slog.Int("line", ln+1),
				slog.Int("limit", MaxCallSitesPerMethod))
			break
		}

		seen := make(map[string]struct{}, 4)
		record := func(name string, col int) {
			if _, dup := seen[name]; dup {
				return
			}
			if _, kw := jsKeywords[name]; kw {
				return
			}
			if !defined.Has(name) {
				return
			}
			seen[name] = struct{}{}
			calls = append(calls, MethodCall{
				Name:    name,
				Line:    ln + 1,
				Column:  col,
				Context: strings.TrimSpace(lineAt(lines, ln)),
			})
		}

		for _, m := range jsDotCallRe.FindAllStringSubmatchIndex(line, -1) {
			record(line[m[2]:m[3]], m[2])
		}
		for _, m := range jsBareCallRe.FindAllStringSubmatchIndex(line, -1) {
			record(line[m[4]:m[5]], m[4])
		}
	}

	return calls
}

// maskDeclaration blanks the declaration match at the start of a method's
// first line, preserving length so column offsets survive.
func maskDeclaration(line string) string {
	end := 0
	for _, re := range []*regexp.Regexp{
		jsFunctionDeclRe, jsHookWrappedRe, jsArrowBindingRe,
		jsClassMethodRe, jsObjectMethodRe,
	} {
		if loc := re.FindStringIndex(line); loc != nil && loc[1] > end {
			end = loc[1]
		}
	}
	if end == 0 {
		return line
	}
	return strings.Repeat(" ", end) + line[end:]
}

// lineAt returns lines[idx] or "" when out of range.
func lineAt(lines []string, idx int) string {
	if idx < 0 || idx >= len(lines) {
		return ""
	}
	return lines[idx]
}

// classifyFunction maps a declaration name to its kind: use-prefixed names
// are custom hooks, capitalized names are components, the rest functions.
func classifyFunction(name string) MethodKind {
	if strings.HasPrefix(name, "use") && len(name) > 3 && name[3] >= 'A' && name[3] <= 'Z' {
		return KindCustomHook
	}
	if name != "" && name[0] >= 'A' && name[0] <= 'Z' {
		return KindComponent
	}
	return KindFunction
}

// stripCommentsAndStrings blanks comment and string-literal content while
// preserving line lengths, so column offsets and brace positions survive.
// Handles // and /* */ comments plus ', ", and ` literals, with /* */ and
// template literals spanning lines.
func stripCommentsAndStrings(lines []string) []string {
	out := make([]string, len(lines))
	inBlockComment := false
	inTemplate := false

	for i, line := range lines {
		var b strings.Builder
		b.Grow(len(line))
		j := 0
		for j < len(line) {
			c := line[j]
			switch {
			case inBlockComment:
				if c == '*' && j+1 < len(line) && line[j+1] == '/' {
					inBlockComment = false
					b.WriteString("  ")
					j += 2
					continue
				}
				b.WriteByte(' ')
				j++
			case inTemplate:
				if c == '\\' {
					b.WriteString("  ")
					j += 2
					continue
				}
				if c == '`' {
					inTemplate = false
				}
				b.WriteByte(' ')
				j++
			case c == '/' && j+1 < len(line) && line[j+1] == '/':
				// Rest of line is a comment.
				j = len(line)
			case c == '/' && j+1 < len(line) && line[j+1] == '*':
				inBlockComment = true
				b.WriteString("  ")
				j += 2
			case c == '`':
				inTemplate = true
				b.WriteByte(' ')
				j++
			case c == '\'' || c == '"':
				quote := c
				b.WriteByte(' ')
				j++
				for j < len(line) {
					if line[j] == '\\' {
						b.WriteString("  ")
						j += 2
						continue
					}
					done := line[j] == quote
					b.WriteByte(' ')
					j++
					if done {
						break
					}
				}
			default:
				b.WriteByte(c)
				j++
			}
		}
		out[i] = b.String()
	}
	return out
}

// Compile-time interface compliance check.
var _ Analyzer = (*JavaScriptAnalyzer)(nil)
