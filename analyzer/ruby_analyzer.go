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

// Ruby line patterns. Methods are delimited by depth counting rather than a
// full parse so malformed input still yields every definition before the
// damage.
var (
	// rubyDefRe matches "def name", "def self.name", and an optional
	// parenthesized parameter list. Ruby method names may end in ?, !, or =.
	rubyDefRe = regexp.MustCompile(`^\s*def\s+(self\.)?([A-Za-z_]\w*[?!=]?)\s*(?:\(([^)]*)\))?`)

	// rubyVisibilityRe matches bare private/public/protected section markers.
	rubyVisibilityRe = regexp.MustCompile(`^\s*(private|protected|public)\s*$`)

	// rubyClassModuleRe matches class/module openings, which start a fresh
	// visibility scope for their body.
	rubyClassModuleRe = regexp.MustCompile(`^\s*(?:class|module)\b`)

	// rubyBlockOpenRe matches line-anchored block-opening keywords. Anchoring
	// keeps statement modifiers ("return if x") from counting as blocks.
	rubyBlockOpenRe = regexp.MustCompile(`^\s*(?:class|module|if|unless|while|until|for|case|begin)\b`)

	// rubyDoBlockRe matches a trailing do-block opener ("arr.each do |x|"),
	// which is closed by "end" just like the keyword blocks.
	rubyDoBlockRe = regexp.MustCompile(`\bdo\s*(?:\|[^|]*\|)?\s*$`)

	// rubyEndRe matches a block-closing "end".
	rubyEndRe = regexp.MustCompile(`^\s*end\b`)

	// rubySingleLineDefRe matches one-line definitions like "def foo; x; end".
	rubySingleLineDefRe = regexp.MustCompile(`^\s*def\s+.*\bend\s*$`)

	// rubyInterpolationCallRe captures the leading identifier of a string
	// interpolation: "#{helper(x)}" yields "helper".
	rubyInterpolationCallRe = regexp.MustCompile(`#\{\s*([a-z_]\w*[?!]?)`)

	// rubyDotCallRe captures dot-notation call names: "user.save" yields "save".
	rubyDotCallRe = regexp.MustCompile(`\.([a-z_]\w*[?!]?)`)

	// rubyBareWordRe captures candidate bare-call identifiers.
	rubyBareWordRe = regexp.MustCompile(`\b([a-z_]\w*[?!]?)`)
)

// rubyKeywords are reserved words and ubiquitous builtins that are never
// treated as call candidates.
var rubyKeywords = map[string]struct{}{
	"def": {}, "end": {}, "if": {}, "elsif": {}, "else": {}, "unless": {},
	"while": {}, "until": {}, "for": {}, "in": {}, "do": {}, "then": {},
	"case": {}, "when": {}, "begin": {}, "rescue": {}, "ensure": {},
	"return": {}, "yield": {}, "super": {}, "self": {}, "nil": {},
	"true": {}, "false": {}, "and": {}, "or": {}, "not": {}, "break": {},
	"next": {}, "redo": {}, "retry": {}, "class": {}, "module": {},
	"require": {}, "require_relative": {}, "include": {}, "extend": {},
	"attr_accessor": {}, "attr_reader": {}, "attr_writer": {}, "private": {},
	"protected": {}, "public": {}, "puts": {}, "print": {}, "p": {},
	"raise": {}, "lambda": {}, "proc": {}, "loop": {}, "freeze": {},
}

// railsAllowedCalls is the curated Rails CRUD/standard-method allow-list. A
// bare or dot-notation name matching this list is accepted as a call even
// when it is not in the DefinedMethodSet, since these names are defined by
// the framework rather than the scanned files.
var railsAllowedCalls = map[string]struct{}{
	"save": {}, "save!": {}, "update": {}, "update!": {}, "create": {},
	"create!": {}, "destroy": {}, "destroy!": {}, "delete": {}, "find": {},
	"find_by": {}, "find_by!": {}, "where": {}, "order": {}, "limit": {},
	"all": {}, "first": {}, "last": {}, "count": {}, "new": {}, "build": {},
	"valid?": {}, "invalid?": {}, "errors": {}, "reload": {}, "present?": {},
	"blank?": {}, "nil?": {}, "empty?": {}, "any?": {}, "each": {}, "map": {},
	"select": {}, "reject": {}, "include?": {}, "join": {}, "merge": {},
	"params": {}, "session": {}, "flash": {}, "redirect_to": {},
	"render": {}, "head": {}, "respond_to": {}, "permit": {}, "expect": {},
}

// RubyAnalyzerOption configures a RubyAnalyzer instance.
type RubyAnalyzerOption func(*RubyAnalyzer)

// WithRubyMaxFileSize sets the maximum content size the analyzer accepts.
func WithRubyMaxFileSize(bytes int64) RubyAnalyzerOption {
	return func(a *RubyAnalyzer) {
		if bytes > 0 {
			a.maxFileSize = bytes
		}
	}
}

// WithRubyExclusionPolicy sets the definition exclusion policy. May be nil.
func WithRubyExclusionPolicy(p *ExclusionPolicy) RubyAnalyzerOption {
	return func(a *RubyAnalyzer) {
		a.policy = p
	}
}

// WithRubyAllowedCalls adds names the call filter accepts even when they are
// not in the DefinedMethodSet, on top of the Rails allow-list.
func WithRubyAllowedCalls(names []string) RubyAnalyzerOption {
	return func(a *RubyAnalyzer) {
		for _, n := range names {
			if n != "" {
				a.extraAllowed[n] = struct{}{}
			}
		}
	}
}

// RubyAnalyzer extracts methods and call sites from Ruby source using
// line-oriented heuristics: no AST, just anchored patterns plus depth
// counting for block ends.
//
// Thread Safety: RubyAnalyzer is stateless per call and safe for
// concurrent use.
type RubyAnalyzer struct {
	maxFileSize  int64
	maxLines     int
	policy       *ExclusionPolicy
	extraAllowed map[string]struct{}
}

// NewRubyAnalyzer creates a RubyAnalyzer with the given options.
func NewRubyAnalyzer(opts ...RubyAnalyzerOption) *RubyAnalyzer {
	a := &RubyAnalyzer{
		maxFileSize:  DefaultMaxFileSize,
		maxLines:     DefaultMaxLineCount,
		policy:       DefaultExclusionPolicy(),
		extraAllowed: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Language returns LanguageRuby.
func (a *RubyAnalyzer) Language() Language { return LanguageRuby }

// Supports reports whether lang is Ruby.
func (a *RubyAnalyzer) Supports(lang Language) bool { return lang == LanguageRuby }

// Analyze extracts every def in the file plus the calls inside each body.
//
// Description:
//
//	Runs a single line scan tracking visibility sections and definition
//	boundaries, then extracts calls per method body against the combined
//	(local + supplied) DefinedMethodSet. The method end is found by depth
//	counting; a new def before depth zero terminates the current method
//	early, bounding the damage from unterminated input.
//
// Outputs:
//   - *Result: methods in source order with per-body calls. Never nil when
//     err is nil.
//   - error: ErrFileTooLarge, ErrTooManyLines, or ErrInvalidContent. The
//     registry converts these into structured validation results.
func (a *RubyAnalyzer) Analyze(ctx context.Context, file *ParsedFile, defined *DefinedMethodSet) (*Result, error) {
	ctx, span := startAnalyzeSpan(ctx, "ruby", file.Path, len(file.Content))
	defer span.End()
	start := time.Now()

	if err := a.validate(file); err != nil {
		return nil, err
	}

	lines := strings.Split(file.Content, "\n")
	methods, errs := a.extractMethods(lines, file.Path)

	// Combined set: local defs first, then the batch-wide names.
	combined := NewDefinedMethodSet()
	for _, m := range methods {
		combined.Add(m.Name)
	}
	combined.Merge(defined)

	for _, m := range methods {
		m.Calls = a.extractCalls(lines, m.StartLine, m.EndLine, combined)
	}
	a.policy.Apply(methods)

	result := &Result{
		Methods: methods,
		Errors:  errs,
		Metadata: Metadata{
			Language:        "ruby",
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
	recordAnalyzeMetrics(ctx, "ruby", time.Since(start), len(result.Methods), len(result.Errors))
	return result, nil
}

// validate enforces the per-file ceilings.
func (a *RubyAnalyzer) validate(file *ParsedFile) error {
	if int64(len(file.Content)) > a.maxFileSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(file.Content), a.maxFileSize)
	}
	if !utf8.ValidString(file.Content) {
		return ErrInvalidContent
	}
	if len(file.Content) > WarnFileSize {
		slog.Warn("analyzing large ruby file",
			slog.String("file", file.Path),
			slog.Int("size_bytes", len(file.Content)))
	}
	if n := strings.Count(file.Content, "\n") + 1; n > a.maxLines {
		return fmt.Errorf("%w: %d lines exceeds limit %d", ErrTooManyLines, n, a.maxLines)
	}
	return nil
}

// extractMethods runs the definition scan over all lines.
//
// Between method bodies the scan tracks class/module nesting: a class or
// module opening saves the enclosing visibility and starts public, and the
// matching end restores it, so a private section in one class never leaks
// into the next.
func (a *RubyAnalyzer) extractMethods(lines []string, filePath string) ([]*Method, []AnalysisError) {
	methods := make([]*Method, 0, 8)
	errs := make([]AnalysisError, 0)
	private := false

	type scopeFrame struct {
		classLike    bool
		savedPrivate bool
	}
	scopes := make([]scopeFrame, 0, 4)

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if m := rubyVisibilityRe.FindStringSubmatch(line); m != nil {
			private = m[1] == "private" || m[1] == "protected"
			continue
		}

		m := rubyDefRe.FindStringSubmatch(line)
		if m == nil {
			if rubyClassModuleRe.MatchString(line) {
				scopes = append(scopes, scopeFrame{classLike: true, savedPrivate: private})
				private = false
				continue
			}
			if rubyBlockOpenRe.MatchString(line) || rubyDoBlockRe.MatchString(line) {
				scopes = append(scopes, scopeFrame{})
				continue
			}
			if rubyEndRe.MatchString(line) && len(scopes) > 0 {
				top := scopes[len(scopes)-1]
				scopes = scopes[:len(scopes)-1]
				if top.classLike {
					private = top.savedPrivate
				}
			}
			continue
		}

		endLine := a.findMethodEnd(lines, i)
		if endLine <= i {
			errs = append(errs, AnalysisError{
				Message:  fmt.Sprintf("could not delimit method %q", m[2]),
				Type:     ErrorTypeExtraction,
				Severity: "warning",
				Line:     i + 1,
			})
			continue
		}

		kind := KindMethod
		if m[1] != "" {
			kind = KindClassMethod
		}

		methods = append(methods, &Method{
			Name:       m[2],
			Kind:       kind,
			StartLine:  i + 1,
			EndLine:    endLine,
			FilePath:   filePath,
			Source:     strings.Join(lines[i:endLine], "\n"),
			Calls:      make([]MethodCall, 0),
			IsPrivate:  private,
			Parameters: parseParameters(m[3]),
		})

		// Resume after the method body. When the method was cut short by a
		// new def, endLine is the line before that def, so the loop lands on
		// it next iteration.
		i = endLine - 1
	}

	return methods, errs
}

// findMethodEnd returns the 1-based end line of the def starting at defIdx.
//
// Depth starts at 1 for the def itself. Block-opening keywords and trailing
// do-blocks increment, "end" decrements; depth zero is the method end. A new
// def before depth zero terminates the method at the previous line, which
// bounds runaway scans over malformed or unterminated input.
func (a *RubyAnalyzer) findMethodEnd(lines []string, defIdx int) int {
	if rubySingleLineDefRe.MatchString(lines[defIdx]) {
		return defIdx + 1
	}

	depth := 1
	for i := defIdx + 1; i < len(lines); i++ {
		line := lines[i]

		if rubyDefRe.MatchString(line) {
			// Unterminated method: close it just before the new def.
			return i
		}
		if rubyBlockOpenRe.MatchString(line) || rubyDoBlockRe.MatchString(line) {
			depth++
		}
		if rubyEndRe.MatchString(line) {
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(lines)
}

// extractCalls finds the call sites in the lines of one method, declaration
// line included so one-line bodies ("def run; validate; end") still yield
// their calls. The def prefix is masked first, which keeps the declaration
// from reading as a self-call.
//
// Three independent patterns run per line: string-interpolation calls,
// dot-notation calls, and bare calls outside assignment-target position. A
// candidate survives only if it is in the combined DefinedMethodSet or the
// Rails allow-list and is not a Ruby keyword. This filter is the central
// variable-vs-call disambiguation.
func (a *RubyAnalyzer) extractCalls(lines []string, startLine, endLine int, defined *DefinedMethodSet) []MethodCall {
	calls := make([]MethodCall, 0, 4)

	for ln := startLine - 1; ln < endLine; ln++ {
		if ln < 0 || ln >= len(lines) {
			continue
		}
		line := lines[ln]
		if ln == startLine-1 {
			if loc := rubyDefRe.FindStringIndex(line); loc != nil {
				line = strings.Repeat(" ", loc[1]) + line[loc[1]:]
			}
		}
		if len(calls) >= MaxCallSitesPerMethod {
			slog.Warn("max call sites per method reached",
				slog.Int("line", ln+1),
				slog.Int("limit", MaxCallSitesPerMethod))
			break
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		context := strings.TrimSpace(lines[ln])

		seen := make(map[string]struct{}, 4)
		record := func(name string, col int) {
			if _, dup := seen[name]; dup {
				return
			}
			if !a.acceptCall(name, defined) {
				return
			}
			seen[name] = struct{}{}
			calls = append(calls, MethodCall{
				Name:    name,
				Line:    ln + 1,
				Column:  col,
				Context: context,
			})
		}

		for _, m := range rubyInterpolationCallRe.FindAllStringSubmatchIndex(line, -1) {
			record(line[m[2]:m[3]], m[2])
		}
		for _, m := range rubyDotCallRe.FindAllStringSubmatchIndex(line, -1) {
			name := line[m[2]:m[3]]
			// Skip attribute assignment targets: "user.name = ..."
			if isAssignmentTarget(line, m[3]) {
				continue
			}
			record(name, m[2])
		}
		for _, m := range rubyBareWordRe.FindAllStringSubmatchIndex(line, -1) {
			name := line[m[2]:m[3]]
			if !isBareCallPosition(line, m[2], m[3]) {
				continue
			}
			record(name, m[2])
		}
	}

	return calls
}

// acceptCall applies the definition-set / allow-list / keyword filter.
func (a *RubyAnalyzer) acceptCall(name string, defined *DefinedMethodSet) bool {
	if _, kw := rubyKeywords[name]; kw {
		return false
	}
	if defined.Has(name) {
		return true
	}
	if _, ok := a.extraAllowed[name]; ok {
		return true
	}
	_, ok := railsAllowedCalls[name]
	return ok
}

// isAssignmentTarget reports whether the identifier ending at end is the
// target of an assignment ("x = ..." but not "x == ...").
func isAssignmentTarget(line string, end int) bool {
	rest := strings.TrimLeft(line[end:], " \t")
	return strings.HasPrefix(rest, "=") && !strings.HasPrefix(rest, "==") &&
		!strings.HasPrefix(rest, "=~")
}

// isBareCallPosition reports whether the identifier at [start,end) can be a
// bare call: not preceded by a dot, scope operator, sigil, or string quote,
// and not in assignment-target position.
func isBareCallPosition(line string, start, end int) bool {
	if start > 0 {
		prev := line[start-1]
		switch prev {
		case '.', ':', '@', '$', '"', '\'', '#', '_':
			return false
		}
		if prev >= 'a' && prev <= 'z' || prev >= 'A' && prev <= 'Z' || prev >= '0' && prev <= '9' {
			return false
		}
	}
	if isAssignmentTarget(line, end) {
		return false
	}
	// Keyword-style symbol ("key:") is a hash key, not a call.
	rest := line[end:]
	if strings.HasPrefix(rest, ":") && !strings.HasPrefix(rest, "::") {
		return false
	}
	return true
}

// Compile-time interface compliance check.
var _ Analyzer = (*RubyAnalyzer)(nil)
