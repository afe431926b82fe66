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
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// erbTagRe captures the Ruby fragment inside one <% %>, <%= %>, or <%- %>
// tag. Multiple tags per line are all captured.
var erbTagRe = regexp.MustCompile(`<%[=\-]?\s*(.*?)\s*-?%>`)

// erbTemplateHelpers are view helpers accepted as calls without appearing in
// the DefinedMethodSet. Templates call framework helpers constantly; without
// this list an ERB result is mostly empty.
var erbTemplateHelpers = map[string]struct{}{
	"t": {}, "l": {}, "link_to": {}, "render": {}, "form_for": {},
	"form_with": {}, "form_tag": {}, "button_to": {}, "image_tag": {},
	"content_for": {}, "content_tag": {}, "pluralize": {}, "truncate": {},
	"number_to_currency": {}, "time_ago_in_words": {}, "simple_format": {},
	"sanitize": {}, "raw": {}, "h": {}, "url_for": {}, "asset_path": {},
	"stylesheet_link_tag": {}, "javascript_include_tag": {}, "csrf_meta_tags": {},
	"hidden_field_tag": {}, "text_field_tag": {}, "submit_tag": {},
}

// ERBAnalyzer extracts embedded Ruby calls from ERB templates.
//
// Templates define no methods of their own, so the whole file collapses into
// one synthetic method whose calls are everything found inside the tags. The
// Ruby analyzer's call filter does the disambiguation work.
type ERBAnalyzer struct {
	ruby *RubyAnalyzer
}

// NewERBAnalyzer creates an ERBAnalyzer delegating call filtering to ruby.
func NewERBAnalyzer(ruby *RubyAnalyzer) *ERBAnalyzer {
	if ruby == nil {
		ruby = NewRubyAnalyzer()
	}
	return &ERBAnalyzer{ruby: ruby}
}

// Language returns LanguageERB.
func (a *ERBAnalyzer) Language() Language { return LanguageERB }

// Supports reports whether lang is ERB.
func (a *ERBAnalyzer) Supports(lang Language) bool { return lang == LanguageERB }

// Analyze extracts every call inside <% %> tags into one synthetic method.
//
// Description:
//
//	Scans line by line, pulls the Ruby fragments out of each tag, and runs
//	the Ruby call patterns over them. A candidate is accepted when it passes
//	the Ruby filter (DefinedMethodSet or Rails allow-list) or names a view
//	helper from the template allow-list. The result holds a single method
//	"[ERB File: <name>]" of kind erb_call spanning the whole file.
func (a *ERBAnalyzer) Analyze(ctx context.Context, file *ParsedFile, defined *DefinedMethodSet) (*Result, error) {
	ctx, span := startAnalyzeSpan(ctx, "erb", file.Path, len(file.Content))
	defer span.End()
	start := time.Now()

	if int64(len(file.Content)) > a.ruby.maxFileSize {
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(file.Content), a.ruby.maxFileSize)
	}
	if !utf8.ValidString(file.Content) {
		return nil, ErrInvalidContent
	}

	lines := strings.Split(file.Content, "\n")
	calls := make([]MethodCall, 0, 8)

	for i, line := range lines {
		if len(calls) >= MaxCallSitesPerMethod {
			break
		}
		tags := erbTagRe.FindAllStringSubmatch(line, -1)
		if len(tags) == 0 {
			continue
		}

		seen := make(map[string]struct{}, 4)
		for _, tag := range tags {
			fragment := tag[1]
			if fragment == "" || strings.HasPrefix(fragment, "#") {
				continue
			}
			for _, name := range a.fragmentCalls(fragment, defined) {
				if _, dup := seen[name]; dup {
					continue
				}
				seen[name] = struct{}{}
				calls = append(calls, MethodCall{
					Name:    name,
					Line:    i + 1,
					Context: strings.TrimSpace(line),
				})
			}
		}
	}

	template := &Method{
		Name:      fmt.Sprintf("[ERB File: %s]", filepath.Base(file.Path)),
		Kind:      KindERBCall,
		StartLine: 1,
		EndLine:   len(lines),
		FilePath:  file.Path,
		Calls:     calls,
	}

	result := &Result{
		Methods: []*Method{template},
		Errors:  make([]AnalysisError, 0),
		Metadata: Metadata{
			Language:        "erb",
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
	recordAnalyzeMetrics(ctx, "erb", time.Since(start), len(result.Methods), len(result.Errors))
	return result, nil
}

// fragmentCalls runs the Ruby call patterns over one tag fragment, in order:
// interpolation, dot-notation, then bare words.
func (a *ERBAnalyzer) fragmentCalls(fragment string, defined *DefinedMethodSet) []string {
	names := make([]string, 0, 2)
	emit := func(name string) {
		if a.acceptTemplateCall(name, defined) {
			names = append(names, name)
		}
	}

	for _, m := range rubyInterpolationCallRe.FindAllStringSubmatch(fragment, -1) {
		emit(m[1])
	}
	for _, m := range rubyDotCallRe.FindAllStringSubmatchIndex(fragment, -1) {
		if isAssignmentTarget(fragment, m[3]) {
			continue
		}
		emit(fragment[m[2]:m[3]])
	}
	for _, m := range rubyBareWordRe.FindAllStringSubmatchIndex(fragment, -1) {
		if !isBareCallPosition(fragment, m[2], m[3]) {
			continue
		}
		emit(fragment[m[2]:m[3]])
	}
	return names
}

// acceptTemplateCall extends the Ruby filter with the view-helper allow-list.
func (a *ERBAnalyzer) acceptTemplateCall(name string, defined *DefinedMethodSet) bool {
	if _, ok := erbTemplateHelpers[name]; ok {
		return true
	}
	return a.ruby.acceptCall(name, defined)
}

// Compile-time interface compliance check.
var _ Analyzer = (*ERBAnalyzer)(nil)
