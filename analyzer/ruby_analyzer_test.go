// Copyright (C) 2026 Atlasview (dev@atlasview.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analyzer

import (
	"context"
	"strings"
	"testing"
)

func rubyFile(content string) *ParsedFile {
	return &ParsedFile{
		Path:       "app/models/user.rb",
		Language:   LanguageRuby,
		Content:    content,
		TotalLines: strings.Count(content, "\n") + 1,
	}
}

func findMethod(t *testing.T, methods []*Method, name string) *Method {
	t.Helper()
	for _, m := range methods {
		if m.Name == name {
			return m
		}
	}
	t.Fatalf("method %q not found in %d methods", name, len(methods))
	return nil
}

func callNames(m *Method) []string {
	names := make([]string, 0, len(m.Calls))
	for _, c := range m.Calls {
		names = append(names, c.Name)
	}
	return names
}

func TestRubyAnalyzer_ExtractsDefinitions(t *testing.T) {
	src := `class User
  def full_name(first, last = "Doe")
    "#{first} #{last}"
  end

  def self.find_active
    where(active: true)
  end
end
`
	result, err := NewRubyAnalyzer().Analyze(context.Background(), rubyFile(src), nil)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	fullName := findMethod(t, result.Methods, "full_name")
	if fullName.Kind != KindMethod {
		t.Errorf("full_name kind = %q, want %q", fullName.Kind, KindMethod)
	}
	if fullName.StartLine != 2 || fullName.EndLine != 4 {
		t.Errorf("full_name lines = %d-%d, want 2-4", fullName.StartLine, fullName.EndLine)
	}
	if got := fullName.Parameters; len(got) != 2 || got[0] != "first" || got[1] != "last" {
		t.Errorf("full_name parameters = %v, want [first last]", got)
	}

	findActive := findMethod(t, result.Methods, "find_active")
	if findActive.Kind != KindClassMethod {
		t.Errorf("find_active kind = %q, want %q", findActive.Kind, KindClassMethod)
	}
}

func TestRubyAnalyzer_CallFiltering(t *testing.T) {
	// "validate" is defined locally; "baz" is not defined anywhere and must
	// be rejected as a variable reference, not recorded as a call.
	src := `def process
  validate
  result = baz
  record.save
end

def validate
  true
end
`
	result, err := NewRubyAnalyzer().Analyze(context.Background(), rubyFile(src), nil)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	process := findMethod(t, result.Methods, "process")
	names := callNames(process)

	wantPresent := []string{"validate", "save"} // save via Rails allow-list
	for _, w := range wantPresent {
		found := false
		for _, n := range names {
			if n == w {
				found = true
			}
		}
		if !found {
			t.Errorf("process calls %v, want %q present", names, w)
		}
	}
	for _, n := range names {
		if n == "baz" || n == "result" || n == "record" {
			t.Errorf("process calls include %q, want it filtered out", n)
		}
	}
}

func TestRubyAnalyzer_SuppliedDefinedSet(t *testing.T) {
	src := `def handler
  remote_helper(1)
end
`
	tests := []struct {
		name     string
		defined  *DefinedMethodSet
		wantCall bool
	}{
		{name: "undefined name dropped", defined: nil, wantCall: false},
		{name: "batch-wide name kept", defined: NewDefinedMethodSet("remote_helper"), wantCall: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NewRubyAnalyzer().Analyze(context.Background(), rubyFile(src), tt.defined)
			if err != nil {
				t.Fatalf("Analyze returned error: %v", err)
			}
			handler := findMethod(t, result.Methods, "handler")
			got := false
			for _, c := range handler.Calls {
				if c.Name == "remote_helper" {
					got = true
					if c.Line != 2 {
						t.Errorf("remote_helper call line = %d, want 2", c.Line)
					}
				}
			}
			if got != tt.wantCall {
				t.Errorf("remote_helper call recorded = %v, want %v", got, tt.wantCall)
			}
		})
	}
}

func TestRubyAnalyzer_PrivateSectionTracking(t *testing.T) {
	src := `class Report
  def public_entry
  end

  private

  def internal_step
  end
end
`
	result, err := NewRubyAnalyzer().Analyze(context.Background(), rubyFile(src), nil)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	if m := findMethod(t, result.Methods, "public_entry"); m.IsPrivate {
		t.Error("public_entry marked private")
	}
	if m := findMethod(t, result.Methods, "internal_step"); !m.IsPrivate {
		t.Error("internal_step not marked private")
	}
}

func TestRubyAnalyzer_NestedBlockEndDetection(t *testing.T) {
	src := `def nested
  if active?
    items.each do |item|
      process_item(item)
    end
  end
end

def process_item(item)
end
`
	result, err := NewRubyAnalyzer().Analyze(context.Background(), rubyFile(src), nil)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	nested := findMethod(t, result.Methods, "nested")
	if nested.EndLine != 7 {
		t.Errorf("nested end line = %d, want 7 (inner blocks must not close the method)", nested.EndLine)
	}
	names := callNames(nested)
	found := false
	for _, n := range names {
		if n == "process_item" {
			found = true
		}
	}
	if !found {
		t.Errorf("nested calls = %v, want process_item present", names)
	}
}

func TestRubyAnalyzer_SingleLineDef(t *testing.T) {
	src := `def tiny; 42; end

def other
end
`
	result, err := NewRubyAnalyzer().Analyze(context.Background(), rubyFile(src), nil)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	tiny := findMethod(t, result.Methods, "tiny")
	if tiny.StartLine != 1 || tiny.EndLine != 1 {
		t.Errorf("tiny lines = %d-%d, want 1-1", tiny.StartLine, tiny.EndLine)
	}
	findMethod(t, result.Methods, "other")
}

func TestRubyAnalyzer_SingleLineDefBodyCalls(t *testing.T) {
	src := `def run; validate; end
def validate; true; end
`
	result, err := NewRubyAnalyzer().Analyze(context.Background(), rubyFile(src), nil)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	run := findMethod(t, result.Methods, "run")
	names := callNames(run)
	if len(names) != 1 || names[0] != "validate" {
		t.Fatalf("run calls = %v, want [validate] from the one-line body", names)
	}
	if run.Calls[0].Line != 1 {
		t.Errorf("validate call line = %d, want 1", run.Calls[0].Line)
	}

	// The def prefix is masked, so the declaration never reads as a
	// self-call and the trivial body yields nothing.
	validate := findMethod(t, result.Methods, "validate")
	if len(validate.Calls) != 0 {
		t.Errorf("validate calls = %v, want none", callNames(validate))
	}
}

func TestRubyAnalyzer_VisibilityResetsPerClass(t *testing.T) {
	src := `class First
  private

  def hidden
  end
end

class Second
  def visible
  end
end
`
	result, err := NewRubyAnalyzer().Analyze(context.Background(), rubyFile(src), nil)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	if m := findMethod(t, result.Methods, "hidden"); !m.IsPrivate {
		t.Error("hidden not marked private")
	}
	if m := findMethod(t, result.Methods, "visible"); m.IsPrivate {
		t.Error("visible marked private: the section must not leak across classes")
	}
}

func TestRubyAnalyzer_UnterminatedDefKeepsEarlierMethods(t *testing.T) {
	src := `def first
  x = 1
def second
  y = 2
end
`
	result, err := NewRubyAnalyzer().Analyze(context.Background(), rubyFile(src), nil)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	first := findMethod(t, result.Methods, "first")
	if first.EndLine != 2 {
		t.Errorf("first end line = %d, want 2 (closed at the next def)", first.EndLine)
	}
	findMethod(t, result.Methods, "second")
}

func TestRubyAnalyzer_InterpolationCalls(t *testing.T) {
	src := `def greeting
  "Hello #{display_name}!"
end

def display_name
  "x"
end
`
	result, err := NewRubyAnalyzer().Analyze(context.Background(), rubyFile(src), nil)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	greeting := findMethod(t, result.Methods, "greeting")
	names := callNames(greeting)
	if len(names) != 1 || names[0] != "display_name" {
		t.Errorf("greeting calls = %v, want [display_name]", names)
	}
}

func TestRubyAnalyzer_ExclusionPolicy(t *testing.T) {
	src := `def initialize
end

def regular
end
`
	result, err := NewRubyAnalyzer().Analyze(context.Background(), rubyFile(src), nil)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	if m := findMethod(t, result.Methods, "initialize"); !m.IsExcluded {
		t.Error("initialize not excluded by the default policy")
	}
	if m := findMethod(t, result.Methods, "regular"); m.IsExcluded {
		t.Error("regular wrongly excluded")
	}
}

func TestRubyAnalyzer_SizeLimits(t *testing.T) {
	a := NewRubyAnalyzer(WithRubyMaxFileSize(16))
	_, err := a.Analyze(context.Background(), rubyFile("def x\nend\n# padding padding"), nil)
	if err == nil {
		t.Fatal("Analyze accepted oversized file")
	}
}

func TestRubyAnalyzer_Idempotence(t *testing.T) {
	src := `def alpha
  beta
end

def beta
  alpha
end
`
	a := NewRubyAnalyzer()
	first, err := a.Analyze(context.Background(), rubyFile(src), nil)
	if err != nil {
		t.Fatalf("first Analyze: %v", err)
	}
	second, err := a.Analyze(context.Background(), rubyFile(src), nil)
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}

	if len(first.Methods) != len(second.Methods) {
		t.Fatalf("method counts differ: %d vs %d", len(first.Methods), len(second.Methods))
	}
	for i := range first.Methods {
		a, b := first.Methods[i], second.Methods[i]
		if a.Name != b.Name || a.StartLine != b.StartLine || a.EndLine != b.EndLine || len(a.Calls) != len(b.Calls) {
			t.Errorf("method %d differs between runs: %+v vs %+v", i, a, b)
		}
	}
}
