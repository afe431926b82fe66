// Copyright (C) 2026 Atlasview (dev@atlasview.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analyzer

import (
	"context"
	"testing"
)

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry()
	tests := []struct {
		lang Language
		want bool
	}{
		{LanguageRuby, true},
		{LanguageJavaScript, true},
		{LanguageTypeScript, true},
		{LanguageERB, true},
		{LanguageUnknown, false},
	}
	for _, tt := range tests {
		got := r.Lookup(tt.lang)
		if (got != nil) != tt.want {
			t.Errorf("Lookup(%s) = %v, want found=%v", tt.lang, got, tt.want)
		}
	}
}

func TestRegistry_UnsupportedLanguage(t *testing.T) {
	r := NewRegistry()
	result := r.Analyze(context.Background(), &ParsedFile{
		Path:     "notes.txt",
		Language: LanguageUnknown,
		Content:  "hello",
	}, nil)

	if result == nil {
		t.Fatal("Analyze returned nil result")
	}
	if len(result.Methods) != 0 {
		t.Errorf("methods = %d, want 0", len(result.Methods))
	}
	if len(result.Errors) != 1 || result.Errors[0].Type != ErrorTypeValidation {
		t.Errorf("errors = %+v, want single validation error", result.Errors)
	}
}

func TestRegistry_NilFile(t *testing.T) {
	result := NewRegistry().Analyze(context.Background(), nil, nil)
	if result == nil {
		t.Fatal("Analyze returned nil result")
	}
	if len(result.Errors) != 1 || result.Errors[0].Type != ErrorTypeValidation {
		t.Errorf("errors = %+v, want single validation error", result.Errors)
	}
}

func TestRegistry_AnalyzerErrorBecomesResult(t *testing.T) {
	// Oversized input makes the Ruby analyzer return a Go error; the
	// registry must convert it into a structured result, never propagate it.
	r := NewRegistry(WithMaxFileSize(8))
	result := r.Analyze(context.Background(), &ParsedFile{
		Path:     "big.rb",
		Language: LanguageRuby,
		Content:  "def oversized_method\nend\n",
	}, nil)

	if result == nil {
		t.Fatal("Analyze returned nil result")
	}
	if len(result.Errors) != 1 || result.Errors[0].Type != ErrorTypeRuntime {
		t.Errorf("errors = %+v, want single runtime error", result.Errors)
	}
	if result.Metadata.FilePath != "big.rb" {
		t.Errorf("metadata file = %q, want big.rb", result.Metadata.FilePath)
	}
}

func TestRegistry_Dispatch(t *testing.T) {
	r := NewRegistry()
	result := r.Analyze(context.Background(), &ParsedFile{
		Path:       "lib/greeter.rb",
		Language:   LanguageRuby,
		Content:    "def greet\nend\n",
		TotalLines: 3,
	}, nil)

	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}
	findMethod(t, result.Methods, "greet")
	if result.Metadata.Language != "ruby" {
		t.Errorf("language = %q, want ruby", result.Metadata.Language)
	}
	if result.Metadata.DurationMicro < 0 {
		t.Errorf("duration = %d, want non-negative", result.Metadata.DurationMicro)
	}
}
