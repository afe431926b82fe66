// Copyright (C) 2026 Atlasview (dev@atlasview.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/atlasview/codeatlas/analyzer"
	"github.com/atlasview/codeatlas/engine"
)

// TestEndToEnd runs the whole pipeline: batch analysis over a small
// multi-language tree, then extraction, then a caller query.
func TestEndToEnd(t *testing.T) {
	rubySrc := `class Billing
  def charge(amount)
    format_amount(amount)
  end

  def format_amount(amount)
    amount
  end
end
`
	jsSrc := `function renderInvoice(total) {
  return formatTotal(total);
}

function formatTotal(total) {
  return total;
}
`
	files := []*analyzer.ParsedFile{
		{
			Path: "app/billing.rb", Language: analyzer.LanguageRuby,
			Content: rubySrc, TotalLines: strings.Count(rubySrc, "\n") + 1,
		},
		{
			Path: "src/invoice.js", Language: analyzer.LanguageJavaScript,
			Content: jsSrc, TotalLines: strings.Count(jsSrc, "\n") + 1,
		},
	}

	ctx := context.Background()
	methods, stats := engine.NewEngine().AnalyzeFiles(ctx, files, nil)
	if stats.Errors != 0 {
		t.Fatalf("batch produced %d errors", stats.Errors)
	}

	g := NewExtractor().Extract(ctx, methods)

	charge := findEdge(t, g, "charge", "format_amount")
	if charge.Count != 1 {
		t.Errorf("charge edge count = %d, want 1", charge.Count)
	}
	if charge.From.Line != 2 || charge.To.Line != 6 {
		t.Errorf("charge edge anchors = %d->%d, want 2->6", charge.From.Line, charge.To.Line)
	}
	if charge.Type != DependencyInternal {
		t.Errorf("charge edge type = %q, want internal", charge.Type)
	}

	render := findEdge(t, g, "renderInvoice", "formatTotal")
	if render.From.File != "src/invoice.js" || render.Type != DependencyInternal {
		t.Errorf("renderInvoice edge = %+v", render)
	}

	callers := g.FindCallers(ctx, "format_amount", "")
	if len(callers) != 1 || callers[0].Caller.Name != "charge" {
		t.Errorf("format_amount callers = %+v, want charge", callers)
	}

	// The serialized graph round-trips.
	data, err := Serialize(g)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	back, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if len(back.Dependencies) != len(g.Dependencies) {
		t.Errorf("round trip edge count %d != %d", len(back.Dependencies), len(g.Dependencies))
	}
}

// TestEndToEnd_SingleLineDefinitions covers the smallest useful pipeline
// input: both definitions keep their bodies on the declaration line.
func TestEndToEnd_SingleLineDefinitions(t *testing.T) {
	src := "def run; validate; end\ndef validate; true; end\n"
	files := []*analyzer.ParsedFile{
		{
			Path: "lib/task.rb", Language: analyzer.LanguageRuby,
			Content: src, TotalLines: strings.Count(src, "\n") + 1,
		},
	}

	ctx := context.Background()
	methods, stats := engine.NewEngine().AnalyzeFiles(ctx, files, nil)
	if stats.Errors != 0 {
		t.Fatalf("batch produced %d errors", stats.Errors)
	}

	g := NewExtractor().Extract(ctx, methods)
	if len(g.Dependencies) != 1 {
		t.Fatalf("got %d dependencies, want exactly 1 run->validate", len(g.Dependencies))
	}
	edge := findEdge(t, g, "run", "validate")
	if edge.Count != 1 {
		t.Errorf("edge count = %d, want 1", edge.Count)
	}
	if edge.Type != DependencyInternal {
		t.Errorf("edge type = %q, want internal", edge.Type)
	}
	if edge.FirstCallLine != 1 {
		t.Errorf("first call line = %d, want 1", edge.FirstCallLine)
	}
}

// TestEndToEnd_CacheHitSurvivesExtraction pins down the sharing contract:
// running the extractor over a batch must not alter what a later cache hit
// returns for the same file.
func TestEndToEnd_CacheHitSurvivesExtraction(t *testing.T) {
	src := "function ping(): void {\n  pong();\n}\n\nfunction pong(): void {\n}\n"
	file := &analyzer.ParsedFile{
		Path: "src/net.ts", Language: analyzer.LanguageTypeScript,
		Content: src, TotalLines: strings.Count(src, "\n") + 1,
	}

	ctx := context.Background()
	eng := engine.NewEngine()
	defined := analyzer.NewDefinedMethodSet()

	miss := eng.AnalyzeFile(ctx, file, defined)
	if miss.Metadata.CacheHit {
		t.Fatal("first analysis reported a cache hit")
	}
	missJSON, err := json.Marshal(miss.Methods)
	if err != nil {
		t.Fatalf("marshal miss: %v", err)
	}

	NewExtractor().Extract(ctx, miss.Methods)

	hit := eng.AnalyzeFile(ctx, file, defined)
	if !hit.Metadata.CacheHit {
		t.Fatal("second analysis of identical input missed the cache")
	}
	hitJSON, err := json.Marshal(hit.Methods)
	if err != nil {
		t.Fatalf("marshal hit: %v", err)
	}
	if !bytes.Equal(missJSON, hitJSON) {
		t.Errorf("cache hit differs from the original computation:\nmiss %s\nhit  %s", missJSON, hitJSON)
	}
}
