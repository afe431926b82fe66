// Copyright (C) 2026 Atlasview (dev@atlasview.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"context"
	"testing"

	"github.com/atlasview/codeatlas/analyzer"
)

func sampleGraph(t *testing.T) *Graph {
	t.Helper()
	methods := []*analyzer.Method{
		def("entry", "b.rb", 1, 5,
			analyzer.MethodCall{Name: "shared", Line: 2},
			analyzer.MethodCall{Name: "leaf", Line: 3},
		),
		def("worker", "a.rb", 1, 4, analyzer.MethodCall{Name: "shared", Line: 2}),
		def("shared", "c.rb", 1, 3),
		def("leaf", "b.rb", 7, 8),
	}
	return NewExtractor().Extract(context.Background(), methods)
}

func TestGraph_FindCallers(t *testing.T) {
	g := sampleGraph(t)

	callers := g.FindCallers(context.Background(), "shared", "")
	if len(callers) != 2 {
		t.Fatalf("callers = %d, want 2", len(callers))
	}
	// Sorted by caller file: a.rb before b.rb.
	if callers[0].Caller.Name != "worker" || callers[1].Caller.Name != "entry" {
		t.Errorf("caller order = %s, %s; want worker, entry", callers[0].Caller.Name, callers[1].Caller.Name)
	}

	if got := g.FindCallers(context.Background(), "shared", "nope.rb"); len(got) != 0 {
		t.Errorf("file filter matched %d callers, want 0", len(got))
	}
	if got := g.FindCallers(context.Background(), "shared", "c.rb"); len(got) != 2 {
		t.Errorf("file filter on defining file matched %d callers, want 2", len(got))
	}
}

func TestGraph_FindCallees(t *testing.T) {
	g := sampleGraph(t)

	callees := g.FindCallees(context.Background(), "entry", "")
	if len(callees) != 2 {
		t.Fatalf("callees = %d, want 2", len(callees))
	}
	// Sorted by callee file: b.rb (leaf) before c.rb (shared).
	if callees[0].Callee.Name != "leaf" || callees[1].Callee.Name != "shared" {
		t.Errorf("callee order = %s, %s; want leaf, shared", callees[0].Callee.Name, callees[1].Callee.Name)
	}

	if got := g.FindCallees(context.Background(), "unknown", ""); len(got) != 0 {
		t.Errorf("unknown source matched %d callees, want 0", len(got))
	}
}
