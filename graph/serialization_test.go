// Copyright (C) 2026 Atlasview (dev@atlasview.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"encoding/json"
	"strings"
	"testing"
)

func twoEdgeGraph(reversed bool) *Graph {
	e1 := &Dependency{
		From: Endpoint{Name: "a", File: "a.rb", Line: 1},
		To:   Endpoint{Name: "b", File: "b.rb", Line: 1},
		Count: 1, Type: DependencyExternal, FirstCallLine: 2,
	}
	e2 := &Dependency{
		From: Endpoint{Name: "c", File: "c.rb", Line: 1},
		To:   Endpoint{Name: "b", File: "b.rb", Line: 1},
		Count: 3, Type: DependencyExternal, FirstCallLine: 4,
	}
	deps := []*Dependency{e1, e2}
	if reversed {
		deps = []*Dependency{e2, e1}
	}
	return &Graph{Dependencies: deps, Resolved: 4, Unresolved: 1}
}

func TestSerialize_RoundTrip(t *testing.T) {
	data, err := Serialize(twoEdgeGraph(false))
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if len(got.Dependencies) != 2 || got.Resolved != 4 || got.Unresolved != 1 {
		t.Errorf("round trip lost data: %+v", got)
	}
}

func TestSerialize_DeterministicAcrossEdgeOrder(t *testing.T) {
	var a, b SerializableGraph
	dataA, err := Serialize(twoEdgeGraph(false))
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	dataB, err := Serialize(twoEdgeGraph(true))
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	if err := json.Unmarshal(dataA, &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := json.Unmarshal(dataB, &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if a.ContentHash != b.ContentHash {
		t.Error("content hash depends on input edge order")
	}
	if a.Dependencies[0].From.File != "a.rb" {
		t.Errorf("first sorted edge from %q, want a.rb", a.Dependencies[0].From.File)
	}
}

func TestDeserialize_RejectsUnknownSchema(t *testing.T) {
	data, err := Serialize(twoEdgeGraph(false))
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	tampered := strings.Replace(string(data), `"schema_version": "`+SchemaVersion+`"`, `"schema_version": "99.0"`, 1)

	if _, err := Deserialize([]byte(tampered)); err == nil {
		t.Error("unknown schema version accepted")
	}
}
