// Copyright (C) 2026 Atlasview (dev@atlasview.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// SchemaVersion identifies the serialized graph layout. Bump on any change
// to the JSON shape so renderers can reject graphs they do not understand.
const SchemaVersion = "1.0"

// SerializableGraph is the stable on-disk form of a Graph.
type SerializableGraph struct {
	SchemaVersion string        `json:"schema_version"`
	GeneratedAt   string        `json:"generated_at"`
	ContentHash   string        `json:"content_hash"`
	EdgeCount     int           `json:"edge_count"`
	Resolved      int           `json:"resolved"`
	Unresolved    int           `json:"unresolved"`
	Dependencies  []*Dependency `json:"dependencies"`
}

// Serialize produces the deterministic JSON form of the graph.
//
// Description:
//
//	Edges are sorted by (from file, from line, to file, to line) so the same
//	graph always serializes byte-identically apart from the timestamp. The
//	content hash covers the sorted edge list only, letting consumers detect
//	unchanged graphs across runs without diffing.
func Serialize(g *Graph) ([]byte, error) {
	deps := make([]*Dependency, len(g.Dependencies))
	copy(deps, g.Dependencies)
	sort.Slice(deps, func(i, j int) bool {
		a, b := deps[i], deps[j]
		if a.From.File != b.From.File {
			return a.From.File < b.From.File
		}
		if a.From.Line != b.From.Line {
			return a.From.Line < b.From.Line
		}
		if a.To.File != b.To.File {
			return a.To.File < b.To.File
		}
		return a.To.Line < b.To.Line
	})

	edgeJSON, err := json.Marshal(deps)
	if err != nil {
		return nil, fmt.Errorf("marshaling edges: %w", err)
	}
	hash := sha256.Sum256(edgeJSON)

	out := SerializableGraph{
		SchemaVersion: SchemaVersion,
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
		ContentHash:   hex.EncodeToString(hash[:]),
		EdgeCount:     len(deps),
		Resolved:      g.Resolved,
		Unresolved:    g.Unresolved,
		Dependencies:  deps,
	}
	return json.MarshalIndent(out, "", "  ")
}

// Deserialize parses a serialized graph, rejecting unknown schema versions.
func Deserialize(data []byte) (*Graph, error) {
	var sg SerializableGraph
	if err := json.Unmarshal(data, &sg); err != nil {
		return nil, fmt.Errorf("unmarshaling graph: %w", err)
	}
	if sg.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("unsupported schema version %q (want %q)", sg.SchemaVersion, SchemaVersion)
	}
	return &Graph{
		Dependencies: sg.Dependencies,
		Resolved:     sg.Resolved,
		Unresolved:   sg.Unresolved,
	}, nil
}
