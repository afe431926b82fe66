// Copyright (C) 2026 Atlasview (dev@atlasview.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CallerInfo is one inbound edge of a queried method.
type CallerInfo struct {
	Caller Endpoint       `json:"caller"`
	Count  int            `json:"count"`
	Type   DependencyType `json:"type"`
}

// CalleeInfo is one outbound edge of a queried method.
type CalleeInfo struct {
	Callee Endpoint       `json:"callee"`
	Count  int            `json:"count"`
	Type   DependencyType `json:"type"`
}

// FindCallers returns every method that calls name, sorted by file then line.
//
// An empty file filters nothing; a non-empty file restricts matches to
// callees defined in that file, which disambiguates duplicate names.
func (g *Graph) FindCallers(ctx context.Context, name, file string) []CallerInfo {
	_, span := tracer.Start(ctx, "graph.find_callers",
		trace.WithAttributes(attribute.String("target.name", name)))
	defer span.End()

	callers := make([]CallerInfo, 0, 4)
	for _, dep := range g.Dependencies {
		if dep.To.Name != name {
			continue
		}
		if file != "" && dep.To.File != file {
			continue
		}
		callers = append(callers, CallerInfo{Caller: dep.From, Count: dep.Count, Type: dep.Type})
	}

	sort.Slice(callers, func(i, j int) bool {
		if callers[i].Caller.File != callers[j].Caller.File {
			return callers[i].Caller.File < callers[j].Caller.File
		}
		return callers[i].Caller.Line < callers[j].Caller.Line
	})
	span.SetAttributes(attribute.Int("callers.count", len(callers)))
	return callers
}

// FindCallees returns every method that name calls, sorted by file then line.
func (g *Graph) FindCallees(ctx context.Context, name, file string) []CalleeInfo {
	_, span := tracer.Start(ctx, "graph.find_callees",
		trace.WithAttributes(attribute.String("source.name", name)))
	defer span.End()

	callees := make([]CalleeInfo, 0, 4)
	for _, dep := range g.Dependencies {
		if dep.From.Name != name {
			continue
		}
		if file != "" && dep.From.File != file {
			continue
		}
		callees = append(callees, CalleeInfo{Callee: dep.To, Count: dep.Count, Type: dep.Type})
	}

	sort.Slice(callees, func(i, j int) bool {
		if callees[i].Callee.File != callees[j].Callee.File {
			return callees[i].Callee.File < callees[j].Callee.File
		}
		return callees[i].Callee.Line < callees[j].Callee.Line
	})
	span.SetAttributes(attribute.Int("callees.count", len(callees)))
	return callees
}
