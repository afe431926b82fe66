// Copyright (C) 2026 Atlasview (dev@atlasview.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"testing"
	"time"

	"github.com/atlasview/codeatlas/analyzer"
)

func sampleResult() *analyzer.Result {
	return &analyzer.Result{
		Methods: []*analyzer.Method{
			{Name: "sample", Kind: analyzer.KindFunction, StartLine: 1, EndLine: 2},
		},
		Errors:   []analyzer.AnalysisError{},
		Metadata: analyzer.Metadata{Language: "typescript", FilePath: "x.ts"},
	}
}

func TestCache_HitAndMiss(t *testing.T) {
	c, err := NewCache()
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	if got := c.Get("absent"); got != nil {
		t.Errorf("Get(absent) = %v, want nil", got)
	}

	c.Put("k", sampleResult())
	hit := c.Get("k")
	if hit == nil {
		t.Fatal("Get after Put missed")
	}
	if !hit.Metadata.CacheHit {
		t.Error("hit result not stamped CacheHit")
	}
	if len(hit.Methods) != 1 || hit.Methods[0].Name != "sample" {
		t.Errorf("hit methods = %+v, want the stored method", hit.Methods)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Entries != 1 {
		t.Errorf("stats = %+v, want 1 hit, 1 miss, 1 entry", stats)
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c, err := NewCache(WithCacheTTL(10 * time.Millisecond))
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	c.Put("k", sampleResult())
	time.Sleep(25 * time.Millisecond)
	if got := c.Get("k"); got != nil {
		t.Error("expired entry served")
	}
	if c.Stats().Entries != 0 {
		t.Error("expired entry not removed on access")
	}
}

func TestCache_AccessCountCeiling(t *testing.T) {
	c, err := NewCache(WithCacheMaxAccesses(2))
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	c.Put("k", sampleResult())
	if c.Get("k") == nil || c.Get("k") == nil {
		t.Fatal("entry evicted before the ceiling")
	}
	if c.Get("k") != nil {
		t.Error("entry survived past the access ceiling")
	}
}

func TestCache_CapacityEviction(t *testing.T) {
	c, err := NewCache(WithCacheCapacity(2))
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	c.Put("a", sampleResult())
	c.Put("b", sampleResult())
	c.Put("c", sampleResult()) // evicts "a", the least recently used
	if c.Get("a") != nil {
		t.Error("LRU entry survived past capacity")
	}
	if c.Get("c") == nil {
		t.Error("newest entry evicted")
	}
}

func TestCache_ErrorOnlyResultsNotCached(t *testing.T) {
	c, err := NewCache()
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	c.Put("k", &analyzer.Result{
		Methods: []*analyzer.Method{},
		Errors:  []analyzer.AnalysisError{{Message: "boom", Type: analyzer.ErrorTypeRuntime}},
	})
	if c.Stats().Entries != 0 {
		t.Error("error-only result cached; transient failures must retry")
	}
}

func TestCache_Clear(t *testing.T) {
	c, err := NewCache()
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	c.Put("k", sampleResult())
	c.Get("k")
	c.Clear()

	stats := c.Stats()
	if stats.Entries != 0 || stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("stats after Clear = %+v, want all zero", stats)
	}
}

func TestCache_EvictionLifecycle(t *testing.T) {
	c, err := NewCache(WithCacheTTL(5 * time.Millisecond))
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	c.Put("k", sampleResult())
	c.StartEviction(context.Background(), 10*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	c.StopEviction()

	if c.Stats().Entries != 0 {
		t.Error("sweeper did not remove the expired entry")
	}

	// Restart after stop works.
	c.StartEviction(context.Background(), 10*time.Millisecond)
	c.StopEviction()
}

func TestCache_KeyBindsContentAndDefinitions(t *testing.T) {
	fileA := &analyzer.ParsedFile{Path: "x.ts", Content: "a", Language: analyzer.LanguageTypeScript}
	fileB := &analyzer.ParsedFile{Path: "x.ts", Content: "b", Language: analyzer.LanguageTypeScript}
	setA := analyzer.NewDefinedMethodSet("one")
	setB := analyzer.NewDefinedMethodSet("two")

	if Key(fileA, setA) == Key(fileB, setA) {
		t.Error("key ignores content changes")
	}
	if Key(fileA, setA) == Key(fileA, setB) {
		t.Error("key ignores definition set changes")
	}
	if Key(fileA, setA) != Key(fileA, analyzer.NewDefinedMethodSet("one")) {
		t.Error("key not deterministic for equal inputs")
	}
}
