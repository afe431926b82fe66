// Copyright (C) 2026 Atlasview (dev@atlasview.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/atlasview/codeatlas/analyzer"
	"github.com/atlasview/codeatlas/config"
	"github.com/atlasview/codeatlas/engine"
	"github.com/atlasview/codeatlas/graph"
)

// languageByExtension maps file extensions to analyzer languages.
var languageByExtension = map[string]analyzer.Language{
	".rb":  analyzer.LanguageRuby,
	".js":  analyzer.LanguageJavaScript,
	".jsx": analyzer.LanguageJavaScript,
	".mjs": analyzer.LanguageJavaScript,
	".ts":  analyzer.LanguageTypeScript,
	".tsx": analyzer.LanguageTypeScript,
	".erb": analyzer.LanguageERB,
}

// defaultSkipDirs are never descended into.
var defaultSkipDirs = map[string]struct{}{
	"vendor":       {},
	"node_modules": {},
	".git":         {},
	"dist":         {},
	"tmp":          {},
}

func runAnalyzeCommand(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	shutdown, err := setupTracing()
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Warn("trace provider shutdown failed", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load(analyzeRoot)
	if err != nil {
		return err
	}

	files, err := collectFiles(analyzeRoot, cfg.SkipDirs)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", analyzeRoot, err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no analyzable files under %s", analyzeRoot)
	}
	slog.Info("scan complete", slog.Int("files", len(files)))

	eng, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	methods, stats := eng.AnalyzeFiles(ctx, files, nil)
	g := graph.NewExtractor().Extract(ctx, methods)

	data, err := graph.Serialize(g)
	if err != nil {
		return fmt.Errorf("serializing graph: %w", err)
	}

	if analyzeJSON != "" {
		if err := os.WriteFile(analyzeJSON, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", analyzeJSON, err)
		}
		slog.Info("graph written",
			slog.String("path", analyzeJSON),
			slog.Int("edges", len(g.Dependencies)),
			slog.Int("methods", stats.Methods))
		return nil
	}

	fmt.Fprintln(os.Stdout, string(data))
	return nil
}

// buildEngine applies the project config to the analyzer stack.
func buildEngine(cfg config.Config) (*engine.Engine, error) {
	policy := analyzer.DefaultExclusionPolicy().Extend(cfg.ExcludeMethods, cfg.AllowMethods)

	regOpts := []analyzer.RegistryOption{
		analyzer.WithExclusionPolicy(policy),
		analyzer.WithAllowedCalls(cfg.AllowMethods),
	}
	if cfg.MaxFileSizeBytes > 0 {
		regOpts = append(regOpts, analyzer.WithMaxFileSize(cfg.MaxFileSizeBytes))
	}

	cacheOpts := []engine.CacheOption{}
	if cfg.CacheCapacity > 0 {
		cacheOpts = append(cacheOpts, engine.WithCacheCapacity(cfg.CacheCapacity))
	}
	if cfg.CacheTTLMinutes > 0 {
		cacheOpts = append(cacheOpts, engine.WithCacheTTL(time.Duration(cfg.CacheTTLMinutes)*time.Minute))
	}
	cache, err := engine.NewCache(cacheOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	return engine.NewEngine(
		engine.WithRegistry(analyzer.NewRegistry(regOpts...)),
		engine.WithCache(cache),
	), nil
}

// collectFiles walks the root gathering every analyzable source file in
// deterministic (lexical walk) order.
func collectFiles(root string, extraSkips []string) ([]*analyzer.ParsedFile, error) {
	skip := make(map[string]struct{}, len(defaultSkipDirs)+len(extraSkips))
	for name := range defaultSkipDirs {
		skip[name] = struct{}{}
	}
	for _, name := range extraSkips {
		skip[name] = struct{}{}
	}

	var files []*analyzer.ParsedFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if _, ok := skip[d.Name()]; ok && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		lang, ok := languageByExtension[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("skipping unreadable file",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		files = append(files, &analyzer.ParsedFile{
			Path:       rel,
			Content:    string(content),
			Language:   lang,
			Directory:  filepath.ToSlash(filepath.Dir(rel)),
			FileName:   filepath.Base(rel),
			TotalLines: strings.Count(string(content), "\n") + 1,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
