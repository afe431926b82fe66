// Copyright (C) 2026 Atlasview (dev@atlasview.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the optional per-project atlas.config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up under the project root.
const FileName = "atlas.config.yaml"

// Config holds user-provided analysis overrides.
//
// Description:
//
//	Loaded from <projectRoot>/atlas.config.yaml. All fields are optional.
//	A missing config file is not an error (zero-config works out of the box).
//
// Thread Safety: Safe for concurrent reads after construction.
type Config struct {
	// MaxFileSizeBytes overrides the per-file analysis ceiling. Zero keeps
	// the default.
	MaxFileSizeBytes int64 `yaml:"max_file_size_bytes"`

	// CacheCapacity overrides the result cache entry count. Zero keeps the
	// default.
	CacheCapacity int `yaml:"cache_capacity"`

	// CacheTTLMinutes overrides the result cache time-to-live. Zero keeps
	// the default.
	CacheTTLMinutes int `yaml:"cache_ttl_minutes"`

	// ExcludeMethods adds method names to the definition exclusion list.
	// Example: ["setup", "teardown"]
	ExcludeMethods []string `yaml:"exclude_methods"`

	// AllowMethods adds names the call filter accepts even when undefined
	// in the scanned files, and removes them from exclusion.
	// Example: ["perform_async", "broadcast"]
	AllowMethods []string `yaml:"allow_methods"`

	// SkipDirs adds directory names the file walker skips, on top of the
	// built-in vendor/node_modules/.git set.
	SkipDirs []string `yaml:"skip_dirs"`
}

// Load reads atlas.config.yaml from the project root.
//
// Description:
//
//	If the project root is empty or the file does not exist, returns an
//	empty config with no error. Only returns an error if the file exists
//	but cannot be parsed.
func Load(projectRoot string) (Config, error) {
	if projectRoot == "" {
		return Config{}, nil
	}

	configPath := filepath.Join(projectRoot, FileName)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("reading %s: %w", FileName, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", FileName, err)
	}

	return config, nil
}
