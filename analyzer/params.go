// Copyright (C) 2026 Atlasview (dev@atlasview.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analyzer

import "strings"

// splitParameters splits a raw parameter list on commas, respecting one
// level of bracket nesting so defaults like "opts = {}" and destructured
// parameters like "{ id, name }" stay intact.
func splitParameters(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var parts []string
	depth := 0
	start := 0
	for i, r := range raw {
		switch r {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, raw[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, raw[start:])
	return parts
}

// parseParameters extracts bare parameter names from a raw declaration
// parameter list. Defaults, type annotations, and rest/keyword markers are
// stripped: "a, b = 1, *rest, c: 2" yields ["a", "b", "rest", "c"], and
// "id: number, opts?: Options" yields ["id", "opts"].
func parseParameters(raw string) []string {
	parts := splitParameters(raw)
	if len(parts) == 0 {
		return nil
	}

	names := make([]string, 0, len(parts))
	for _, part := range parts {
		name := part

		// Strip defaults and type annotations.
		if idx := strings.IndexAny(name, "=:"); idx >= 0 {
			name = name[:idx]
		}

		name = strings.TrimSpace(name)
		name = strings.TrimLeft(name, "*&.")
		name = strings.TrimSuffix(name, "?")
		name = strings.Trim(name, "{}[]() \t")
		if name == "" {
			continue
		}

		// Destructured groups keep only the first bare name.
		if idx := strings.IndexAny(name, ", "); idx >= 0 {
			name = name[:idx]
		}
		if name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return names
}
