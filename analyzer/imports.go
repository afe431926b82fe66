// Copyright (C) 2026 Atlasview (dev@atlasview.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analyzer

import (
	"regexp"
	"strings"
)

// Import statement shapes. Shared by the JavaScript regex analyzer and the
// TypeScript AST analyzer: usage scanning is textual in both paths.
var (
	// jsImportRe matches "import <clause> from '<module>'".
	jsImportRe = regexp.MustCompile(`^\s*import\s+(.+?)\s+from\s+['"]([^'"]+)['"]`)

	// jsSideEffectImportRe matches bare "import '<module>'".
	jsSideEffectImportRe = regexp.MustCompile(`^\s*import\s+['"]([^'"]+)['"]`)

	// jsNamespaceImportRe matches "* as name" inside an import clause.
	jsNamespaceImportRe = regexp.MustCompile(`\*\s+as\s+([A-Za-z_$][\w$]*)`)
)

// importedName is one local binding introduced by an import statement.
type importedName struct {
	// Local is the name visible in this file.
	Local string

	// Original is the exported name in the source module (differs from Local
	// for aliased imports).
	Original string
}

// importDecl is one parsed import statement.
type importDecl struct {
	// Line is the 1-based line of the import statement.
	Line int

	// Module is the import specifier string.
	Module string

	// Names are the local bindings, in declaration order.
	Names []importedName
}

// importUsage is one detected use of an imported name.
type importUsage struct {
	// Line is the 1-based usage line.
	Line int

	// Context is the trimmed source line.
	Context string
}

// parseImportClause splits an import clause into local bindings.
//
// Handles default imports ("React"), namespace imports ("* as fs"), named
// lists with aliasing ("{ useState, useEffect as effect }"), and the
// combined default+named form ("React, { useState }").
func parseImportClause(clause string) []importedName {
	names := make([]importedName, 0, 2)
	clause = strings.TrimSpace(clause)

	if m := jsNamespaceImportRe.FindStringSubmatch(clause); m != nil {
		names = append(names, importedName{Local: m[1], Original: "*"})
		return names
	}

	named := ""
	if open := strings.Index(clause, "{"); open >= 0 {
		closeIdx := strings.LastIndex(clause, "}")
		if closeIdx > open {
			named = clause[open+1 : closeIdx]
		} else {
			named = clause[open+1:] // unterminated list, take what is there
		}
		clause = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(clause[:open]), ","))
	}

	// Whatever precedes the named list is the default import.
	if clause != "" && isIdentifier(clause) {
		names = append(names, importedName{Local: clause, Original: "default"})
	}

	for _, part := range strings.Split(named, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		original, local := part, part
		if idx := strings.Index(part, " as "); idx >= 0 {
			original = strings.TrimSpace(part[:idx])
			local = strings.TrimSpace(part[idx+4:])
		}
		// "type Foo" in TS named lists imports only a type name.
		original = strings.TrimPrefix(original, "type ")
		local = strings.TrimPrefix(local, "type ")
		if isIdentifier(local) {
			names = append(names, importedName{Local: local, Original: original})
		}
	}

	return names
}

// parseImports scans all lines for import statements.
func parseImports(lines []string) []importDecl {
	decls := make([]importDecl, 0, 4)
	for i, line := range lines {
		if m := jsImportRe.FindStringSubmatch(line); m != nil {
			names := parseImportClause(m[1])
			if len(names) == 0 {
				continue
			}
			decls = append(decls, importDecl{Line: i + 1, Module: m[2], Names: names})
			continue
		}
		if jsSideEffectImportRe.MatchString(line) {
			continue // side-effect imports bind no names
		}
	}
	return decls
}

// usagePatterns builds the six usage-shape patterns for one imported local
// name: call, JSX tag, property access, assignment RHS, type annotation, and
// destructure/argument position.
func usagePatterns(local string) []*regexp.Regexp {
	q := regexp.QuoteMeta(local)
	return []*regexp.Regexp{
		regexp.MustCompile(`\b` + q + `\s*\(`),              // call
		regexp.MustCompile(`<` + q + `[\s/>]`),              // JSX tag
		regexp.MustCompile(`\b` + q + `\s*[.?]`),            // property access
		regexp.MustCompile(`=\s*` + q + `\b`),               // assignment RHS
		regexp.MustCompile(`:\s*` + q + `\b`),               // type annotation
		regexp.MustCompile(`[({,]\s*` + q + `\s*[,})\]]`),   // destructure / argument
	}
}

// scanImportUsages finds every use of local after the import line. Matching
// runs over stripped lines so names inside strings and comments never count;
// the recorded context is the raw line.
//
// The import line itself is skipped so the declaration never counts as its
// own usage. Each line yields at most one usage per name even when several
// shapes match.
func scanImportUsages(raw, stripped []string, importLine int, local string) []importUsage {
	patterns := usagePatterns(local)
	usages := make([]importUsage, 0, 2)

	for i := importLine; i < len(stripped); i++ {
		line := stripped[i]
		if !strings.Contains(line, local) {
			continue
		}
		for _, re := range patterns {
			if re.MatchString(line) {
				usages = append(usages, importUsage{Line: i + 1, Context: strings.TrimSpace(raw[i])})
				break
			}
		}
	}
	return usages
}

// extractImportMethods produces the bidirectional import navigation model.
//
// Description:
//
//	For every imported local name: one Method of kind import anchored at the
//	import statement whose Calls list one entry per usage line (import →
//	usages), and one Method of kind import_usage per usage whose
//	ImportSource and whose single call line are both the import statement's
//	line (usage → import). The reverse anchor is the import's line by
//	construction, never the usage's.
// Import statements are parsed from the raw lines (stripping blanks the
// module string), usages are matched on the stripped lines.
func extractImportMethods(raw, stripped []string, filePath string) []*Method {
	methods := make([]*Method, 0, 4)

	for _, decl := range parseImports(raw) {
		context := strings.TrimSpace(raw[decl.Line-1])
		for _, name := range decl.Names {
			usages := scanImportUsages(raw, stripped, decl.Line, name.Local)

			importMethod := &Method{
				Name:      name.Local,
				Kind:      KindImport,
				StartLine: decl.Line,
				EndLine:   decl.Line,
				FilePath:  filePath,
				Source:    context,
				Calls:     make([]MethodCall, 0, len(usages)),
			}
			for _, u := range usages {
				importMethod.Calls = append(importMethod.Calls, MethodCall{
					Name:    name.Local,
					Line:    u.Line,
					Context: u.Context,
				})
			}
			methods = append(methods, importMethod)

			for _, u := range usages {
				methods = append(methods, &Method{
					Name:         name.Local,
					Kind:         KindImportUsage,
					StartLine:    u.Line,
					EndLine:      u.Line,
					FilePath:     filePath,
					Source:       u.Context,
					ImportSource: decl.Line,
					Calls: []MethodCall{{
						Name:    name.Local,
						Line:    decl.Line, // anchor is the import line, not the usage
						Context: context,
					}},
				})
			}
		}
	}

	return methods
}

// isIdentifier reports whether s is a bare JS identifier.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
