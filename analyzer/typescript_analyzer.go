// Copyright (C) 2026 Atlasview (dev@atlasview.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// TypeScriptAnalyzerOption configures a TypeScriptAnalyzer instance.
type TypeScriptAnalyzerOption func(*TypeScriptAnalyzer)

// WithTypeScriptMaxFileSize sets the maximum content size the AST path
// accepts. Larger files fall back to the regex analyzer.
func WithTypeScriptMaxFileSize(bytes int64) TypeScriptAnalyzerOption {
	return func(a *TypeScriptAnalyzer) {
		if bytes > 0 {
			a.maxFileSize = bytes
		}
	}
}

// WithTypeScriptFallback sets the regex analyzer used when the AST path
// fails. nil disables fallback (failures then surface as empty results).
func WithTypeScriptFallback(js *JavaScriptAnalyzer) TypeScriptAnalyzerOption {
	return func(a *TypeScriptAnalyzer) {
		a.fallback = js
	}
}

// WithTypeScriptExclusionPolicy sets the definition exclusion policy.
func WithTypeScriptExclusionPolicy(p *ExclusionPolicy) TypeScriptAnalyzerOption {
	return func(a *TypeScriptAnalyzer) {
		a.policy = p
	}
}

// TypeScriptAnalyzer extracts methods from TypeScript/TSX source via
// tree-sitter AST traversal, degrading to the JavaScript regex analyzer on
// parse failure or oversized input so partial results beat total failure.
//
// Thread Safety: each Analyze call creates its own tree-sitter parser, so
// the analyzer is safe for concurrent use.
type TypeScriptAnalyzer struct {
	maxFileSize int64
	fallback    *JavaScriptAnalyzer
	policy      *ExclusionPolicy
}

// NewTypeScriptAnalyzer creates a TypeScriptAnalyzer with the given options.
// Unless overridden, a default-configured JavaScript analyzer serves as the
// fallback path.
func NewTypeScriptAnalyzer(opts ...TypeScriptAnalyzerOption) *TypeScriptAnalyzer {
	a := &TypeScriptAnalyzer{
		maxFileSize: DefaultMaxFileSize,
		fallback:    NewJavaScriptAnalyzer(),
		policy:      DefaultExclusionPolicy(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Language returns LanguageTypeScript.
func (a *TypeScriptAnalyzer) Language() Language { return LanguageTypeScript }

// Supports reports whether lang is TypeScript.
func (a *TypeScriptAnalyzer) Supports(lang Language) bool { return lang == LanguageTypeScript }

// tsMethod pairs an extracted Method with the AST body node its calls are
// walked from (nil for signature-only kinds).
type tsMethod struct {
	method *Method
	body   *sitter.Node
}

// Analyze extracts methods via AST traversal with regex fallback.
//
// Description:
//
//	Parses with the typescript grammar (tsx for .tsx files) and visits type
//	aliases, interfaces plus their method signatures, enums, classes,
//	functions, arrow-function variable declarations (including hook-wrapped
//	bindings), and export declarations. Imports are handled by the shared
//	textual usage scanner. On any AST failure the JavaScript regex analyzer
//	produces the result instead, tagged Fallback with a syntax or
//	validation error prepended.
func (a *TypeScriptAnalyzer) Analyze(ctx context.Context, file *ParsedFile, defined *DefinedMethodSet) (*Result, error) {
	ctx, span := startAnalyzeSpan(ctx, "typescript", file.Path, len(file.Content))
	defer span.End()
	start := time.Now()

	if !utf8.ValidString(file.Content) {
		return nil, ErrInvalidContent
	}
	if int64(len(file.Content)) > a.maxFileSize {
		return a.fallbackAnalyze(ctx, file, defined, AnalysisError{
			Message:  fmt.Sprintf("%s: size %d exceeds limit %d", ErrFileTooLarge, len(file.Content), a.maxFileSize),
			Type:     ErrorTypeValidation,
			Severity: "warning",
		})
	}
	if len(file.Content) > WarnFileSize {
		slog.Warn("analyzing large typescript file",
			slog.String("file", file.Path),
			slog.Int("size_bytes", len(file.Content)))
	}

	content := []byte(file.Content)
	parser := sitter.NewParser()
	if strings.HasSuffix(file.Path, ".tsx") {
		parser.SetLanguage(tsx.GetLanguage())
	} else {
		parser.SetLanguage(typescript.GetLanguage())
	}

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return a.fallbackAnalyze(ctx, file, defined, AnalysisError{
			Message:  fmt.Sprintf("tree-sitter parse failed: %v", err),
			Type:     ErrorTypeSyntax,
			Severity: "warning",
		})
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return a.fallbackAnalyze(ctx, file, defined, AnalysisError{
			Message:  "source contains syntax errors",
			Type:     ErrorTypeSyntax,
			Severity: "warning",
		})
	}

	lines := strings.Split(file.Content, "\n")
	stripped := stripCommentsAndStrings(lines)

	extracted := make([]tsMethod, 0, 8)
	errs := make([]AnalysisError, 0)
	a.extractDeclarations(ctx, root, content, file.Path, &extracted, &errs)

	methods := make([]*Method, 0, len(extracted))
	combined := NewDefinedMethodSet()
	for _, tm := range extracted {
		methods = append(methods, tm.method)
		combined.Add(tm.method.Name)
	}
	combined.Merge(defined)

	for _, tm := range extracted {
		if tm.body != nil {
			tm.method.Calls = a.extractCallSites(ctx, tm.body, content, lines, combined)
		}
	}

	methods = append(methods, extractImportMethods(lines, stripped, file.Path)...)
	a.policy.Apply(methods)

	result := &Result{
		Methods: methods,
		Errors:  errs,
		Metadata: Metadata{
			Language:        "typescript",
			FilePath:        file.Path,
			LineCount:       len(lines),
			DurationMicro:   time.Since(start).Microseconds(),
			AnalyzedAtMilli: start.UnixMilli(),
		},
	}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("result validation failed: %w", err)
	}

	setAnalyzeSpanResult(span, len(result.Methods), len(result.Errors), false)
	recordAnalyzeMetrics(ctx, "typescript", time.Since(start), len(result.Methods), len(result.Errors))
	return result, nil
}

// fallbackAnalyze delegates to the JavaScript regex analyzer, retagging the
// result as a TypeScript fallback run.
func (a *TypeScriptAnalyzer) fallbackAnalyze(ctx context.Context, file *ParsedFile, defined *DefinedMethodSet, reason AnalysisError) (*Result, error) {
	if a.fallback == nil {
		return errorResult(Metadata{
			Language:        "typescript",
			FilePath:        file.Path,
			LineCount:       file.TotalLines,
			AnalyzedAtMilli: time.Now().UnixMilli(),
		}, reason), nil
	}

	slog.Debug("typescript AST path degraded to regex fallback",
		slog.String("file", file.Path),
		slog.String("reason", reason.Message))

	result, err := a.fallback.Analyze(ctx, file, defined)
	if err != nil {
		return nil, err
	}
	result.Metadata.Language = "typescript"
	result.Metadata.Fallback = true
	result.Errors = append([]AnalysisError{reason}, result.Errors...)
	return result, nil
}

// extractDeclarations dispatches on top-level node kinds.
func (a *TypeScriptAnalyzer) extractDeclarations(ctx context.Context, root *sitter.Node, content []byte, filePath string, out *[]tsMethod, errs *[]AnalysisError) {
	for i := 0; i < int(root.ChildCount()); i++ {
		if ctx.Err() != nil {
			return
		}
		a.processNode(root.Child(i), content, filePath, out, errs)
	}
}

// processNode handles one declaration node.
func (a *TypeScriptAnalyzer) processNode(node *sitter.Node, content []byte, filePath string, out *[]tsMethod, errs *[]AnalysisError) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "function_declaration":
		a.processFunction(node, content, filePath, out, errs)

	case "class_declaration", "abstract_class_declaration":
		a.processClass(node, content, filePath, out)

	case "interface_declaration":
		a.processInterface(node, content, filePath, out)

	case "type_alias_declaration":
		a.processNamedDeclaration(node, content, filePath, "type_identifier", KindTypeAlias, out, errs)

	case "enum_declaration":
		a.processNamedDeclaration(node, content, filePath, "identifier", KindEnum, out, errs)

	case "lexical_declaration", "variable_declaration":
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			if child.Type() == "variable_declarator" {
				a.processVariableDeclarator(child, content, filePath, out)
			}
		}

	case "export_statement":
		a.processExport(node, content, filePath, out, errs)
	}
}

// nodeText returns the source text of node.
func nodeText(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	return string(content[node.StartByte():node.EndByte()])
}

// nodeMethod builds a Method spanning node's source range.
func nodeMethod(node *sitter.Node, content []byte, name string, kind MethodKind, filePath string) *Method {
	return &Method{
		Name:      name,
		Kind:      kind,
		StartLine: int(node.StartPoint().Row + 1),
		EndLine:   int(node.EndPoint().Row + 1),
		FilePath:  filePath,
		Source:    nodeText(node, content),
		Calls:     make([]MethodCall, 0),
	}
}

// processFunction extracts a function declaration, classifying components
// (capitalized, returns JSX) and custom hooks (use-prefixed).
func (a *TypeScriptAnalyzer) processFunction(node *sitter.Node, content []byte, filePath string, out *[]tsMethod, errs *[]AnalysisError) {
	name := nodeText(node.ChildByFieldName("name"), content)
	if name == "" {
		*errs = append(*errs, AnalysisError{
			Message:  "function declaration without a name",
			Type:     ErrorTypeExtraction,
			Severity: "warning",
			Line:     int(node.StartPoint().Row + 1),
		})
		return
	}

	body := node.ChildByFieldName("body")
	kind := classifyFunction(name)
	if kind == KindComponent && !containsJSX(body) {
		kind = KindFunction
	}

	m := nodeMethod(node, content, name, kind, filePath)
	m.Parameters = parseParameters(trimParens(nodeText(node.ChildByFieldName("parameters"), content)))
	*out = append(*out, tsMethod{method: m, body: body})
}

// processClass extracts every method_definition in the class body.
func (a *TypeScriptAnalyzer) processClass(node *sitter.Node, content []byte, filePath string, out *[]tsMethod) {
	var body *sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "class_body" {
			body = node.Child(i)
			break
		}
	}
	if body == nil {
		return
	}

	for i := 0; i < int(body.ChildCount()); i++ {
		member := body.Child(i)
		if member.Type() != "method_definition" {
			continue
		}

		var name string
		kind := KindMethod
		private := false
		for j := 0; j < int(member.ChildCount()); j++ {
			c := member.Child(j)
			switch c.Type() {
			case "property_identifier":
				name = nodeText(c, content)
			case "private_property_identifier":
				name = strings.TrimPrefix(nodeText(c, content), "#")
				private = true
			case "static":
				kind = KindClassMethod
			case "accessibility_modifier":
				if nodeText(c, content) == "private" {
					private = true
				}
			}
		}
		if name == "" {
			continue
		}

		m := nodeMethod(member, content, name, kind, filePath)
		m.IsPrivate = private
		m.Parameters = parseParameters(trimParens(nodeText(member.ChildByFieldName("parameters"), content)))
		*out = append(*out, tsMethod{method: m, body: member.ChildByFieldName("body")})
	}
}

// processInterface extracts method signatures as interface_method entries.
func (a *TypeScriptAnalyzer) processInterface(node *sitter.Node, content []byte, filePath string, out *[]tsMethod) {
	var body *sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		t := node.Child(i).Type()
		if t == "interface_body" || t == "object_type" {
			body = node.Child(i)
			break
		}
	}
	if body == nil {
		return
	}

	for i := 0; i < int(body.ChildCount()); i++ {
		member := body.Child(i)
		if member.Type() != "method_signature" {
			continue
		}
		name := nodeText(member.ChildByFieldName("name"), content)
		if name == "" {
			continue
		}
		m := nodeMethod(member, content, name, KindInterfaceMethod, filePath)
		m.Parameters = parseParameters(trimParens(nodeText(member.ChildByFieldName("parameters"), content)))
		*out = append(*out, tsMethod{method: m})
	}
}

// processNamedDeclaration extracts single-name declarations (type aliases,
// enums) whose name child has the given node type.
func (a *TypeScriptAnalyzer) processNamedDeclaration(node *sitter.Node, content []byte, filePath, nameType string, kind MethodKind, out *[]tsMethod, errs *[]AnalysisError) {
	var name string
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == nameType {
			name = nodeText(node.Child(i), content)
			break
		}
	}
	if name == "" {
		*errs = append(*errs, AnalysisError{
			Message:  fmt.Sprintf("%s declaration without a name", kind),
			Type:     ErrorTypeExtraction,
			Severity: "warning",
			Line:     int(node.StartPoint().Row + 1),
		})
		return
	}
	*out = append(*out, tsMethod{method: nodeMethod(node, content, name, kind, filePath)})
}

// processVariableDeclarator extracts arrow-function bindings, including
// hook-wrapped forms where the value is a use*-call carrying an inline
// arrow-function argument.
func (a *TypeScriptAnalyzer) processVariableDeclarator(node *sitter.Node, content []byte, filePath string, out *[]tsMethod) {
	name := nodeText(node.ChildByFieldName("name"), content)
	if name == "" || !isIdentifier(name) {
		return
	}

	value := node.ChildByFieldName("value")
	if value == nil {
		return
	}

	var body *sitter.Node
	switch value.Type() {
	case "arrow_function", "function", "function_expression":
		body = value
	case "call_expression":
		// Hook-style wrapper: const memo = useMemo(() => ..., [deps])
		fn := value.ChildByFieldName("function")
		if fn == nil || !strings.HasPrefix(nodeText(fn, content), "use") {
			return
		}
		body = firstArrowArgument(value)
		if body == nil {
			return
		}
	default:
		return
	}

	kind := classifyFunction(name)
	if kind == KindComponent && !containsJSX(body) {
		kind = KindFunction
	}

	m := nodeMethod(node, content, name, kind, filePath)
	if params := value.ChildByFieldName("parameters"); params != nil {
		m.Parameters = parseParameters(trimParens(nodeText(params, content)))
	}
	*out = append(*out, tsMethod{method: m, body: body})
}

// processExport recurses into exported declarations and records bare
// re-export statements as export pseudo-methods.
func (a *TypeScriptAnalyzer) processExport(node *sitter.Node, content []byte, filePath string, out *[]tsMethod, errs *[]AnalysisError) {
	hadDeclaration := false
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "function_declaration", "class_declaration", "abstract_class_declaration",
			"interface_declaration", "type_alias_declaration", "enum_declaration",
			"lexical_declaration", "variable_declaration":
			hadDeclaration = true
			a.processNode(child, content, filePath, out, errs)
		}
	}
	if hadDeclaration {
		return
	}

	// Bare export list or re-export: "export { a, b }" / "export default x".
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "export_clause" {
			for j := 0; j < int(child.ChildCount()); j++ {
				spec := child.Child(j)
				if spec.Type() != "export_specifier" {
					continue
				}
				name := nodeText(spec.ChildByFieldName("name"), content)
				if name != "" {
					*out = append(*out, tsMethod{method: nodeMethod(node, content, name, KindExport, filePath)})
				}
			}
			return
		}
		if child.Type() == "identifier" {
			// export default someName
			*out = append(*out, tsMethod{method: nodeMethod(node, content, nodeText(child, content), KindExport, filePath)})
			return
		}
	}
}

// firstArrowArgument returns the first arrow_function in a call's arguments.
func firstArrowArgument(call *sitter.Node) *sitter.Node {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	for i := 0; i < int(args.ChildCount()); i++ {
		if args.Child(i).Type() == "arrow_function" {
			return args.Child(i)
		}
	}
	return nil
}

// containsJSX reports whether the subtree produces JSX output.
func containsJSX(node *sitter.Node) bool {
	if node == nil {
		return false
	}
	stack := []*sitter.Node{node}
	visited := 0
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch n.Type() {
		case "jsx_element", "jsx_self_closing_element", "jsx_fragment":
			return true
		}
		visited++
		if visited > 10_000 {
			return false
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if c := n.Child(i); c != nil {
				stack = append(stack, c)
			}
		}
	}
	return false
}

// extractCallSites walks a body subtree collecting call_expression targets
// that pass the DefinedMethodSet filter. Iterative stack with bounded depth
// and periodic context checks so pathological nesting cannot stall a batch.
func (a *TypeScriptAnalyzer) extractCallSites(ctx context.Context, body *sitter.Node, content []byte, lines []string, defined *DefinedMethodSet) []MethodCall {
	calls := make([]MethodCall, 0, 4)

	type stackEntry struct {
		node  *sitter.Node
		depth int
	}
	stack := []stackEntry{{node: body, depth: 0}}
	nodeCount := 0

	for len(stack) > 0 {
		entry := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := entry.node
		if node == nil || entry.depth > MaxCallExpressionDepth {
			continue
		}

		nodeCount++
		if nodeCount%100 == 0 && ctx.Err() != nil {
			return calls
		}
		if len(calls) >= MaxCallSitesPerMethod {
			slog.Warn("max call sites per method reached",
				slog.Int("limit", MaxCallSitesPerMethod))
			return calls
		}

		if node.Type() == "call_expression" {
			if call := a.extractSingleCall(node, content, lines, defined); call != nil {
				calls = append(calls, *call)
			}
		}

		for i := int(node.ChildCount()) - 1; i >= 0; i-- {
			if c := node.Child(i); c != nil {
				stack = append(stack, stackEntry{node: c, depth: entry.depth + 1})
			}
		}
	}

	return calls
}

// extractSingleCall resolves one call_expression to a MethodCall, covering
// bare calls, member calls, and optional-chain member calls.
func (a *TypeScriptAnalyzer) extractSingleCall(node *sitter.Node, content []byte, lines []string, defined *DefinedMethodSet) *MethodCall {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return nil
	}

	var name string
	var nameNode *sitter.Node
	switch fn.Type() {
	case "identifier":
		name = nodeText(fn, content)
		nameNode = fn
	case "member_expression":
		prop := fn.ChildByFieldName("property")
		if prop == nil {
			return nil
		}
		name = nodeText(prop, content)
		nameNode = prop
	default:
		return nil
	}

	if name == "" {
		return nil
	}
	if _, kw := jsKeywords[name]; kw {
		return nil
	}
	if !defined.Has(name) {
		return nil
	}

	line := int(nameNode.StartPoint().Row + 1)
	return &MethodCall{
		Name:    name,
		Line:    line,
		Column:  int(nameNode.StartPoint().Column),
		Context: strings.TrimSpace(lineAt(lines, line-1)),
	}
}

// trimParens removes one surrounding ( ) pair from a parameter-list text.
func trimParens(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	return s
}

// Compile-time interface compliance check.
var _ Analyzer = (*TypeScriptAnalyzer)(nil)
