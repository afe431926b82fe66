// Copyright (C) 2026 Atlasview (dev@atlasview.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analyzer

// ExclusionPolicy decides which method names are suppressed from
// jump-to-definition status. Excluded methods still participate as graph
// callees; they are only hidden as navigation targets.
//
// The default table encodes Rails lifecycle conventions, but the policy is
// injectable so the core stays framework-agnostic: hosts analyzing other
// stacks supply their own table.
//
// Thread Safety: immutable after construction, safe for concurrent reads.
type ExclusionPolicy struct {
	excluded map[string]struct{}
	allowed  map[string]struct{}
}

// NewExclusionPolicy builds a policy from explicit deny and allow lists.
// Allow entries win over deny entries, which lets a host re-enable a single
// name from the default table without rebuilding it.
func NewExclusionPolicy(excluded, allowed []string) *ExclusionPolicy {
	p := &ExclusionPolicy{
		excluded: make(map[string]struct{}, len(excluded)),
		allowed:  make(map[string]struct{}, len(allowed)),
	}
	for _, n := range excluded {
		if n != "" {
			p.excluded[n] = struct{}{}
		}
	}
	for _, n := range allowed {
		if n != "" {
			p.allowed[n] = struct{}{}
		}
	}
	return p
}

// DefaultExclusionPolicy returns the Rails-convention table: framework
// lifecycle hooks and ubiquitous overrides that would otherwise swamp the
// method list with meaningless jump targets.
func DefaultExclusionPolicy() *ExclusionPolicy {
	return NewExclusionPolicy([]string{
		"initialize",
		"method_missing",
		"respond_to_missing?",
		"to_s",
		"to_h",
		"inspect",
		"before_action",
		"after_action",
		"around_action",
		"before_validation",
		"after_validation",
		"before_save",
		"after_save",
		"before_create",
		"after_create",
		"before_destroy",
		"after_destroy",
		"rescue_from",
		"constructor",
		"componentDidMount",
		"componentWillUnmount",
		"componentDidUpdate",
		"shouldComponentUpdate",
		"render",
	}, nil)
}

// Excluded reports whether name is suppressed from definition status.
// Safe on a nil receiver (nothing is excluded).
func (p *ExclusionPolicy) Excluded(name string) bool {
	if p == nil {
		return false
	}
	if _, ok := p.allowed[name]; ok {
		return false
	}
	_, ok := p.excluded[name]
	return ok
}

// Extend returns a copy of p with extra deny and allow entries merged in.
// Safe on a nil receiver (behaves like building a fresh policy).
func (p *ExclusionPolicy) Extend(excluded, allowed []string) *ExclusionPolicy {
	next := NewExclusionPolicy(excluded, allowed)
	if p != nil {
		for n := range p.excluded {
			next.excluded[n] = struct{}{}
		}
		for n := range p.allowed {
			next.allowed[n] = struct{}{}
		}
	}
	return next
}

// Apply stamps IsExcluded on every method whose name the policy suppresses.
// Only definition kinds are stamped; pseudo-methods are left alone.
func (p *ExclusionPolicy) Apply(methods []*Method) {
	if p == nil {
		return
	}
	for _, m := range methods {
		if m != nil && m.Kind.IsDefinition() && p.Excluded(m.Name) {
			m.IsExcluded = true
		}
	}
}
