// Package inject applies the scoped attribute and child injection rules
// declared in a source document's extension block to a compiled target tree.
package inject

import (
	"fmt"

	"github.com/martinhoang/urdf2mjcf/pkg/xmltree"
)

// Operation attribute names recognized on rule elements. Any other attribute
// of a rule element is a predicate constraint.
const (
	attrInjectAttrs    = "inject_attrs"
	attrReplaceAttrs   = "replace_attrs"
	attrInjectChildren = "inject_children"
)

// Rule is one declared injection operation. The tag names the target nodes it
// operates on; the predicate narrows them by exact attribute equality. A rule
// may carry any combination of payloads, nested rules inherit its matches as
// their scope.
type Rule struct {
	Tag       string
	Predicate []Pair

	InjectAttrs  []Pair
	ReplaceAttrs []Pair
	Children     []*xmltree.Element

	Nested []*Rule

	// Loc is the slash path of the rule inside the extension block, used in
	// diagnostics and syntax errors.
	Loc string
}

// ParseRules converts the children of an extension block element into an
// ordered rule list. A nil or empty block yields no rules.
func ParseRules(ext *xmltree.Element) ([]*Rule, error) {
	if ext == nil {
		return nil, nil
	}
	rules := make([]*Rule, 0, len(ext.Children))
	for i, child := range ext.Children {
		r, err := parseRule(child, fmt.Sprintf("%s[%d]", child.Tag, i))
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func parseRule(el *xmltree.Element, loc string) (*Rule, error) {
	r := &Rule{Tag: el.Tag, Loc: loc}

	hasChildOp := false
	for _, a := range el.Attrs {
		switch a.Key {
		case attrInjectAttrs:
			pairs, err := parsePairs(loc, a.Value)
			if err != nil {
				return nil, err
			}
			r.InjectAttrs = pairs
		case attrReplaceAttrs:
			pairs, err := parsePairs(loc, a.Value)
			if err != nil {
				return nil, err
			}
			r.ReplaceAttrs = pairs
		case attrInjectChildren:
			// Extra predicate constraints for the child payload form.
			hasChildOp = true
			if a.Value != "" {
				pairs, err := parsePairs(loc, a.Value)
				if err != nil {
					return nil, err
				}
				r.Predicate = append(r.Predicate, pairs...)
			}
		default:
			r.Predicate = setPair(r.Predicate, a.Key, a.Value)
		}
	}

	// Children are nested rules when any of them declares an operation
	// somewhere in its subtree; otherwise they are a verbatim child payload.
	if hasChildOp || !anyOpDescendant(el) {
		for _, c := range el.Children {
			r.Children = append(r.Children, c.Clone())
		}
		return r, nil
	}
	for i, c := range el.Children {
		nested, err := parseRule(c, fmt.Sprintf("%s/%s[%d]", loc, c.Tag, i))
		if err != nil {
			return nil, err
		}
		r.Nested = append(r.Nested, nested)
	}
	return r, nil
}

// anyOpDescendant reports whether any element below el carries an operation
// attribute.
func anyOpDescendant(el *xmltree.Element) bool {
	found := false
	el.Walk(func(n *xmltree.Element) bool {
		if n == el || found {
			return !found
		}
		for _, a := range n.Attrs {
			if a.Key == attrInjectAttrs || a.Key == attrReplaceAttrs || a.Key == attrInjectChildren {
				found = true
				return false
			}
		}
		return true
	})
	return found
}
