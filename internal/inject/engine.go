package inject

import (
	"go.uber.org/zap"

	"github.com/martinhoang/urdf2mjcf/internal/logger"
	"github.com/martinhoang/urdf2mjcf/pkg/xmltree"
)

// Apply evaluates rules against doc in declaration order, mutating doc in
// place. Rules are strictly sequential; match sets are visited in document
// order and children injected by earlier rules are visible to later ones.
func Apply(doc *xmltree.Element, rules []*Rule) {
	for _, r := range rules {
		applyRule(doc, r)
	}
}

// applyRule evaluates one rule within the subtree rooted at scope, then its
// nested rules once per match. A match-free invocation contributes nothing.
func applyRule(scope *xmltree.Element, r *Rule) {
	matches := match(scope, r)
	if len(matches) == 0 {
		logger.Debug("injection rule matched nothing",
			zap.String("rule", r.Loc),
			zap.String("tag", r.Tag),
			zap.String("scope", scope.Tag))
		return
	}

	for _, m := range matches {
		for _, p := range r.InjectAttrs {
			m.SetAttr(p.Key, p.Value)
		}
		for _, p := range r.ReplaceAttrs {
			if _, ok := m.Attr(p.Key); ok {
				m.SetAttr(p.Key, p.Value)
			}
		}
		for _, frag := range r.Children {
			m.Append(frag.Clone())
		}
	}
	logger.Debug("injection rule applied",
		zap.String("rule", r.Loc),
		zap.String("tag", r.Tag),
		zap.Int("matches", len(matches)))

	for _, nested := range r.Nested {
		for _, m := range matches {
			applyRule(m, nested)
		}
	}
}

// match collects the nodes in scope's subtree (scope included) whose tag and
// attributes satisfy the rule, in document order.
func match(scope *xmltree.Element, r *Rule) []*xmltree.Element {
	var out []*xmltree.Element
	scope.Walk(func(el *xmltree.Element) bool {
		if el.Tag == r.Tag && predicateMatches(el, r.Predicate) {
			out = append(out, el)
		}
		return true
	})
	return out
}

func predicateMatches(el *xmltree.Element, predicate []Pair) bool {
	for _, c := range predicate {
		v, ok := el.Attr(c.Key)
		if !ok || v != c.Value {
			return false
		}
	}
	return true
}
