// Package xmltree provides the ordered-attribute element tree shared by the
// robot-description (source), intermediate, and simulator (target) documents.
//
// Attribute order is significant for stable serialization, so attributes are
// stored as an ordered slice with unique keys rather than a map.
package xmltree

import (
	"fmt"
)

// Attr is a single name/value attribute pair.
type Attr struct {
	Key   string
	Value string
}

// Element is a tagged tree node with ordered attributes, ordered children and
// optional text content.
type Element struct {
	Tag      string
	Attrs    []Attr
	Children []*Element
	Text     string
}

// New creates an element with the given tag and alternating key, value
// attribute pairs.
func New(tag string, kv ...string) *Element {
	if len(kv)%2 != 0 {
		panic(fmt.Sprintf("xmltree.New: odd attribute list for <%s>", tag))
	}
	e := &Element{Tag: tag}
	for i := 0; i < len(kv); i += 2 {
		e.SetAttr(kv[i], kv[i+1])
	}
	return e
}

// Attr returns the value of the named attribute and whether it is present.
func (e *Element) Attr(key string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// AttrDefault returns the value of the named attribute, or def if absent.
func (e *Element) AttrDefault(key, def string) string {
	if v, ok := e.Attr(key); ok {
		return v
	}
	return def
}

// SetAttr sets an attribute, overwriting in place when the key exists so the
// original attribute order is preserved.
func (e *Element) SetAttr(key, value string) {
	for i := range e.Attrs {
		if e.Attrs[i].Key == key {
			e.Attrs[i].Value = value
			return
		}
	}
	e.Attrs = append(e.Attrs, Attr{Key: key, Value: value})
}

// RemoveAttr deletes the named attribute if present.
func (e *Element) RemoveAttr(key string) {
	for i := range e.Attrs {
		if e.Attrs[i].Key == key {
			e.Attrs = append(e.Attrs[:i], e.Attrs[i+1:]...)
			return
		}
	}
}

// Append adds children to the end of the child list.
func (e *Element) Append(children ...*Element) {
	e.Children = append(e.Children, children...)
}

// Insert places a child at the given index, clamped to the child list.
func (e *Element) Insert(idx int, child *Element) {
	if idx < 0 {
		idx = 0
	}
	if idx > len(e.Children) {
		idx = len(e.Children)
	}
	e.Children = append(e.Children, nil)
	copy(e.Children[idx+1:], e.Children[idx:])
	e.Children[idx] = child
}

// Remove deletes the first occurrence of child, returning true if removed.
func (e *Element) Remove(child *Element) bool {
	for i, c := range e.Children {
		if c == child {
			e.Children = append(e.Children[:i], e.Children[i+1:]...)
			return true
		}
	}
	return false
}

// Index returns the position of child in the child list, or -1.
func (e *Element) Index(child *Element) int {
	for i, c := range e.Children {
		if c == child {
			return i
		}
	}
	return -1
}

// Child returns the first direct child with the given tag, or nil.
func (e *Element) Child(tag string) *Element {
	for _, c := range e.Children {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// ChildAttr returns attribute key of the first child with the given tag.
func (e *Element) ChildAttr(tag, key string) (string, bool) {
	c := e.Child(tag)
	if c == nil {
		return "", false
	}
	return c.Attr(key)
}

// FindAll returns every descendant (not including e itself) with the given
// tag, in document order.
func (e *Element) FindAll(tag string) []*Element {
	var found []*Element
	e.Walk(func(n *Element) bool {
		if n != e && n.Tag == tag {
			found = append(found, n)
		}
		return true
	})
	return found
}

// Walk visits e and its descendants in pre-order. Returning false from fn
// prunes the subtree below the current node.
func (e *Element) Walk(fn func(*Element) bool) {
	if !fn(e) {
		return
	}
	for _, c := range e.Children {
		c.Walk(fn)
	}
}

// Clone returns a deep copy of the element.
func (e *Element) Clone() *Element {
	cp := &Element{Tag: e.Tag, Text: e.Text}
	cp.Attrs = append([]Attr(nil), e.Attrs...)
	cp.Children = make([]*Element, len(e.Children))
	for i, c := range e.Children {
		cp.Children[i] = c.Clone()
	}
	return cp
}

// String renders the opening tag for diagnostics, e.g. `<geom name='x'>`.
func (e *Element) String() string {
	s := "<" + e.Tag
	for _, a := range e.Attrs {
		s += fmt.Sprintf(" %s='%s'", a.Key, a.Value)
	}
	return s + ">"
}
