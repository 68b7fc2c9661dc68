package xmltree

import (
	"strings"
	"testing"
)

func TestNewWithAttrs(t *testing.T) {
	el := New("geom", "name", "g1", "type", "mesh")
	if el.Tag != "geom" {
		t.Errorf("expected tag 'geom', got %s", el.Tag)
	}
	if v, ok := el.Attr("name"); !ok || v != "g1" {
		t.Errorf("expected name='g1', got %q (%v)", v, ok)
	}
	if v, ok := el.Attr("type"); !ok || v != "mesh" {
		t.Errorf("expected type='mesh', got %q (%v)", v, ok)
	}
}

func TestSetAttrPreservesOrder(t *testing.T) {
	el := New("geom", "a", "1", "b", "2", "c", "3")
	el.SetAttr("b", "20")

	if len(el.Attrs) != 3 {
		t.Fatalf("expected 3 attrs, got %d", len(el.Attrs))
	}
	keys := []string{el.Attrs[0].Key, el.Attrs[1].Key, el.Attrs[2].Key}
	if keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Errorf("attribute order changed: %v", keys)
	}
	if v, _ := el.Attr("b"); v != "20" {
		t.Errorf("expected b='20', got %q", v)
	}

	el.SetAttr("d", "4")
	if el.Attrs[3].Key != "d" {
		t.Errorf("new attribute should append, got %v", el.Attrs)
	}
}

func TestAttrKeysUnique(t *testing.T) {
	el := New("geom")
	el.SetAttr("k", "1")
	el.SetAttr("k", "2")
	if len(el.Attrs) != 1 {
		t.Errorf("expected 1 attr after duplicate set, got %d", len(el.Attrs))
	}
}

func TestInsertRemove(t *testing.T) {
	root := New("root")
	a, b, c := New("a"), New("b"), New("c")
	root.Append(a, c)
	root.Insert(1, b)

	if len(root.Children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(root.Children))
	}
	if root.Children[1] != b {
		t.Errorf("insert at index 1 failed")
	}

	if !root.Remove(b) {
		t.Error("remove returned false for present child")
	}
	if root.Remove(b) {
		t.Error("remove returned true for absent child")
	}
	if root.Index(c) != 1 {
		t.Errorf("expected c at index 1, got %d", root.Index(c))
	}
}

func TestFindAllDocumentOrder(t *testing.T) {
	root, err := ParseString(`
		<robot>
			<link name="a"><visual/></link>
			<link name="b"><link name="nested"/></link>
		</robot>`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	links := root.FindAll("link")
	if len(links) != 3 {
		t.Fatalf("expected 3 links, got %d", len(links))
	}
	want := []string{"a", "b", "nested"}
	for i, l := range links {
		if name, _ := l.Attr("name"); name != want[i] {
			t.Errorf("link %d: expected %s, got %s", i, want[i], name)
		}
	}
}

func TestWalkPrune(t *testing.T) {
	root, err := ParseString(`<a><b><c/></b><d/></a>`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	var visited []string
	root.Walk(func(e *Element) bool {
		visited = append(visited, e.Tag)
		return e.Tag != "b" // prune below b
	})
	got := strings.Join(visited, ",")
	if got != "a,b,d" {
		t.Errorf("expected a,b,d, got %s", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig, err := ParseString(`<a x="1"><b y="2"/></a>`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	cp := orig.Clone()
	cp.SetAttr("x", "changed")
	cp.Children[0].SetAttr("y", "changed")

	if v, _ := orig.Attr("x"); v != "1" {
		t.Errorf("clone mutation leaked into original attr")
	}
	if v, _ := orig.Children[0].Attr("y"); v != "2" {
		t.Errorf("clone mutation leaked into original child")
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"<a><b></a>",
		"<a/><b/>",
		"not xml at all",
	}
	for _, src := range cases {
		if _, err := ParseString(src); err == nil {
			t.Errorf("expected parse error for %q", src)
		}
	}
}

func TestParseErrorType(t *testing.T) {
	_, err := ParseString("<a><b></a>")
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*ParseError); !ok {
		t.Errorf("expected *ParseError, got %T", err)
	}
}

func TestRoundTrip(t *testing.T) {
	src := `<robot name="r"><link name="l"><visual><geometry><mesh filename="m.stl"/></geometry></visual></link></robot>`
	root, err := ParseString(src)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	out := Marshal(root)
	reparsed, err := ParseString(out)
	if err != nil {
		t.Fatalf("reparse failed: %v\n%s", err, out)
	}
	if Marshal(reparsed) != out {
		t.Error("serialization is not stable across a round trip")
	}
}

func TestMarshalEscaping(t *testing.T) {
	el := New("a", "v", `x<y&"z"`)
	el.Text = "1 < 2 & 3"

	out := Marshal(el)
	reparsed, err := ParseString(out)
	if err != nil {
		t.Fatalf("reparse failed: %v\n%s", err, out)
	}
	if v, _ := reparsed.Attr("v"); v != `x<y&"z"` {
		t.Errorf("attr escaping broken: %q", v)
	}
	if reparsed.Text != "1 < 2 & 3" {
		t.Errorf("text escaping broken: %q", reparsed.Text)
	}
}
