package xmltree

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// escape orders matter: ampersand first.
var attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Write serializes the tree to w with tab indentation and an XML declaration.
func Write(w io.Writer, root *Element) error {
	if _, err := io.WriteString(w, "<?xml version=\"1.0\" encoding=\"utf-8\"?>\n"); err != nil {
		return err
	}
	return writeElement(w, root, 0)
}

// WriteFile serializes the tree to path.
func WriteFile(path string, root *Element) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, root); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Marshal returns the serialized document as a string.
func Marshal(root *Element) string {
	var sb strings.Builder
	_ = Write(&sb, root)
	return sb.String()
}

func writeElement(w io.Writer, e *Element, depth int) error {
	indent := strings.Repeat("\t", depth)
	if _, err := fmt.Fprintf(w, "%s<%s", indent, e.Tag); err != nil {
		return err
	}
	for _, a := range e.Attrs {
		if _, err := fmt.Fprintf(w, " %s=\"%s\"", a.Key, attrEscaper.Replace(a.Value)); err != nil {
			return err
		}
	}
	if len(e.Children) == 0 && e.Text == "" {
		_, err := io.WriteString(w, "/>\n")
		return err
	}
	if len(e.Children) == 0 {
		_, err := fmt.Fprintf(w, ">%s</%s>\n", textEscaper.Replace(e.Text), e.Tag)
		return err
	}
	if _, err := io.WriteString(w, ">\n"); err != nil {
		return err
	}
	if e.Text != "" {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", indent, textEscaper.Replace(e.Text)); err != nil {
			return err
		}
	}
	for _, c := range e.Children {
		if err := writeElement(w, c, depth+1); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%s</%s>\n", indent, e.Tag)
	return err
}
