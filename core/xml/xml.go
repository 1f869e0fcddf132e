// Package xml wraps xmlquery and xpath for reading XML bibles.
//
// Security: xmlquery parses with encoding/xml, which never fetches
// external entities. CheckWellFormed additionally disables internal entity
// expansion.
package xml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/versecorpus/core/errors"
)

// Document is a parsed XML document.
type Document struct {
	root *xmlquery.Node
}

// Node is an element of a Document.
type Node struct {
	node *xmlquery.Node
}

// Parse parses XML data.
func Parse(data []byte) (*Document, error) {
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errors.WrapParse("XML", "", err)
	}
	return &Document{root: root}, nil
}

// CheckWellFormed walks every token and reports the first syntax error
// with its line number.
func CheckWellFormed(data []byte) error {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Entity = map[string]string{}
	for {
		_, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			line, _ := decoder.InputPos()
			return errors.WrapParse("XML", "line "+strconv.Itoa(line), err)
		}
	}
}

// Root returns the document element.
func (d *Document) Root() *Node {
	if d.root == nil {
		return nil
	}
	for child := d.root.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return &Node{node: child}
		}
	}
	return nil
}

// XPath runs an XPath query against the whole document.
func (d *Document) XPath(expr string) ([]*Node, error) {
	return queryAll(d.root, expr)
}

// XPathFirst returns the first match of expr, or nil.
func (d *Document) XPathFirst(expr string) (*Node, error) {
	expr = strings.TrimSpace(expr)
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}
	node := xmlquery.QuerySelector(d.root, compiled)
	if node == nil {
		return nil, nil
	}
	return &Node{node: node}, nil
}

// XPath runs a query relative to this node.
func (n *Node) XPath(expr string) ([]*Node, error) {
	if n == nil || n.node == nil {
		return nil, nil
	}
	return queryAll(n.node, expr)
}

func queryAll(top *xmlquery.Node, expr string) ([]*Node, error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}
	nodes := xmlquery.QuerySelectorAll(top, compiled)
	result := make([]*Node, len(nodes))
	for i, n := range nodes {
		result[i] = &Node{node: n}
	}
	return result, nil
}

// Name returns the element name.
func (n *Node) Name() string {
	if n.node == nil {
		return ""
	}
	return n.node.Data
}

// Text returns the text content of the node and its descendants.
func (n *Node) Text() string {
	if n.node == nil {
		return ""
	}
	return n.node.InnerText()
}

// Children returns the child elements.
func (n *Node) Children() []*Node {
	if n.node == nil {
		return nil
	}
	var children []*Node
	for child := n.node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			children = append(children, &Node{node: child})
		}
	}
	return children
}

// Attr returns the value of an attribute, or "".
func (n *Node) Attr(name string) string {
	if n.node == nil {
		return ""
	}
	return n.node.SelectAttr(name)
}

// FirstAttr returns the first non-empty value among the named attributes.
// Bibles disagree on spelling, e.g. "n" versus "cnumber".
func (n *Node) FirstAttr(names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(n.Attr(name)); v != "" {
			return v
		}
	}
	return ""
}

// IntAttr parses the first present attribute among names as an integer.
func (n *Node) IntAttr(names ...string) (int, bool) {
	v := n.FirstAttr(names...)
	if v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

// Escape replaces the XML special characters in s with entities.
func Escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
