// -- internal/device/hierarchy.go --
// Parsing of uiautomator dump XML into tappable coordinates.

package device

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// uiNode is one element of the accessibility tree with its screen bounds.
type uiNode struct {
	Text        string
	ContentDesc string
	CenterX     int
	CenterY     int
}

// locateByText finds the best node matching label and returns its center.
// Exact text matches win over exact content-desc matches, which win over
// case-insensitive substring matches. The uiautomator tree lists elements
// roughly top-to-bottom, so the first match at a given tier is the one a
// person would point at.
func locateByText(xml []byte, label string) (int, int, error) {
	nodes, err := parseHierarchy(xml)
	if err != nil {
		return 0, 0, err
	}

	var exact, descExact, partial *uiNode
	lowered := strings.ToLower(label)
	for i := range nodes {
		n := &nodes[i]
		switch {
		case n.Text == label:
			if exact == nil {
				exact = n
			}
		case n.ContentDesc == label:
			if descExact == nil {
				descExact = n
			}
		case strings.Contains(strings.ToLower(n.Text), lowered),
			strings.Contains(strings.ToLower(n.ContentDesc), lowered):
			if partial == nil {
				partial = n
			}
		}
	}

	for _, n := range []*uiNode{exact, descExact, partial} {
		if n != nil {
			return n.CenterX, n.CenterY, nil
		}
	}
	return 0, 0, fmt.Errorf("no visible element matches %q", label)
}

// parseHierarchy extracts every node that has a label and non-degenerate bounds.
func parseHierarchy(xml []byte) ([]uiNode, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xml); err != nil {
		return nil, fmt.Errorf("invalid ui hierarchy xml: %w", err)
	}

	var nodes []uiNode
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		text := el.SelectAttrValue("text", "")
		desc := el.SelectAttrValue("content-desc", "")
		if text != "" || desc != "" {
			if cx, cy, ok := parseBoundsCenter(el.SelectAttrValue("bounds", "")); ok {
				nodes = append(nodes, uiNode{Text: text, ContentDesc: desc, CenterX: cx, CenterY: cy})
			}
		}
		for _, child := range el.ChildElements() {
			walk(child)
		}
	}
	if root := doc.Root(); root != nil {
		walk(root)
	}
	return nodes, nil
}

// parseBoundsCenter converts the "[x1,y1][x2,y2]" bounds attribute into a
// center point. Zero-area bounds indicate an off-screen element and are
// rejected.
func parseBoundsCenter(bounds string) (int, int, bool) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(bounds, "["), "]")
	parts := strings.Split(trimmed, "][")
	if len(parts) != 2 {
		return 0, 0, false
	}
	x1, y1, ok1 := parsePoint(parts[0])
	x2, y2, ok2 := parsePoint(parts[1])
	if !ok1 || !ok2 || x2 <= x1 || y2 <= y1 {
		return 0, 0, false
	}
	return (x1 + x2) / 2, (y1 + y2) / 2, true
}

func parsePoint(s string) (int, int, bool) {
	coords := strings.SplitN(s, ",", 2)
	if len(coords) != 2 {
		return 0, 0, false
	}
	x, errX := strconv.Atoi(strings.TrimSpace(coords[0]))
	y, errY := strconv.Atoi(strings.TrimSpace(coords[1]))
	if errX != nil || errY != nil {
		return 0, 0, false
	}
	return x, y, true
}
