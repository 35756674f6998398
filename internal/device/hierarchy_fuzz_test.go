// -- internal/device/hierarchy_fuzz_test.go --

package device

import (
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
)

// FuzzParseHierarchy throws arbitrary bytes at the dump parser. uiautomator
// output varies across Android versions and can be truncated mid-element when
// the dump races a UI transition, so the parser must either reject the input
// or return only well-formed nodes.
func FuzzParseHierarchy(f *testing.F) {
	f.Add([]byte(sampleHierarchy))
	f.Add([]byte(`<?xml version='1.0' encoding='UTF-8'?><hierarchy rotation="0"></hierarchy>`))
	f.Add([]byte(`<hierarchy><node text="Create" bounds="[0,0][108,42]"/></hierarchy>`))
	f.Add([]byte(`<hierarchy><node text="Inverted" bounds="[108,42][0,0]"/></hierarchy>`))
	f.Add([]byte(`<hierarchy><node text="Chopped" bounds="[0,`))
	f.Add([]byte("not xml at all"))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		nodes, err := parseHierarchy(data)
		if err != nil {
			return
		}
		for _, n := range nodes {
			if n.Text == "" && n.ContentDesc == "" {
				t.Errorf("parser accepted an unlabeled node: %+v", n)
			}
		}
	})
}

// FuzzLocateByText derives a label and a dump from the fuzzed input and checks
// that a successful lookup always lands on the center of a node the parser
// actually produced.
func FuzzLocateByText(f *testing.F) {
	f.Add([]byte("seed"))

	f.Fuzz(func(t *testing.T, data []byte) {
		consumer := fuzz.NewConsumer(data)
		label, err := consumer.GetString()
		if err != nil {
			return
		}
		xml, err := consumer.GetBytes()
		if err != nil {
			return
		}

		x, y, err := locateByText(xml, label)
		if err != nil {
			return
		}

		nodes, parseErr := parseHierarchy(xml)
		if parseErr != nil {
			t.Fatalf("lookup succeeded on a dump the parser rejects: %v", parseErr)
		}
		for _, n := range nodes {
			if n.CenterX == x && n.CenterY == y {
				return
			}
		}
		t.Errorf("lookup for %q returned (%d, %d), which is no parsed node's center", label, x, y)
	})
}
