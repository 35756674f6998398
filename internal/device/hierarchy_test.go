// -- internal/device/hierarchy_test.go --

package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHierarchy = `<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>
<hierarchy rotation="0">
  <node index="0" text="" content-desc="" bounds="[0,0][1080,2400]">
    <node index="0" text="Create a vault" content-desc="" clickable="true" bounds="[90,1410][990,1554]"/>
    <node index="1" text="" content-desc="Create new note" clickable="true" bounds="[852,2136][1032,2316]"/>
    <node index="2" text="Settings" content-desc="" clickable="true" bounds="[0,2200][200,2300]"/>
    <node index="3" text="Ghost" content-desc="" bounds="[0,0][0,0]"/>
  </node>
</hierarchy>`

func TestParseBoundsCenter(t *testing.T) {
	tests := []struct {
		name   string
		bounds string
		cx     int
		cy     int
		ok     bool
	}{
		{name: "simple", bounds: "[0,0][100,200]", cx: 50, cy: 100, ok: true},
		{name: "offset", bounds: "[10,20][30,60]", cx: 20, cy: 40, ok: true},
		{name: "missing brackets", bounds: "10,20 30,40", ok: false},
		{name: "inverted", bounds: "[30,60][10,20]", ok: false},
		{name: "zero width", bounds: "[50,0][50,100]", ok: false},
		{name: "zero area", bounds: "[0,0][0,0]", ok: false},
		{name: "non numeric", bounds: "[a,b][c,d]", ok: false},
		{name: "empty", bounds: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cx, cy, ok := parseBoundsCenter(tt.bounds)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.cx, cx)
				assert.Equal(t, tt.cy, cy)
			}
		})
	}
}

func TestParseHierarchy(t *testing.T) {
	nodes, err := parseHierarchy([]byte(sampleHierarchy))
	require.NoError(t, err)

	// The root container has no label and Ghost has degenerate bounds; neither
	// should survive.
	require.Len(t, nodes, 3)
	assert.Equal(t, "Create a vault", nodes[0].Text)
	assert.Equal(t, 540, nodes[0].CenterX)
	assert.Equal(t, 1482, nodes[0].CenterY)
	assert.Equal(t, "Create new note", nodes[1].ContentDesc)
	assert.Equal(t, "Settings", nodes[2].Text)
}

func TestParseHierarchy_InvalidXML(t *testing.T) {
	_, err := parseHierarchy([]byte("<hierarchy><node"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid ui hierarchy xml")
}

func TestLocateByText_ExactText(t *testing.T) {
	x, y, err := locateByText([]byte(sampleHierarchy), "Create a vault")
	require.NoError(t, err)
	assert.Equal(t, 540, x)
	assert.Equal(t, 1482, y)
}

func TestLocateByText_ContentDesc(t *testing.T) {
	x, y, err := locateByText([]byte(sampleHierarchy), "Create new note")
	require.NoError(t, err)
	assert.Equal(t, 942, x)
	assert.Equal(t, 2226, y)
}

func TestLocateByText_SubstringCaseInsensitive(t *testing.T) {
	// "create" appears in both labelled nodes; the first in document order wins.
	x, y, err := locateByText([]byte(sampleHierarchy), "create")
	require.NoError(t, err)
	assert.Equal(t, 540, x)
	assert.Equal(t, 1482, y)
}

// An exact text match wins over an exact content-desc match even when it
// appears later in the tree.
func TestLocateByText_TierPrecedence(t *testing.T) {
	xml := `<hierarchy>
  <node text="" content-desc="Save" bounds="[0,0][100,100]"/>
  <node text="Save" content-desc="" bounds="[0,200][100,300]"/>
</hierarchy>`

	x, y, err := locateByText([]byte(xml), "Save")
	require.NoError(t, err)
	assert.Equal(t, 50, x)
	assert.Equal(t, 250, y)
}

func TestLocateByText_NoMatch(t *testing.T) {
	_, _, err := locateByText([]byte(sampleHierarchy), "Nonexistent button")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no visible element matches "Nonexistent button"`)
}

func TestLocateByText_DegenerateBoundsIgnored(t *testing.T) {
	_, _, err := locateByText([]byte(sampleHierarchy), "Ghost")
	require.Error(t, err, "an element with zero-area bounds is not tappable")
}
