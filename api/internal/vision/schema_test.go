package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDetections_Valid(t *testing.T) {
	raw := "```json\n" + `[
	  {"label": "Bar Chart", "box_2d": [100, 200, 400, 800], "description": "Quarterly revenue."},
	  {"label": "Map", "box_2d": [500.5, 0, 999, 1000], "description": "Sales regions."}
	]` + "\n```"

	got, err := ParseDetections(raw)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Bar Chart", got[0].Label)
	assert.Equal(t, Box{100, 200, 400, 800}, got[0].Box)
	assert.Equal(t, "Quarterly revenue.", got[0].Description)
	assert.Equal(t, 500.5, got[1].Box.YMin())
}

func TestParseDetections_EmptyArrayIsSuccess(t *testing.T) {
	got, err := ParseDetections("[]")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestParseDetections_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "I found a chart at the top"},
		{"object instead of array", `{"label":"x","box_2d":[1,2,3,4],"description":"d"}`},
		{"missing description", `[{"label":"x","box_2d":[1,2,3,4]}]`},
		{"three coordinates", `[{"label":"x","box_2d":[1,2,3],"description":"d"}]`},
		{"five coordinates", `[{"label":"x","box_2d":[1,2,3,4,5],"description":"d"}]`},
		{"string coordinates", `[{"label":"x","box_2d":["1","2","3","4"],"description":"d"}]`},
		{"numeric label", `[{"label":7,"box_2d":[1,2,3,4],"description":"d"}]`},
		{"coordinate above 1000", `[{"label":"x","box_2d":[0,0,1e9,1e9],"description":"d"}]`},
		{"negative coordinate", `[{"label":"x","box_2d":[-5,0,100,100],"description":"d"}]`},
		{"extra field", `[{"label":"x","box_2d":[1,2,3,4],"description":"d","score":0.9}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDetections(tt.raw)
			assert.ErrorIs(t, err, ErrSchemaViolation)
		})
	}
}

func TestParseDetections_Empty(t *testing.T) {
	_, err := ParseDetections("  ")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestBox_Degenerate(t *testing.T) {
	assert.False(t, Box{100, 200, 400, 800}.Degenerate())
	assert.False(t, Box{100, 100, 100, 100}.Degenerate())
	assert.True(t, Box{100, 800, 400, 200}.Degenerate())
	assert.True(t, Box{400, 200, 100, 800}.Degenerate())
}

func TestExplainInstruction(t *testing.T) {
	p := ExplainInstruction("Bar Chart")
	assert.Contains(t, p, `"Bar Chart"`)
	assert.Contains(t, p, "Markdown")
	assert.Contains(t, ExplainInstruction("  "), "visual element")
}
