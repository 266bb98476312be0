package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Time by category",
		Headers: []string{"Category", "Hours", "Color"},
		Rows: []map[string]string{
			{"Category": "CLT", "Hours": "3.0", "Color": "#3b82f6"},
			{"Category": "=HYPERLINK(\"x\")", "Hours": "-1.5", "Color": "bad"},
		},
		Footer: []map[string]string{{"Category": "Total", "Hours": "4.5"}},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"Category", "Hours", "Color"}, records[0])
	assert.Equal(t, "'=HYPERLINK(\"x\")", records[2][0])
	assert.Equal(t, "-1.5", records[2][1])
	assert.Equal(t, []string{"Total", "4.5", ""}, records[3])
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter("Color").Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterRequiresVisibleHeaders(t *testing.T) {
	_, err := NewPDFExporter("Color").Render(Dataset{Headers: []string{"Color"}})
	assert.Error(t, err)
}

func TestParseHexColor(t *testing.T) {
	r, g, b, ok := parseHexColor("#3b82f6")
	require.True(t, ok)
	assert.Equal(t, []int{0x3b, 0x82, 0xf6}, []int{r, g, b})

	_, _, _, ok = parseHexColor("blue")
	assert.False(t, ok)
}
