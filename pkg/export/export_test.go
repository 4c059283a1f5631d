package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"Teacher", "LUN8", "LUN9", "Weekly_Total"},
		Rows: []map[string]string{
			{"Teacher": "ROSSI", "LUN8": "1L", "LUN9": "", "Weekly_Total": "1"},
			{"Teacher": "VERDI", "LUN8": "", "LUN9": "2L<b>", "Weekly_Total": "1"},
		},
		Highlights: map[string]map[string]bool{"VERDI": {"LUN9": true}},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter(0).Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "Teacher,LUN8,LUN9,Weekly_Total\nROSSI,1L,,1\nVERDI,,2L<b>,1\n", string(out))

	out, err = NewCSVExporter(';').Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "Teacher;LUN8;LUN9;Weekly_Total\n"))

	_, err = NewCSVExporter(0).Render(Dataset{})
	assert.Error(t, err)
}

func TestHTMLExporterHighlightsAndEscapes(t *testing.T) {
	out, err := NewHTMLExporter().Render(sampleDataset(), "Resolution", "quality: 3")
	require.NoError(t, err)
	page := string(out)

	assert.Contains(t, page, "<h1>Resolution</h1>")
	assert.Contains(t, page, "quality: 3")
	assert.Contains(t, page, `<td class=" hl">2L&lt;b&gt;</td>`)
	assert.Contains(t, page, `<td class="key">ROSSI</td>`)
	assert.Equal(t, 1, strings.Count(page, " hl\""))
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset(), "teachers")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "%PDF"))

	_, err = NewPDFExporter().Render(Dataset{}, "")
	assert.Error(t, err)
}

func TestDatasetKey(t *testing.T) {
	d := sampleDataset()
	assert.Equal(t, "ROSSI", d.Key(d.Rows[0]))
	assert.True(t, d.Highlighted("VERDI", "LUN9"))
	assert.False(t, d.Highlighted("ROSSI", "LUN9"))
	assert.Equal(t, "", Dataset{}.Key(map[string]string{}))
}
