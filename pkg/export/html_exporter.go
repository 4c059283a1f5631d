package export

import (
	"bytes"
	"fmt"
	"html/template"
)

var htmlPage = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; font-size: 12px; }
table { border-collapse: collapse; }
th, td { border: 1px solid #999; padding: 2px 4px; text-align: center; }
td.key { text-align: left; font-weight: bold; }
td.hl { background: #ffe696; }
tr.summary td { border: none; text-align: left; }
</style>
</head>
<body>
{{if .Title}}<h1>{{.Title}}</h1>{{end}}
{{if .Notes}}<table>{{range .Notes}}<tr class="summary"><td>{{.}}</td></tr>{{end}}</table><br>{{end}}
<table>
<tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr>
{{range .Rows}}<tr>{{range $i, $c := .}}<td class="{{if eq $i 0}}key{{end}}{{if $c.Highlight}} hl{{end}}">{{$c.Value}}</td>{{end}}</tr>
{{end}}</table>
</body>
</html>
`))

type htmlCell struct {
	Value     string
	Highlight bool
}

type htmlView struct {
	Title   string
	Notes   []string
	Headers []string
	Rows    [][]htmlCell
}

// HTMLExporter renders a dataset as a standalone page. It is used for
// diagnostics where highlighted cells show what a run changed.
type HTMLExporter struct{}

func NewHTMLExporter() *HTMLExporter {
	return &HTMLExporter{}
}

// Render writes the page. notes are printed above the table, one per line.
func (e *HTMLExporter) Render(data Dataset, title string, notes ...string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("html requires at least one header")
	}
	view := htmlView{Title: title, Notes: notes, Headers: data.Headers}
	for _, row := range data.Rows {
		key := data.Key(row)
		cells := make([]htmlCell, len(data.Headers))
		for i, header := range data.Headers {
			cells[i] = htmlCell{Value: row[header], Highlight: data.Highlighted(key, header)}
		}
		view.Rows = append(view.Rows, cells)
	}

	buf := &bytes.Buffer{}
	if err := htmlPage.Execute(buf, view); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}
