package export

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

var reportTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}
	reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(reportHTML))
}

// TemplateData holds data for report template rendering
type TemplateData struct {
	Tree        TreeStats
	GeneratedAt time.Time
	Regions     []RegionCount
	Locations   []LocationLine
	People      []PersonLine
	PeopleNote  string
}

// RenderReportHTML renders the report template with provided data
func RenderReportHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const reportHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Tree.Name}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.5; max-width: 800px; margin: 2rem auto; color: #222; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    h2 { margin-top: 2rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    table { border-collapse: collapse; width: 100%; font-size: 0.9em; }
    th, td { border-bottom: 1px solid #ccc; padding: 0.3rem 0.5rem; text-align: left; }
    .sev-warning { color: #8a4b00; }
    .sev-info { color: #555; }
    .note { color: #666; font-style: italic; }
  </style>
</head>
<body>
  <h1>{{.Tree.Name}}</h1>
  {{if .Tree.Description}}<p>{{.Tree.Description}}</p>{{end}}
  <div class="meta">
    {{if .Tree.Owner}}{{.Tree.Owner}} &middot; {{end}}generated {{formatDate .GeneratedAt "Jan 2, 2006"}}
  </div>

  <h2>Overview</h2>
  <table>
    <tr><td>People</td><td>{{.Tree.PersonCount}}</td></tr>
    <tr><td>Families</td><td>{{.Tree.FamilyCount}}</td></tr>
    <tr><td>Lineage roots</td><td>{{.Tree.RootCount}}</td></tr>
  </table>

  {{if .Regions}}
  <h2>Where this family lived</h2>
  <table>
    <tr><th>Region</th><th>Events</th></tr>
    {{range .Regions}}<tr><td>{{.Region}}</td><td>{{.Count}}</td></tr>{{end}}
  </table>
  {{end}}

  {{if .Locations}}
  <h2>Location data quality</h2>
  <table>
    <tr><th>Place</th><th>People</th><th>Issue</th></tr>
    {{range .Locations}}<tr><td>{{.Raw}}</td><td>{{.Count}}</td><td class="sev-{{lower .Severity}}">{{.Issue}}</td></tr>{{end}}
  </table>
  {{end}}

  {{if .People}}
  <h2>People</h2>
  {{if .PeopleNote}}<p class="note">{{.PeopleNote}}</p>{{end}}
  <table>
    <tr><th>Name</th><th>Born</th><th>Birthplace</th><th>Died</th><th>Deathplace</th></tr>
    {{range .People}}<tr><td>{{.Name}}</td><td>{{.BirthDate}}</td><td>{{.BirthPlace}}</td><td>{{.DeathDate}}</td><td>{{.DeathPlace}}</td></tr>{{end}}
  </table>
  {{end}}
</body>
</html>`
