package hub

import (
	"html/template"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/garnizeh/opphub/pkg/models"
)

var reportTmpl = template.Must(template.New("logs").Funcs(template.FuncMap{
	"user": func(l models.UserLogEntry) string {
		switch {
		case l.UserName != "":
			return l.UserName
		case l.UserID != "":
			return l.UserID
		}
		return "Unknown"
	},
	"orNA":      orDefault,
	"stamp":     stamp,
	"ago":       ago,
	"comma":     func(n int) string { return humanize.Comma(int64(n)) },
	"generated": func(t time.Time) string { return t.Format("2006-01-02 15:04:05 MST") },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>User Activity Logs</title>
<style>
body { font-family: Arial, sans-serif; padding: 20px; }
h1 { color: #2563eb; }
table { width: 100%; border-collapse: collapse; margin-top: 20px; }
th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
th { background-color: #2563eb; color: white; }
tr:nth-child(even) { background-color: #f2f2f2; }
</style>
</head>
<body onload="window.print()">
<h1>User Activity Logs Report</h1>
<p>Generated on: {{generated .Generated}}</p>
<p>Total Logs: {{comma (len .Logs)}}</p>
<table>
<thead><tr><th>User</th><th>Action</th><th>Details</th><th>Timestamp</th></tr></thead>
<tbody>
{{- range .Logs}}
<tr><td>{{user .}}</td><td>{{orNA .Action "N/A"}}</td><td>{{orNA .Details "No details"}}</td><td>{{stamp .Timestamp}}{{with ago .Timestamp}} ({{.}}){{end}}</td></tr>
{{- end}}
</tbody>
</table>
</body>
</html>
`))

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func ago(ms int64) string {
	if ms == 0 {
		return ""
	}
	return humanize.Time(time.UnixMilli(ms))
}

func stamp(ms int64) string {
	if ms == 0 {
		return "N/A"
	}

	return time.UnixMilli(ms).UTC().Format("Jan 2, 2006 15:04")
}

// WriteLogReport renders audit entries as a printable HTML page. Values are
// escaped.
func WriteLogReport(w io.Writer, logs []models.UserLogEntry, generated time.Time) error {
	return reportTmpl.Execute(w, struct {
		Logs      []models.UserLogEntry
		Generated time.Time
	}{logs, generated})
}
