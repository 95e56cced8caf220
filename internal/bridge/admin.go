package bridge

import (
	"bytes"
	"html/template"
	"io"
	"net/http"

	"github.com/banshee-data/flight.bridge/internal/httputil"
	"tailscale.com/tsweb"
)

var statusTemplate = template.Must(template.New("bridge").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Name}} bridge</title><meta http-equiv="refresh" content="1"></head>
<body>
<h1>{{.Name}} <small>{{.ID}}</small></h1>
<p>
  Controller: {{if .Online}}<b>online</b>{{else}}offline{{end}}
  &middot; missed {{.TimeoutCount}}/{{.TimeoutMaxCount}}
  &middot; sim time {{printf "%.3f" .LastUpdate}}s
  &middot; listening on {{.Listen}}
</p>
<p>
  Datagrams received {{.Link.Received}}, drained {{.Link.Drained}}, rejected {{.Link.Rejected}},
  receive errors {{.Link.RuntimeErrors}}. Telemetry sent {{.TelemetrySent}}, failed {{.TelemetryFailed}}.
</p>
<table border="1" cellpadding="4">
<tr><th>id</th><th>ch</th><th>joint</th><th>type</th><th>command</th><th>target</th><th>measured</th><th>filtered</th><th>force</th><th>integral</th></tr>
{{range .Rotors}}<tr>
<td>{{.ID}}</td><td>{{.Channel}}</td><td>{{.Joint}}</td><td>{{.Type}}</td>
<td>{{printf "%.2f" .CommandedRate}}</td><td>{{printf "%.2f" .Target}}</td>
<td>{{printf "%.2f" .Measured}}</td><td>{{printf "%.2f" .Filtered}}</td>
<td>{{printf "%.4f" .Force}}</td><td>{{printf "%.4f" .Integral}}</td>
</tr>{{end}}
</table>
</body>
</html>
`))

// AttachAdminRoutes mounts the bridge status pages on the tsweb debugger.
func (b *Bridge) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("bridge", "Bridge link and rotor status", func(w http.ResponseWriter, r *http.Request) {
		buf := bytes.NewBuffer(nil)
		if err := statusTemplate.Execute(buf, b.Status()); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.Copy(w, buf)
	})

	debug.HandleSilentFunc("bridge.json", func(w http.ResponseWriter, r *http.Request) {
		if !httputil.AllowMethod(w, r, http.MethodGet) {
			return
		}
		httputil.WriteJSONOK(w, b.Status())
	})
}
