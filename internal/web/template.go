package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/fruit-grader/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"grams": func(w float64) string {
		return fmt.Sprintf("%.0f g", w)
	},
	"color": func(c string) template.CSS {
		if c == "" {
			return "#ddd"
		}
		return template.CSS(c)
	},
	"deref": func(b *bool) bool {
		return b != nil && *b
	},
	"stamp": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.UTC().Format("2006-01-02T15:04:05Z")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Fruit Grader</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.grade { display: block; font-size: 3em; text-align: center; padding: 0.3em; border-radius: 8px; }
.weight { font-size: 2em; text-align: center; }
.ok { color: green; }
.bad { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; background: orange; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
button { font-family: monospace; padding: 6px 12px; margin-right: 6px; }
</style>
</head>
<body>
<h1>Fruit Grader{{if .Config.Product}} ({{.Config.Product}}){{end}}<span id="live-dot" class="live-dot" title="connecting"></span></h1>

{{with .Last}}<span id="grade" class="grade" style="background: {{color .Color}}">{{.Grade}}</span>{{else}}<span id="grade" class="grade" style="background: #ddd">-</span>{{end}}
<p id="weight" class="weight">{{grams .Weight}}</p>

<h2>State</h2>
<table>
<tr><th>State</th><td id="state">{{.State}}</td></tr>
<tr><th>Stable</th><td id="stable">{{if .Stable}}yes{{else}}no{{end}}</td></tr>
<tr><th>Overload</th><td id="overload" class="{{if .Overloaded}}bad{{end}}">{{if .Overloaded}}yes{{else}}no{{end}}</td></tr>
<tr><th>Sensor</th><td class="{{if .SensorReady}}ok{{else}}bad{{end}}">{{if .SensorReady}}ready{{else}}waiting{{end}}</td></tr>
<tr><th>Calibration factor</th><td id="factor">{{printf "%.4f" .Factor}}</td></tr>
</table>
<p>
<button onclick="post('/api/tare', null)">Tare</button>
<button onclick="post('/api/calibrate', {reference: {{.Reference}}})">Calibrate ({{.Reference}} g)</button>
<span id="result"></span>
</p>

<h2>Grades</h2>
<table id="grades">
{{range .Grades}}<tr><th><span style="background: {{color .Color}}">&nbsp;&nbsp;</span> {{.Name}}</th><td>{{.Count}}</td></tr>
{{end}}</table>

<h2>Reports</h2>
<table>
<tr><th>Mode</th><td>{{.Config.ReportMode}}{{if .Config.ReportTo}} ({{.Config.ReportTo}}){{end}}</td></tr>
{{if .ReportConnected}}<tr><th>Broker</th><td class="{{if deref .ReportConnected}}ok{{else}}bad{{end}}">{{if deref .ReportConnected}}connected{{else}}disconnected{{end}}</td></tr>{{end}}
<tr><th>Accepted</th><td>{{.Reports.Accepted}}</td></tr>
<tr><th>Rejected</th><td>{{.Reports.Rejected}}</td></tr>
<tr><th>Unreachable</th><td>{{.Reports.Unreachable}}</td></tr>
<tr><th>Dropped</th><td>{{.Reports.Dropped}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Device</th><td>{{.Config.DeviceID}}</td></tr>
<tr><th>Auto-zero</th><td>{{.AutoZeros}} (last {{stamp .LastAutoZero}})</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{stamp .StartTime}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var el = function(id) { return document.getElementById(id); };

  window.post = function(path, body) {
    el("result").textContent = "...";
    fetch(path, {
      method: "POST",
      headers: {"Content-Type": "application/json"},
      body: body ? JSON.stringify(body) : null
    }).then(function(r) { return r.json(); }).then(function(j) {
      el("result").textContent = j.error ? j.error : (j.factor ? "factor " + j.factor.toFixed(4) : "ok");
    }).catch(function(e) { el("result").textContent = e; });
  };

  function render(s) {
    el("state").textContent = s.state;
    el("stable").textContent = s.stable ? "yes" : "no";
    el("overload").textContent = s.overloaded ? "yes" : "no";
    el("overload").className = s.overloaded ? "bad" : "";
    el("weight").textContent = Math.round(s.weight) + " g";
    el("factor").textContent = s.calibration_factor.toFixed(4);
    if (s.last_reading) {
      el("grade").textContent = s.last_reading.grade;
      el("grade").style.background = s.last_reading.color || "#ddd";
    }
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { dot.className = "live-dot ok"; dot.title = "live"; };
    ws.onmessage = function(m) {
      try { render(JSON.parse(m.data).status); } catch (e) {}
    };
    ws.onclose = function() {
      dot.className = "live-dot err"; dot.title = "offline";
      setTimeout(connect, 5000);
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, reference float64) error {
	// Snapshot has an Uptime() method but the template needs a field.
	data := struct {
		status.Snapshot
		Uptime    time.Duration
		Reference float64
	}{
		Snapshot:  snap,
		Uptime:    snap.Uptime(),
		Reference: reference,
	}
	return indexTmpl.Execute(w, data)
}
