package report

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
:root {
  --primary: #3498db;
  --secondary: #2c3e50;
  --border: #dee2e6;
}
body { font-family: 'Segoe UI', Tahoma, Verdana, sans-serif; line-height: 1.6; color: #333; max-width: 1200px; margin: 0 auto; padding: 20px; background: #f5f5f5; }
header { background: linear-gradient(135deg, var(--primary), var(--secondary)); color: #fff; padding: 20px; border-radius: 5px; margin-bottom: 30px; }
h1 { margin: 0; font-size: 28px; }
h2 { color: var(--secondary); border-bottom: 2px solid var(--primary); padding-bottom: 10px; margin-top: 40px; }
#search { width: 100%; padding: 10px; font-size: 16px; border: 1px solid var(--border); border-radius: 5px; box-sizing: border-box; }
.stats { display: flex; flex-wrap: wrap; gap: 15px; margin: 20px 0; }
.stat-card { flex: 1; min-width: 160px; background: #fff; border-radius: 5px; padding: 15px; text-align: center; box-shadow: 0 2px 5px rgba(0,0,0,.1); }
.stat-card h3 { margin: 0; font-size: 16px; }
.stat-value { font-size: 32px; font-weight: bold; color: var(--primary); }
.endpoint-card { background: #fff; border-radius: 5px; margin-bottom: 20px; box-shadow: 0 2px 5px rgba(0,0,0,.1); }
.endpoint-header { padding: 15px; background: #f8f9fa; border-bottom: 1px solid var(--border); cursor: pointer; display: flex; justify-content: space-between; }
.endpoint-name { font-weight: bold; color: var(--primary); font-family: monospace; font-size: 15px; }
.endpoint-content { padding: 15px; }
.params-title { font-weight: bold; margin-top: 10px; }
.param-list { margin-left: 15px; }
.param-name { font-family: monospace; color: var(--secondary); }
.template-param { font-family: monospace; color: #8e44ad; }
.method-badge { display: inline-block; padding: 2px 8px; margin-left: 5px; border-radius: 3px; color: #fff; font-size: 12px; font-weight: bold; background: #7f8c8d; }
.method-get { background: #2ecc71; }
.method-post { background: #3498db; }
.method-put { background: #f39c12; }
.method-patch { background: #9b59b6; }
.method-delete { background: #e74c3c; }
table { border-collapse: collapse; margin: 5px 0 10px 15px; }
th, td { border: 1px solid var(--border); padding: 4px 10px; text-align: left; font-size: 14px; }
.file-list { font-family: monospace; font-size: 13px; color: #555; margin-left: 15px; }
.hidden { display: none; }
</style>
</head>
<body>
<header>
<h1>{{.Title}}</h1>
{{if .Target}}<p>Target: {{.Target}}</p>{{end}}
<p class="generation-date">Generated on: {{.GeneratedAt}}</p>
</header>

<input type="text" id="search" placeholder="Search endpoints...">

<div class="stats">
<div class="stat-card"><h3>Total Endpoints</h3><div class="stat-value">{{.Stats.Endpoints}}</div></div>
<div class="stat-card"><h3>Static Parameters</h3><div class="stat-value">{{.Stats.StaticParams}}</div></div>
<div class="stat-card"><h3>Template Parameters</h3><div class="stat-value">{{.Stats.TemplateParams}}</div></div>
<div class="stat-card"><h3>Request Bodies</h3><div class="stat-value">{{.Stats.Bodies}}</div></div>
<div class="stat-card"><h3>Unique Files</h3><div class="stat-value">{{.Stats.Files}}</div></div>
<div class="stat-card"><h3>External Domains</h3><div class="stat-value">{{.Stats.ExternalHosts}}</div></div>
</div>

<h2>API Endpoints</h2>
{{if not .Endpoints}}<p>No API endpoints found.</p>{{end}}
{{range .Endpoints}}
<div class="endpoint-card" data-path="{{.Path}}">
<div class="endpoint-header">
<span class="endpoint-name">{{.Path}}</span>
<span>{{range .Methods}}<span class="method-badge method-{{lower .}}">{{.}}</span>{{end}}</span>
</div>
<div class="endpoint-content">
{{if .Params}}
<div class="params-title">Static Parameters:</div>
<div class="param-list">
{{range .Params}}<div class="param-item"><span class="param-name">{{.Name}}</span>: {{if .Values}}{{join .Values ", "}}{{else}}<em>no value</em>{{end}}</div>
{{end}}</div>
{{end}}
{{if .TemplateParams}}
<div class="params-title">Template Variables:</div>
<div class="param-list">
{{range .TemplateParams}}<div class="param-item"><span class="template-param">${ {{- . -}} }</span></div>
{{end}}</div>
{{end}}
{{if .Dynamic}}
<div class="params-title">Dynamic Patterns:</div>
<div class="param-list">
{{range .Dynamic}}<div class="param-item">{{.}}</div>
{{end}}</div>
{{end}}
{{range $i, $b := .Bodies}}
<div class="params-title">Body #{{inc $i}} ({{$b.ContentType}}):</div>
<table>
<tr><th>Property</th><th>Type</th><th>Example</th></tr>
{{range $b.Properties}}<tr><td class="param-name">{{.Name}}</td><td>{{.Type}}</td><td>{{.Example}}</td></tr>
{{end}}</table>
{{end}}
<div class="params-title">Found in files:</div>
<div class="file-list">
{{range .Files}}<div>{{.}}</div>
{{end}}</div>
</div>
</div>
{{end}}

<h2>External API Calls</h2>
{{if not .External}}<p>No external API calls found.</p>{{end}}
{{range .External}}
<div class="endpoint-card">
<div class="endpoint-header"><span class="endpoint-name">{{.Name}}</span><span>{{len .URLs}}</span></div>
<div class="endpoint-content file-list">
{{range .URLs}}<div>{{.}}</div>
{{end}}</div>
</div>
{{end}}

<script>
document.getElementById('search').addEventListener('input', function (e) {
  var q = e.target.value.toLowerCase();
  document.querySelectorAll('.endpoint-card[data-path]').forEach(function (card) {
    card.classList.toggle('hidden', card.dataset.path.toLowerCase().indexOf(q) < 0);
  });
});
document.querySelectorAll('.endpoint-header').forEach(function (h) {
  h.addEventListener('click', function () {
    h.nextElementSibling.classList.toggle('hidden');
  });
});
</script>
</body>
</html>
`
