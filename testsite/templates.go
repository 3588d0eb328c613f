package testsite

import "html/template"

var pages = template.Must(template.New("home").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<header>
  <button id="category-toggle" type="button">Category</button>
  <ul id="category-menu">
    <li><a id="buy-option" href="#buy">Buy</a></li>
    <li><a id="to-rent" href="/?category=to-rent">To Rent</a></li>
  </ul>
  <input id="location-input" type="text" name="location" autocomplete="off">
  {{if .Suggestions}}<ul id="autocomplete">{{range .Suggestions}}<li>{{.}}</li>{{end}}</ul>{{end}}
  <a id="find" href="/search?location={{.Location}}">Find</a>
</header>
<section id="popular">
  {{range .Links}}<a href="{{.}}">{{.}}</a>
  {{end}}
</section>
</body>
</html>`))

func init() {
	template.Must(pages.New("results").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
{{if .Banner}}<div id="banner"><p>Get new listings by email</p><button class="close" type="button">Close</button></div>{{end}}
<p class="summary">{{.Summary}}</p>
{{if .Payloads}}
<span class="deal">DEAL OF THE WEEK</span>
<div id="results">
{{range .Payloads}}<script type="application/ld+json">{{.}}</script>
{{end}}
</div>
{{else}}
<p class="empty">No more results</p>
{{end}}
{{if .Next}}<a id="next" href="{{.Next}}">Next</a>{{end}}
</body>
</html>`))

	template.Must(pages.New("listing").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body><h1>{{.Path}}</h1></body>
</html>`))
}
