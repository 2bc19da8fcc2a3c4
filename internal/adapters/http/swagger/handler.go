// Package swagger serves the OpenAPI document of the read API and a ReDoc
// page that renders it.
package swagger

import (
	"context"
	"net/http"

	"github.com/okian/footfall/internal/adapters/http/api"
)

// redocURL is loaded by the browser; nothing is fetched server side.
const redocURL = "https://cdn.redoc.ly/redoc/v2.1.5/bundles/redoc.standalone.js"

// Register attaches the docs routes to mux. Both are GET only and counted
// in the HTTP request metrics like the API routes.
//
//	GET /api-docs      ReDoc page
//	GET /openapi.yaml  embedded OpenAPI document
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("swagger: nil mux")
	}

	mux.HandleFunc("/api-docs", api.MetricsMiddleware(static("text/html; charset=utf-8", []byte(indexHTML)), "api-docs"))
	mux.HandleFunc("/openapi.yaml", api.MetricsMiddleware(static("application/yaml; charset=utf-8", OpenAPI), "openapi"))
}

func static(contentType string, body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "no-cache")
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(body)
	}
}

const indexHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8">
    <title>footfall read API</title>
    <style>body{margin:0;padding:0}</style>
  </head>
  <body>
    <redoc id="redoc-container"></redoc>
    <script src="` + redocURL + `"></script>
    <script>Redoc.init('/openapi.yaml', { suppressWarnings: true }, document.getElementById('redoc-container'));</script>
  </body>
</html>`
