package mcp

import "net/http"

const landingHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Nyx MCP Server</title>
<style>
  body { font: 15px/1.6 system-ui, sans-serif; color: #1f2933; background: #f5f7fa; margin: 0; }
  main { max-width: 40rem; margin: 4rem auto; padding: 0 1.25rem; }
  h1 { font-weight: 600; border-bottom: 3px solid #0b7285; padding-bottom: 0.4rem; }
  h2 { font-size: 1rem; color: #52606d; margin-top: 2rem; }
  table { border-collapse: collapse; width: 100%; }
  td { padding: 0.3rem 0.5rem; border-top: 1px solid #d9e2ec; vertical-align: top; }
  td:first-child { font-family: ui-monospace, monospace; white-space: nowrap; color: #0b7285; }
  a { color: #0b7285; }
</style>
</head>
<body>
<main>
  <h1>Nyx MCP Server</h1>
  <p>Your <a href="https://nyx.iotics.com">Nyx</a> subscriptions, loaded into SQLite and a text index, served over the Model Context Protocol.</p>

  <h2>Tools</h2>
  <table>
    <tr><td>search_datasets</td><td>Marketplace search by text and metadata</td></tr>
    <tr><td>query_chunks</td><td>Closest passages of subscribed text data</td></tr>
    <tr><td>list_subscriptions</td><td>Loaded datasets and their tables</td></tr>
    <tr><td>sql_query</td><td>Read-only SQL over the loaded tables</td></tr>
    <tr><td>index_status</td><td>Tables, chunk count and mirror size</td></tr>
    <tr><td>ask</td><td>LLM answer from retrieved context, when a key is configured</td></tr>
  </table>

  <h2>Endpoints</h2>
  <table>
    <tr><td><a href="/mcp">/mcp</a></td><td>Streamable HTTP transport</td></tr>
    <tr><td><a href="/health">/health</a></td><td>Store, mirror and index status</td></tr>
  </table>

  <p><a href="https://github.com/Iotic-Labs/nyx-sdk">Source</a></p>
</main>
</body>
</html>`

// NewLandingHandler returns an HTTP handler that serves the landing page at /.
func NewLandingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(landingHTML))
	}
}
