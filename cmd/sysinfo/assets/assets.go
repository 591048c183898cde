// Package assets embeds static files served by sysinfo.
package assets

import _ "embed"

// OpenAPIData is the OpenAPI document for the HTTP API.
//
//go:embed openapi.yaml
var OpenAPIData []byte
