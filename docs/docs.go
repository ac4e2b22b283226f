// Package docs embeds the OpenAPI description and the RapiDoc shell
// that renders it.
package docs

import "embed"

//go:embed index.html openapi.yaml
var FS embed.FS
