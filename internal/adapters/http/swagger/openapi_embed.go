package swagger

import _ "embed"

// OpenAPI is the read API document served at /openapi.yaml.
//
//go:embed openapi.yaml
var OpenAPI []byte
