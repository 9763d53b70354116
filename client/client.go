// Package client embeds the browser-side runtime the bundle server injects
// alongside the synthesized entry.
//
// Grounded on common/execution_context.go's //go:embed js/*.js pattern:
// xk6-browser embeds a JS helper script the same way to inject into a
// page's execution context.
package client

import _ "embed"

//go:embed client.js
var Script string
