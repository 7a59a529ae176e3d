// Package scaffold installs the starter files for a blueprint workspace: a
// blueprint.yml, an .env example and the MCP server entry in .mcp.json.
package scaffold

import "embed"

// TemplateFS contains the embedded starter files, rooted at "templates".
//
//go:embed templates/*
var TemplateFS embed.FS
