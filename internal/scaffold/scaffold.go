package scaffold

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// mcpConfig represents the structure of a .mcp.json file.
type mcpConfig struct {
	MCPServers map[string]json.RawMessage `json:"mcpServers"`
}

// MCPEntry is the MCP server configuration for the blueprint binary.
var MCPEntry = json.RawMessage(`{
  "type": "stdio",
  "command": "blueprint",
  "args": ["serve-mcp"]
}`)

// files maps embedded templates to their destination names.
var files = []struct{ src, dest string }{
	{"templates/blueprint.yml", "blueprint.yml"},
	{"templates/env.example", ".env.example"},
}

// Install writes the starter files into root and merges the blueprint entry
// into root/.mcp.json. Existing files are kept unless force is set. Progress
// lines are written to w.
func Install(root string, force bool, w io.Writer) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving project root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return err
	}

	for _, f := range files {
		dest := filepath.Join(abs, f.dest)
		if !force {
			if _, err := os.Stat(dest); err == nil {
				fmt.Fprintf(w, "  skipped %s (exists, use --force to overwrite)\n", dotRelative(abs, dest))
				continue
			}
		}
		data, err := TemplateFS.ReadFile(f.src)
		if err != nil {
			return fmt.Errorf("reading embedded %s: %w", f.src, err)
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", dest, err)
		}
		fmt.Fprintf(w, "  created %s\n", dotRelative(abs, dest))
	}

	return mergeMCPConfig(filepath.Join(abs, ".mcp.json"), force, w)
}

// mergeMCPConfig creates or merges the blueprint entry into .mcp.json.
func mergeMCPConfig(mcpPath string, force bool, w io.Writer) error {
	var cfg mcpConfig

	data, err := os.ReadFile(mcpPath)
	if err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing %s: %w", mcpPath, err)
		}
	}

	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]json.RawMessage)
	}

	if _, exists := cfg.MCPServers["blueprint"]; exists && !force {
		fmt.Fprintf(w, "  skipped .mcp.json blueprint entry (exists, use --force to overwrite)\n")
		return nil
	}

	cfg.MCPServers["blueprint"] = MCPEntry

	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling .mcp.json: %w", err)
	}

	if err := os.WriteFile(mcpPath, append(out, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", mcpPath, err)
	}

	action := "created"
	if data != nil {
		action = "updated"
	}
	fmt.Fprintf(w, "  %s .mcp.json with blueprint MCP server\n", action)
	return nil
}

// dotRelative returns a display path relative to the project root, prefixed
// with "./".
func dotRelative(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	return "./" + rel
}
