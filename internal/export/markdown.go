package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dusk-indust/blueprint/internal/blueprint"
)

const placeholder = "_Not drafted yet._"

// Markdown renders the blueprint of p as a Markdown document. The output
// depends only on p: headings appear in a fixed order and field text is
// copied verbatim.
func Markdown(p blueprint.Project) string {
	b := p.Blueprint
	var sb strings.Builder

	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = "Untitled Project"
	}
	fmt.Fprintf(&sb, "# %s\n", title)

	writeSection(&sb, "Overview", b.Overview)
	writeSection(&sb, "Problems", b.Problems)
	writeSection(&sb, "Features", b.Features)
	writeSection(&sb, "Data Model", b.DataModel)
	writeSection(&sb, "Design", b.Design)

	sb.WriteString("\n## Sections\n\n")
	if b.SectionsDraft == "" && len(b.Sections) == 0 {
		sb.WriteString(placeholder + "\n")
	}
	if b.SectionsDraft != "" {
		writeText(&sb, b.SectionsDraft)
		if len(b.Sections) > 0 {
			sb.WriteString("\n")
		}
	}
	for _, s := range b.Sections {
		mark := " "
		if s.Completed {
			mark = "x"
		}
		fmt.Fprintf(&sb, "- [%s] **%s**", mark, sectionTitle(s))
		if s.Agent != "" {
			fmt.Fprintf(&sb, " (%s)", s.Agent)
		}
		if s.Summary != "" {
			fmt.Fprintf(&sb, ": %s", s.Summary)
		}
		sb.WriteString("\n")
	}

	writeSection(&sb, "Export Notes", b.ExportNotes)
	return sb.String()
}

func writeSection(sb *strings.Builder, heading, text string) {
	fmt.Fprintf(sb, "\n## %s\n\n", heading)
	if text == "" {
		sb.WriteString(placeholder + "\n")
		return
	}
	writeText(sb, text)
}

// writeText copies text unchanged and ends it with a newline when it does
// not already end with one.
func writeText(sb *strings.Builder, text string) {
	sb.WriteString(text)
	if !strings.HasSuffix(text, "\n") {
		sb.WriteString("\n")
	}
}

func sectionTitle(s blueprint.Section) string {
	if s.Title != "" {
		return s.Title
	}
	return s.ID
}

// WriteMarkdownFile writes the Markdown export of p to path. The file is
// written to a temporary sibling and renamed into place, so readers never
// observe a partial document.
func WriteMarkdownFile(path string, p blueprint.Project) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("export: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".export-*.md")
	if err != nil {
		return fmt.Errorf("export: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(Markdown(p)); err != nil {
		tmp.Close()
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("export: rename into %s: %w", path, err)
	}
	return nil
}
