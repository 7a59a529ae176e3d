package gateway

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dusk-indust/blueprint/internal/blueprint"
)

var codeBlockRe = regexp.MustCompile("(?s)```.*?```")

// depVersionRe matches a technology name followed by a version, such as
// "React 18.2", "Go 1.22.3" or "node v20.x".
var depVersionRe = regexp.MustCompile(`(?i)\b([A-Za-z][A-Za-z0-9_.-]*)\s+v?(\d+\.\d+(?:\.\d+)?(?:\.x)?)\b`)

// CoherenceIssue is a version conflict between two regenerated stages.
type CoherenceIssue struct {
	StageA      blueprint.Stage
	StageB      blueprint.Stage
	Dependency  string
	Description string
}

// CheckCoherence scans regenerated drafts for a dependency mentioned with
// different versions in different stages. Fenced code is ignored. Issues are
// ordered by dependency name.
func CheckCoherence(drafts []Draft) []CoherenceIssue {
	type mention struct {
		version string
		stages  []blueprint.Stage
	}
	deps := make(map[string][]*mention)

	for _, d := range drafts {
		cleaned := codeBlockRe.ReplaceAllString(d.Text, "")
		seen := make(map[string]bool)
		for _, m := range depVersionRe.FindAllStringSubmatch(cleaned, -1) {
			name, version := strings.ToLower(m[1]), m[2]
			if seen[name+"@"+version] {
				continue
			}
			seen[name+"@"+version] = true

			var found *mention
			for _, existing := range deps[name] {
				if existing.version == version {
					found = existing
					break
				}
			}
			if found == nil {
				found = &mention{version: version}
				deps[name] = append(deps[name], found)
			}
			found.stages = append(found.stages, d.Stage)
		}
	}

	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	var issues []CoherenceIssue
	for _, name := range names {
		ms := deps[name]
		for i := 0; i < len(ms); i++ {
			for j := i + 1; j < len(ms); j++ {
				issues = append(issues, CoherenceIssue{
					StageA:     ms[i].stages[0],
					StageB:     ms[j].stages[0],
					Dependency: name,
					Description: fmt.Sprintf("dependency %q has conflicting versions: %s (in %s) vs %s (in %s)",
						name, ms[i].version, stageList(ms[i].stages), ms[j].version, stageList(ms[j].stages)),
				})
			}
		}
	}
	return issues
}

func stageList(stages []blueprint.Stage) string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.String()
	}
	return strings.Join(names, ", ")
}
