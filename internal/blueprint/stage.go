package blueprint

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownStage is returned when a stage name or value is not one of the
// five defined stages.
var ErrUnknownStage = errors.New("blueprint: unknown stage")

// Stage identifies a step of the project-definition sequence (0–4). The
// numeric value is the stage's rank in the fixed total order.
type Stage int

const (
	StageProduct   Stage = 0
	StageDataModel Stage = 1
	StageDesign    Stage = 2
	StageSections  Stage = 3
	StageExport    Stage = 4
)

var stageNames = [...]string{
	"product",
	"dataModel",
	"design",
	"sections",
	"export",
}

var stageLabels = [...]string{
	"Product",
	"Data Model",
	"Design",
	"Sections",
	"Export",
}

var approveLabels = [...]string{
	"Approve & Draft Data Model",
	"Approve & Draft Design",
	"Approve & Draft Sections",
	"Approve & Prepare Export",
	"Execute Plan",
}

// Stages returns every stage in progression order.
func Stages() []Stage {
	return []Stage{StageProduct, StageDataModel, StageDesign, StageSections, StageExport}
}

// String returns the wire name of the stage (e.g. "dataModel").
func (s Stage) String() string {
	if s.Valid() {
		return stageNames[s]
	}
	return "unknown"
}

// Valid reports whether s is one of the five defined stages.
func (s Stage) Valid() bool {
	return s >= StageProduct && s <= StageExport
}

// Label returns the human-readable stage name.
func (s Stage) Label() string {
	if s.Valid() {
		return stageLabels[s]
	}
	return "Unknown"
}

// ApproveLabel returns the label of the action that finalizes the stage.
func (s Stage) ApproveLabel() string {
	if s.Valid() {
		return approveLabels[s]
	}
	return ""
}

// Order returns the rank of the stage in the total order
// product < dataModel < design < sections < export.
func (s Stage) Order() int {
	return int(s)
}

// Next returns the immediate successor. The second result is false for
// export, which is terminal.
func (s Stage) Next() (Stage, bool) {
	if !s.Valid() || s == StageExport {
		return s, false
	}
	return s + 1, true
}

// Downstream returns every stage strictly after s, in order.
func (s Stage) Downstream() []Stage {
	if !s.Valid() {
		return nil
	}
	var out []Stage
	for d := s + 1; d <= StageExport; d++ {
		out = append(out, d)
	}
	return out
}

// Upstream returns every stage strictly before s, in order.
func (s Stage) Upstream() []Stage {
	if !s.Valid() {
		return nil
	}
	var out []Stage
	for u := StageProduct; u < s; u++ {
		out = append(out, u)
	}
	return out
}

// ParseStage resolves a wire name such as "dataModel" to its Stage.
func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if n == name {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStage, name)
}

// MarshalText encodes the stage as its wire name.
func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStage, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a wire name.
func (s *Stage) UnmarshalText(text []byte) error {
	parsed, err := ParseStage(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// StageSet is a set of stages stored as a bitmask. The zero value is empty.
type StageSet uint8

// NewStageSet returns a set holding the given stages.
func NewStageSet(stages ...Stage) StageSet {
	var set StageSet
	for _, s := range stages {
		set = set.Add(s)
	}
	return set
}

// Add returns a copy of the set with s included. Invalid stages are ignored.
func (set StageSet) Add(s Stage) StageSet {
	if !s.Valid() {
		return set
	}
	return set | 1<<uint(s)
}

// Remove returns a copy of the set without s.
func (set StageSet) Remove(s Stage) StageSet {
	if !s.Valid() {
		return set
	}
	return set &^ (1 << uint(s))
}

// Has reports whether s is in the set.
func (set StageSet) Has(s Stage) bool {
	return s.Valid() && set&(1<<uint(s)) != 0
}

// Len returns the number of stages in the set.
func (set StageSet) Len() int {
	n := 0
	for _, s := range Stages() {
		if set.Has(s) {
			n++
		}
	}
	return n
}

// Stages returns the members in progression order.
func (set StageSet) Stages() []Stage {
	var out []Stage
	for _, s := range Stages() {
		if set.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

// Names returns the wire names of the members in progression order.
func (set StageSet) Names() []string {
	stages := set.Stages()
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = s.String()
	}
	return out
}

// ParseStageSet builds a set from wire names. Duplicates are tolerated.
func ParseStageSet(names []string) (StageSet, error) {
	var set StageSet
	for _, n := range names {
		s, err := ParseStage(n)
		if err != nil {
			return 0, err
		}
		set = set.Add(s)
	}
	return set, nil
}

// MarshalJSON encodes the set as an ordered list of wire names.
func (set StageSet) MarshalJSON() ([]byte, error) {
	names := set.Names()
	if names == nil {
		names = []string{}
	}
	return json.Marshal(names)
}

// UnmarshalJSON decodes an array of wire names.
func (set *StageSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	parsed, err := ParseStageSet(names)
	if err != nil {
		return err
	}
	*set = parsed
	return nil
}
