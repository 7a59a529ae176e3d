package blueprint

import "fmt"

// Field names an editable text field of a Blueprint.
type Field string

const (
	FieldOverview      Field = "overview"
	FieldProblems      Field = "problems"
	FieldFeatures      Field = "features"
	FieldDataModel     Field = "dataModel"
	FieldDesign        Field = "design"
	FieldSectionsDraft Field = "sectionsDraft"
	FieldExportNotes   Field = "exportNotes"
)

// Fields returns every text field in export order.
func Fields() []Field {
	return []Field{
		FieldOverview,
		FieldProblems,
		FieldFeatures,
		FieldDataModel,
		FieldDesign,
		FieldSectionsDraft,
		FieldExportNotes,
	}
}

// ParseField resolves a field name.
func ParseField(name string) (Field, error) {
	for _, f := range Fields() {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("blueprint: unknown field %q", name)
}

// Stage returns the stage that owns the field.
func (f Field) Stage() Stage {
	switch f {
	case FieldDataModel:
		return StageDataModel
	case FieldDesign:
		return StageDesign
	case FieldSectionsDraft:
		return StageSections
	case FieldExportNotes:
		return StageExport
	default:
		return StageProduct
	}
}

// DraftField returns the field that regenerated text for s is written to.
// Product has no draft field: it is authored upstream and never regenerated.
func (s Stage) DraftField() (Field, bool) {
	switch s {
	case StageDataModel:
		return FieldDataModel, true
	case StageDesign:
		return FieldDesign, true
	case StageSections:
		return FieldSectionsDraft, true
	case StageExport:
		return FieldExportNotes, true
	default:
		return "", false
	}
}

// Get returns the value of field f.
func (b Blueprint) Get(f Field) string {
	switch f {
	case FieldOverview:
		return b.Overview
	case FieldProblems:
		return b.Problems
	case FieldFeatures:
		return b.Features
	case FieldDataModel:
		return b.DataModel
	case FieldDesign:
		return b.Design
	case FieldSectionsDraft:
		return b.SectionsDraft
	case FieldExportNotes:
		return b.ExportNotes
	default:
		return ""
	}
}

// Set assigns text to field f. It returns an error for unknown fields.
func (b *Blueprint) Set(f Field, text string) error {
	switch f {
	case FieldOverview:
		b.Overview = text
	case FieldProblems:
		b.Problems = text
	case FieldFeatures:
		b.Features = text
	case FieldDataModel:
		b.DataModel = text
	case FieldDesign:
		b.Design = text
	case FieldSectionsDraft:
		b.SectionsDraft = text
	case FieldExportNotes:
		b.ExportNotes = text
	default:
		return fmt.Errorf("blueprint: unknown field %q", string(f))
	}
	return nil
}

// MergeSections replaces the section list with next, keeping the completion
// flag of every section whose id survives.
func (b *Blueprint) MergeSections(next []Section) {
	done := make(map[string]bool, len(b.Sections))
	for _, s := range b.Sections {
		done[s.ID] = s.Completed
	}
	merged := make([]Section, len(next))
	for i, s := range next {
		if prev, ok := done[s.ID]; ok {
			s.Completed = prev
		}
		merged[i] = s
	}
	b.Sections = merged
}
