package models

import (
	"strconv"
	"strings"
)

// Custom field formats with a registered editor.
const (
	FormatString    = "string"
	FormatText      = "text"
	FormatInt       = "int"
	FormatFloat     = "float"
	FormatDate      = "date"
	FormatBool      = "bool"
	FormatList      = "list"
	FormatLink      = "link"
	FormatSQLSearch = "sql_search"
)

// DefaultStrictErrorMessage is shown by the sql_search observer when a typed
// value does not match any search result and no message is configured.
const DefaultStrictErrorMessage = "it is not valid value"

// CustomField describes a user-defined issue attribute.
type CustomField struct {
	ID             int64    `yaml:"id"`
	Name           string   `yaml:"name"`
	FieldFormat    string   `yaml:"field_format"`
	PossibleValues []string `yaml:"possible_values"`
	IsRequired     bool     `yaml:"is_required"`
	IsForAll       bool     `yaml:"is_for_all"`
	Multiple       bool     `yaml:"multiple"`
	Editable       bool     `yaml:"editable"`
	Description    string   `yaml:"description"`
	DefaultValue   string   `yaml:"default_value"`
	Regexp         string   `yaml:"regexp"`
	MinLength      int      `yaml:"min_length"`
	MaxLength      int      `yaml:"max_length"`
	TextFormatting string   `yaml:"text_formatting"`
	Position       int      `yaml:"position"`

	ProjectIDs []int64 `yaml:"project_ids"`
	TrackerIDs []int64 `yaml:"tracker_ids"`

	// sql_search options; nil means the field does not carry the option.
	SearchByClick      *int    `yaml:"search_by_click"`
	StrictSelection    *int    `yaml:"strict_selection"`
	StrictErrorMessage *string `yaml:"strict_error_message"`
	FormParams         string  `yaml:"form_params"`
}

// EnabledFor reports whether the field applies to issues of a project and tracker.
func (f CustomField) EnabledFor(projectID, trackerID int64) bool {
	if !containsID(f.TrackerIDs, trackerID) {
		return false
	}
	return f.IsForAll || containsID(f.ProjectIDs, projectID)
}

// FullTextFormatting reports whether text values are rendered with wiki markup.
func (f CustomField) FullTextFormatting() bool {
	return f.FieldFormat == FormatText && f.TextFormatting == "full"
}

// CSSClasses mirrors the classes host list views apply to custom field cells.
func (f CustomField) CSSClasses() string {
	return strings.Join([]string{f.FieldFormat + "_cf", "cf_" + strconv.FormatInt(f.ID, 10)}, " ")
}

// ColumnName is the query column name for this field.
func (f CustomField) ColumnName() string {
	return "cf_" + strconv.FormatInt(f.ID, 10)
}

func (f CustomField) DisplayName() string { return f.Name }

// CastValue converts a stored string into the field's typed value. Blank
// values and values that do not parse cast to nil.
func (f CustomField) CastValue(raw string) any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	switch f.FieldFormat {
	case FormatInt:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil
		}
		return v
	case FormatFloat:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil
		}
		return v
	case FormatDate:
		d, err := ParseDate(raw)
		if err != nil {
			return nil
		}
		return d
	case FormatBool:
		switch raw {
		case "1", "true":
			return true
		case "0", "false":
			return false
		}
		return nil
	default:
		return raw
	}
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
