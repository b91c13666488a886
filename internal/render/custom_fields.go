package render

import (
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"inlineedit/internal/i18n"
	"inlineedit/internal/models"
)

// customFieldInput is everything a format editor needs to render one field.
type customFieldInput struct {
	field        models.CustomField
	issue        *models.Issue
	id           string
	name         string
	values       []string
	class        string
	placeholder  string
	autoComplete bool
	tr           *i18n.Translator
}

func (in customFieldInput) value() string {
	if len(in.values) == 0 {
		return ""
	}
	return in.values[0]
}

func (in customFieldInput) attrs() []attr {
	attrs := withAttrs(
		attr{"name", in.name},
		attr{"id", in.id},
		attr{"class", in.class},
		attr{"placeholder", in.placeholder},
	)
	if in.autoComplete {
		attrs = append(attrs, attr{"data-auto-complete", "true"})
	}
	return attrs
}

type customFieldEditor func(in customFieldInput) template.HTML

// customFieldEditors is keyed by field format. Formats without an entry use
// the text editor.
var customFieldEditors = map[string]customFieldEditor{
	models.FormatString:    textEditor,
	models.FormatInt:       textEditor,
	models.FormatFloat:     textEditor,
	models.FormatLink:      textEditor,
	models.FormatText:      textAreaEditor,
	models.FormatDate:      dateEditor,
	models.FormatBool:      boolEditor,
	models.FormatList:      listEditor,
	models.FormatSQLSearch: textEditor,
}

func textEditor(in customFieldInput) template.HTML {
	return inputTag("text", append(in.attrs(), attr{"value", in.value()})...)
}

func textAreaEditor(in customFieldInput) template.HTML {
	return textareaTag(in.value(), append(in.attrs(), attr{"rows", "3"})...)
}

func dateEditor(in customFieldInput) template.HTML {
	return inputTag("date", append(in.attrs(), attr{"value", in.value()}, attr{"size", "10"})...)
}

func boolEditor(in customFieldInput) template.HTML {
	options := []option{{}, {label: in.tr.YesNo(true), value: "1"}, {label: in.tr.YesNo(false), value: "0"}}
	return selectTag(options, in.values, in.attrs()...)
}

func listEditor(in customFieldInput) template.HTML {
	options := make([]option, 0, len(in.field.PossibleValues)+len(in.values)+1)
	if !in.field.Multiple {
		options = append(options, option{})
	}
	for _, value := range in.field.PossibleValues {
		options = append(options, option{label: value, value: value})
	}
	// Stored values dropped from the field's list stay selectable.
	for _, value := range in.values {
		options = ensureOption(options, value, "")
	}
	attrs := in.attrs()
	if !in.field.Multiple {
		return selectTag(options, in.values, attrs...)
	}
	// The hidden blank lets a submission clear every selection.
	hidden := inputTag("hidden", attr{"name", in.name}, attr{"value", ""})
	return hidden + selectTag(options, in.values, append(attrs, attr{"multiple", "multiple"})...)
}

func (r *Renderer) customFieldContent(field models.CustomField, issue *models.Issue) template.HTML {
	editable := false
	for _, candidate := range r.catalog.EditableCustomFields(issue) {
		if candidate.ID == field.ID {
			editable = true
			break
		}
	}
	if !editable {
		return ""
	}
	return r.customFieldTag(field, issue)
}

// customFieldTag renders the editor of one custom field, plus the search
// observer script for sql_search fields.
func (r *Renderer) customFieldTag(field models.CustomField, issue *models.Issue) template.HTML {
	in := customFieldInput{
		field:       field,
		issue:       issue,
		id:          fmt.Sprintf("issues_%d_custom_field_values_%d", issue.ID, field.ID),
		name:        fmt.Sprintf("issues[%d][custom_field_values][%d]", issue.ID, field.ID),
		values:      issue.CustomValues[field.ID],
		class:       field.CSSClasses(),
		placeholder: field.Description,
		tr:          r.tr,
	}
	if field.Multiple {
		in.name += "[]"
	}
	if field.FieldFormat != models.FormatText {
		in.placeholder = strings.ReplaceAll(in.placeholder, "\n", " ")
	}
	if field.FullTextFormatting() {
		in.class += " wiki-edit"
		in.autoComplete = true
	}

	editor, ok := customFieldEditors[field.FieldFormat]
	if !ok {
		editor = textEditor
	}
	tag := editor(in)
	if field.FieldFormat == models.FormatSQLSearch {
		tag += r.sqlSearchScript(in)
	}
	return tag
}

type sqlSearchOptions struct {
	SearchByClick      int    `json:"search_by_click"`
	StrictSelection    int    `json:"strict_selection"`
	StrictErrorMessage string `json:"strict_error_message"`
}

func (r *Renderer) sqlSearchScript(in customFieldInput) template.HTML {
	field := in.field
	url := fmt.Sprintf("%s/custom_sql_search/search?project_id=%d&issue_id=%d&custom_field_id=%d",
		r.root, in.issue.ProjectID, in.issue.ID, field.ID)

	options := sqlSearchOptions{StrictErrorMessage: models.DefaultStrictErrorMessage}
	if field.SearchByClick != nil {
		options.SearchByClick = *field.SearchByClick
	}
	if field.StrictSelection != nil {
		options.StrictSelection = *field.StrictSelection
	}
	if field.StrictErrorMessage != nil {
		options.StrictErrorMessage = *field.StrictErrorMessage
	}

	args := []any{in.id, url, SQLSearchParams(field, in.id), options}
	encoded := make([]string, 0, len(args))
	for _, arg := range args {
		// encoding/json escapes <, > and & so the output is safe inside a script element.
		data, err := json.Marshal(arg)
		if err != nil {
			return ""
		}
		encoded = append(encoded, string(data))
	}
	return template.HTML("<script>observeSqlField(" + strings.Join(encoded, ", ") + ")</script>")
}

// SQLSearchParams parses a field's form_params "key=value" lines. References
// to the generic issue form element are rewritten to point at elementID.
func SQLSearchParams(field models.CustomField, elementID string) map[string]string {
	params := map[string]string{}
	generic := fmt.Sprintf("$('#issue_custom_field_values_%d')", field.ID)
	for _, line := range strings.Split(field.FormParams, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		value = strings.ReplaceAll(value, generic, "$('#"+elementID+"')")
		params[key] = strings.TrimSpace(value)
	}
	return params
}
