package render

import (
	"html/template"
	"strings"
)

type attr struct {
	name  string
	value string
}

type option struct {
	label string
	value string
}

func writeAttrs(b *strings.Builder, attrs []attr) {
	for _, a := range attrs {
		b.WriteByte(' ')
		b.WriteString(a.name)
		b.WriteString(`="`)
		b.WriteString(template.HTMLEscapeString(a.value))
		b.WriteByte('"')
	}
}

func inputTag(inputType string, attrs ...attr) template.HTML {
	var b strings.Builder
	b.WriteString(`<input type="`)
	b.WriteString(inputType)
	b.WriteByte('"')
	writeAttrs(&b, attrs)
	b.WriteString(" />")
	return template.HTML(b.String())
}

func textareaTag(value string, attrs ...attr) template.HTML {
	var b strings.Builder
	b.WriteString("<textarea")
	writeAttrs(&b, attrs)
	b.WriteString(">")
	b.WriteString(template.HTMLEscapeString(value))
	b.WriteString("</textarea>")
	return template.HTML(b.String())
}

// selectTag renders a select; every option whose value is in selected is
// marked selected.
func selectTag(options []option, selected []string, attrs ...attr) template.HTML {
	var b strings.Builder
	b.WriteString("<select")
	writeAttrs(&b, attrs)
	b.WriteString(">")
	for _, o := range options {
		b.WriteString(`<option value="`)
		b.WriteString(template.HTMLEscapeString(o.value))
		b.WriteByte('"')
		for _, s := range selected {
			if s == o.value {
				b.WriteString(` selected="selected"`)
				break
			}
		}
		b.WriteByte('>')
		b.WriteString(template.HTMLEscapeString(o.label))
		b.WriteString("</option>")
	}
	b.WriteString("</select>")
	return template.HTML(b.String())
}

// withAttrs drops attributes whose value is empty.
func withAttrs(attrs ...attr) []attr {
	out := attrs[:0]
	for _, a := range attrs {
		if a.value != "" {
			out = append(out, a)
		}
	}
	return out
}
