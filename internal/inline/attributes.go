package inline

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"inlineedit/internal/i18n"
	"inlineedit/internal/models"
)

const maxSubjectLength = 255

// FieldError is one failed attribute validation.
type FieldError struct {
	// Field is the attribute name, or cf_<id> for custom fields.
	Field string
	// Label is the custom field name; built-in fields are labelled from
	// their caption key.
	Label string
	Key   string
	Args  []any
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Key)
}

// FullMessage renders the localized "<Field> <message>" text.
func (e FieldError) FullMessage(tr *i18n.Translator) string {
	label := e.Label
	if label == "" {
		label = tr.T("field_" + strings.TrimSuffix(e.Field, "_id"))
	}
	return tr.FullMessage(label, e.Key, e.Args...)
}

type applier struct {
	issue   *models.Issue
	catalog *models.Catalog
	changed bool
	errs    []FieldError
}

func (a *applier) fail(field, key string, args ...any) {
	a.errs = append(a.errs, FieldError{Field: field, Key: key, Args: args})
}

// ApplyAttributes assigns the submitted attributes to issue and validates
// them against catalog. Unknown keys are ignored. changed reports whether
// any stored value differs afterwards.
func ApplyAttributes(issue *models.Issue, attrs Attributes, catalog *models.Catalog) (bool, []FieldError) {
	a := &applier{issue: issue, catalog: catalog}
	for _, key := range attrs.Keys() {
		if key == models.FieldCustomValues {
			a.applyCustomValues(attrs[key])
			continue
		}
		if key == models.FieldDueDate || key == models.FieldStartDate {
			continue
		}
		raw, err := scalarValue(attrs[key])
		if err != nil {
			a.fail(key, "invalid")
			continue
		}
		a.applyScalar(key, raw)
	}
	a.applyDates(attrs)
	return a.changed, a.errs
}

func (a *applier) applyScalar(key, raw string) {
	issue := a.issue
	switch key {
	case models.FieldSubject:
		subject := strings.TrimSpace(raw)
		switch {
		case subject == "":
			a.fail(key, "blank")
		case utf8.RuneCountInString(subject) > maxSubjectLength:
			a.fail(key, "too_long", "count", maxSubjectLength)
		default:
			a.setString(&issue.Subject, subject)
		}
	case models.FieldDescription:
		a.setString(&issue.Description, strings.ReplaceAll(raw, "\r\n", "\n"))
	case models.FieldTrackerID:
		id, ok := a.requiredID(key, raw)
		if !ok {
			return
		}
		if id == issue.TrackerID {
			return
		}
		if !a.catalog.TrackerEnabled(issue.ProjectID, id) {
			a.fail(key, "inclusion")
			return
		}
		a.setInt64(&issue.TrackerID, id)
	case models.FieldStatusID:
		id, ok := a.requiredID(key, raw)
		if !ok {
			return
		}
		if _, found := a.catalog.Status(id); !found {
			a.fail(key, "inclusion")
			return
		}
		a.setInt64(&issue.StatusID, id)
	case models.FieldPriorityID:
		id, ok := a.requiredID(key, raw)
		if !ok {
			return
		}
		if id == issue.PriorityID {
			return
		}
		if priority, found := a.catalog.Priority(id); !found || !priority.Active {
			a.fail(key, "inclusion")
			return
		}
		a.setInt64(&issue.PriorityID, id)
	case models.FieldAssignedToID:
		a.applyOptionalID(key, raw, &issue.AssignedToID, func(id int64) bool {
			return a.catalog.IsAssignable(issue.ProjectID, id)
		}, "invalid")
	case models.FieldCategoryID:
		a.applyOptionalID(key, raw, &issue.CategoryID, func(id int64) bool {
			_, ok := a.catalog.Category(issue.ProjectID, id)
			return ok
		}, "inclusion")
	case models.FieldFixedVersionID:
		a.applyOptionalID(key, raw, &issue.FixedVersionID, func(id int64) bool {
			version, ok := a.catalog.Version(issue.ProjectID, id)
			return ok && version.IsOpen()
		}, "inclusion")
	case models.FieldDoneRatio:
		value, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || value < 0 || value > 100 {
			a.fail(key, "inclusion")
			return
		}
		if issue.DoneRatio != value {
			issue.DoneRatio = value
			a.changed = true
		}
	case models.FieldEstimatedHours:
		raw = strings.TrimSpace(raw)
		if raw == "" {
			a.setFloat(&issue.EstimatedHours, nil)
			return
		}
		value, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
		if err != nil {
			a.fail(key, "invalid")
			return
		}
		if value < 0 {
			a.fail(key, "greater_than_or_equal_to", "count", 0)
			return
		}
		a.setFloat(&issue.EstimatedHours, &value)
	case models.FieldIsPrivate:
		value, ok := parseBool(raw)
		if !ok {
			a.fail(key, "inclusion")
			return
		}
		if issue.IsPrivate != value {
			issue.IsPrivate = value
			a.changed = true
		}
	}
}

func (a *applier) applyDates(attrs Attributes) {
	issue := a.issue
	valid := true
	for _, key := range []string{models.FieldStartDate, models.FieldDueDate} {
		value, ok := attrs[key]
		if !ok {
			continue
		}
		raw, err := scalarValue(value)
		if err != nil {
			a.fail(key, "not_a_date")
			valid = false
			continue
		}
		var date *models.Date
		if raw = strings.TrimSpace(raw); raw != "" {
			parsed, err := models.ParseDate(raw)
			if err != nil {
				a.fail(key, "not_a_date")
				valid = false
				continue
			}
			date = &parsed
		}
		target := &issue.StartDate
		if key == models.FieldDueDate {
			target = &issue.DueDate
		}
		if !sameDate(*target, date) {
			*target = date
			a.changed = true
		}
	}
	if valid && issue.StartDate != nil && issue.DueDate != nil && issue.DueDate.Before(issue.StartDate.Time) {
		a.fail(models.FieldDueDate, "greater_than_start_date")
	}
}

func (a *applier) applyCustomValues(v any) {
	submitted, err := customFieldValues(v)
	if err != nil {
		a.fail(models.FieldCustomValues, "invalid")
		return
	}

	for _, field := range a.catalog.EditableCustomFields(a.issue) {
		values, ok := submitted[field.ID]
		if !ok {
			continue
		}
		values, valid := a.validateCustomValue(field, values, a.issue.CustomValues[field.ID])
		if !valid {
			continue
		}
		if a.issue.CustomValues == nil {
			a.issue.CustomValues = map[int64][]string{}
		}
		if !sameCustomValues(a.issue.CustomValues[field.ID], values) {
			a.issue.CustomValues[field.ID] = values
			a.changed = true
		}
	}
}

// validateCustomValue returns the values to store for field. stored holds the
// issue's current values, which stay valid list choices.
func (a *applier) validateCustomValue(field models.CustomField, submitted, stored []string) ([]string, bool) {
	values := make([]string, 0, len(submitted))
	for _, value := range submitted {
		if value = strings.TrimSpace(value); value != "" {
			values = append(values, value)
		}
	}
	if !field.Multiple && len(values) > 1 {
		values = values[:1]
	}

	fail := func(key string, args ...any) ([]string, bool) {
		a.errs = append(a.errs, FieldError{Field: field.ColumnName(), Label: field.Name, Key: key, Args: args})
		return nil, false
	}

	if len(values) == 0 {
		if field.IsRequired {
			return fail("blank")
		}
		return []string{""}, true
	}

	for _, value := range values {
		if key, args := customValueError(field, value, stored); key != "" {
			return fail(key, args...)
		}
	}
	return values, true
}

func customValueError(field models.CustomField, value string, stored []string) (string, []any) {
	switch field.FieldFormat {
	case models.FormatInt:
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return "not_a_number", nil
		}
	case models.FormatFloat:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return "invalid", nil
		}
	case models.FormatDate:
		if _, err := models.ParseDate(value); err != nil {
			return "not_a_date", nil
		}
	case models.FormatBool:
		if value != "0" && value != "1" {
			return "inclusion", nil
		}
	case models.FormatList:
		if !slices.Contains(field.PossibleValues, value) && !slices.Contains(stored, value) {
			return "inclusion", nil
		}
	}

	if field.Regexp != "" {
		re, err := regexp.Compile(field.Regexp)
		if err != nil || !re.MatchString(value) {
			return "invalid", nil
		}
	}
	length := utf8.RuneCountInString(value)
	if field.MinLength > 0 && length < field.MinLength {
		return "too_short", []any{"count", field.MinLength}
	}
	if field.MaxLength > 0 && length > field.MaxLength {
		return "too_long", []any{"count", field.MaxLength}
	}
	return "", nil
}

func (a *applier) requiredID(key, raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		a.fail(key, "blank")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		a.fail(key, "invalid")
		return 0, false
	}
	return id, true
}

func (a *applier) applyOptionalID(key, raw string, target **int64, valid func(int64) bool, failKey string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if *target != nil {
			*target = nil
			a.changed = true
		}
		return
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		a.fail(key, "invalid")
		return
	}
	if *target != nil && **target == id {
		return
	}
	if !valid(id) {
		a.fail(key, failKey)
		return
	}
	*target = models.Int64Ptr(id)
	a.changed = true
}

func (a *applier) setString(target *string, value string) {
	if *target != value {
		*target = value
		a.changed = true
	}
}

func (a *applier) setInt64(target *int64, value int64) {
	if *target != value {
		*target = value
		a.changed = true
	}
}

func (a *applier) setFloat(target **float64, value *float64) {
	switch {
	case *target == nil && value == nil:
		return
	case *target != nil && value != nil && **target == *value:
		return
	}
	*target = value
	a.changed = true
}

func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true":
		return true, true
	case "0", "false", "":
		return false, true
	}
	return false, false
}

func sameDate(a, b *models.Date) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b.Time)
}

// sameCustomValues treats a missing value and a single blank value alike.
func sameCustomValues(stored, next []string) bool {
	normalize := func(values []string) []string {
		if len(values) == 1 && values[0] == "" {
			return nil
		}
		return values
	}
	return slices.Equal(normalize(stored), normalize(next))
}
