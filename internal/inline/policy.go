package inline

import "inlineedit/internal/models"

// LockedFields returns the fields computed from subtasks that must not be
// edited on a parent. Leaf issues have no locked fields.
func LockedFields(hasChildren bool, s models.ParentSettings) models.FieldSet {
	locked := models.NewFieldSet()
	if !hasChildren {
		return locked
	}
	if s.DoneRatioDerived {
		locked[models.FieldDoneRatio] = struct{}{}
	}
	if s.DatesDerived {
		locked[models.FieldStartDate] = struct{}{}
		locked[models.FieldDueDate] = struct{}{}
	}
	if s.PriorityDerived {
		locked[models.FieldPriorityID] = struct{}{}
	}
	return locked
}

// AllowedFields returns the inline-editable built-in fields minus the locked ones.
func AllowedFields(hasChildren bool, s models.ParentSettings) models.FieldSet {
	allowed := models.InlineEditableFields()
	for name := range LockedFields(hasChildren, s) {
		delete(allowed, name)
	}
	return allowed
}

// Mask returns a copy of attrs without the locked fields. Other keys,
// including custom field values, pass through.
func Mask(attrs Attributes, hasChildren bool, s models.ParentSettings) Attributes {
	out := attrs.Clone()
	for name := range LockedFields(hasChildren, s) {
		delete(out, name)
	}
	return out
}
