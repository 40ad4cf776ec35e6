package core

// mapping.go implements the server-side best-guess correspondence between
// logical fields and the uploaded file's column headers, plus mapping
// validation against a schema.

import "strings"

// DetectMapping matches file columns against each field's aliases,
// case-insensitively. The first file column that matches an alias wins;
// unmatched fields are left out of the result.
func DetectMapping(columns []string, schema ImportSchema) FieldMapping {
	detected := make(FieldMapping)

	for _, field := range schema.Fields {
		for _, col := range columns {
			if matchesAlias(col, field.Aliases) {
				detected[field.Name] = col
				break
			}
		}
	}

	return detected
}

func matchesAlias(col string, aliases []string) bool {
	col = strings.TrimSpace(col)
	for _, a := range aliases {
		if strings.EqualFold(col, a) {
			return true
		}
	}
	return false
}

// MappingValidation is the result of checking a mapping against a schema.
type MappingValidation struct {
	Valid                 bool     `json:"valid"`
	MissingRequiredFields []string `json:"missing_required_fields"`
	MappedFields          []string `json:"mapped_fields"`
	RequiredFields        []string `json:"required_fields"`
	OptionalFields        []string `json:"optional_fields"`
}

// ValidateMapping reports whether every required field of the schema is
// mapped to a non-empty source column.
func ValidateMapping(schema ImportSchema, mapping FieldMapping) MappingValidation {
	v := MappingValidation{
		MissingRequiredFields: []string{},
		RequiredFields:        schema.RequiredFields(),
		OptionalFields:        schema.OptionalFields(),
	}

	for _, field := range v.RequiredFields {
		if mapping[field] == "" {
			v.MissingRequiredFields = append(v.MissingRequiredFields, field)
		}
	}
	for field := range mapping {
		if mapping[field] != "" {
			v.MappedFields = append(v.MappedFields, field)
		}
	}

	v.Valid = len(v.MissingRequiredFields) == 0
	return v
}
