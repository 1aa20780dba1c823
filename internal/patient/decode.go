package patient

import (
	"fmt"
	"time"

	"stealthcompany.com/dentalapp/internal/identifier"
)

// DecodeDocument rebuilds a Patient from its stored form. Older records are
// read leniently: a missing or non-list medical_history becomes empty and
// dates held as text are parsed as ISO-8601.
func DecodeDocument(doc Document) (Patient, error) {
	id, err := documentID(doc[FieldID])
	if err != nil {
		return Patient{}, &DecodeError{Reason: err.Error()}
	}

	r := &docReader{}
	p := Patient{
		ID:             id,
		FirstName:      r.text(doc, FieldFirstName),
		LastName:       r.text(doc, FieldLastName),
		DateOfBirth:    r.timestamp(doc, FieldDateOfBirth),
		ContactNumber:  r.text(doc, FieldContactNumber),
		Email:          r.text(doc, FieldEmail),
		Address:        r.address(doc[FieldAddress]),
		MedicalHistory: r.history(doc[FieldMedicalHistory]),
		CreatedAt:      r.timestamp(doc, FieldCreatedAt),
		UpdatedAt:      r.timestamp(doc, FieldUpdatedAt),
	}
	if r.err != nil {
		return Patient{}, &DecodeError{ID: id.Hex(), Reason: r.err.Error()}
	}

	errs := &ValidationError{}
	collect(errs, "", validate.Struct(p))
	if err := errs.orNil(); err != nil {
		return Patient{}, &DecodeError{ID: id.Hex(), Reason: err.Error()}
	}
	return p, nil
}

func documentID(v any) (identifier.ID, error) {
	switch id := v.(type) {
	case identifier.ID:
		return id, nil
	case string:
		return identifier.Parse(id)
	case nil:
		return identifier.Nil, fmt.Errorf("missing %s", FieldID)
	default:
		return identifier.Nil, fmt.Errorf("%s has unsupported type %T", FieldID, v)
	}
}

// docReader keeps the first conversion error so field reads stay linear.
type docReader struct {
	err error
}

func (r *docReader) fail(path string, format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf("%s: %s", path, fmt.Sprintf(format, args...))
	}
}

func (r *docReader) text(doc map[string]any, field string) string {
	return r.textAt(field, doc[field])
}

func (r *docReader) textAt(path string, v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		r.fail(path, "expected string, got %T", v)
		return ""
	}
}

func (r *docReader) timestamp(doc map[string]any, field string) Timestamp {
	return r.timestampAt(field, doc[field])
}

func (r *docReader) timestampAt(path string, v any) Timestamp {
	switch t := v.(type) {
	case nil:
		return Timestamp{}
	case time.Time:
		return NewTimestamp(t)
	case Timestamp:
		return NewTimestamp(t.Time)
	case string:
		ts, err := ParseTimestamp(t)
		if err != nil {
			r.fail(path, "%v", err)
		}
		return ts
	default:
		r.fail(path, "expected date-time, got %T", v)
		return Timestamp{}
	}
}

func (r *docReader) address(v any) Address {
	m, ok := asMap(v)
	if !ok {
		if v != nil {
			r.fail(FieldAddress, "expected object, got %T", v)
		}
		return Address{}
	}
	return Address{
		Street:     r.textAt(FieldAddress+"."+FieldStreet, m[FieldStreet]),
		City:       r.textAt(FieldAddress+"."+FieldCity, m[FieldCity]),
		State:      r.textAt(FieldAddress+"."+FieldState, m[FieldState]),
		PostalCode: r.textAt(FieldAddress+"."+FieldPostalCode, m[FieldPostalCode]),
	}
}

func (r *docReader) history(v any) []MedicalHistoryEntry {
	items, ok := v.([]any)
	if !ok {
		return []MedicalHistoryEntry{}
	}
	out := make([]MedicalHistoryEntry, 0, len(items))
	for i, item := range items {
		path := fmt.Sprintf("%s[%d]", FieldMedicalHistory, i)
		m, ok := asMap(item)
		if !ok {
			r.fail(path, "expected object, got %T", item)
			continue
		}
		out = append(out, MedicalHistoryEntry{
			Condition:     r.textAt(path+"."+FieldCondition, m[FieldCondition]),
			DiagnosedDate: r.timestampAt(path+"."+FieldDiagnosedDate, m[FieldDiagnosedDate]),
			Notes:         r.textAt(path+"."+FieldNotes, m[FieldNotes]),
		})
	}
	return out
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case Document:
		return m, true
	case map[string]any:
		return m, true
	default:
		return nil, false
	}
}
