// Package patient holds the patient record model, its validation rules and
// the repository that persists records through a pluggable document Store.
package patient

import (
	"strings"
	"time"

	"stealthcompany.com/dentalapp/internal/identifier"
)

// Document field names.
const (
	FieldID             = "_id"
	FieldFirstName      = "first_name"
	FieldLastName       = "last_name"
	FieldDateOfBirth    = "date_of_birth"
	FieldContactNumber  = "contact_number"
	FieldEmail          = "email"
	FieldAddress        = "address"
	FieldMedicalHistory = "medical_history"
	FieldCreatedAt      = "created_at"
	FieldUpdatedAt      = "updated_at"

	FieldStreet     = "street"
	FieldCity       = "city"
	FieldState      = "state"
	FieldPostalCode = "postal_code"

	FieldCondition     = "condition"
	FieldDiagnosedDate = "diagnosed_date"
	FieldNotes         = "notes"
)

// SearchFields are matched by the free-text search of List.
var SearchFields = []string{FieldFirstName, FieldLastName, FieldEmail}

// Address is embedded in a patient record.
type Address struct {
	Street     string `json:"street" validate:"required,notblank"`
	City       string `json:"city" validate:"required,notblank"`
	State      string `json:"state" validate:"required,notblank"`
	PostalCode string `json:"postal_code" validate:"required,notblank"`
}

// MedicalHistoryEntry is one diagnosed condition. Entries keep insertion order.
type MedicalHistoryEntry struct {
	Condition     string    `json:"condition" validate:"required,notblank"`
	DiagnosedDate Timestamp `json:"diagnosed_date" validate:"required"`
	Notes         string    `json:"notes"`
}

// Patient is a persisted patient record.
type Patient struct {
	ID             identifier.ID         `json:"_id" validate:"required"`
	FirstName      string                `json:"first_name" validate:"required,notblank"`
	LastName       string                `json:"last_name" validate:"required,notblank"`
	DateOfBirth    Timestamp             `json:"date_of_birth" validate:"required"`
	ContactNumber  string                `json:"contact_number"`
	Email          string                `json:"email,omitempty" validate:"omitempty,email"`
	Address        Address               `json:"address" validate:"required"`
	MedicalHistory []MedicalHistoryEntry `json:"medical_history" validate:"dive"`
	CreatedAt      Timestamp             `json:"created_at"`
	UpdatedAt      Timestamp             `json:"updated_at"`
}

// PatientCreate is the client payload for a new record.
type PatientCreate struct {
	FirstName      string                `json:"first_name" validate:"required,notblank"`
	LastName       string                `json:"last_name" validate:"required,notblank"`
	DateOfBirth    Timestamp             `json:"date_of_birth" validate:"required"`
	ContactNumber  string                `json:"contact_number" validate:"required,notblank"`
	Email          string                `json:"email" validate:"omitempty,email"`
	Address        *Address              `json:"address" validate:"required"`
	MedicalHistory []MedicalHistoryEntry `json:"medical_history" validate:"dive"`
}

// PatientUpdate is a sparse patch. Fields absent from the payload leave the
// stored values untouched.
type PatientUpdate struct {
	FirstName      Optional[string]                `json:"first_name"`
	LastName       Optional[string]                `json:"last_name"`
	DateOfBirth    Optional[Timestamp]             `json:"date_of_birth"`
	ContactNumber  Optional[string]                `json:"contact_number"`
	Email          Optional[string]                `json:"email"`
	Address        Optional[Address]               `json:"address"`
	MedicalHistory Optional[[]MedicalHistoryEntry] `json:"medical_history"`
}

// Document is the store-neutral persisted form of a record. Values are
// strings, time.Time, identifier.ID, nested Documents and []any.
type Document map[string]any

// Changes is the field-level effect of a patch.
type Changes struct {
	Set   Document
	Unset []string
}

// ApplyTo performs the changes on doc in place.
func (c Changes) ApplyTo(doc Document) {
	for k, v := range c.Set {
		doc[k] = v
	}
	for _, k := range c.Unset {
		delete(doc, k)
	}
}

func (c PatientCreate) newPatient(id identifier.ID, now Timestamp) Patient {
	history := make([]MedicalHistoryEntry, 0, len(c.MedicalHistory))
	for _, entry := range c.MedicalHistory {
		entry.DiagnosedDate = NewTimestamp(entry.DiagnosedDate.Time)
		history = append(history, entry)
	}
	var address Address
	if c.Address != nil {
		address = *c.Address
	}
	return Patient{
		ID:             id,
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		DateOfBirth:    NewTimestamp(c.DateOfBirth.Time),
		ContactNumber:  c.ContactNumber,
		Email:          strings.TrimSpace(c.Email),
		Address:        address,
		MedicalHistory: history,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Document returns the persisted form of p.
func (p Patient) Document() Document {
	doc := Document{
		FieldID:             p.ID,
		FieldFirstName:      p.FirstName,
		FieldLastName:       p.LastName,
		FieldDateOfBirth:    storedTime(p.DateOfBirth.Time),
		FieldContactNumber:  p.ContactNumber,
		FieldAddress:        p.Address.document(),
		FieldMedicalHistory: historyDocuments(p.MedicalHistory),
		FieldCreatedAt:      storedTime(p.CreatedAt.Time),
		FieldUpdatedAt:      storedTime(p.UpdatedAt.Time),
	}
	// Records without an email stay out of the sparse unique index.
	if p.Email != "" {
		doc[FieldEmail] = p.Email
	}
	return doc
}

func (a Address) document() Document {
	return Document{
		FieldStreet:     a.Street,
		FieldCity:       a.City,
		FieldState:      a.State,
		FieldPostalCode: a.PostalCode,
	}
}

func historyDocuments(entries []MedicalHistoryEntry) []any {
	out := make([]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, Document{
			FieldCondition:     e.Condition,
			FieldDiagnosedDate: storedTime(e.DiagnosedDate.Time),
			FieldNotes:         e.Notes,
		})
	}
	return out
}

func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// Changes converts the patch into field updates stamped with now.
func (u PatientUpdate) Changes(now Timestamp) Changes {
	set := Document{FieldUpdatedAt: storedTime(now.Time)}
	var unset []string

	if u.FirstName.Present() {
		set[FieldFirstName] = u.FirstName.Value
	}
	if u.LastName.Present() {
		set[FieldLastName] = u.LastName.Value
	}
	if u.DateOfBirth.Present() {
		set[FieldDateOfBirth] = storedTime(u.DateOfBirth.Value.Time)
	}
	if u.ContactNumber.Present() {
		set[FieldContactNumber] = u.ContactNumber.Value
	}
	if u.Email.Set {
		email := strings.TrimSpace(u.Email.Value)
		if u.Email.Null || email == "" {
			unset = append(unset, FieldEmail)
		} else {
			set[FieldEmail] = email
		}
	}
	if u.Address.Present() {
		set[FieldAddress] = u.Address.Value.document()
	}
	if u.MedicalHistory.Set {
		set[FieldMedicalHistory] = historyDocuments(u.MedicalHistory.Value)
	}

	return Changes{Set: set, Unset: unset}
}
