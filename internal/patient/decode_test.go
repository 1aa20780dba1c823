package patient

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthcompany.com/dentalapp/internal/identifier"
)

func storedDocument(id identifier.ID) Document {
	return Document{
		FieldID:            id,
		FieldFirstName:     "Grace",
		FieldLastName:      "Hopper",
		FieldDateOfBirth:   time.Date(1906, 12, 9, 0, 0, 0, 0, time.UTC),
		FieldContactNumber: "555-0101",
		FieldEmail:         "grace@example.com",
		FieldAddress: Document{
			FieldStreet:     "1 Navy Way",
			FieldCity:       "Arlington",
			FieldState:      "VA",
			FieldPostalCode: "22202",
		},
		FieldMedicalHistory: []any{
			Document{FieldCondition: "Gingivitis", FieldDiagnosedDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), FieldNotes: "mild"},
		},
		FieldCreatedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		FieldUpdatedAt: time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC),
	}
}

func TestDecodeDocument(t *testing.T) {
	id := identifier.New()
	p, err := DecodeDocument(storedDocument(id))
	require.NoError(t, err)

	assert.Equal(t, id, p.ID)
	assert.Equal(t, "Grace", p.FirstName)
	assert.Equal(t, "grace@example.com", p.Email)
	assert.Equal(t, "22202", p.Address.PostalCode)
	require.Len(t, p.MedicalHistory, 1)
	assert.Equal(t, "Gingivitis", p.MedicalHistory[0].Condition)
	assert.True(t, p.CreatedAt.Before(p.UpdatedAt.Time))
}

func TestDecodeDocumentRoundTripsDocument(t *testing.T) {
	id := identifier.New()
	p, err := DecodeDocument(storedDocument(id))
	require.NoError(t, err)

	again, err := DecodeDocument(p.Document())
	require.NoError(t, err)
	assert.Equal(t, p, again)
}

func TestDecodeDocumentLenient(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(Document)
		check  func(*testing.T, Patient)
	}{
		{
			name:   "Missing medical history",
			mutate: func(d Document) { delete(d, FieldMedicalHistory) },
			check: func(t *testing.T, p Patient) {
				assert.NotNil(t, p.MedicalHistory)
				assert.Empty(t, p.MedicalHistory)
			},
		},
		{
			name:   "Medical history stored as object",
			mutate: func(d Document) { d[FieldMedicalHistory] = Document{"condition": "x"} },
			check: func(t *testing.T, p Patient) {
				assert.Empty(t, p.MedicalHistory)
			},
		},
		{
			name: "Dates stored as text",
			mutate: func(d Document) {
				d[FieldDateOfBirth] = "1906-12-09T00:00:00Z"
				d[FieldCreatedAt] = "2024-01-01T12:00:00.000Z"
			},
			check: func(t *testing.T, p Patient) {
				assert.Equal(t, 1906, p.DateOfBirth.Year())
				assert.Equal(t, 12, p.CreatedAt.Hour())
			},
		},
		{
			name:   "Identifier stored as hex",
			mutate: func(d Document) { d[FieldID] = d[FieldID].(identifier.ID).Hex() },
			check: func(t *testing.T, p Patient) {
				assert.NotEqual(t, identifier.Nil, p.ID)
			},
		},
		{
			name:   "Email absent",
			mutate: func(d Document) { delete(d, FieldEmail) },
			check: func(t *testing.T, p Patient) {
				assert.Empty(t, p.Email)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := storedDocument(identifier.New())
			tt.mutate(doc)
			p, err := DecodeDocument(doc)
			require.NoError(t, err)
			tt.check(t, p)
		})
	}
}

func TestDecodeDocumentRejectsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(Document)
	}{
		{name: "Missing id", mutate: func(d Document) { delete(d, FieldID) }},
		{name: "Missing last name", mutate: func(d Document) { delete(d, FieldLastName) }},
		{name: "Unparseable date", mutate: func(d Document) { d[FieldDateOfBirth] = "someday" }},
		{name: "Name of wrong type", mutate: func(d Document) { d[FieldFirstName] = 42 }},
		{name: "Missing address", mutate: func(d Document) { delete(d, FieldAddress) }},
		{name: "History entry not an object", mutate: func(d Document) { d[FieldMedicalHistory] = []any{"asthma"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := storedDocument(identifier.New())
			tt.mutate(doc)
			_, err := DecodeDocument(doc)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCorruptRecord))
		})
	}
}
