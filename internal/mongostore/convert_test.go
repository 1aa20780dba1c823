package mongostore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"stealthcompany.com/dentalapp/internal/identifier"
	"stealthcompany.com/dentalapp/internal/patient"
)

func TestSearchFilter(t *testing.T) {
	assert.Equal(t, bson.D{}, searchFilter(""))

	filter := searchFilter("o'brien.+")
	require.Len(t, filter, 1)
	assert.Equal(t, "$or", filter[0].Key)

	clauses, ok := filter[0].Value.(bson.A)
	require.True(t, ok)
	require.Len(t, clauses, len(patient.SearchFields))

	for i, field := range patient.SearchFields {
		clause := clauses[i].(bson.D)
		assert.Equal(t, field, clause[0].Key)
		assert.Equal(t, bson.D{
			{Key: "$regex", Value: `o'brien\.\+`},
			{Key: "$options", Value: "i"},
		}, clause[0].Value)
	}
}

func TestUpdateDocument(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	update := updateDocument(patient.Changes{
		Set:   patient.Document{patient.FieldUpdatedAt: now, patient.FieldContactNumber: "555"},
		Unset: []string{patient.FieldEmail},
	})

	require.Len(t, update, 2)
	assert.Equal(t, "$set", update[0].Key)
	assert.Equal(t, bson.D{
		{Key: patient.FieldContactNumber, Value: "555"},
		{Key: patient.FieldUpdatedAt, Value: now},
	}, update[0].Value)
	assert.Equal(t, bson.E{Key: "$unset", Value: bson.D{{Key: patient.FieldEmail, Value: ""}}}, update[1])
}

func TestToBSONOrdersIDFirst(t *testing.T) {
	id := identifier.New()
	doc := toBSON(patient.Document{
		patient.FieldLastName:  "Lovelace",
		patient.FieldID:        id,
		patient.FieldFirstName: "Ada",
		patient.FieldAddress:   patient.Document{patient.FieldCity: "London"},
		patient.FieldMedicalHistory: []any{
			patient.Document{patient.FieldCondition: "Caries"},
		},
	})

	require.Len(t, doc, 5)
	assert.Equal(t, patient.FieldID, doc[0].Key)
	assert.Equal(t, id, doc[0].Value)
	assert.Equal(t, patient.FieldAddress, doc[1].Key)
	assert.Equal(t, bson.D{{Key: patient.FieldCity, Value: "London"}}, doc[1].Value)
	assert.Equal(t, bson.A{bson.D{{Key: patient.FieldCondition, Value: "Caries"}}}, doc[4].Value)
}

func TestFromBSONNormalizesDriverTypes(t *testing.T) {
	when := time.Date(2024, 2, 3, 4, 5, 6, 7000000, time.UTC)
	id := identifier.New()

	doc := fromBSON(bson.M{
		patient.FieldID:        id,
		patient.FieldCreatedAt: primitive.NewDateTimeFromTime(when),
		patient.FieldAddress:   bson.M{patient.FieldCity: "London"},
		patient.FieldMedicalHistory: bson.A{
			bson.D{{Key: patient.FieldCondition, Value: "Caries"}},
		},
	})

	assert.Equal(t, id, doc[patient.FieldID])
	assert.True(t, when.Equal(doc[patient.FieldCreatedAt].(time.Time)))
	assert.Equal(t, patient.Document{patient.FieldCity: "London"}, doc[patient.FieldAddress])
	assert.Equal(t, []any{patient.Document{patient.FieldCondition: "Caries"}}, doc[patient.FieldMedicalHistory])
}

func TestIndexKeys(t *testing.T) {
	assert.Equal(t, bson.D{
		{Key: patient.FieldLastName, Value: 1},
		{Key: patient.FieldFirstName, Value: 1},
	}, indexKeys([]string{patient.FieldLastName, patient.FieldFirstName}))
}
