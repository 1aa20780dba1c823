package mongostore

import (
	"regexp"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"stealthcompany.com/dentalapp/internal/patient"
)

// toBSON renders doc with _id first and the remaining keys sorted.
func toBSON(doc patient.Document) bson.D {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		if k != patient.FieldID {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make(bson.D, 0, len(doc))
	if id, ok := doc[patient.FieldID]; ok {
		out = append(out, bson.E{Key: patient.FieldID, Value: id})
	}
	for _, k := range keys {
		out = append(out, bson.E{Key: k, Value: toBSONValue(doc[k])})
	}
	return out
}

func toBSONValue(v any) any {
	switch t := v.(type) {
	case patient.Document:
		return toBSON(t)
	case map[string]any:
		return toBSON(t)
	case []any:
		out := make(bson.A, len(t))
		for i, item := range t {
			out[i] = toBSONValue(item)
		}
		return out
	case time.Time:
		return t.UTC()
	default:
		return v
	}
}

// fromBSON converts a decoded result into the store-neutral form.
func fromBSON(m bson.M) patient.Document {
	out := make(patient.Document, len(m))
	for k, v := range m {
		out[k] = fromBSONValue(v)
	}
	return out
}

func fromBSONValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		return fromBSON(t)
	case map[string]any:
		return fromBSON(t)
	case bson.D:
		return fromBSON(t.Map())
	case bson.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = fromBSONValue(item)
		}
		return out
	case []any:
		return fromBSONValue(bson.A(t))
	case primitive.DateTime:
		return t.Time().UTC()
	default:
		return v
	}
}

// searchFilter matches search as a literal, case-insensitive substring of
// any search field.
func searchFilter(search string) bson.D {
	if search == "" {
		return bson.D{}
	}
	pattern := regexp.QuoteMeta(search)
	clauses := make(bson.A, 0, len(patient.SearchFields))
	for _, field := range patient.SearchFields {
		clauses = append(clauses, bson.D{{Key: field, Value: bson.D{
			{Key: "$regex", Value: pattern},
			{Key: "$options", Value: "i"},
		}}})
	}
	return bson.D{{Key: "$or", Value: clauses}}
}

// updateDocument builds the $set/$unset update for changes.
func updateDocument(changes patient.Changes) bson.D {
	update := bson.D{}
	if len(changes.Set) > 0 {
		update = append(update, bson.E{Key: "$set", Value: toBSON(changes.Set)})
	}
	if len(changes.Unset) > 0 {
		unset := make(bson.D, 0, len(changes.Unset))
		for _, k := range changes.Unset {
			unset = append(unset, bson.E{Key: k, Value: ""})
		}
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}
	return update
}

func indexKeys(keys []string) bson.D {
	out := make(bson.D, 0, len(keys))
	for _, k := range keys {
		out = append(out, bson.E{Key: k, Value: 1})
	}
	return out
}
