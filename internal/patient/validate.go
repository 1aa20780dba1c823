package patient

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names so paths match the payload.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}

	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if ts, ok := field.Interface().(Timestamp); ok {
			return ts.Time
		}
		return nil
	}, Timestamp{})

	return v
}

// Validate checks a create payload.
func (c PatientCreate) Validate() error {
	errs := &ValidationError{}
	collect(errs, "", validate.Struct(c))
	return errs.orNil()
}

// historyList lets a bare slice of entries be validated with dive.
type historyList struct {
	Entries []MedicalHistoryEntry `json:"medical_history" validate:"dive"`
}

// Validate checks a patch. Only fields present in the payload are examined.
// A null is accepted for email and medical_history only.
func (u PatientUpdate) Validate() error {
	errs := &ValidationError{}

	checkText(errs, FieldFirstName, u.FirstName)
	checkText(errs, FieldLastName, u.LastName)
	checkText(errs, FieldContactNumber, u.ContactNumber)

	if u.DateOfBirth.Set {
		switch {
		case u.DateOfBirth.Null:
			errs.add(FieldDateOfBirth, "may not be null")
		case u.DateOfBirth.Value.IsZero():
			errs.add(FieldDateOfBirth, "field required")
		}
	}

	if u.Email.Present() {
		if email := strings.TrimSpace(u.Email.Value); email != "" {
			collect(errs, FieldEmail, validate.Var(email, "email"))
		}
	}

	if u.Address.Set {
		if u.Address.Null {
			errs.add(FieldAddress, "may not be null")
		} else {
			collect(errs, FieldAddress, validate.Struct(u.Address.Value))
		}
	}

	if u.MedicalHistory.Present() {
		collect(errs, "", validate.Struct(historyList{Entries: u.MedicalHistory.Value}))
	}

	return errs.orNil()
}

func checkText(errs *ValidationError, field string, v Optional[string]) {
	if !v.Set {
		return
	}
	if v.Null {
		errs.add(field, "may not be null")
		return
	}
	collect(errs, field, validate.Var(v.Value, "required,notblank"))
}

// collect folds validator output into errs. prefix is prepended to struct
// paths, or used as the whole path for Var checks.
func collect(errs *ValidationError, prefix string, err error) {
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		errs.add(prefix, err.Error())
		return
	}
	for _, fe := range fieldErrs {
		errs.add(fieldPath(prefix, fe.Namespace()), fieldMessage(fe))
	}
}

func fieldPath(prefix, namespace string) string {
	// The first namespace segment is the Go type name.
	path := ""
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		path = namespace[i+1:]
	}
	switch {
	case prefix == "":
		return path
	case path == "":
		return prefix
	default:
		return prefix + "." + path
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "notblank":
		return "must not be blank"
	case "email":
		return "value is not a valid email address"
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
