package service

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/roster-api/internal/models"
	"github.com/noah-isme/roster-api/pkg/dateutil"
)

var phonePattern = regexp.MustCompile(`^(010|011|012|015)\d{8}$`)

var phoneMessages = map[string]string{
	"Phone":       "Phone must start with 010, 011, 012, or 015 and be 11 digits.",
	"FatherPhone": "Father's phone must start with 010, 011, 012, or 015 and be 11 digits.",
	"MotherPhone": "Mother's phone must start with 010, 011, 012, or 015 and be 11 digits.",
}

// NewValidator returns a validator with the roster's custom tags registered:
// eg_phone, year_of_study and civil_date.
func NewValidator() *validator.Validate {
	v := validator.New()
	RegisterValidations(v)
	return v
}

// RegisterValidations adds the roster tags to an existing validator.
func RegisterValidations(v *validator.Validate) {
	_ = v.RegisterValidation("eg_phone", func(fl validator.FieldLevel) bool {
		return ValidPhone(fl.Field().String())
	})
	_ = v.RegisterValidation("year_of_study", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		for _, label := range models.YearsOfStudy {
			if label == value {
				return true
			}
		}
		return false
	})
	_ = v.RegisterValidation("civil_date", func(fl validator.FieldLevel) bool {
		_, ok := dateutil.ParseDate(fl.Field().String(), nil)
		return ok
	})
}

// ValidPhone reports whether value is an eleven digit Egyptian mobile number.
func ValidPhone(value string) bool {
	return phonePattern.MatchString(value)
}

// validationMessage renders the first failing rule as a user-facing message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid student payload"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "eg_phone":
		if msg, ok := phoneMessages[fe.Field()]; ok {
			return msg
		}
	case "required":
		return strings.ToLower(fe.Field()) + " is required"
	case "oneof":
		return strings.ToLower(fe.Field()) + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "year_of_study":
		return "year of study is not a known grade"
	case "civil_date":
		return "date of birth is not a valid date"
	}
	return "invalid " + strings.ToLower(fe.Field())
}
