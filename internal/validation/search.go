package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"autohawk/pkg/models"
	"autohawk/pkg/utils"
)

// ZipPattern accepts exactly five ASCII digits
var ZipPattern = regexp.MustCompile(`^[0-9]{5}$`)

var validate = New()

// New returns a validator with the search rules registered and JSON field names in messages
func New() *validator.Validate {
	v := validator.New()
	RegisterSearchValidators(v)
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// RegisterSearchValidators registers all search-related custom validators
func RegisterSearchValidators(v *validator.Validate) {
	v.RegisterValidation("zip5", ValidateZip5)
}

// ValidateZip5 checks a US zip code field
func ValidateZip5(fl validator.FieldLevel) bool {
	return ZipPattern.MatchString(fl.Field().String())
}

// ValidateParameters checks search parameters, returning a validation SearchError on failure
func ValidateParameters(params models.SearchParameters) error {
	return Struct(&params)
}

// Struct validates any tagged struct and converts failures into a validation SearchError
func Struct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return utils.NewValidationError(err.Error())
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, describe(fe))
	}
	return utils.NewValidationError(strings.Join(messages, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be a positive integer", fe.Field())
	case "gtefield":
		return fmt.Sprintf("%s must be greater than or equal to year_min", fe.Field())
	case "zip5":
		return fmt.Sprintf("%s must be exactly 5 digits", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

// ParseYear parses a command-line year, which must be a positive integer
func ParseYear(value string) (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || year <= 0 {
		return 0, utils.NewValidationError(fmt.Sprintf("invalid year: %q must be a positive integer", value))
	}
	return year, nil
}

// ParseZip checks a command-line zip code
func ParseZip(value string) (string, error) {
	if !ZipPattern.MatchString(value) {
		return "", utils.NewValidationError(fmt.Sprintf("invalid zip code: %q must be exactly 5 digits", value))
	}
	return value, nil
}

// ParseRadius parses a command-line radius in miles, which must be a positive integer
func ParseRadius(value string) (int, error) {
	radius, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || radius <= 0 {
		return 0, utils.NewValidationError(fmt.Sprintf("invalid radius: %q must be a positive integer", value))
	}
	return radius, nil
}
