package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"tusome/internal/catalog"
)

var requestValidator = validator.New()

// Intentionally permissive; matching the historical behavior matters more
// than RFC 5322 completeness.
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// validateRegistration applies the registration rules in order; the first
// failing rule wins. Whitespace-only input counts as absent, and name
// lengths are measured in characters, not bytes.
func validateRegistration(req *RegisterRequest) *ValidationError {
	firstName := strings.TrimSpace(req.FirstName)
	lastName := strings.TrimSpace(req.LastName)
	email := strings.TrimSpace(req.Email)

	if firstName == "" {
		return invalid("firstName", "First name is required")
	}
	if lastName == "" {
		return invalid("lastName", "Last name is required")
	}
	if email == "" {
		return invalid("email", "Email is required")
	}
	if req.Password == "" {
		return invalid("password", "Password is required")
	}
	if req.GradeLevel == "" {
		return invalid("gradeLevel", "Grade level is required")
	}

	if n := utf8.RuneCountInString(firstName); n < 2 || n > 50 {
		return invalid("firstName", "First name must be between 2 and 50 characters")
	}
	if n := utf8.RuneCountInString(lastName); n < 2 || n > 50 {
		return invalid("lastName", "Last name must be between 2 and 50 characters")
	}

	if !emailRegex.MatchString(email) {
		return invalid("email", "Invalid email format")
	}

	if len(req.Password) < 8 {
		return invalid("password", "Password must be at least 8 characters long")
	}

	if req.Password != req.ConfirmPassword {
		return invalid("confirmPassword", "Password and confirmation do not match")
	}

	if !req.AgreeTerms {
		return invalid("agreeTerms", "You must agree to the Terms of Service and Privacy Policy")
	}

	if _, ok := catalog.Lookup(req.GradeLevel); !ok {
		return invalid("gradeLevel", "Invalid grade level selected")
	}

	return nil
}

// validateLogin checks the login request shape. Password strength is a
// registration-time concern and is not re-checked here.
func validateLogin(req *LoginRequest) *ValidationError {
	email := strings.TrimSpace(req.Email)

	if email == "" {
		return invalid("email", "Email is required")
	}
	if req.Password == "" {
		return invalid("password", "Password is required")
	}

	if !emailRegex.MatchString(email) {
		return invalid("email", "Invalid email format")
	}

	return nil
}

func decodeAndValidate(body io.Reader, dst any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body")
	}

	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON body")
	}

	if err := requestValidator.Struct(dst); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok && len(validationErrors) > 0 {
			first := validationErrors[0]
			field := strings.ToLower(first.Field())
			switch first.Tag() {
			case "required":
				return fmt.Errorf("%s is required", field)
			case "email":
				return fmt.Errorf("invalid email format")
			case "max":
				return fmt.Errorf("%s is too long", field)
			default:
				return fmt.Errorf("invalid %s", field)
			}
		}

		return fmt.Errorf("invalid request payload")
	}

	return nil
}

// decodeJSON decodes without struct-tag validation, for requests whose rules
// are enforced by the ordered domain validators above.
func decodeJSON(body io.Reader, dst any) error {
	decoder := json.NewDecoder(body)

	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body")
	}

	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON body")
	}

	return nil
}
