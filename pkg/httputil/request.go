package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

// ParseJSON decodes JSON from the request body into the destination.
// Failures are returned as validation errors.
func ParseJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return NewError(KindValidation, "request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return &Error{Kind: KindValidation, Message: "invalid JSON body", Cause: err}
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes error response on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteAppError(w, err)
		return false
	}
	return true
}

// ParsePathString extracts a string path parameter
func ParsePathString(r *http.Request, key string) (string, error) {
	str := mux.Vars(r)[key]
	if str == "" {
		return "", Errorf(KindValidation, "missing path parameter: %s", key)
	}
	return str, nil
}

// ParsePathStringOrError extracts a string path parameter and writes error on failure
func ParsePathStringOrError(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	val, err := ParsePathString(r, key)
	if err != nil {
		WriteAppError(w, err)
		return "", false
	}
	return val, true
}

// ParseQueryInt extracts and parses an integer query parameter
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, Errorf(KindValidation, "invalid integer for query param %s: %s", key, str)
	}
	return val, nil
}

// ParseQueryString extracts a string query parameter
func ParseQueryString(r *http.Request, key string, defaultVal string) string {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// Validator is a function that validates a value and returns an error message if invalid
type Validator func() (bool, string)

// Required reports a missing field when value is empty or whitespace
func Required(fieldName, value string) Validator {
	return func() (bool, string) {
		if strings.TrimSpace(value) == "" {
			return false, fmt.Sprintf("%s is required", fieldName)
		}
		return true, ""
	}
}

// MinLength reports a field shorter than min characters
func MinLength(fieldName, value string, min int) Validator {
	return func() (bool, string) {
		if len([]rune(value)) < min {
			return false, fmt.Sprintf("%s must be at least %d characters", fieldName, min)
		}
		return true, ""
	}
}

// Validate runs validators in order and returns the first failure as a validation error
func Validate(validators ...Validator) error {
	for _, validator := range validators {
		if valid, errMsg := validator(); !valid {
			return NewError(KindValidation, errMsg)
		}
	}
	return nil
}

// ValidateAll runs multiple validators and writes the first error
func ValidateAll(w http.ResponseWriter, validators ...Validator) bool {
	if err := Validate(validators...); err != nil {
		WriteAppError(w, err)
		return false
	}
	return true
}
