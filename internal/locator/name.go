package locator

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"
)

var (
	// ErrInvalidName is returned for empty or purely numeric names.
	ErrInvalidName = errors.New("invalid locator name")

	// ErrNameTaken is returned when the group already holds a locator with the name.
	ErrNameTaken = errors.New("locator name already taken")
)

// ValidationError is a name rejection that is shown to the user.
type ValidationError struct {
	Name string
	Err  error
}

func (e *ValidationError) Error() string {
	if errors.Is(e.Err, ErrNameTaken) {
		return fmt.Sprintf("Object already named: %s !", e.Name)
	}
	return fmt.Sprintf("Invalid Name: %s !", e.Name)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NormalizeName uppercases name and replaces spaces with underscores.
func NormalizeName(name string) string {
	return strings.ReplaceAll(strings.ToUpper(name), " ", "_")
}

// ValidateName checks an already normalized name against the names in the group.
func ValidateName(name string, existing []string) error {
	if name == "" || isDecimal(name) {
		return &ValidationError{Name: name, Err: ErrInvalidName}
	}
	if slices.Contains(existing, name) {
		return &ValidationError{Name: name, Err: ErrNameTaken}
	}
	return nil
}

func isDecimal(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
