package models

import (
	"regexp"

	"github.com/go-playground/validator"
)

// Mannequin is the body used to render outfit previews for a user.
type Mannequin string

const (
	MannequinWoman   Mannequin = "Woman"
	MannequinMan     Mannequin = "Man"
	MannequinNeutral Mannequin = "Neutral"
)

func (m *Mannequin) Scan(value interface{}) error {
	*m = Mannequin(value.(string))
	return nil
}

func (m Mannequin) Value() (string, error) {
	return string(m), nil
}

func ValidateMannequin(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	matched, _ := regexp.MatchString("^Woman|Man|Neutral$", string(value))
	return matched
}
