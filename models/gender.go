package models

import (
	"regexp"

	"github.com/go-playground/validator"
)

type Gender string

const (
	GenderFemale Gender = "FEMALE"
	GenderMale   Gender = "MALE"
	GenderOther  Gender = "OTHER"
)

func (g *Gender) Scan(value interface{}) error {
	*g = Gender(value.(string))
	return nil
}

func (g Gender) Value() (string, error) {
	return string(g), nil
}

func ValidateGender(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	matched, _ := regexp.MatchString("^FEMALE|MALE|OTHER$", string(value))
	return matched
}
