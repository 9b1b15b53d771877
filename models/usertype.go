package models

import (
	"regexp"

	"github.com/go-playground/validator"
)

type UserType string

const (
	UserTypeUser  UserType = "USER"
	UserTypeStore UserType = "STORE"
)

func (t *UserType) Scan(value interface{}) error {
	*t = UserType(value.(string))
	return nil
}

func (t UserType) Value() (string, error) {
	return string(t), nil
}

func ValidateUserType(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	matched, _ := regexp.MatchString("^USER|STORE$", string(value))
	return matched
}

func ValidateUserTypeRaw(value string) bool {
	matched, _ := regexp.MatchString("^USER|STORE$", string(value))
	return matched
}
