package handler

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var roleCodePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// RegisterValidations installs custom binding validators on gin's shared
// validator engine. Called once during router construction.
func RegisterValidations() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("rolecode", func(fl validator.FieldLevel) bool {
		return roleCodePattern.MatchString(fl.Field().String())
	})
}
