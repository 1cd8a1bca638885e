package httpapi

import (
	"regexp"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type validationErrors = validator.ValidationErrors

var (
	phonePattern    = regexp.MustCompile(`^\+?[0-9][0-9 \-()]{6,19}$`)
	hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	registerOnce    sync.Once
)

// RegisterValidators adds the custom binding rules used by request structs:
//   - phone: loose international phone number
//   - hexcolor6: #rrggbb
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return phonePattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("hexcolor6", func(fl validator.FieldLevel) bool {
			return hexColorPattern.MatchString(fl.Field().String())
		})
	})
}
