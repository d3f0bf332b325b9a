package middleware

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/chatbridge/chatbridge/common/logger"
)

// RegisterValidators installs the custom binding validators used by request
// DTOs. Call once at startup before the router handles traffic.
func RegisterValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		logger.Logger.Warn("gin binding validator engine unavailable, custom validators skipped")
		return
	}

	// Bedrock Claude accepts temperature within [0, 1]
	_ = v.RegisterValidation("temperature", func(fl validator.FieldLevel) bool {
		t := fl.Field().Float()
		return t >= 0 && t <= 1
	})
}
