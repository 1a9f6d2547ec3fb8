package handler

import (
	"errors"
	"sync"

	"github.com/datapilot-io/datapilot/internal/modules/service"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// RegisterValidators adds the custom binding tags used by request structs.
// It must run before the first request is bound.
func RegisterValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = errors.New("gin validator engine is not go-playground/validator")
			return
		}
		registerErr = v.RegisterValidation("flagname", func(fl validator.FieldLevel) bool {
			return service.ValidFlagName(fl.Field().String())
		})
	})
	return registerErr
}
