package util

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/Marcosotoladev/DhermicaApp-sub000/schedule"
)

var registerValidatorsOnce sync.Once

// RegisterBindingValidators adds the "date" (YYYY-MM-DD), "clock" (HH:MM) and
// "endclock" (HH:MM up to 24:00) tags to gin's binding validator. Safe to
// call more than once.
func RegisterBindingValidators() {
	registerValidatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("date", validateDate)
		_ = v.RegisterValidation("clock", validateClock)
		_ = v.RegisterValidation("endclock", validateEndClock)
	})
}

func validateDate(fl validator.FieldLevel) bool {
	_, err := schedule.ParseDate(fl.Field().String(), nil)
	return err == nil
}

func validateClock(fl validator.FieldLevel) bool {
	c, err := schedule.ParseClock(fl.Field().String())
	return err == nil && c < schedule.MinutesPerDay
}

// validateEndClock also admits "24:00" so a block can run until midnight.
func validateEndClock(fl validator.FieldLevel) bool {
	c, err := schedule.ParseClock(fl.Field().String())
	return err == nil && c <= schedule.MinutesPerDay
}
