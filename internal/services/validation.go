package services

import (
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/motorlot/apiserver/types"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.]{3,30}$`)

// earliestModelYear bounds listing years from below.
const earliestModelYear = 1900

// newValidator returns a validator that reports JSON field names and knows
// the vehicle taxonomy.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	enum := func(values []string) validator.Func {
		return func(fl validator.FieldLevel) bool {
			return types.InEnum(fl.Field().String(), values)
		}
	}
	_ = v.RegisterValidation("vehicle_make", enum(types.Makes))
	_ = v.RegisterValidation("body_type", enum(types.BodyTypes))
	_ = v.RegisterValidation("condition", enum(types.Conditions))
	_ = v.RegisterValidation("transmission", enum(types.Transmissions))
	_ = v.RegisterValidation("fuel_type", enum(types.FuelTypes))
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("model_year", func(fl validator.FieldLevel) bool {
		year := int(fl.Field().Int())
		return year >= earliestModelYear && year <= time.Now().Year()+1
	})
	return v
}
