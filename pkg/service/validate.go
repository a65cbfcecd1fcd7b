package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/example/articleshop/pkg/apperror"
	"github.com/example/articleshop/pkg/models"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
		return models.ValidID(fl.Field().String())
	})
	return v
}

// validateStruct runs the struct's validate tags and reports the first failure as a
// validation AppError. prefix is prepended to the field name, e.g. "items[2].".
func validateStruct(s any, prefix string) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperror.ValidationFailed(prefix, err.Error())
	}
	fe := verrs[0]
	field := prefix + fe.Field()
	return apperror.ValidationFailed(field, message(field, fe))
}

func message(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "objectid":
		return fmt.Sprintf("%s must be a valid identifier", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func validateItems(items []models.ItemInput) error {
	for i := range items {
		if err := validateStruct(items[i], fmt.Sprintf("items[%d].", i)); err != nil {
			return err
		}
	}
	return nil
}

func requireID(field, id string) error {
	if !models.ValidID(id) {
		return apperror.InvalidID(field, id)
	}
	return nil
}
