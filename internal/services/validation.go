package services

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"storefront/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	// maxbytes bounds the UTF-8 length, where max counts runes. bcrypt rejects
	// passwords longer than 72 bytes.
	if err := v.RegisterValidation("maxbytes", maxBytes); err != nil {
		panic(err)
	}
	return v
}

func maxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}

// validateStruct runs the struct tags of input and converts failures into a
// ValidationError carrying one entry per offending field. missing is reported
// when a required field is absent.
func validateStruct(input interface{}, missing *models.DomainError) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return models.NewInternalError("validation failed", err)
	}

	fields := collect(verrs)
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return &models.DomainError{
				Kind:    models.KindValidation,
				Message: missing.Message,
				Fields:  fields,
				Err:     missing,
			}
		}
	}
	return &models.DomainError{
		Kind:    models.KindValidation,
		Message: "Invalid input",
		Fields:  fields,
	}
}

func collect(verrs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe)] = fe.Tag()
	}
	return fields
}

// fieldPath renders a namespace such as "PlaceOrderInput.products[0].quantity"
// without the root type name.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return ns
}
