package http

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/richardliu001/wallet-ledger/internal/apperrors"
	"github.com/richardliu001/wallet-ledger/internal/phone"
)

// FieldError is one entry of the details of a rejected request.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	// vnphone accepts anything that normalizes to a canonical number.
	_ = v.RegisterValidation("vnphone", func(fl validator.FieldLevel) bool {
		_, ok := phone.Canonical(fl.Field().String())
		return ok
	})
	return v
}

// bindJSON decodes the body into req and validates it. An empty body is
// accepted when optional is set.
func bindJSON(c *gin.Context, req interface{}, optional bool) error {
	if !(optional && c.Request.ContentLength == 0) {
		if err := c.ShouldBindJSON(req); err != nil {
			return apperrors.InvalidRequest("malformed JSON body", err)
		}
	}
	return validateStruct(req)
}

func bindQuery(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindQuery(req); err != nil {
		return apperrors.InvalidRequest("malformed query", err)
	}
	return validateStruct(req)
}

func validateStruct(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return apperrors.InvalidRequest("validation failed", err)
	}
	fields := make([]FieldError, 0, len(ves))
	for _, fe := range ves {
		fields = append(fields, FieldError{Field: fe.Field(), Tag: fe.Tag(), Message: fieldMessage(fe)})
	}
	return apperrors.InvalidRequest("validation failed", err).With(map[string]interface{}{"fields": fields})
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	case "min":
		return fe.Field() + " must be at least " + fe.Param()
	case "max":
		return fe.Field() + " must be at most " + fe.Param()
	case "vnphone":
		return fe.Field() + " must be a phone number like 0901234567"
	default:
		return fe.Field() + " is invalid"
	}
}
