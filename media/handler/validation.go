package handler

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/leeforge/recipemedia/http/responder"
)

// uploadForm holds the non-file fields of an upload request.
type uploadForm struct {
	OldFilename string `form:"old_filename" validate:"omitempty,max=128,excludesall=/\\"`
}

type filenameParam struct {
	Filename string `form:"filename" validate:"required,max=128,excludesall=/\\,ne=.,ne=.."`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// fieldErrors converts validator output into response details.
func fieldErrors(err error) []responder.FieldError {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []responder.FieldError{{Field: "", Message: err.Error()}}
	}
	out := make([]responder.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, responder.FieldError{Field: fe.Field(), Message: validationMessage(fe)})
	}
	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters long", fe.Param())
	case "excludesall":
		return "must not contain path separators"
	case "ne":
		return fmt.Sprintf("must not be %q", fe.Param())
	default:
		return fmt.Sprintf("failed on the '%s' rule", fe.Tag())
	}
}
