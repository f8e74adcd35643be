package api

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// EnqueueForm holds the multipart fields of POST /api/jobs. The payload
// travels in the "file" part.
type EnqueueForm struct {
	ParentID string `json:"parentId" validate:"required,max=256"`
	OwnerID  string `json:"ownerId" validate:"max=256"`
	Name     string `json:"name" validate:"max=512"`
	MimeType string `json:"mimeType" validate:"max=255"`
	Priority int    `json:"priority" validate:"gte=-1000000,lte=1000000"`
}

// ReorderRequest lists job ids in their desired order.
type ReorderRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

// MoveRequest shifts a job by one position.
type MoveRequest struct {
	Direction string `json:"direction" validate:"required,oneof=up down"`
}

// PriorityRequest sets a job's priority.
type PriorityRequest struct {
	Priority *int `json:"priority" validate:"required"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationErrorsToMap(err error) map[string]string {
	errs := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, e := range verrs {
			field := e.Field()
			switch e.Tag() {
			case "required":
				errs[field] = "is required"
			case "max":
				errs[field] = "exceeds maximum length"
			case "min":
				errs[field] = "must not be empty"
			case "gte", "lte":
				errs[field] = "out of allowed range"
			case "oneof":
				errs[field] = "must be one of: " + e.Param()
			default:
				errs[field] = "invalid value"
			}
		}
	} else {
		errs["error"] = err.Error()
	}
	return errs
}
