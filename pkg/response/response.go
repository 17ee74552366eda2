// Package response writes the {success, data|error, meta} JSON envelope.
package response

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sitework/sitework/internal/apperr"
	"github.com/sitework/sitework/pkg/logger"
)

// report validation failures under their JSON names
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			switch name {
			case "-":
				return ""
			case "":
				return f.Name
			}
			return name
		})
	}
}

type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// List writes a page of items with its pagination meta.
func List(c *gin.Context, items interface{}, meta interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: items, Meta: meta})
}

// Error maps err to a status and error body. Internal errors are logged and
// answered with a generic message.
func Error(c *gin.Context, err error) {
	body, status := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(status, Envelope{Success: false, Error: body})
}

// Abort writes an error of the given kind without an underlying error value.
func Abort(c *gin.Context, kind apperr.Kind, message string) {
	c.AbortWithStatusJSON(kind.Status(), Envelope{Success: false, Error: &ErrorBody{Code: kind.Code(), Message: message}})
}

// BindError converts a gin binding failure into a validation error with
// per-field detail.
func BindError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			fields[fe.Field()] = describe(fe)
		}
		return apperr.Validation("validation failed", fields)
	}
	return apperr.Validation("malformed request body", nil)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	}
	return "failed " + fe.Tag() + " validation"
}

func classify(err error) (*ErrorBody, int) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		msg := ae.Message
		if ae.Kind == apperr.KindInternal {
			msg = "internal server error"
		}
		return &ErrorBody{Code: ae.Kind.Code(), Message: msg, Fields: ae.Fields}, ae.Kind.Status()
	}
	return &ErrorBody{Code: apperr.KindInternal.Code(), Message: "internal server error"}, http.StatusInternalServerError
}
