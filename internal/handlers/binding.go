package handlers

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/yukikurage/favor-exchange-api/internal/errors"
	"github.com/yukikurage/favor-exchange-api/internal/models"
)

var registerOnce sync.Once

// RegisterValidators adds the enum rules used in request bodies to gin's
// validator. It is safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
			return models.Category(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("urgency", func(fl validator.FieldLevel) bool {
			return models.Urgency(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("recurrence", func(fl validator.FieldLevel) bool {
			return models.RecurrenceType(fl.Field().String()).Valid()
		})
	})
}

// bindJSON binds the body into req and writes a 400 listing the failed
// fields when it does not validate.
func bindJSON(c *gin.Context, req interface{}) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		apierrors.BadRequestWithDetails(c, "Invalid request body", fields)
		return false
	}

	apierrors.BadRequest(c, "Invalid request body")
	return false
}
