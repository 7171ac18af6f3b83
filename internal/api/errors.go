package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"dorm-assignment-backend/internal/parse"
	"dorm-assignment-backend/internal/store"
)

var validatorsOnce sync.Once

// registerValidators adds the personal_id tag to gin's validator and makes
// field errors report JSON names.
func registerValidators() {
	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("personal_id", func(fl validator.FieldLevel) bool {
			return parse.IsPersonalID(fl.Field().String())
		})
	})
}

// statusFor maps store and parse errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicate),
		errors.Is(err, store.ErrNotAssigned),
		errors.Is(err, store.ErrStaleSnapshot):
		return http.StatusConflict
	case errors.Is(err, store.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, parse.ErrPersonalIDNotNumeric),
		errors.Is(err, parse.ErrPersonalIDLength),
		errors.Is(err, parse.ErrPersonalIDPrefix):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// respondBindError answers 400 for a request body or query that failed binding.
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	messages := make([]string, 0, len(verrs))
	for _, e := range verrs {
		switch e.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("field %s is required", e.Field()))
		case "personal_id":
			messages = append(messages, fmt.Sprintf("field %s must be 7 digits starting with 8", e.Field()))
		case "gte":
			messages = append(messages, fmt.Sprintf("field %s must be at least %s", e.Field(), e.Param()))
		case "oneof":
			messages = append(messages, fmt.Sprintf("field %s must be one of: %s", e.Field(), e.Param()))
		default:
			messages = append(messages, fmt.Sprintf("field %s is invalid", e.Field()))
		}
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": strings.Join(messages, ", ")})
}
