package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"campustrade-api/internal/middleware"
	"campustrade-api/internal/model"
	"campustrade-api/internal/service"
	"campustrade-api/pkg/apierror"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		// Report fields by their JSON names.
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		// Amounts must not be negative. Pointer fields are dereferenced by the validator.
		_ = v.RegisterValidation("nonneg_decimal", func(fl validator.FieldLevel) bool {
			d, ok := fl.Field().Interface().(decimal.Decimal)
			return ok && !d.IsNegative()
		})
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return service.ValidUsername(fl.Field().String())
		})
		_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
			return service.StrongPassword(fl.Field().String())
		})

		validate = v
	})
	return validate
}

// decodeJSON reads the request body into dst and validates it.
func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apierror.BadRequest("request body is required")
		}
		return apierror.BadRequest("invalid request body").Wrap(err)
	}
	return validateStruct(dst)
}

// validateStruct runs the struct tags of v and maps failures to field errors.
func validateStruct(v interface{}) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apierror.BadRequest("invalid request").Wrap(err)
	}

	details := make([]apierror.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, apierror.FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
		})
	}
	return apierror.ValidationError("request validation failed", details...)
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	param := fe.Param()

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return field + " must be at least " + param
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return field + " must be at most " + param
	case "oneof":
		return field + " must be one of: " + strings.ReplaceAll(param, " ", ", ")
	case "nonneg_decimal":
		return field + " cannot be negative"
	case "uuid":
		return field + " must be a valid id"
	case "required_without":
		return field + " is required when " + strings.ToLower(param) + " is missing"
	case "username":
		return field + " may only contain letters, digits and underscores"
	case "password":
		return field + " must contain both letters and digits"
	case "numeric":
		return field + " must contain only digits"
	case "alphanum":
		return field + " must contain only letters and digits"
	case "startswith":
		return field + " must start with " + param
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", field, param)
	}
	return field + " is invalid"
}

// parsePage reads the page and limit query parameters.
func parsePage(r *http.Request) (model.Page, error) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		return model.Page{}, err
	}
	limit, err := queryInt(r, "limit", model.DefaultPageLimit)
	if err != nil {
		return model.Page{}, err
	}
	return model.Page{Page: page, Limit: limit}.Normalize(), nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierror.ValidationError("invalid query parameter",
			apierror.FieldError{Field: name, Message: name + " must be an integer"})
	}
	return n, nil
}

func queryDecimal(r *http.Request, name string) (*decimal.Decimal, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, apierror.ValidationError("invalid query parameter",
			apierror.FieldError{Field: name, Message: name + " must be a number"})
	}
	return &d, nil
}

func queryBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

// actor returns the authenticated caller's id. Routes behind the auth
// middleware always carry one.
func actor(r *http.Request) string {
	return middleware.UserID(r.Context())
}
