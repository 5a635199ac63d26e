package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"scrooge-bank/apperr"
	"scrooge-bank/ledger"
)

// maxBodyBytes caps request payloads; every body here is a handful of fields.
const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// maxbytes bounds the UTF-8 length; max counts runes.
	v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Param())
		return err == nil && len(fl.Field().String()) <= n
	})
	return v
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,maxbytes=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type openAccountRequest struct {
	Type string `json:"type" validate:"required,oneof=checking"`
}

type amountRequest struct {
	Amount json.Number `json:"amount" validate:"required"`
}

func invalid(format string, args ...any) error {
	return apperr.Newf(apperr.Validation, format, args...)
}

// decode reads a JSON object into dst and validates it. An empty body is
// treated as {} so missing fields are reported by name.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return decodeError(err)
	}
	if dec.More() {
		return invalid("Invalid JSON body")
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &typeErr):
		if typeErr.Field == "" {
			return invalid(`"value" must be of type object`)
		}
		want := "a string"
		if typeErr.Type == reflect.TypeOf(json.Number("")) {
			want = "a number"
		}
		return invalid(`"%s" must be %s`, typeErr.Field, want)
	case errors.As(err, &maxErr):
		return invalid("Request body too large")
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		return invalid("%s is not allowed", strings.TrimPrefix(err.Error(), "json: unknown field "))
	default:
		return invalid("Invalid JSON body")
	}
}

// validationError reports the first failed rule.
func validationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return apperr.Wrap(err, apperr.Internal, "Internal Server Error")
	}
	fe := errs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return invalid(`"%s" is required`, field)
	case "email":
		return invalid(`"%s" must be a valid email`, field)
	case "min":
		return invalid(`"%s" length must be at least %s characters long`, field, fe.Param())
	case "max":
		return invalid(`"%s" length must be less than or equal to %s characters long`, field, fe.Param())
	case "maxbytes":
		return invalid(`"%s" length must be less than or equal to %s bytes long`, field, fe.Param())
	case "oneof":
		return invalid(`"%s" must be [%s]`, field, strings.Join(strings.Fields(fe.Param()), ", "))
	default:
		return invalid(`"%s" is invalid`, field)
	}
}

// amount turns the decoded number into minor units: an integer of at least 1
// that fits in an int64.
func (req amountRequest) amount() (int64, error) {
	n, err := req.Amount.Int64()
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			if strings.HasPrefix(req.Amount.String(), "-") {
				return 0, ledger.ErrInvalidAmount
			}
			return 0, ledger.ErrAmountTooLarge
		}
		f, ferr := req.Amount.Float64()
		switch {
		case ferr != nil:
			return 0, invalid(`"amount" must be a number`)
		case f != math.Trunc(f):
			return 0, invalid(`"amount" must be an integer`)
		case f < 1:
			return 0, ledger.ErrInvalidAmount
		case f >= math.MaxInt64:
			return 0, ledger.ErrAmountTooLarge
		}
		n = int64(f)
	}
	if err := ledger.ValidateAmount(n); err != nil {
		return 0, err
	}
	return n, nil
}
