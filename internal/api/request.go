package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/heart-risk-service/internal/domain"
)

// PredictRequest is the body of POST /predict. Pointers tell a missing field
// apart from a zero value.
type PredictRequest struct {
	Age      *Integer `json:"age" binding:"required"`
	Sex      *Integer `json:"sex" binding:"required"`
	CP       *Integer `json:"cp" binding:"required"`
	Trestbps *Integer `json:"trestbps" binding:"required"`
	Chol     *Integer `json:"chol" binding:"required"`
	Fbs      *Integer `json:"fbs" binding:"required"`
	RestECG  *Integer `json:"restecg" binding:"required"`
	Thalach  *Integer `json:"thalach" binding:"required"`
	Exang    *Integer `json:"exang" binding:"required"`
	Oldpeak  *Decimal `json:"oldpeak" binding:"required"`
	Slope    *Integer `json:"slope" binding:"required"`
	CA       *Integer `json:"ca" binding:"required"`
	Thal     *Integer `json:"thal" binding:"required"`
}

// Features converts a bound request. Only valid after binding succeeded.
func (r *PredictRequest) Features() domain.Features {
	return domain.Features{
		Age:      int(*r.Age),
		Sex:      int(*r.Sex),
		CP:       int(*r.CP),
		Trestbps: int(*r.Trestbps),
		Chol:     int(*r.Chol),
		Fbs:      int(*r.Fbs),
		RestECG:  int(*r.RestECG),
		Thalach:  int(*r.Thalach),
		Exang:    int(*r.Exang),
		Oldpeak:  float64(*r.Oldpeak),
		Slope:    int(*r.Slope),
		CA:       int(*r.CA),
		Thal:     int(*r.Thal),
	}
}

// Integer accepts a JSON number with an integral value (63, 63.0) or a string
// holding one ("63"). Fractional values are rejected rather than truncated.
type Integer int

// UnmarshalJSON implements json.Unmarshaler
func (i *Integer) UnmarshalJSON(data []byte) error {
	v, err := parseNumber(data, intType)
	if err != nil {
		return err
	}
	if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
		return &json.UnmarshalTypeError{Value: "number " + string(data), Type: intType}
	}
	*i = Integer(v)
	return nil
}

// Decimal accepts a JSON number or a string holding one ("2.3").
type Decimal float64

// UnmarshalJSON implements json.Unmarshaler
func (d *Decimal) UnmarshalJSON(data []byte) error {
	v, err := parseNumber(data, floatType)
	if err != nil {
		return err
	}
	*d = Decimal(v)
	return nil
}

var (
	intType   = reflect.TypeOf(int(0))
	floatType = reflect.TypeOf(float64(0))
)

// parseNumber reads a JSON number literal, bare or quoted. Anything else is
// reported as a type error so the decoder attaches the field name.
func parseNumber(data []byte, want reflect.Type) (float64, error) {
	literal := bytes.TrimSpace(data)
	kind := "number"
	if len(literal) > 0 && literal[0] == '"' {
		var s string
		if err := json.Unmarshal(literal, &s); err != nil {
			return 0, &json.UnmarshalTypeError{Value: "string", Type: want}
		}
		literal = []byte(strings.TrimSpace(s))
		kind = "string"
	}

	if len(literal) == 0 || !(literal[0] == '-' || (literal[0] >= '0' && literal[0] <= '9')) || !json.Valid(literal) {
		return 0, &json.UnmarshalTypeError{Value: kind, Type: want}
	}
	v, err := strconv.ParseFloat(string(literal), 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, &json.UnmarshalTypeError{Value: kind + " " + string(literal), Type: want}
	}
	return v, nil
}

// ValidationResponse is the 422 body: the error envelope plus one entry per field.
type ValidationResponse struct {
	domain.APIError
	Errors []*domain.ValidationError `json:"errors"`
}

var registerOnce sync.Once

// registerJSONFieldNames makes validator report JSON names instead of Go field names.
func registerJSONFieldNames() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

func newValidationResponse(err error, requestID string) *ValidationResponse {
	resp := &ValidationResponse{
		APIError: *domain.NewAPIError(domain.CodeValidation, "request validation failed", requestID),
		Errors:   fieldErrors(err),
	}
	return resp
}

func fieldErrors(err error) []*domain.ValidationError {
	var (
		validationErrs validator.ValidationErrors
		typeErr        *json.UnmarshalTypeError
		syntaxErr      *json.SyntaxError
		tooLarge       *http.MaxBytesError
	)

	switch {
	case errors.As(err, &validationErrs):
		out := make([]*domain.ValidationError, 0, len(validationErrs))
		for _, fe := range validationErrs {
			msg := fmt.Sprintf("failed on the '%s' rule", fe.Tag())
			if fe.Tag() == "required" {
				msg = "field required"
			}
			out = append(out, domain.NewValidationError(fe.Field(), msg, nil))
		}
		return out
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return []*domain.ValidationError{
			domain.NewValidationError(field, fmt.Sprintf("expected %s", typeErr.Type), typeErr.Value),
		}
	case errors.As(err, &syntaxErr):
		return []*domain.ValidationError{
			domain.NewValidationError("body", fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset), nil),
		}
	case errors.As(err, &tooLarge):
		return []*domain.ValidationError{
			domain.NewValidationError("body", "request body too large", nil),
		}
	case errors.Is(err, io.EOF):
		return []*domain.ValidationError{
			domain.NewValidationError("body", "request body is empty", nil),
		}
	default:
		return []*domain.ValidationError{
			domain.NewValidationError("body", err.Error(), nil),
		}
	}
}
