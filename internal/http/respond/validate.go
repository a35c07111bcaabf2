package respond

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/spendtrack/internal/money"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
	errValidate  error
)

func initValidator() (*validator.Validate, error) {
	vld := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON names rather than Go field names.
	vld.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	if err := vld.RegisterValidation("nonnegative_decimal", func(fl validator.FieldLevel) bool {
		d, ok := decimalOf(fl.Field())
		return ok && !d.IsNegative()
	}); err != nil {
		return nil, fmt.Errorf("registering nonnegative_decimal: %w", err)
	}

	if err := vld.RegisterValidation("cents", func(fl validator.FieldLevel) bool {
		d, ok := decimalOf(fl.Field())
		if !ok {
			return false
		}

		_, err := money.FromDecimal(d)

		return err == nil
	}); err != nil {
		return nil, fmt.Errorf("registering cents: %w", err)
	}

	return vld, nil
}

// decimalOf accepts decimal.Decimal and *decimal.Decimal fields. A nil
// pointer is treated as valid; use required to reject it.
func decimalOf(v reflect.Value) (decimal.Decimal, bool) {
	switch d := v.Interface().(type) {
	case decimal.Decimal:
		return d, true
	case *decimal.Decimal:
		if d == nil {
			return decimal.Zero, true
		}

		return *d, true
	}

	return decimal.Decimal{}, false
}

func getValidator() (*validator.Validate, error) {
	validateOnce.Do(func() {
		validate, errValidate = initValidator()
	})

	return validate, errValidate
}

// Validate checks v against its validate tags and reports the first failure
// as an ErrBadRequest.
func Validate(v any) error {
	vld, err := getValidator()
	if err != nil {
		return fmt.Errorf("validator unavailable: %w", err)
	}

	err = vld.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return fmt.Errorf("%w: %s", ErrBadRequest, describe(fieldErrs[0]))
	}

	return fmt.Errorf("%w: %w", ErrBadRequest, err)
}

func describe(fe validator.FieldError) string {
	field := fe.Field()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s long", field, fe.Param())
	case "datetime":
		return fmt.Sprintf("%s must be a YYYY-MM-DD date", field)
	case "hexcolor":
		return fmt.Sprintf("%s must be a hex color", field)
	case "nonnegative_decimal":
		return fmt.Sprintf("%s must not be negative", field)
	case "cents":
		return fmt.Sprintf("%s must have at most two decimal places and not exceed %s", field, money.Format(money.MaxCents))
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
