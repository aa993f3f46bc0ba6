package catalog

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"

	pkgerrors "github.com/angelmondragon/agrivet-pos/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// Validate checks a product at the ingestion boundary. Every problem found is
// reported in the returned error's details, not just the first.
func Validate(p Product) error {
	var errs error

	if err := validate.Struct(p); err != nil {
		var fieldErrs validator.ValidationErrors
		if ve, ok := err.(validator.ValidationErrors); ok {
			fieldErrs = ve
		}
		if fieldErrs == nil {
			errs = multierr.Append(errs, err)
		}
		for _, fe := range fieldErrs {
			errs = multierr.Append(errs, fmt.Errorf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}

	errs = multierr.Append(errs, validateUnits(p))
	if errs == nil {
		return nil
	}

	problems := make([]string, 0)
	for _, e := range multierr.Errors(errs) {
		problems = append(problems, e.Error())
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, errs, fmt.Sprintf("product %q is invalid", p.Name)).
		WithDetails(map[string]any{"problems": problems})
}

func validateUnits(p Product) error {
	var errs error
	seen := make(map[string]struct{}, len(p.Units))
	bases := 0

	for _, u := range p.Units {
		if _, dup := seen[u.Name]; dup {
			errs = multierr.Append(errs, fmt.Errorf("unit %q is listed twice", u.Name))
		}
		seen[u.Name] = struct{}{}

		if !u.ConversionFactor.IsPositive() {
			errs = multierr.Append(errs, fmt.Errorf("unit %q conversion factor must be > 0", u.Name))
		}
		if u.Price.IsNegative() {
			errs = multierr.Append(errs, fmt.Errorf("unit %q price must be >= 0", u.Name))
		}
		if u.IsBase {
			bases++
			if !u.ConversionFactor.Equal(one) {
				errs = multierr.Append(errs, fmt.Errorf("base unit %q must have conversion factor 1", u.Name))
			}
			if u.IsAutoPricing {
				errs = multierr.Append(errs, fmt.Errorf("base unit %q cannot be auto-priced", u.Name))
			}
			if p.BaseUnit != "" && u.Name != p.BaseUnit {
				errs = multierr.Append(errs, fmt.Errorf("base unit %q does not match product base unit %q", u.Name, p.BaseUnit))
			}
		}
	}

	if len(p.Units) > 0 && bases != 1 {
		errs = multierr.Append(errs, fmt.Errorf("exactly one base unit required, found %d", bases))
	}
	return errs
}
