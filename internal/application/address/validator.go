package address

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	apperrors "boutique-backend/pkg/errors"

	"github.com/go-playground/validator/v10"
)

// Address is a shipping or billing address. It passes through the checkout
// request and is never stored by this core.
type Address struct {
	Line1      string `json:"line1" validate:"required,min=3,max=200"`
	Line2      string `json:"line2,omitempty" validate:"max=200"`
	City       string `json:"city" validate:"required,max=100"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required,len=2"`
	Region     string `json:"region,omitempty" validate:"max=100"`
}

// Addresses is the validated, normalized pair used by checkout
type Addresses struct {
	Shipping Address `json:"shipping"`
	Billing  Address `json:"billing"`
}

// Countries the shop ships to, with the postal-code shape each one uses
var postalCodePatterns = map[string]*regexp.Regexp{
	"FR": regexp.MustCompile(`^\d{5}$`),
	"DE": regexp.MustCompile(`^\d{5}$`),
	"ES": regexp.MustCompile(`^\d{5}$`),
	"IT": regexp.MustCompile(`^\d{5}$`),
	"BE": regexp.MustCompile(`^\d{4}$`),
	"AT": regexp.MustCompile(`^\d{4}$`),
	"LU": regexp.MustCompile(`^\d{4}$`),
	"NL": regexp.MustCompile(`^\d{4}\s?[A-Z]{2}$`),
	"PT": regexp.MustCompile(`^\d{4}-\d{3}$`),
	"IE": regexp.MustCompile(`^[A-Z0-9]{3}\s?[A-Z0-9]{4}$`),
}

// Validator performs structural and business-rule validation of addresses.
// It is side-effect free.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates an address validator
func NewValidator() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())

	// Report fields under their JSON names so error detail keys match the
	// request payload
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validate: validate}
}

// ValidateAndProcessAddresses validates and normalizes the shipping and
// billing addresses. A nil billing address defaults to the shipping one.
// Fails fast with field-level error detail.
func (v *Validator) ValidateAndProcessAddresses(shipping, billing *Address) (*Addresses, error) {
	if shipping == nil {
		return nil, apperrors.NewValidationError("shipping address is required")
	}

	normalizedShipping := normalize(*shipping)
	if fields := v.check("shipping_address", normalizedShipping); len(fields) > 0 {
		return nil, apperrors.NewFieldValidationError("invalid shipping address", fields)
	}

	normalizedBilling := normalizedShipping
	if billing != nil {
		normalizedBilling = normalize(*billing)
		if fields := v.check("billing_address", normalizedBilling); len(fields) > 0 {
			return nil, apperrors.NewFieldValidationError("invalid billing address", fields)
		}
	}

	return &Addresses{
		Shipping: normalizedShipping,
		Billing:  normalizedBilling,
	}, nil
}

func (v *Validator) check(prefix string, addr Address) []apperrors.FieldError {
	var fields []apperrors.FieldError

	if err := v.validate.Struct(addr); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			for _, fieldErr := range validationErrs {
				fields = append(fields, apperrors.FieldError{
					Field:   prefix + "." + fieldErr.Field(),
					Message: fmt.Sprintf("failed %s validation", fieldErr.Tag()),
				})
			}
			return fields
		}
		fields = append(fields, apperrors.FieldError{Field: prefix, Message: err.Error()})
		return fields
	}

	pattern, supported := postalCodePatterns[addr.Country]
	if !supported {
		fields = append(fields, apperrors.FieldError{
			Field:   prefix + ".country",
			Message: fmt.Sprintf("country %s is not supported", addr.Country),
		})
		return fields
	}
	if !pattern.MatchString(addr.PostalCode) {
		fields = append(fields, apperrors.FieldError{
			Field:   prefix + ".postal_code",
			Message: fmt.Sprintf("invalid postal code for country %s", addr.Country),
		})
	}
	return fields
}

func normalize(addr Address) Address {
	addr.Line1 = strings.TrimSpace(addr.Line1)
	addr.Line2 = strings.TrimSpace(addr.Line2)
	addr.City = strings.TrimSpace(addr.City)
	addr.PostalCode = strings.ToUpper(strings.TrimSpace(addr.PostalCode))
	addr.Country = strings.ToUpper(strings.TrimSpace(addr.Country))
	addr.Region = strings.TrimSpace(addr.Region)
	return addr
}
