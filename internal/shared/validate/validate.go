// Package validate holds the process-wide go-playground validator with the
// custom tags used by request bodies and aggregator payload rows.
package validate

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// validCurrencies contains ISO 4217 currency codes.
var validCurrencies = map[string]bool{
	"ARS": true, "AUD": true, "BRL": true, "CAD": true, "CHF": true,
	"CLP": true, "CNY": true, "COP": true, "CZK": true, "DKK": true,
	"EUR": true, "GBP": true, "HKD": true, "HUF": true, "IDR": true,
	"ILS": true, "INR": true, "JPY": true, "KRW": true, "MXN": true,
	"MYR": true, "NOK": true, "NZD": true, "PEN": true, "PHP": true,
	"PLN": true, "PYG": true, "RON": true, "SEK": true, "SGD": true,
	"THB": true, "TRY": true, "TWD": true, "USD": true, "UYU": true,
	"ZAR": true,
}

var (
	once     sync.Once
	instance *validator.Validate
)

// Get returns the shared validator, registering custom tags on first use.
func Get() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("iso4217", validateISO4217)
		_ = v.RegisterValidation("txn_type", validateTransactionType)
		instance = v
	})
	return instance
}

// Struct validates s and flattens validator.ValidationErrors into a single
// readable error ("field: rule" pairs).
func Struct(s any) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return errors.New(strings.Join(parts, ", "))
}

// IsValidCurrency reports whether c is a supported ISO 4217 code.
func IsValidCurrency(c string) bool {
	return validCurrencies[c]
}

func validateISO4217(fl validator.FieldLevel) bool {
	return validCurrencies[fl.Field().String()]
}

func validateTransactionType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "DEBIT", "CREDIT", "":
		return true
	}
	return false
}
