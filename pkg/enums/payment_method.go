package enums

import (
	"fmt"
	"strings"
)

// PaymentMethod describes how the customer settled a sale at the till.
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodGCash  PaymentMethod = "gcash"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodCredit PaymentMethod = "credit"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodGCash,
	PaymentMethodCard,
	PaymentMethodCredit,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod. Matching ignores case.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
