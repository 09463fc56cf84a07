package stripe

import (
	"errors"
	"net/http"

	stripe "github.com/stripe/stripe-go/v81"
)

// Category mirrors the processor's own error taxonomy.
type Category string

const (
	CategoryCard           Category = "card_error"
	CategoryValidation     Category = "validation_error"
	CategoryRateLimit      Category = "rate_limit_error"
	CategoryInvalidRequest Category = "invalid_request_error"
	CategoryAPI            Category = "api_error"
	CategoryAuthentication Category = "authentication_error"
	CategoryUnknown        Category = "unknown_error"
)

var userMessages = map[Category]string{
	CategoryCard:           "Your card was declined. Please check the details or try another card.",
	CategoryValidation:     "Some payment details look invalid. Please review and try again.",
	CategoryRateLimit:      "Too many payment attempts right now. Please wait a moment and retry.",
	CategoryInvalidRequest: "The payment request could not be processed. Please refresh and try again.",
	CategoryAPI:            "The payment provider is temporarily unavailable. Please try again shortly.",
	CategoryAuthentication: "Payments are misconfigured on our side. Please contact support.",
	CategoryUnknown:        "Payment failed. Please try again or contact support if it keeps happening.",
}

// Classify maps a processor error to its category and an actionable
// user-facing message. Unrecognized errors fall back to a generic retry
// message rather than leaking processor internals.
func Classify(err error) (Category, string) {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return CategoryUnknown, userMessages[CategoryUnknown]
	}
	category := CategoryUnknown
	switch {
	case stripeErr.Type == stripe.ErrorTypeCard:
		category = CategoryCard
	case stripeErr.HTTPStatusCode == http.StatusTooManyRequests:
		category = CategoryRateLimit
	case stripeErr.HTTPStatusCode == http.StatusUnauthorized:
		category = CategoryAuthentication
	case stripeErr.Type == stripe.ErrorTypeInvalidRequest:
		if stripeErr.Param != "" {
			category = CategoryValidation
		} else {
			category = CategoryInvalidRequest
		}
	case stripeErr.Type == stripe.ErrorTypeAPI:
		category = CategoryAPI
	}
	return category, userMessages[category]
}

// UserMessage returns the message for a category; unknown categories get the
// generic fallback.
func UserMessage(category Category) string {
	if msg, ok := userMessages[category]; ok {
		return msg
	}
	return userMessages[CategoryUnknown]
}
