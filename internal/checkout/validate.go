package checkout

import (
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/checkout-gateway/internal/backend"
	"github.com/noah-isme/checkout-gateway/internal/common"
)

var validate = validator.New()

type shippingRules struct {
	FirstName  string `validate:"required"`
	LastName   string `validate:"required"`
	Email      string `validate:"required,email"`
	Phone      string `validate:"required"`
	Address    string `validate:"required"`
	City       string `validate:"required"`
	PostalCode string `validate:"required"`
}

// trimShipping normalises whitespace so " " never passes a required check.
func trimShipping(info *backend.ShippingInfo) {
	info.FirstName = strings.TrimSpace(info.FirstName)
	info.LastName = strings.TrimSpace(info.LastName)
	info.Email = strings.TrimSpace(info.Email)
	info.Phone = strings.TrimSpace(info.Phone)
	info.Address = strings.TrimSpace(info.Address)
	info.City = strings.TrimSpace(info.City)
	info.PostalCode = strings.TrimSpace(info.PostalCode)
	info.Country = strings.TrimSpace(info.Country)
}

// validateShipping enforces the full address requirement for delivery
// orders. Country stays optional.
func validateShipping(info *backend.ShippingInfo) error {
	if info == nil {
		return common.NewAppError("VALIDATION", "shipping address is required for delivery", http.StatusUnprocessableEntity, nil)
	}
	trimShipping(info)
	rules := shippingRules{
		FirstName:  info.FirstName,
		LastName:   info.LastName,
		Email:      info.Email,
		Phone:      info.Phone,
		Address:    info.Address,
		City:       info.City,
		PostalCode: info.PostalCode,
	}
	if err := validate.Struct(rules); err != nil {
		fields := make([]string, 0, 4)
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
		}
		appErr := common.NewAppError("VALIDATION", "incomplete shipping address", http.StatusUnprocessableEntity, err)
		appErr.Details = map[string]any{"fields": fields}
		return appErr
	}
	return nil
}
