package gateway

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/develab/btcgate/internal/pkg/btcpay"
	"github.com/develab/btcgate/internal/pkg/env"
	"github.com/go-playground/validator/v10"
)

// ErrNotConfigured is the fatal configuration error raised before any
// request is served.
var ErrNotConfigured = errors.New("the BTCPay payment gateway is not fully configured")

// Speed policy tokens accepted in configuration.
const (
	PolicySpeedHigh      = "SPEED_HIGH"
	PolicySpeedMedium    = "SPEED_MEDIUM"
	PolicySpeedLow       = "SPEED_LOW"
	PolicySpeedLowMedium = "SPEED_LOWMEDIUM"
)

// FallbackTaxIncluded is the tax metadata rate used when TAX_INCLUDED is not
// configured.
const FallbackTaxIncluded = 6.15

// Config carries the gateway settings. All required fields are validated
// once at construction; a missing field is fatal before serving.
type Config struct {
	HostURL         string `validate:"required,url"`
	APIKey          string `validate:"required"`
	StoreID         string `validate:"required"`
	IPNSecret       string `validate:"required"`
	PaymentMethod   string `validate:"required"`
	PolicySpeed     string `validate:"omitempty,oneof=SPEED_HIGH SPEED_MEDIUM SPEED_LOW SPEED_LOWMEDIUM"`
	TaxIncluded     string `validate:"omitempty,numeric"`
	RedirectBaseURL string `validate:"required,url"`
}

// NewConfigFromEnv reads the gateway configuration from the environment and
// validates it.
func NewConfigFromEnv() (*Config, error) {
	cfg := &Config{
		HostURL:         env.GetEnv("BTCPAY_HOST_URL", ""),
		APIKey:          env.GetEnv("BTCPAY_API_KEY", ""),
		StoreID:         env.GetEnv("BTCPAY_STORE_ID", ""),
		IPNSecret:       env.GetEnv("BTCPAY_IPN_SECRET", ""),
		PaymentMethod:   env.GetEnv("BTCPAY_PAYMENT_METHOD", ""),
		PolicySpeed:     env.GetEnv("BTCPAY_POLICY_SPEED", PolicySpeedHigh),
		TaxIncluded:     env.GetEnv("BTCPAY_TAX_INCLUDED", ""),
		RedirectBaseURL: env.GetEnv("PUBLIC_DOMAIN", ""),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks all required fields and reports the first missing one.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Errorf("%w: please configure %s", ErrNotConfigured, strings.ToLower(verrs[0].Field()))
	}
	return err
}

// PaymentMethods returns the accepted coin symbols in configured order.
func (c *Config) PaymentMethods() []string {
	parts := strings.Split(c.PaymentMethod, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if coin := strings.TrimSpace(p); coin != "" {
			out = append(out, coin)
		}
	}
	return out
}

// SpeedPolicy maps the configured policy token to the Greenfield wire name.
func (c *Config) SpeedPolicy() string {
	switch c.PolicySpeed {
	case PolicySpeedMedium:
		return btcpay.SpeedMedium
	case PolicySpeedLow:
		return btcpay.SpeedLow
	case PolicySpeedLowMedium:
		return btcpay.SpeedLowMedium
	default:
		return btcpay.SpeedHigh
	}
}

// TaxIncludedRate returns the tax metadata rate, falling back when unset.
func (c *Config) TaxIncludedRate() float64 {
	if v := strings.TrimSpace(c.TaxIncluded); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil {
			return rate
		}
	}
	return FallbackTaxIncluded
}

// RedirectURL is the page the payer returns to after completing checkout.
func (c *Config) RedirectURL(invoiceHash string) string {
	return strings.TrimRight(c.RedirectBaseURL, "/") + "/invoice/" + invoiceHash
}
