package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StorageMySQL, cfg.StorageDriver)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, currency.IDR, cfg.Currency)
	assert.True(t, decimal.NewFromInt(15000).Equal(cfg.DeliveryFee))
	assert.True(t, decimal.NewFromInt(100000).Equal(cfg.FreeDeliveryThreshold))
	assert.True(t, decimal.NewFromInt(2000).Equal(cfg.ServiceFee))
	assert.Equal(t, 24*time.Hour, cfg.PaymentWindow)
	assert.Equal(t, 5*time.Minute, cfg.PaymentSweepInterval)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowOrigins)
}

func TestLoadConfigOverrides(t *testing.T) {
	secretFile := filepath.Join(t.TempDir(), "jwt")
	require.NoError(t, os.WriteFile(secretFile, []byte("from-file\n"), 0o600))

	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("JWT_SECRET_FILE", secretFile)
	t.Setenv("STORAGE_DRIVER", StorageMemory)
	t.Setenv("CURRENCY", "USD")
	t.Setenv("SERVICE_FEE", "1.50")
	t.Setenv("PAYMENT_WINDOW", "30m")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, StorageMemory, cfg.StorageDriver)
	assert.Equal(t, currency.USD, cfg.Currency)
	assert.True(t, decimal.RequireFromString("1.5").Equal(cfg.ServiceFee))
	assert.Equal(t, 30*time.Minute, cfg.PaymentWindow)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowOrigins)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		wantError string
	}{
		{
			name:      "missing secret",
			env:       map[string]string{"JWT_SECRET": ""},
			wantError: "JWT_SECRET is not set",
		},
		{
			name:      "unknown storage",
			env:       map[string]string{"STORAGE_DRIVER": "redis"},
			wantError: `STORAGE_DRIVER must be "mysql" or "memory", got "redis"`,
		},
		{
			name:      "negative fee",
			env:       map[string]string{"DELIVERY_FEE": "-1"},
			wantError: "DELIVERY_FEE must not be negative",
		},
		{
			name:      "bad window",
			env:       map[string]string{"PAYMENT_WINDOW": "tomorrow"},
			wantError: `PAYMENT_WINDOW: time: invalid duration "tomorrow"`,
		},
		{
			name:      "zero window",
			env:       map[string]string{"PAYMENT_WINDOW": "0s"},
			wantError: "PAYMENT_WINDOW must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "s3cret")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig()
			assert.EqualError(t, err, tt.wantError)
		})
	}
}
