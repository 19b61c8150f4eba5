package config

import (
	"testing"
)

func TestMinBonusPaymentDefault(t *testing.T) {
	original := conf.minBonusPayment
	defer func() {
		conf.minBonusPayment = original
	}()

	conf.minBonusPayment = 60
	if got := MinBonusPayment(); got != 60 {
		t.Errorf("MinBonusPayment() = %d, want 60", got)
	}
}

func TestEnvIntOrDefault(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		def      int
		expected int
	}{
		{
			name:     "unset variable falls back to default",
			value:    "",
			def:      8080,
			expected: 8080,
		},
		{
			name:     "valid integer is parsed",
			value:    "9090",
			def:      8080,
			expected: 9090,
		},
		{
			name:     "garbage falls back to default",
			value:    "not-a-number",
			def:      8080,
			expected: 8080,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv("TEST_CONFIG_INT", tt.value)
			}
			result := envIntOrDefault("TEST_CONFIG_INT", tt.def)
			if result != tt.expected {
				t.Errorf("envIntOrDefault() = %d, want %d", result, tt.expected)
			}
		})
	}
}

func TestSetBotURL(t *testing.T) {
	original := conf.botURL
	defer func() {
		conf.botURL = original
	}()

	SetBotURL("https://t.me/test_meownow_bot")
	if got := BotURL(); got != "https://t.me/test_meownow_bot" {
		t.Errorf("BotURL() = %q, want %q", got, "https://t.me/test_meownow_bot")
	}
}
