package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount   int64
		currency string
		want     string
	}{
		{10000, "usd", "100.00"},
		{5, "eur", "0.05"},
		{0, "usd", "0.00"},
		{1500, "JPY", "1500"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatAmount(tt.amount, tt.currency), "%d %s", tt.amount, tt.currency)
	}
}
