package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaxAllowedPrice(t *testing.T) {
	tests := []struct {
		name       string
		original   int
		ticketType TicketType
		want       int
	}{
		{"companion halves", 10000, TicketFindCompanion, 5000},
		{"companion rounds half up", 9999, TicketFindCompanion, 5000},
		{"companion one yen", 1, TicketFindCompanion, 1},
		{"main transfer", 10000, TicketMainTransfer, 10000},
		{"sub transfer", 8800, TicketSubTransfer, 8800},
		{"exchange", 12000, TicketExchange, 12000},
		{"zero original", 0, TicketMainTransfer, 0},
		{"negative original", -100, TicketFindCompanion, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaxAllowedPrice(tt.original, tt.ticketType))
		})
	}
}

func TestValidateAskingPriceBoundaries(t *testing.T) {
	types := []TicketType{TicketFindCompanion, TicketMainTransfer, TicketSubTransfer, TicketExchange}
	originals := []int{1, 2, 999, 1000, 10001}

	for _, tt := range types {
		for _, original := range originals {
			maxAllowed := MaxAllowedPrice(original, tt)

			assert.NoError(t, ValidateAskingPrice(original, tt, maxAllowed), "%s/%d at ceiling", tt, original)
			assert.NoError(t, ValidateAskingPrice(original, tt, 1), "%s/%d at floor", tt, original)

			err := ValidateAskingPrice(original, tt, maxAllowed+1)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPriceOutOfRange)
			assert.ErrorIs(t, err, ErrValidation)

			assert.ErrorIs(t, ValidateAskingPrice(original, tt, 0), ErrPriceOutOfRange)
			assert.ErrorIs(t, ValidateAskingPrice(original, tt, -1), ErrPriceOutOfRange)
		}
	}
}

func TestValidateAskingPricePending(t *testing.T) {
	err := ValidateAskingPrice(0, TicketFindCompanion, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPricePending)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "originalPriceJPY", verr.Field)
}

func TestCompanionScenario(t *testing.T) {
	assert.Equal(t, 5000, MaxAllowedPrice(10000, TicketFindCompanion))
	assert.ErrorIs(t, ValidateAskingPrice(10000, TicketFindCompanion, 6000), ErrPriceOutOfRange)
	assert.NoError(t, ValidateAskingPrice(10000, TicketFindCompanion, 4000))
}

func TestValidateSubsidy(t *testing.T) {
	assert.NoError(t, ValidateSubsidy(10000, 0))
	assert.NoError(t, ValidateSubsidy(10000, 5000))
	assert.NoError(t, ValidateSubsidy(9999, 5000))
	assert.ErrorIs(t, ValidateSubsidy(10000, 5001), ErrPriceOutOfRange)
	assert.ErrorIs(t, ValidateSubsidy(10000, -1), ErrPriceOutOfRange)
	assert.ErrorIs(t, ValidateSubsidy(0, 0), ErrPricePending)
}

func TestParseYen(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"5000", 5000},
		{" 4,000 ", 4000},
		{"12.5", 0},
		{"abc", 0},
		{"", 0},
		{"-20", -20},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseYen(tt.raw), "ParseYen(%q)", tt.raw)
	}
}

func TestYenUnmarshalNeverFails(t *testing.T) {
	var body struct {
		A Yen `json:"a"`
		B Yen `json:"b"`
		C Yen `json:"c"`
		D Yen `json:"d"`
		E Yen `json:"e"`
	}

	err := json.Unmarshal([]byte(`{"a": 4000, "b": "3,500", "c": "free", "d": 12.5, "e": true}`), &body)
	require.NoError(t, err)

	assert.Equal(t, Yen(4000), body.A)
	assert.Equal(t, Yen(3500), body.B)
	assert.Equal(t, Yen(0), body.C)
	assert.Equal(t, Yen(0), body.D)
	assert.Equal(t, Yen(0), body.E)
}
