package slots

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want int64
	}{
		{"int", 300000000, 300_000_000},
		{"int64", int64(5000), 5000},
		{"float truncates", 1234.9, 1234},
		{"json number", json.Number("20000000"), 20_000_000},
		{"digits", "2000000", 2_000_000},
		{"commas", "2,000,000", 2_000_000},
		{"won suffix", "350만 원", 3_500_000},
		{"cheonman", "2천만원", 20_000_000},
		{"eok", "3억", 300_000_000},
		{"eok and cheonman", "1억 2천만", 120_000_000},
		{"man and cheon", "3만 5천", 35_000},
		{"compound small units", "2천5백만", 25_000_000},
		{"decimal eok", "1.5억", 150_000_000},
		{"unit without number", "만원", 10_000},
		{"leftover won", "3만 5000", 35_000},
		{"thousands of man", "2,000만원", 20_000_000},
		{"bare cheon after eok", "3억 5천", 350_000_000},
		{"bare cheon after one eok", "1억 5천", 150_000_000},
		{"eok and cheonman joined", "3억5천만원", 350_000_000},
		{"bare cheon after jo", "1조 2천", 1_200_000_000_000},
		{"largest amount", "9223372036854775000", 9_223_372_036_854_775_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMoney(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMoney_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{"nil", nil},
		{"empty", "  "},
		{"negative int", -1},
		{"negative text", "-5만"},
		{"words", "많이"},
		{"bad decimal", "1.2.3억"},
		{"two to the sixty-third", "9223372036854775808"},
		{"too many jo", "10000000조"},
		{"bool", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMoney(tt.raw)
			assert.ErrorIs(t, err, ErrInvalidValue)
		})
	}
}

func TestParseMoney_Idempotent(t *testing.T) {
	for _, raw := range []any{"2천만원", "1억 2천만", "3만 5천", 1234.5, "2,000,000"} {
		first, err := ParseMoney(raw)
		require.NoError(t, err)

		again, err := ParseMoney(first)
		require.NoError(t, err)
		assert.Equal(t, first, again, "%v", raw)

		fromText, err := ParseMoney(Money(first).String())
		require.NoError(t, err)
		assert.Equal(t, first, fromText, "%v", raw)
	}
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		raw  any
		want float64
	}{
		{2.78, 2.78},
		{3, 3},
		{"2.78%", 2.78},
		{"연 3.5%", 3.5},
		{" 4 퍼센트", 4},
		{json.Number("7.09"), 7.09},
	}
	for _, tt := range tests {
		got, err := ParseRate(tt.raw)
		require.NoError(t, err, "%v", tt.raw)
		assert.InDelta(t, tt.want, got, 1e-9, "%v", tt.raw)
	}

	for _, bad := range []any{"높음", -1.0, 150.0, nil} {
		_, err := ParseRate(bad)
		assert.ErrorIs(t, err, ErrInvalidValue, "%v", bad)
	}
}

func TestParseMonths(t *testing.T) {
	tests := []struct {
		raw  any
		want int
	}{
		{12, 12},
		{24.0, 24},
		{"36", 36},
		{"12개월", 12},
		{"2년", 24},
		{"1년 6개월", 18},
		{"6달", 6},
	}
	for _, tt := range tests {
		got, err := ParseMonths(tt.raw)
		require.NoError(t, err, "%v", tt.raw)
		assert.Equal(t, tt.want, got, "%v", tt.raw)
	}

	for _, bad := range []any{0, "오래", 1.5, "-3", nil} {
		_, err := ParseMonths(bad)
		assert.ErrorIs(t, err, ErrInvalidValue, "%v", bad)
	}
}

func TestNormalize(t *testing.T) {
	v, err := Normalize(Field{Name: "대출액", Kind: KindMoney}, "3억")
	require.NoError(t, err)
	assert.Equal(t, Money(300_000_000), v)

	v, err = Normalize(Field{Name: "대출금리유형", Kind: KindText}, " 변동금리 ")
	require.NoError(t, err)
	assert.Equal(t, Text("변동금리"), v)

	_, err = Normalize(Field{Name: "대출액", Kind: KindMoney}, "많이")
	var valueErr *ValueError
	require.ErrorAs(t, err, &valueErr)
	assert.Equal(t, "대출액", valueErr.Field)
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = Normalize(Field{Name: "우대조건", Kind: KindText}, []any{"x"})
	assert.ErrorIs(t, err, ErrInvalidValue)
}
