package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/finflow/pkg/finbot/slots"
)

func depositSet(interestType string) slots.Set {
	set := slots.Set{
		"납입액":    slots.Money(10_000_000),
		"저축개월":   slots.Months(12),
		"저축금리":   slots.Rate(3.0),
		"최고우대금리": slots.Rate(3.5),
		"우대조건":   slots.Text("급여이체"),
	}
	if interestType != "" {
		set["저축금리유형명"] = slots.Text(interestType)
	}
	return set
}

func TestFixedDeposit(t *testing.T) {
	tests := []struct {
		name         string
		interestType string
		opts         Options
		months       int
		wantType     string
		wantInterest int64
		wantTax      int64
		wantAfterTax int64
	}{
		{"simple", Simple, Options{}, 12, Simple, 300_000, 46_200, 10_253_800},
		{"compound", Compound, Options{}, 12, Compound, 304_159, 46_840, 10_257_318},
		{"unknown type is simple", "변동", Options{}, 12, Simple, 300_000, 46_200, 10_253_800},
		{"preferential", Simple, Options{UsePreferential: true}, 24, Simple, 700_000, 107_800, 10_592_200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := depositSet(tt.interestType)
			set["저축개월"] = slots.Months(tt.months)

			r, err := FixedDeposit(set, tt.opts)

			require.NoError(t, err)
			assert.Equal(t, slots.FixedDeposit, r.Category)
			assert.Equal(t, tt.wantType, r.InterestType)
			assert.Equal(t, int64(10_000_000), r.Principal)
			assert.InDelta(t, tt.wantInterest, r.InterestBeforeTax, 1)
			assert.InDelta(t, tt.wantTax, r.Tax, 1)
			assert.InDelta(t, tt.wantAfterTax, r.MaturityAfterTax, 1)
			assert.Equal(t, tt.months, r.Months)
			assert.Equal(t, "급여이체", r.Preferential)
		})
	}
}

func TestFixedDeposit_PreferentialFallsBackToBaseRate(t *testing.T) {
	set := depositSet(Simple)
	delete(set, "최고우대금리")

	r, err := FixedDeposit(set, Options{UsePreferential: true})

	require.NoError(t, err)
	assert.InDelta(t, 3.0, r.RatePercent, 1e-9)
}

func TestInstallmentDeposit(t *testing.T) {
	base := func(interestType string) slots.Set {
		set := slots.Set{
			"납입액":  slots.Money(100_000),
			"저축개월": slots.Months(12),
			"저축금리": slots.Rate(3.0),
		}
		if interestType != "" {
			set["저축금리유형명"] = slots.Text(interestType)
		}
		return set
	}

	r, err := InstallmentDeposit(base(Simple), Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(1_200_000), r.Principal)
	assert.InDelta(t, 19_500, r.InterestBeforeTax, 1)
	assert.InDelta(t, 1_219_500, r.MaturityBeforeTax, 1)
	assert.InDelta(t, 3_003, r.Tax, 1)
	assert.InDelta(t, 1_216_497, r.MaturityAfterTax, 1)

	r, err = InstallmentDeposit(base(""), Options{})
	require.NoError(t, err)
	assert.Equal(t, Compound, r.InterestType)
	assert.InDelta(t, 19_679, r.InterestBeforeTax, 1)
	assert.InDelta(t, 1_219_679, r.MaturityBeforeTax, 1)
	assert.InDelta(t, 1_216_649, r.MaturityAfterTax, 1)

	_, err = InstallmentDeposit(base("변동"), Options{})
	assert.ErrorIs(t, err, ErrInvalidInterestType)
}

func TestInstallmentDeposit_ZeroRate(t *testing.T) {
	set := slots.Set{
		"납입액":     slots.Money(50_000),
		"저축개월":    slots.Months(10),
		"저축금리":    slots.Rate(0),
		"저축금리유형명": slots.Text(Compound),
	}

	r, err := InstallmentDeposit(set, Options{})

	require.NoError(t, err)
	assert.Equal(t, int64(500_000), r.MaturityBeforeTax)
	assert.Zero(t, r.InterestBeforeTax)
	assert.Zero(t, r.Tax)
}

func TestJeonseLoan(t *testing.T) {
	set := func(rateType string) slots.Set {
		return slots.Set{
			"대출액":    slots.Money(300_000_000),
			"대출한도":   slots.Money(300_000_000),
			"대출금리유형": slots.Text(rateType),
			"대출금리최저": slots.Rate(2.78),
			"대출금리최고": slots.Rate(7.09),
		}
	}

	tests := []struct {
		name        string
		rateType    string
		opts        Options
		wantType    string
		wantRate    float64
		wantMonthly int64
		wantAnnual  int64
	}{
		{"variable lowest", VariableRate, Options{}, VariableRate, 2.78, 695_000, 8_340_000},
		{"variable highest", VariableRate, Options{UseMaxRate: true}, VariableRate, 7.09, 1_772_500, 21_270_000},
		{"fixed ignores max", FixedRate, Options{UseMaxRate: true}, FixedRate, 2.78, 695_000, 8_340_000},
		{"invalid becomes fixed", "혼합", Options{UseMaxRate: true}, FixedRate, 2.78, 695_000, 8_340_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := JeonseLoan(set(tt.rateType), tt.opts)

			require.NoError(t, err)
			assert.Equal(t, tt.wantType, r.RateType)
			assert.InDelta(t, tt.wantRate, r.RatePercent, 1e-9)
			assert.Equal(t, int64(300_000_000), r.LoanAmount)
			assert.InDelta(t, tt.wantMonthly, r.MonthlyInterest, 1)
			assert.InDelta(t, tt.wantAnnual, r.AnnualInterest, 12)
		})
	}
}

func TestCompute(t *testing.T) {
	r, err := Compute(slots.FixedDeposit, depositSet(Simple), Options{})
	require.NoError(t, err)
	assert.Equal(t, slots.FixedDeposit, r.Category)

	_, err = Compute(slots.Unknown, nil, Options{})
	assert.ErrorIs(t, err, ErrUnknownCategory)

	_, err = Compute(slots.JeonseLoan, slots.Set{"대출액": slots.Money(1)}, Options{})
	var missing *MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "대출금리최저", missing.Field)
}

func TestResult_Fields(t *testing.T) {
	loan := Result{Category: slots.JeonseLoan, RateType: VariableRate, LoanAmount: 5, MonthlyInterest: 1}
	assert.Equal(t, VariableRate, loan.Fields()["대출금리유형"])
	assert.NotContains(t, loan.Fields(), "세후수령액")

	deposit := Result{Category: slots.FixedDeposit, MaturityAfterTax: 7}
	assert.Equal(t, int64(7), deposit.Fields()["세후수령액"])
	assert.NotContains(t, deposit.Fields(), "월이자")
}

func TestRender(t *testing.T) {
	deposit := Render(Result{
		Category:          slots.FixedDeposit,
		RatePercent:       3,
		Principal:         10_000_000,
		InterestBeforeTax: 304_159,
		Tax:               46_840,
		MaturityAfterTax:  10_257_318,
		Months:            12,
		InterestType:      Compound,
		Preferential:      "급여이체",
	})
	assert.Contains(t, deposit, "정기예금")
	assert.Contains(t, deposit, "10,257,318원")
	assert.Contains(t, deposit, "연 3.00% (복리)")
	assert.Contains(t, deposit, "12개월")
	assert.Contains(t, deposit, "우대조건: 급여이체")

	loan := Render(Result{
		Category:        slots.JeonseLoan,
		RatePercent:     2.78,
		LoanAmount:      300_000_000,
		RateType:        VariableRate,
		MonthlyInterest: 695_000,
		AnnualInterest:  8_340_000,
	})
	assert.Contains(t, loan, "전세자금대출")
	assert.Contains(t, loan, "300,000,000원")
	assert.Contains(t, loan, "월이자: 695,000원")
	assert.Contains(t, loan, "연 2.78%")
	assert.NotContains(t, loan, "세후수령액")
}
