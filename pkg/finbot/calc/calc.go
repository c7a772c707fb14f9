// Package calc implements the deposit, savings and jeonse loan calculators.
//
// Every calculator is a pure function of a complete slot set. Amounts are
// computed in floating point and truncated toward zero when reported, and
// interest income is taxed at TaxRate.
package calc

import (
	"errors"
	"fmt"
	"math"

	"github.com/randalmurphal/finflow/pkg/finbot/slots"
)

// TaxRate is the withholding rate applied to interest income.
const TaxRate = 0.154

// Interest and loan rate types as they appear in product data.
const (
	Simple   = "단리"
	Compound = "복리"

	FixedRate    = "고정금리"
	VariableRate = "변동금리"
)

var (
	// ErrUnknownCategory indicates a category without a calculator.
	ErrUnknownCategory = errors.New("no calculator for category")

	// ErrInvalidInterestType indicates an interest type the calculator
	// cannot apply.
	ErrInvalidInterestType = errors.New("interest type must be 단리 or 복리")
)

// MissingFieldError reports a required input that was not filled.
type MissingFieldError struct {
	Category slots.Category
	Field    string
}

// Error implements the error interface.
func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s calculator: %s is not filled", e.Category, e.Field)
}

// Options switch between the rates a product advertises.
type Options struct {
	// UsePreferential applies 최고우대금리 to deposits and savings when the
	// product has one.
	UsePreferential bool

	// UseMaxRate applies 대출금리최고 to variable-rate loans.
	UseMaxRate bool
}

// Result is the outcome of a calculation. Deposit and savings results fill
// the maturity fields; loan results fill the loan fields.
type Result struct {
	Category    slots.Category `json:"category"`
	RatePercent float64        `json:"rate_percent"`

	Principal         int64  `json:"principal,omitempty"`
	InterestBeforeTax int64  `json:"interest_before_tax,omitempty"`
	MaturityBeforeTax int64  `json:"maturity_before_tax,omitempty"`
	Tax               int64  `json:"tax,omitempty"`
	MaturityAfterTax  int64  `json:"maturity_after_tax,omitempty"`
	Months            int    `json:"months,omitempty"`
	InterestType      string `json:"interest_type,omitempty"`
	Preferential      string `json:"preferential,omitempty"`

	LoanAmount      int64  `json:"loan_amount,omitempty"`
	RateType        string `json:"rate_type,omitempty"`
	MonthlyInterest int64  `json:"monthly_interest,omitempty"`
	AnnualInterest  int64  `json:"annual_interest,omitempty"`
}

// Fields returns the result keyed by the Korean labels used in answers and
// product data.
func (r Result) Fields() map[string]any {
	if r.Category == slots.JeonseLoan {
		return map[string]any{
			"상품카테고리": string(r.Category),
			"대출금리유형": r.RateType,
			"적용금리(%)": r.RatePercent,
			"대출액":    r.LoanAmount,
			"월이자":    r.MonthlyInterest,
			"연간이자":   r.AnnualInterest,
		}
	}
	return map[string]any{
		"상품카테고리":  string(r.Category),
		"원금":      r.Principal,
		"세전이자":    r.InterestBeforeTax,
		"세전만기금액":  r.MaturityBeforeTax,
		"세금":      r.Tax,
		"세후수령액":   r.MaturityAfterTax,
		"적용금리(%)": r.RatePercent,
		"기간(개월)":  r.Months,
		"이자방식":    r.InterestType,
		"우대조건":    r.Preferential,
	}
}

// Compute runs the calculator matching category.
func Compute(category slots.Category, set slots.Set, opts Options) (Result, error) {
	switch category {
	case slots.FixedDeposit:
		return FixedDeposit(set, opts)
	case slots.InstallmentDeposit:
		return InstallmentDeposit(set, opts)
	case slots.JeonseLoan:
		return JeonseLoan(set, opts)
	}
	return Result{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
}

// FixedDeposit computes a lump-sum deposit. 복리 compounds monthly; any
// other interest type is computed as 단리.
func FixedDeposit(set slots.Set, opts Options) (Result, error) {
	in := inputs{category: slots.FixedDeposit, set: set}
	principal := in.amount("납입액")
	months := in.amount("저축개월")
	rate := in.depositRate(opts)
	if in.err != nil {
		return Result{}, in.err
	}

	interestType := in.text("저축금리유형명")
	p, n, r := float64(principal), float64(months), rate/100

	var maturity, interest float64
	if interestType == Compound {
		maturity = p * math.Pow(1+r/12, n)
		interest = maturity - p
	} else {
		interestType = Simple
		interest = p * r * (n / 12)
		maturity = p + interest
	}
	tax := interest * TaxRate

	return Result{
		Category:          slots.FixedDeposit,
		RatePercent:       rate,
		Principal:         principal,
		InterestBeforeTax: int64(interest),
		MaturityBeforeTax: int64(maturity),
		Tax:               int64(tax),
		MaturityAfterTax:  int64(maturity - tax),
		Months:            int(months),
		InterestType:      interestType,
		Preferential:      in.text("우대조건"),
	}, nil
}

// InstallmentDeposit computes a fixed monthly savings plan. An empty
// interest type is treated as 복리.
func InstallmentDeposit(set slots.Set, opts Options) (Result, error) {
	in := inputs{category: slots.InstallmentDeposit, set: set}
	monthly := in.amount("납입액")
	months := in.amount("저축개월")
	rate := in.depositRate(opts)
	if in.err != nil {
		return Result{}, in.err
	}

	interestType := in.text("저축금리유형명")
	if interestType == "" {
		interestType = Compound
	}
	a, n, r := float64(monthly), float64(months), rate/100
	principal := a * n

	var maturity, interest float64
	switch interestType {
	case Simple:
		interest = a * r * (n * (n + 1) / 2) / 12
		maturity = principal + interest
	case Compound:
		mr := r / 12
		if mr == 0 {
			maturity = principal
		} else {
			maturity = a * (math.Pow(1+mr, n) - 1) / mr * (1 + mr)
		}
		interest = maturity - principal
	default:
		return Result{}, fmt.Errorf("%w: got %q", ErrInvalidInterestType, interestType)
	}
	tax := interest * TaxRate

	return Result{
		Category:          slots.InstallmentDeposit,
		RatePercent:       rate,
		Principal:         int64(principal),
		InterestBeforeTax: int64(interest),
		MaturityBeforeTax: int64(maturity),
		Tax:               int64(tax),
		MaturityAfterTax:  int64(maturity - tax),
		Months:            int(months),
		InterestType:      interestType,
		Preferential:      in.text("우대조건"),
	}, nil
}

// JeonseLoan computes the interest on a jeonse deposit loan. A rate type
// other than 고정금리 or 변동금리 is treated as 고정금리, which always uses
// the lowest advertised rate.
func JeonseLoan(set slots.Set, opts Options) (Result, error) {
	in := inputs{category: slots.JeonseLoan, set: set}
	amount := in.amount("대출액")
	rateType := in.text("대출금리유형")
	if rateType != FixedRate && rateType != VariableRate {
		rateType = FixedRate
	}

	var rate float64
	if rateType == VariableRate && opts.UseMaxRate {
		rate = in.rate("대출금리최고")
	} else {
		rate = in.rate("대출금리최저")
	}
	if in.err != nil {
		return Result{}, in.err
	}

	monthly := float64(amount) * (rate / 100) / 12
	return Result{
		Category:        slots.JeonseLoan,
		RatePercent:     rate,
		LoanAmount:      amount,
		RateType:        rateType,
		MonthlyInterest: int64(monthly),
		AnnualInterest:  int64(monthly * 12),
	}, nil
}

// inputs reads values out of a set, keeping the first missing field.
type inputs struct {
	category slots.Category
	set      slots.Set
	err      error
}

func (in *inputs) value(name string) *slots.Value {
	v := in.set[name]
	if v.Empty() && in.err == nil {
		in.err = &MissingFieldError{Category: in.category, Field: name}
	}
	return v
}

func (in *inputs) amount(name string) int64 {
	if v := in.value(name); v != nil {
		return v.Amount
	}
	return 0
}

func (in *inputs) rate(name string) float64 {
	if v := in.value(name); v != nil {
		return v.Rate
	}
	return 0
}

// text returns an optional text value, empty when unfilled.
func (in *inputs) text(name string) string {
	if v := in.set[name]; v != nil {
		return v.Text
	}
	return ""
}

func (in *inputs) depositRate(opts Options) float64 {
	if opts.UsePreferential {
		if v := in.set["최고우대금리"]; !v.Empty() {
			return v.Rate
		}
	}
	return in.rate("저축금리")
}
