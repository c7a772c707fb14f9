package calc

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/randalmurphal/finflow/pkg/finbot/slots"
)

var categoryNames = map[slots.Category]string{
	slots.FixedDeposit:       "정기예금",
	slots.InstallmentDeposit: "적금",
	slots.JeonseLoan:         "전세자금대출",
}

// Render formats a result as the answer shown to the user, with amounts
// grouped the Korean way ("10,257,318원").
func Render(r Result) string {
	p := message.NewPrinter(language.Korean)
	var b strings.Builder

	name := categoryNames[r.Category]
	if name == "" {
		name = string(r.Category)
	}

	if r.Category == slots.JeonseLoan {
		b.WriteString(p.Sprintf("%s 이자 계산 결과를 알려드릴게요.\n", name))
		b.WriteString(p.Sprintf("- 대출액: %d원\n", r.LoanAmount))
		b.WriteString(p.Sprintf("- 대출금리유형: %s\n", r.RateType))
		b.WriteString(p.Sprintf("- 적용금리: 연 %.2f%%\n", r.RatePercent))
		b.WriteString(p.Sprintf("- 월이자: %d원\n", r.MonthlyInterest))
		b.WriteString(p.Sprintf("- 연간이자: %d원", r.AnnualInterest))
		return b.String()
	}

	b.WriteString(p.Sprintf("%s 만기 예상 금액을 계산했어요.\n", name))
	b.WriteString(p.Sprintf("- 원금: %d원\n", r.Principal))
	b.WriteString(p.Sprintf("- 적용금리: 연 %.2f%% (%s)\n", r.RatePercent, r.InterestType))
	b.WriteString(p.Sprintf("- 기간: %d개월\n", r.Months))
	b.WriteString(p.Sprintf("- 세전이자: %d원\n", r.InterestBeforeTax))
	b.WriteString(p.Sprintf("- 세금(15.4%%): %d원\n", r.Tax))
	b.WriteString(p.Sprintf("- 세후수령액: %d원", r.MaturityAfterTax))
	if r.Preferential != "" {
		b.WriteString(p.Sprintf("\n우대조건: %s", r.Preferential))
	}
	return b.String()
}
