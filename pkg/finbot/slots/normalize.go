package slots

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// ErrInvalidValue indicates an answer that cannot be turned into a slot value.
var ErrInvalidValue = errors.New("invalid slot value")

// ValueError reports which field rejected which input.
type ValueError struct {
	Field  string
	Raw    any
	Reason string
}

// Error implements the error interface.
func (e *ValueError) Error() string {
	return fmt.Sprintf("slot %s: %s (got %v)", e.Field, e.Reason, e.Raw)
}

// Unwrap returns ErrInvalidValue for errors.Is support.
func (e *ValueError) Unwrap() error {
	return ErrInvalidValue
}

// Normalize converts a raw extracted value into a Value of the field's kind.
func Normalize(f Field, raw any) (*Value, error) {
	switch f.Kind {
	case KindMoney:
		won, err := ParseMoney(raw)
		if err != nil {
			return nil, &ValueError{Field: f.Name, Raw: raw, Reason: err.Error()}
		}
		return Money(won), nil
	case KindRate:
		pct, err := ParseRate(raw)
		if err != nil {
			return nil, &ValueError{Field: f.Name, Raw: raw, Reason: err.Error()}
		}
		return Rate(pct), nil
	case KindMonths:
		n, err := ParseMonths(raw)
		if err != nil {
			return nil, &ValueError{Field: f.Name, Raw: raw, Reason: err.Error()}
		}
		return Months(n), nil
	default:
		switch v := raw.(type) {
		case string:
			return Text(strings.TrimSpace(v)), nil
		case float64, int, int64, json.Number, bool:
			return Text(fmt.Sprint(v)), nil
		}
		return nil, &ValueError{Field: f.Name, Raw: raw, Reason: "expected text"}
	}
}

var smallUnits = map[rune]float64{
	'십': 10,
	'백': 100,
	'천': 1_000,
}

// lowerUnit scales a bare trailing group such as the 5천 in "3억 5천".
var lowerUnit = map[rune]float64{
	'억': 10_000,
	'조': 100_000_000,
}

var bigUnits = map[rune]float64{
	'만': 10_000,
	'억': 100_000_000,
	'조': 1_000_000_000_000,
}

var moneyNoise = strings.NewReplacer(",", "", "원", "", "₩", "", "KRW", "", "krw", "")

// ParseMoney converts an amount to integer won. Numbers are taken as won
// (fractions truncated); strings may use Korean units, so "2천만원",
// "1억 2천만", "3만 5천" and "1.5억" are all accepted. Applying ParseMoney
// to its own result returns the same value.
func ParseMoney(raw any) (int64, error) {
	switch v := raw.(type) {
	case int:
		return nonNegative(int64(v))
	case int64:
		return nonNegative(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: amount is not a number", ErrInvalidValue)
		}
		return nonNegative(int64(v))
	case json.Number:
		return ParseMoney(v.String())
	case string:
		return parseMoneyText(v)
	case nil:
		return 0, fmt.Errorf("%w: empty amount", ErrInvalidValue)
	}
	return 0, fmt.Errorf("%w: unsupported amount type %T", ErrInvalidValue, raw)
}

func nonNegative(n int64) (int64, error) {
	if n < 0 {
		return 0, fmt.Errorf("%w: negative amount %d", ErrInvalidValue, n)
	}
	return n, nil
}

func parseMoneyText(text string) (int64, error) {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, moneyNoise.Replace(text))
	if s == "" {
		return 0, fmt.Errorf("%w: empty amount", ErrInvalidValue)
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("%w: negative amount %q", ErrInvalidValue, text)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}

	var total, section float64
	var last rune
	digits := ""
	number := func(orOne bool) (float64, error) {
		if digits == "" {
			if orOne {
				return 1, nil
			}
			return 0, nil
		}
		n, err := strconv.ParseFloat(digits, 64)
		digits = ""
		if err != nil {
			return 0, fmt.Errorf("%w: bad number in %q", ErrInvalidValue, text)
		}
		return n, nil
	}

	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.':
			digits += string(r)
		case smallUnits[r] > 0:
			n, err := number(true)
			if err != nil {
				return 0, err
			}
			section += n * smallUnits[r]
		case bigUnits[r] > 0:
			n, err := number(false)
			if err != nil {
				return 0, err
			}
			group := section + n
			if group == 0 {
				group = 1
			}
			total += group * bigUnits[r]
			section = 0
			last = r
		default:
			return 0, fmt.Errorf("%w: cannot read amount %q", ErrInvalidValue, text)
		}
	}
	n, err := number(false)
	if err != nil {
		return 0, err
	}
	group := section + n
	if section > 0 && lowerUnit[last] > 0 {
		group *= lowerUnit[last]
	}
	total += group

	if total >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: amount %q out of range", ErrInvalidValue, text)
	}
	return int64(math.Round(total)), nil
}

var rateNoise = strings.NewReplacer("%", "", "％", "", "퍼센트", "", "프로", "", "연", "", "년", "", "이자율", "", "금리", "")

// ParseRate converts an annual rate to a percentage: 2.78, "2.78%" and
// "연 2.78%" all become 2.78.
func ParseRate(raw any) (float64, error) {
	var pct float64
	switch v := raw.(type) {
	case float64:
		pct = v
	case int:
		pct = float64(v)
	case int64:
		pct = float64(v)
	case json.Number:
		return ParseRate(v.String())
	case string:
		s := strings.TrimSpace(rateNoise.Replace(v))
		f, err := strconv.ParseFloat(strings.ReplaceAll(s, " ", ""), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: cannot read rate %q", ErrInvalidValue, v)
		}
		pct = f
	default:
		return 0, fmt.Errorf("%w: unsupported rate type %T", ErrInvalidValue, raw)
	}
	if math.IsNaN(pct) || math.IsInf(pct, 0) || pct < 0 || pct > 100 {
		return 0, fmt.Errorf("%w: rate %v out of range", ErrInvalidValue, raw)
	}
	return pct, nil
}

var (
	yearsPattern  = regexp.MustCompile(`(\d+)년`)
	monthsPattern = regexp.MustCompile(`(\d+)(개월|달|월)`)
)

// ParseMonths converts a term to months: 12, "12개월", "2년" and
// "1년 6개월" are accepted.
func ParseMonths(raw any) (int, error) {
	var n int
	switch v := raw.(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%w: fractional term %v", ErrInvalidValue, v)
		}
		n = int(v)
	case json.Number:
		return ParseMonths(v.String())
	case string:
		parsed, err := parseMonthsText(v)
		if err != nil {
			return 0, err
		}
		n = parsed
	default:
		return 0, fmt.Errorf("%w: unsupported term type %T", ErrInvalidValue, raw)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: term must be positive, got %v", ErrInvalidValue, raw)
	}
	return n, nil
}

func parseMonthsText(text string) (int, error) {
	s := strings.ReplaceAll(strings.TrimSpace(text), " ", "")
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}

	total := 0
	matched := false
	if m := yearsPattern.FindStringSubmatch(s); m != nil {
		years, _ := strconv.Atoi(m[1])
		total += years * 12
		matched = true
	}
	if m := monthsPattern.FindStringSubmatch(s); m != nil {
		months, _ := strconv.Atoi(m[1])
		total += months
		matched = true
	}
	if !matched {
		return 0, fmt.Errorf("%w: cannot read term %q", ErrInvalidValue, text)
	}
	return total, nil
}
