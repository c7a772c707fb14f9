package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	tests := []struct {
		name     string
		action   MissingAction
		input    string
		vars     map[string]any
		expected string
		wantErr  bool
	}{
		{"simple", MissingError, "${fields}에 대한 입력", map[string]any{"fields": "대출액"}, "대출액에 대한 입력", false},
		{"numeric", MissingError, "${count}가지", map[string]any{"count": 4}, "4가지", false},
		{"adjacent", MissingError, "${a}${b}", map[string]any{"a": "1", "b": "2"}, "12", false},
		{"no placeholders", MissingError, "안녕하세요", nil, "안녕하세요", false},
		{"dollar without braces", MissingError, "$fields", nil, "$fields", false},
		{"missing error", MissingError, "x ${y}", nil, "x ${y}", true},
		{"missing keep", MissingKeep, "x ${y}", nil, "x ${y}", false},
		{"missing empty", MissingEmpty, "x ${y}", nil, "x ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewExpander(tt.action).Expand(tt.input, tt.vars)
			if tt.wantErr {
				var undef *UndefinedVariableError
				require.ErrorAs(t, err, &undef)
				assert.Equal(t, []string{"y"}, undef.Names)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestUndefinedVariableError(t *testing.T) {
	assert.Equal(t, "undefined variable: a", (&UndefinedVariableError{Names: []string{"a"}}).Error())
	assert.Equal(t, "undefined variables: a, b", (&UndefinedVariableError{Names: []string{"a", "b"}}).Error())
}

func TestVariables(t *testing.T) {
	assert.Equal(t, []string{"count", "choices", "labels"}, Variables(defaults[ClassifySystem]))
	assert.Empty(t, Variables(defaults[Greeting]))
}

func TestCatalog_Defaults(t *testing.T) {
	c := Default()

	assert.Equal(t, "예금, 적금, 전세대출 중에 어느 상품에 관심이 있으신가요?", c.Text(CategoryQuestion))
	assert.Equal(t, "추천 상품에 대한 수익/이자 계산이 필요하신가요?", c.Text(FeedbackQuestion))

	got, err := c.Render(MissingFields, map[string]any{"fields": "대출금리유형, 대출금리최저"})
	require.NoError(t, err)
	assert.Equal(t, "대출금리유형, 대출금리최저에 대한 입력이 필요합니다. 정보를 알려주시면 계산해드릴게요.", got)

	got, err = c.Render(ReturningGreeting, map[string]any{"summary": "예금 금리 비교"})
	require.NoError(t, err)
	assert.Equal(t, "안녕하세요. 지난번에는 예금 금리 비교 등 에 대해 물어보셨군요! 오늘은 무엇을 도와드릴까요?", got)

	_, err = c.Render(MissingFields, nil)
	assert.ErrorContains(t, err, "undefined variable: fields")

	_, err = c.Render("nope", nil)
	assert.ErrorIs(t, err, ErrUnknownPrompt)
}

func TestCatalog_EveryNameHasText(t *testing.T) {
	c := Default()
	for _, name := range Names() {
		assert.NotEmpty(t, c.Text(name), name)
	}
}

func TestNewCatalog_Overrides(t *testing.T) {
	c, err := NewCatalog(map[string]string{
		"category_question": "어떤 상품을 계산할까요?",
		"missing_fields":    "${fields} 값을 알려주세요.",
	})
	require.NoError(t, err)
	assert.Equal(t, "어떤 상품을 계산할까요?", c.Text(CategoryQuestion))

	got, err := c.Render(MissingFields, map[string]any{"fields": "납입액"})
	require.NoError(t, err)
	assert.Equal(t, "납입액 값을 알려주세요.", got)

	assert.Equal(t, defaults[Greeting], c.Text(Greeting))
}

func TestNewCatalog_RejectsBadOverrides(t *testing.T) {
	_, err := NewCatalog(map[string]string{
		"farewell":       "bye",
		"missing_fields": "${fields} ${user}",
	})

	require.ErrorIs(t, err, ErrUnknownPrompt)
	assert.Contains(t, err.Error(), "farewell")
	assert.Contains(t, err.Error(), "${user}")
}
