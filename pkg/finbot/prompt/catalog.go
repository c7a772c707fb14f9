// Package prompt holds every text the assistant sends to the user or to the
// language model.
//
// Texts are templates with ${name} placeholders. The compiled-in defaults
// can be replaced per name from the prompts table of the configuration
// file; a replacement must use only the placeholders of the default it
// replaces.
package prompt

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
)

// Name identifies a template.
type Name string

const (
	Greeting          Name = "greeting"
	ReturningGreeting Name = "returning_greeting"
	SummarySystem     Name = "summary_system"
	SummaryUser       Name = "summary_user"

	ClassifySystem Name = "classify_system"
	ClassifyUser   Name = "classify_user"

	RecommendSystem Name = "recommend_system"
	RecommendUser   Name = "recommend_user"
	NoProducts      Name = "no_products"
	ExplainSystem   Name = "explain_system"
	ExplainUser     Name = "explain_user"
	ChatSystem      Name = "chat_system"
	ChatUser        Name = "chat_user"

	FeedbackQuestion Name = "feedback_question"
	CategoryQuestion Name = "category_question"
	MissingFields    Name = "missing_fields"
	Reprompt         Name = "reprompt"
	ExtractSystem    Name = "extract_system"
	ExtractUser      Name = "extract_user"

	Degraded      Name = "degraded"
	InvalidResume Name = "invalid_resume"
)

var defaults = map[Name]string{
	Greeting: "안녕하세요 🙂\n" +
		"FinBot에 오신 걸 환영해요.\n" +
		"예금·적금·전세대출 추천부터 수익·이자 계산까지\n" +
		"금융 정보가 필요하시면 언제든 말씀해주세요!",
	ReturningGreeting: "안녕하세요. 지난번에는 ${summary} 등 에 대해 물어보셨군요! 오늘은 무엇을 도와드릴까요?",
	SummarySystem:     "너는 주어지는 몇 개의 문장을 '3단어'로 요약해야해. 요약한 3단어만 출력해.",
	SummaryUser:       "다음은 주어진 문장들이야:\n${questions}\n주어진 문장들을 3단어로 요약해줘.",

	ClassifySystem: "너는 질문을 보고 목적을 생각해서 ${count}가지 중에 하나로 분류 해야해.\n" +
		"다음은 '${count}가지 경우'야:\n${choices}\n" +
		"다른 설명은 필요없고 ${labels} 이 ${count}가지 중에 무조건 하나를 반환해야해. " +
		"부연설명 붙이지 말고 마침표도 붙이지 마.",
	ClassifyUser: "질문: ${query}",

	RecommendSystem: "너는 금융 도메인 전문가이자 고객 상담 AI야. 검색된 상품 정보를 근거로만 답변해야 해. " +
		"마크다운 형식은 사용하지말고 단락을 잘 나눠서 출력해.",
	RecommendUser: "다음은 검색된 상품 정보야:\n${products}\n" +
		"질문: ${query}\n이 상품 정보만 참고해서 사용자의 질문에 정확히 답변해줘.",
	NoProducts: "조건에 맞는 상품을 찾지 못했어요. 다른 조건으로 다시 물어봐 주세요.",
	ExplainSystem: "너는 금융 도메인 전문가이자 고객 상담 AI야. user의 질문에 답해줘. " +
		"마크다운 형식은 사용하지말고 단락을 잘 나눠서 출력해.",
	ExplainUser: "질문: ${query}\n에 맞는 설명을 해줘.",
	ChatSystem: "너는 금융 도메인 전문가이자 고객 상담 AI야. user의 질문에 상담사처럼 답해줘. " +
		"마크다운 형식은 사용하지말고 단락을 잘 나눠서 출력해.",
	ChatUser: "질문: ${query}\n에 답해줘.",

	FeedbackQuestion: "추천 상품에 대한 수익/이자 계산이 필요하신가요?",
	CategoryQuestion: "예금, 적금, 전세대출 중에 어느 상품에 관심이 있으신가요?",
	MissingFields:    "${fields}에 대한 입력이 필요합니다. 정보를 알려주시면 계산해드릴게요.",
	Reprompt:         "말씀하신 내용을 이해하지 못했어요. ${prompt}",
	ExtractSystem:    "너는 사용자 입력을 보고 정보를 추출해서 데이터에 채워넣어야해.",
	ExtractUser: "다음은 '데이터'야:\n${data}\n" +
		"사용자 입력: ${input}\n을 보고 '데이터'의 빈곳을 채워줘. " +
		"'데이터'가 이미 채워진 곳은 수정하면 안돼. " +
		"돈 관련 입력은 '원' 단위로 환산해서 integer 타입으로 변환해야해. " +
		"만약 '데이터'의 빈 곳에 맞는 정보가 없으면 null을 채워넣어.",

	Degraded:      "죄송해요. 요청을 처리하는 중에 문제가 생겼어요. 잠시 후 다시 시도해 주세요.",
	InvalidResume: "이전 질문은 이미 처리되었거나 만료되었어요. 새로 질문해 주세요.",
}

// ErrUnknownPrompt indicates an override for a name that has no default.
var ErrUnknownPrompt = errors.New("unknown prompt")

// Names returns every template name, sorted.
func Names() []Name {
	names := slices.Collect(maps.Keys(defaults))
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Catalog renders templates. It is safe for concurrent use.
type Catalog struct {
	templates map[Name]string
	exp       *Expander
}

// Default returns a catalog of the compiled-in templates.
func Default() *Catalog {
	c, _ := NewCatalog(nil)
	return c
}

// NewCatalog returns the default templates with overrides applied. An
// override for an unknown name, or one that introduces a placeholder its
// default does not have, is an error.
func NewCatalog(overrides map[string]string) (*Catalog, error) {
	templates := maps.Clone(defaults)

	var errs []error
	for raw, text := range overrides {
		name := Name(raw)
		def, ok := defaults[name]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownPrompt, raw))
			continue
		}
		allowed := Variables(def)
		for _, v := range Variables(text) {
			if !slices.Contains(allowed, v) {
				errs = append(errs, fmt.Errorf("prompt %s: placeholder ${%s} is not available", raw, v))
			}
		}
		templates[name] = text
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return &Catalog{templates: templates, exp: NewExpander(MissingError)}, nil
}

// Text returns a template that has no placeholders.
func (c *Catalog) Text(name Name) string {
	return c.templates[name]
}

// Render expands a template.
func (c *Catalog) Render(name Name, vars map[string]any) (string, error) {
	t, ok := c.templates[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownPrompt, name)
	}
	out, err := c.exp.Expand(t, vars)
	if err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return out, nil
}
