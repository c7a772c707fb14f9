package config

// DefaultTables returns the compiled-in tables. Each call returns a fresh
// copy that callers may modify.
func DefaultTables() Tables {
	return Tables{
		LabelSets: map[string]LabelSetTable{
			"intent": {Labels: []LabelTable{
				{
					Name:        "recommend",
					Description: "질문의 의미가 금융 상품에 대한 추천을 원하면 'recommend'를 반환",
					Synonyms:    []string{"recommend_mode", "recommend", "rec", "추천"},
				},
				{
					Name:        "calculate",
					Description: "질문의 의미를 생각했을 때, 계산이 필요한 작업이 필요하면 'calculate'를 반환",
					Synonyms:    []string{"calculate_mode", "calculator", "calculate", "cal", "계산"},
				},
				{
					Name:        "explain",
					Description: "금융 도메인에 대한 지식 이해를 위해 설명이 필요할 때, 'explain'을 반환",
					Synonyms:    []string{"explain_mode", "fin_word_explain", "finword", "explain", "word", "설명"},
				},
				{
					Name:        "chat",
					Description: "위 세가지 의도가 담기지 않은 모든 경우에, 'chat'을 반환",
					Synonyms:    []string{"normal_mode", "normal_chat", "normal", "chat", "일반"},
				},
			}},
			"recommend_category": {Labels: []LabelTable{
				{
					Name:        "fixed_deposit",
					Description: "질문의 의미가 예금 상품에 대한 정보를 원하면 'fixed_deposit'를 반환",
					Synonyms:    []string{"정기예금", "예금", "fixed", "fix"},
				},
				{
					Name:        "installment_deposit",
					Description: "질문의 의미를 생각했을 때, 적금 상품에 대한 정보를 원하면 'installment_deposit'를 반환",
					Synonyms:    []string{"적금", "installment", "install", "savings"},
				},
				{
					Name:        "jeonse_loan",
					Description: "질문의 의미가 대출 관련 상품에 대한 정보를 원하면, 'jeonse_loan'을 반환",
					Synonyms:    []string{"전세자금대출", "전세대출", "대출", "jeonse", "loan", "jeo"},
				},
				{
					Name:        "all",
					Description: "위 세가지 의도가 담기지 않은 모든 경우에, 'all'을 반환",
					Synonyms:    []string{"all", "전체"},
				},
			}},
			"slot_category": {Labels: []LabelTable{
				{
					Name:        "fixed_deposit",
					Description: "질문의 의도가 예금에 대한 작업을 원할 때 'fixed_deposit'를 반환",
					Synonyms:    []string{"정기예금", "예금", "fixed", "fix"},
				},
				{
					Name:        "installment_deposit",
					Description: "질문의 의도가 적금에 대한 작업을 원할 때 'installment_deposit'를 반환",
					Synonyms:    []string{"적금", "installment", "install", "savings"},
				},
				{
					Name:        "jeonse_loan",
					Description: "질문의 의도가 대출에 대한 작업을 원할 때, 'jeonse_loan'을 반환",
					Synonyms:    []string{"전세자금대출", "전세대출", "대출", "jeonse", "loan"},
				},
				{
					Name:        "unknown",
					Description: "위 세가지 의도가 담기지 않은 모든 경우에, 'unknown'을 반환",
					Synonyms:    []string{"unknown", "else", "모름"},
				},
			}},
			"feedback": {Labels: []LabelTable{
				{
					Name:        "yes",
					Description: "긍정적인 맥락 혹은 뉘앙스면 'yes'",
					Synonyms:    []string{"yes", "sure", "긍정", "네", "예", "맞", "그래", "응", "그렇", "좋아"},
				},
				{
					Name:        "no",
					Description: "부정적인 맥락이거나 유추를 못하겠다면 'no'",
					Synonyms:    []string{"no", "부정", "아니", "안", "싫어", "왜"},
				},
			}},
		},
		Slots: map[string]SlotTable{
			"fixed_deposit": {
				Fields: []FieldTable{
					{Name: "납입액", Kind: "money", Description: "예치할 금액(원)"},
					{Name: "우대조건", Kind: "text", Optional: true, Description: "우대금리 조건"},
					{Name: "최고한도", Kind: "money", Optional: true, Description: "가입 최고 한도(원)"},
					{Name: "저축개월", Kind: "months", Description: "예치 기간(개월)"},
					{Name: "저축금리유형명", Kind: "text", Optional: true, Description: "단리 또는 복리"},
					{Name: "저축금리", Kind: "rate", Description: "연 기본 금리(%)"},
					{Name: "최고우대금리", Kind: "rate", Optional: true, Description: "우대 포함 최고 금리(%)"},
				},
				Rank: []RankTable{{Field: "저축개월", Order: "desc"}, {Field: "저축금리", Order: "desc"}},
			},
			"installment_deposit": {
				Fields: []FieldTable{
					{Name: "납입액", Kind: "money", Description: "매월 납입할 금액(원)"},
					{Name: "우대조건", Kind: "text", Optional: true, Description: "우대금리 조건"},
					{Name: "최고한도", Kind: "money", Optional: true, Description: "월 납입 최고 한도(원)"},
					{Name: "저축개월", Kind: "months", Description: "적립 기간(개월)"},
					{Name: "적립유형명", Kind: "text", Optional: true, Description: "정액적립식 또는 자유적립식"},
					{Name: "저축금리유형명", Kind: "text", Optional: true, Description: "단리 또는 복리"},
					{Name: "저축금리", Kind: "rate", Description: "연 기본 금리(%)"},
					{Name: "최고우대금리", Kind: "rate", Optional: true, Description: "우대 포함 최고 금리(%)"},
				},
				Rank: []RankTable{{Field: "저축개월", Order: "desc"}, {Field: "저축금리", Order: "desc"}},
			},
			"jeonse_loan": {
				Fields: []FieldTable{
					{Name: "대출액", Kind: "money", Description: "대출받을 금액(원)"},
					{Name: "대출한도", Kind: "money", Optional: true, Description: "대출 한도(원)"},
					{Name: "대출금리유형", Kind: "text", Description: "고정금리 또는 변동금리"},
					{Name: "대출금리최저", Kind: "rate", Description: "최저 금리(%)"},
					{Name: "대출금리최고", Kind: "rate", Description: "최고 금리(%)"},
				},
				Rank: []RankTable{{Field: "대출금리최저", Order: "asc"}, {Field: "대출금리최고", Order: "asc"}},
			},
		},
		Categories: map[string]string{
			"정기예금":   "fixed_deposit",
			"적금":     "installment_deposit",
			"전세자금대출": "jeonse_loan",
		},
		Prompts: map[string]string{},
	}
}
