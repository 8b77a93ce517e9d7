// Package suggest guesses a category for a transaction description,
// preferring what the user has categorized before over static merchant
// keyword rules.
package suggest

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"gagebu/internal/core"
)

// Method reports which rule produced a suggestion.
type Method string

const (
	MethodHistory Method = "history"
	MethodKeyword Method = "keyword"
)

type Result struct {
	CategoryID string `json:"category_id"`
	Method     Method `json:"method"`
}

// historyWindow caps how far back the history scan looks.
const historyWindow = 300

type keywordRule struct {
	category string
	keywords []string
}

// merchantKeywords maps Korean merchant names to category names. Rules
// are matched top to bottom, so earlier categories win overlaps.
var merchantKeywords = []keywordRule{
	{"카페", []string{"스타벅스", "이디야", "투썸", "할리스", "메가커피", "빽다방", "커피빈", "폴바셋"}},
	{"편의점", []string{"GS25", "CU", "세븐일레븐", "이마트24", "미니스톱"}},
	{"마트", []string{"이마트", "홈플러스", "롯데마트", "코스트코", "하나로마트"}},
	{"외식", []string{"맥도날드", "버거킹", "롯데리아", "KFC", "파파존스", "도미노", "피자헛", "교촌", "BBQ", "bhc", "굽네치킨"}},
	{"교통", []string{"지하철", "버스", "카카오T", "우티", "코레일", "KTX"}},
	{"주유", []string{"SK주유소", "GS칼텍스", "현대오일뱅크", "S-OIL", "오일뱅크"}},
	{"쇼핑", []string{"쿠팡", "11번가", "G마켓", "옥션", "무신사", "올리브영"}},
	{"의료", []string{"약국", "병원", "의원", "클리닉", "한의원", "치과", "안과"}},
	{"통신", []string{"SKT", "KT", "LGU+", "LG유플러스", "SK텔레콤"}},
}

var (
	bracketRe    = regexp.MustCompile(`\[.*?\]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Normalize strips SMS card prefixes like "[국민카드]", collapses
// whitespace and lowercases the rest.
func Normalize(description string) string {
	s := bracketRe.ReplaceAllString(description, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.ToLower(strings.TrimSpace(s))
}

// Suggest returns a category suggestion for the description, or false
// when neither the user's history nor the keyword rules match. History
// wins over keywords: the most frequent category among recent same-type
// transactions whose description contains the normalized input, ties
// broken by whichever category was seen first.
func Suggest(description, transactionType string, history []core.Transaction, categories []core.Category) (Result, bool) {
	if utf8.RuneCountInString(description) < 2 {
		return Result{}, false
	}

	normalized := Normalize(description)

	window := history
	if len(window) > historyWindow {
		window = window[:historyWindow]
	}

	freq := make(map[string]int)
	var order []string
	for _, tx := range window {
		if string(tx.Type) != transactionType || tx.CategoryID == nil {
			continue
		}
		if !strings.Contains(Normalize(tx.Description), normalized) {
			continue
		}
		id := *tx.CategoryID
		if _, seen := freq[id]; !seen {
			order = append(order, id)
		}
		freq[id]++
	}
	if len(order) > 0 {
		best := order[0]
		for _, id := range order[1:] {
			if freq[id] > freq[best] {
				best = id
			}
		}
		return Result{CategoryID: best, Method: MethodHistory}, true
	}

	var tokens []string
	for _, tok := range strings.Split(normalized, " ") {
		if utf8.RuneCountInString(tok) >= 2 {
			tokens = append(tokens, tok)
		}
	}

	for _, rule := range merchantKeywords {
		if !matchesRule(rule, tokens) {
			continue
		}
		for _, cat := range categories {
			if cat.Name == rule.category && string(cat.Type) == transactionType {
				return Result{CategoryID: cat.ID, Method: MethodKeyword}, true
			}
		}
	}

	return Result{}, false
}

// matchesRule checks tokens against keywords as bidirectional substrings,
// so "스타벅스커피" still hits the "스타벅스" keyword.
func matchesRule(rule keywordRule, tokens []string) bool {
	for _, kw := range rule.keywords {
		lower := strings.ToLower(kw)
		for _, token := range tokens {
			if strings.Contains(token, lower) || strings.Contains(lower, token) {
				return true
			}
		}
	}
	return false
}
