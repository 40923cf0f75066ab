package formula

import (
	"strconv"
	"strings"
)

// CriteriaOp is the comparison a Criteria applies.
type CriteriaOp int

const (
	CriteriaEq CriteriaOp = iota
	CriteriaNe
	CriteriaGt
	CriteriaGe
	CriteriaLt
	CriteriaLe
)

// Criteria is a parsed criteria string such as ">=10" or "ap*".
type Criteria struct {
	Op       CriteriaOp
	IsNumber bool
	Number   float64
	Text     string
}

// ParseCriteria parses a criteria argument. Numbers (and booleans) are
// equality tests; text may carry a leading operator.
func ParseCriteria(v CellValue) Criteria {
	v = v.resolve()
	if n, ok := ToNumber(v); ok {
		return Criteria{Op: CriteriaEq, IsNumber: true, Number: n}
	}
	if v.Kind == KindBool {
		return Criteria{Op: CriteriaEq, Text: ToText(v)}
	}
	return ParseCriteriaString(ToText(v))
}

// ParseCriteriaString parses the operator prefix then tries the rest as
// a number, falling back to text.
func ParseCriteriaString(s string) Criteria {
	c := Criteria{Op: CriteriaEq}
	rest := s
	switch {
	case strings.HasPrefix(s, ">="):
		c.Op, rest = CriteriaGe, s[2:]
	case strings.HasPrefix(s, "<="):
		c.Op, rest = CriteriaLe, s[2:]
	case strings.HasPrefix(s, "<>"):
		c.Op, rest = CriteriaNe, s[2:]
	case strings.HasPrefix(s, ">"):
		c.Op, rest = CriteriaGt, s[1:]
	case strings.HasPrefix(s, "<"):
		c.Op, rest = CriteriaLt, s[1:]
	case strings.HasPrefix(s, "="):
		c.Op, rest = CriteriaEq, s[1:]
	}
	if n, err := strconv.ParseFloat(strings.TrimSpace(rest), 64); err == nil {
		c.IsNumber = true
		c.Number = n
		return c
	}
	c.Text = rest
	return c
}

// Matches evaluates the criteria against a candidate value.
func (c Criteria) Matches(v CellValue) bool {
	v = v.resolve()
	if v.Kind == KindError {
		return false
	}
	if c.IsNumber {
		n, ok := ToNumber(v)
		if !ok && v.Kind == KindString {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64); err == nil {
				n, ok = f, true
			}
		}
		if !ok {
			return c.Op == CriteriaNe
		}
		return c.compare(cmpFloat(n, c.Number))
	}

	switch c.Op {
	case CriteriaEq, CriteriaNe:
		var eq bool
		if c.Text == "" {
			eq = IsBlank(v)
		} else if hasWildcard(c.Text) {
			eq = v.Kind != KindEmpty && WildcardMatch(strings.ToLower(c.Text), strings.ToLower(ToText(v)))
		} else {
			eq = strings.EqualFold(c.Text, ToText(v))
		}
		if c.Op == CriteriaEq {
			return eq
		}
		return !eq
	}

	// relational text operators only apply to text candidates
	if v.Kind != KindString {
		return false
	}
	return c.compare(strings.Compare(v.Str, c.Text))
}

func (c Criteria) compare(cmp int) bool {
	switch c.Op {
	case CriteriaEq:
		return cmp == 0
	case CriteriaNe:
		return cmp != 0
	case CriteriaGt:
		return cmp > 0
	case CriteriaGe:
		return cmp >= 0
	case CriteriaLt:
		return cmp < 0
	case CriteriaLe:
		return cmp <= 0
	}
	return false
}

func hasWildcard(s string) bool {
	return strings.ContainsAny(s, "*?")
}

type patternToken struct {
	ch   rune
	kind byte // 0 literal, '*' any run, '?' any single
}

func compilePattern(pattern string) []patternToken {
	runes := []rune(pattern)
	tokens := make([]patternToken, 0, len(runes))
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch {
		case ch == '~' && i+1 < len(runes) && (runes[i+1] == '*' || runes[i+1] == '?'):
			i++
			tokens = append(tokens, patternToken{ch: runes[i]})
		case ch == '*' || ch == '?':
			tokens = append(tokens, patternToken{kind: byte(ch)})
		default:
			tokens = append(tokens, patternToken{ch: ch})
		}
	}
	return tokens
}

// WildcardMatch matches text against a pattern where '*' matches any run
// of characters and '?' exactly one. "~*" and "~?" match the literal
// character. The match covers the whole text and is case-sensitive;
// callers fold case first when they need to.
func WildcardMatch(pattern, text string) bool {
	p := compilePattern(pattern)
	t := []rune(text)

	// dp[i][j]: first i pattern tokens match first j text runes
	dp := make([][]bool, len(p)+1)
	for i := range dp {
		dp[i] = make([]bool, len(t)+1)
	}
	dp[0][0] = true
	for i := 1; i <= len(p); i++ {
		tok := p[i-1]
		if tok.kind == '*' {
			dp[i][0] = dp[i-1][0]
		}
		for j := 1; j <= len(t); j++ {
			switch tok.kind {
			case '*':
				dp[i][j] = dp[i-1][j] || dp[i][j-1]
			case '?':
				dp[i][j] = dp[i-1][j-1]
			default:
				dp[i][j] = dp[i-1][j-1] && tok.ch == t[j-1]
			}
		}
	}
	return dp[len(p)][len(t)]
}
