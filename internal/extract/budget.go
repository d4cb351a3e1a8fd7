package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shubhsaxena/tour-concierge/internal/models"
)

type BudgetForm int

const (
	BudgetFormBare BudgetForm = iota
	BudgetFormRange
	BudgetFormMax
	BudgetFormApprox
	BudgetFormAny
)

func (f BudgetForm) String() string {
	switch f {
	case BudgetFormRange:
		return "range"
	case BudgetFormMax:
		return "max"
	case BudgetFormApprox:
		return "approx"
	case BudgetFormAny:
		return "any"
	default:
		return "bare"
	}
}

// BudgetMatch is a recognized budget together with the grammar form it was
// written in. Amount is the single stated number for bare, max and approx
// forms. ForCue is set when a bare amount was introduced by "за"/"for".
type BudgetMatch struct {
	Budget models.Budget
	Form   BudgetForm
	Amount int
	ForCue bool
}

// Explicit reports whether the phrasing leaves no doubt about the kind of
// budget meant.
func (m BudgetMatch) Explicit() bool {
	return m.Form != BudgetFormBare
}

// amount is one number literal found in normalized text. Offsets are bytes;
// end covers the multiplier when present.
type amount struct {
	start, end int
	raw        float64
	intDigits  int
	mult       int
	attached   bool
}

func (a amount) value() int {
	m := a.mult
	if m == 0 {
		m = 1
	}
	return int(math.Round(a.raw * float64(m)))
}

func (a amount) isMoney() bool {
	if a.mult > 1 {
		return a.value() >= 1000
	}
	return !a.attached && a.intDigits >= 5 && a.intDigits <= 7
}

var multipliers = []struct {
	word    string
	factor  int
	swallow bool
}{
	{"тысяч", 1000, true},
	{"тыс.", 1000, false},
	{"тыс", 1000, false},
	{"т.р.", 1000, false},
	{"т.р", 1000, false},
	{"тр.", 1000, false},
	{"тр", 1000, false},
	{"млн", 1000000, false},
	{"mln", 1000000, false},
	{"к", 1000, false},
	{"k", 1000, false},
}

var currencyPrefixes = []string{"₽", "руб", "р", "rub", "rur", "$", "usd"}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func letterAt(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return unicode.IsLetter(r)
}

func letterBefore(s string, i int) bool {
	if i == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return unicode.IsLetter(r)
}

// scanAmounts finds number literals with the thousand-suffix grammar:
// digit groups ("120 000", "120.000"), decimals ("1,5") and multipliers
// ("к", "k", "тыс", "т.р.", "тр", "млн").
func scanAmounts(s string) []amount {
	var out []amount
	for i := 0; i < len(s); {
		if !isDigit(s[i]) || (i > 0 && isDigit(s[i-1])) || letterBefore(s, i) {
			i++
			continue
		}
		j := i
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		intPart := s[i:j]
		if j-i <= 3 {
			for j+4 <= len(s) && (s[j] == ' ' || s[j] == '.' || s[j] == ',') &&
				isDigit(s[j+1]) && isDigit(s[j+2]) && isDigit(s[j+3]) &&
				(j+4 == len(s) || !isDigit(s[j+4])) {
				intPart += s[j+1 : j+4]
				j += 4
			}
		}
		num := intPart
		if j+1 < len(s) && (s[j] == '.' || s[j] == ',') && isDigit(s[j+1]) {
			k := j + 1
			for k < len(s) && isDigit(s[k]) {
				k++
			}
			if k-j-1 <= 2 {
				num += "." + s[j+1:k]
				j = k
			}
		}
		raw, err := strconv.ParseFloat(num, 64)
		if err != nil {
			i = j
			continue
		}
		a := amount{start: i, end: j, raw: raw, intDigits: len(intPart), mult: 1}

		k := j
		if k < len(s) && s[k] == ' ' {
			k++
		}
		rest := s[k:]
		matched := false
		for _, m := range multipliers {
			if !strings.HasPrefix(rest, m.word) {
				continue
			}
			end := k + len(m.word)
			if m.swallow {
				for end < len(s) && letterAt(s, end) {
					_, size := utf8.DecodeRuneInString(s[end:])
					end += size
				}
			} else if letterAt(s, end) {
				continue
			}
			a.mult = m.factor
			a.end = end
			matched = true
			break
		}
		if !matched && letterAt(s, j) {
			a.attached = true
			for _, c := range currencyPrefixes {
				if strings.HasPrefix(s[j:], c) {
					a.attached = false
					break
				}
			}
		}
		out = append(out, a)
		i = a.end
	}
	return out
}

var (
	currencyRe     = regexp.MustCompile(`(?:₽|руб\p{L}*\.?|р\.|rub|rur|\$|usd|долл\p{L}*)`)
	rangeOpenerRe  = regexp.MustCompile(`(?:^|[^\p{L}])(?:от|from|между|between|с)\s*$`)
	maxPrefixRe    = regexp.MustCompile(`(?:^|[^\p{L}])(?:до|не дороже|не более|не больше|не выше|максимум|макс|в пределах|дешевле|меньше|up to|under|max|maximum|below|less than|no more than|within|cheaper than)\s*$`)
	maxSuffixRe    = regexp.MustCompile(`^\s*(?:максимум|макс|max|maximum|потолок|предел|at most|tops)` + rb)
	approxPrefixRe = regexp.MustCompile(`(?:(?:^|[^\p{L}])(?:около|примерно|приблизительно|в районе|порядка|где-то|где то|about|around|approximately|approx|roughly|circa)|~)\s*$`)
	approxSuffixRe = regexp.MustCompile(`^\s*(?:плюс-минус|плюс минус|\+-|\+/-|±|или около того|примерно|or so|give or take|-ish|ish)`)
	forPrefixRe    = regexp.MustCompile(`(?:^|[^\p{L}])(?:за|for)\s*$`)
	unitAfterRe    = regexp.MustCompile(`^\s*(?:ноч|дн|день|сут|недел|месяц|звезд|\*|взросл|дет|реб|человек|night|day|week|month|star|adult|kid|child)`)
	noLimitRe      = regexp.MustCompile(`(?:бюджет\s*(?:не важен|неважен|любой|не ограничен)|любой бюджет|без ограничени\p{L}*|без лимит\p{L}*|не ограничен\p{L}*|деньги не важны|цена не важна|не важно сколько|неважно сколько|сколько угодно|no limit|no budget|any budget|budget doesn'?t matter|unlimited)`)
)

func stripCurrency(s string) string {
	return strings.TrimSpace(currencyRe.ReplaceAllString(s, " "))
}

// Budget recognizes a budget expression. Priority: range, then max, then
// approx, then a bare amount, then an explicit "no limit" phrase.
func Budget(text string) (BudgetMatch, error) {
	return budgetIn(Normalize(text), false)
}

// BudgetAnswer is Budget for a reply to an explicit budget prompt, where a
// small plain number ("150") means thousands.
func BudgetAnswer(text string) (BudgetMatch, error) {
	return budgetIn(Normalize(text), true)
}

func budgetIn(s string, smallAsThousands bool) (BudgetMatch, error) {
	amounts := scanAmounts(s)
	if smallAsThousands {
		for i, a := range amounts {
			if a.mult == 1 && !a.attached && a.raw >= 10 && a.raw < 1000 && !unitAfterRe.MatchString(s[a.end:]) {
				amounts[i].mult = 1000
			}
		}
	}

	if m, ok := rangeBudget(s, amounts); ok {
		return m, nil
	}

	for _, a := range amounts {
		prefix := stripCurrency(s[:a.start])
		if !maxPrefixRe.MatchString(prefix) && !maxSuffixRe.MatchString(stripCurrencyHead(s[a.end:])) {
			continue
		}
		if !a.isMoney() {
			if a.mult > 1 {
				return BudgetMatch{}, ErrOutOfRange
			}
			continue
		}
		v := a.value()
		return BudgetMatch{Budget: models.NewMaxBudget(v), Form: BudgetFormMax, Amount: v}, nil
	}

	for _, a := range amounts {
		if !a.isMoney() {
			continue
		}
		prefix := stripCurrency(s[:a.start])
		if approxPrefixRe.MatchString(prefix) || approxSuffixRe.MatchString(stripCurrencyHead(s[a.end:])) {
			v := a.value()
			return BudgetMatch{Budget: models.NewApproxBudget(v), Form: BudgetFormApprox, Amount: v}, nil
		}
	}

	for _, a := range amounts {
		if !a.isMoney() {
			continue
		}
		v := a.value()
		return BudgetMatch{
			Budget: models.NewApproxBudget(v),
			Form:   BudgetFormBare,
			Amount: v,
			ForCue: forPrefixRe.MatchString(stripCurrency(s[:a.start])),
		}, nil
	}

	if noLimitRe.MatchString(s) {
		return BudgetMatch{Budget: models.NewAnyBudget(), Form: BudgetFormAny}, nil
	}
	return BudgetMatch{}, ErrNoMatch
}

func stripCurrencyHead(s string) string {
	s = strings.TrimLeft(s, " ")
	if loc := currencyRe.FindStringIndex(s); loc != nil && loc[0] == 0 {
		s = s[loc[1]:]
	}
	return s
}

func rangeBudget(s string, amounts []amount) (BudgetMatch, bool) {
	for i := 0; i+1 < len(amounts); i++ {
		a, b := amounts[i], amounts[i+1]
		sep := stripCurrency(s[a.end:b.start])
		switch sep {
		case "-", "--":
		case "до", "to", "и", "and", "по":
			if !rangeOpenerRe.MatchString(stripCurrency(s[:a.start])) {
				continue
			}
		default:
			continue
		}
		if a.mult != b.mult {
			if a.mult == 1 && a.raw < 1000 {
				a.mult = b.mult
			} else if b.mult == 1 && b.raw < 1000 {
				b.mult = a.mult
			}
		}
		if !a.isMoney() || !b.isMoney() {
			continue
		}
		lo, hi := a.value(), b.value()
		return BudgetMatch{Budget: models.NewRangeBudget(lo, hi), Form: BudgetFormRange}, true
	}
	return BudgetMatch{}, false
}

// NoBudgetLimit reports an explicit "budget does not matter" phrase.
func NoBudgetLimit(text string) bool {
	return noLimitRe.MatchString(Normalize(text))
}
