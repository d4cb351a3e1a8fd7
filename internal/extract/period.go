package extract

import (
	"regexp"
	"strconv"
	"time"

	"github.com/shubhsaxena/tour-concierge/internal/models"
)

type monthPattern struct {
	month time.Month
	re    *regexp.Regexp
}

const yearTail = `(?:\s*'?\s*(\d{4}|\d{2})(?:\s*(г\.?|года?|год|y))?)?`

var monthPatterns = []monthPattern{
	{time.January, regexp.MustCompile(lb + `(январ\p{L}*|jan(?:uary)?)` + yearTail)},
	{time.February, regexp.MustCompile(lb + `(феврал\p{L}*|feb(?:ruary)?)` + yearTail)},
	{time.March, regexp.MustCompile(lb + `(март\p{L}*|march)` + yearTail)},
	{time.April, regexp.MustCompile(lb + `(апрел\p{L}*|apr(?:il)?)` + yearTail)},
	{time.May, regexp.MustCompile(lb + `(ма[йяе]|may)` + yearTail)},
	{time.June, regexp.MustCompile(lb + `(июн\p{L}*|june?)` + yearTail)},
	{time.July, regexp.MustCompile(lb + `(июл\p{L}*|july?)` + yearTail)},
	{time.August, regexp.MustCompile(lb + `(август\p{L}*|aug(?:ust)?)` + yearTail)},
	{time.September, regexp.MustCompile(lb + `(сентябр\p{L}*|sep(?:t(?:ember)?)?)` + yearTail)},
	{time.October, regexp.MustCompile(lb + `(октябр\p{L}*|oct(?:ober)?)` + yearTail)},
	{time.November, regexp.MustCompile(lb + `(ноябр\p{L}*|nov(?:ember)?)` + yearTail)},
	{time.December, regexp.MustCompile(lb + `(декабр\p{L}*|dec(?:ember)?)` + yearTail)},
}

var (
	wordEndRe = regexp.MustCompile(`^(?:[^\p{L}]|$)`)
	unitRe    = regexp.MustCompile(`^\s*(?:ноч|дн|день|сут|недел|звезд|\*|взросл|дет|человек|night|day|week|star|к|k|тыс|млн|\d)`)
)

type periodPattern struct {
	period models.Period
	re     *regexp.Regexp
}

// Relative tags before seasons; "через месяц-два" before "через месяц".
var symbolicPeriods = []periodPattern{
	{models.Period{Kind: models.PeriodRelative, Tag: models.PeriodInOneTwoMonth},
		regexp.MustCompile(lb + `(?:через\s*(?:1-2|1\s*-\s*2|один-два|месяц-два|месяц или два|пару месяцев|полтора месяца)|in\s*(?:1-2|one or two|a couple of)\s*months?)`)},
	{models.Period{Kind: models.PeriodRelative, Tag: models.PeriodNextMonth},
		regexp.MustCompile(lb + `(?:в\s*следующем\s*месяце|следующ\p{L}*\s*месяц\p{L}*|через\s*месяц|next\s*month|in\s*a\s*month)`)},
	{models.Period{Kind: models.PeriodRelative, Tag: models.PeriodThisMonth},
		regexp.MustCompile(lb + `(?:в\s*этом\s*месяце|этот\s*месяц|в\s*текущем\s*месяце|this\s*month|в\s*ближайшее\s*время|поскорее|asap)`)},
	{models.Period{Kind: models.PeriodSeason, Tag: models.PeriodSummer},
		regexp.MustCompile(lb + `(?:лет(?:о|ом|а|у)|summer)` + rb)},
	{models.Period{Kind: models.PeriodSeason, Tag: models.PeriodAutumn},
		regexp.MustCompile(lb + `(?:осен\p{L}*|autumn|fall)` + rb)},
	{models.Period{Kind: models.PeriodSeason, Tag: models.PeriodWinter},
		regexp.MustCompile(lb + `(?:зим\p{L}*|winter)` + rb)},
	{models.Period{Kind: models.PeriodSeason, Tag: models.PeriodSpring},
		regexp.MustCompile(lb + `(?:весн\p{L}*|spring)` + rb)},
}

// Period recognizes a named calendar month (with an optional attached year)
// or a symbolic period. defaultYear applies when no year is stated; the
// resulting window is rolled forward by models.Period.Window if it already
// ended.
func Period(text string, defaultYear int) (models.Period, bool) {
	return periodIn(Normalize(text), defaultYear)
}

func periodIn(s string, defaultYear int) (models.Period, bool) {
	bestAt := -1
	var best models.Period
	for _, p := range monthPatterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(s, -1) {
			// RE2 has no lookahead: the stem must end the word.
			if !wordEndRe.MatchString(s[m[3]:]) {
				continue
			}
			year, explicit := defaultYear, false
			if m[4] >= 0 {
				if y, ok := parseYear(s, m); ok {
					year, explicit = y, true
				}
			}
			if s[m[2]:m[3]] == "may" && !explicit && !mayIsMonth(s[:m[2]], s[m[3]:]) {
				continue
			}
			if bestAt < 0 || m[2] < bestAt {
				bestAt = m[2]
				best = models.MonthPeriod(year, p.month, explicit)
			}
			break
		}
	}
	if bestAt >= 0 {
		return best, true
	}

	for _, p := range symbolicPeriods {
		if p.re.MatchString(s) {
			out := p.period
			if out.Kind == models.PeriodSeason {
				out.Year = defaultYear
			}
			return out, true
		}
	}
	return models.Period{}, false
}

var (
	mayBeforeRe = regexp.MustCompile(`(?:^|[^\p{L}])(?:in|during|for|early|late|mid|until|till|by|since|from|of)\s*-?\s*$|\d{1,2}(?:st|nd|rd|th)?\s*$`)
	mayDayRe    = regexp.MustCompile(`^\s*(\d{1,2})(?:st|nd|rd|th)?`)
	ordinalRe   = regexp.MustCompile(`^(?:st|nd|rd|th)(?:[^\p{L}]|$)`)
)

// mayIsMonth separates the month from the English verb: it needs a
// preposition or a day number next to it.
func mayIsMonth(before, after string) bool {
	if mayBeforeRe.MatchString(before) {
		return true
	}
	if m := mayDayRe.FindStringSubmatchIndex(after); m != nil {
		return !unitRe.MatchString(after[m[1]:])
	}
	return false
}

// parseYear validates the optional year group. Two-digit years followed by
// a unit ("в июле 10 ночей") are counts and "may 15th" is a day, not a year.
func parseYear(s string, m []int) (int, bool) {
	digits := s[m[4]:m[5]]
	rest := s[m[5]:]
	hasSuffix := m[6] >= 0
	if !hasSuffix && (unitRe.MatchString(rest) || ordinalRe.MatchString(rest)) {
		return 0, false
	}
	y, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	if len(digits) == 2 {
		y += 2000
	}
	if y < 2000 || y > 2099 {
		return 0, false
	}
	return y, true
}
