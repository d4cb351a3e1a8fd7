package extract

import (
	"errors"
	"regexp"
	"strconv"

	"github.com/shubhsaxena/tour-concierge/internal/models"
)

const nightUnit = `(?:ноч\p{L}*|ночь|дн(?:ей|я|и)?|день|сут\p{L}*|nights?|days?)`

var (
	nightsRangeRe = regexp.MustCompile(lb + `(?:от\s*|from\s*)?(\d{1,3})\s*(?:-|до|to)\s*(\d{1,3})\s*` + nightUnit + rb)
	nightsRe      = regexp.MustCompile(lb + `(\d{1,3})(?:-?(?:ми|х))?\s*-?\s*` + nightUnit + rb)
	nightsShortRe = regexp.MustCompile(lb + `(\d{1,3})(?:д|н|n|d)` + rb)
	nightsWordRe  = regexp.MustCompile(lb + `(одн[уа]|один|две|два|три|четыре|пять|шесть|семь|восемь|девять|десять|одиннадцать|двенадцать|тринадцать|четырнадцать|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|thirteen|fourteen)\s+` + nightUnit + rb)
)

var numberWords = map[string]int{
	"одну": 1, "одна": 1, "один": 1, "две": 2, "два": 2, "три": 3, "четыре": 4,
	"пять": 5, "шесть": 6, "семь": 7, "восемь": 8, "девять": 9, "десять": 10,
	"одиннадцать": 11, "двенадцать": 12, "тринадцать": 13, "четырнадцать": 14,
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7,
	"eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13,
	"fourteen": 14,
}

type nightsIdiom struct {
	re     *regexp.Regexp
	nights int
}

// Longer idioms first: "две недели" must win over "неделя".
var nightsIdioms = []nightsIdiom{
	{regexp.MustCompile(lb + `(?:три|3)\s*недел\p{L}*|three weeks|3 weeks`), 21},
	{regexp.MustCompile(lb + `(?:две|2)\s*недел\p{L}*|two weeks|2 weeks|fortnight`), 14},
	{regexp.MustCompile(lb + `полторы недел\p{L}*`), 10},
	{regexp.MustCompile(lb + `(?:на\s+)?(?:недел[юяи]|недельк\p{L}*)` + rb + `|` + lb + `(?:a|one|1)\s*week` + rb), 7},
	{regexp.MustCompile(lb + `(?:на\s+)?выходн\p{L}*|` + lb + `weekend`), 3},
}

// Nights recognizes a night count or range. A recognized value outside
// [models.MinNights, models.MaxNights] yields ErrOutOfRange.
func Nights(text string) (models.NightRange, error) {
	return nightsIn(Normalize(text))
}

func nightsIn(s string) (models.NightRange, error) {
	if m := nightsRangeRe.FindStringSubmatch(s); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		if a > b {
			a, b = b, a
		}
		return checkNights(models.NightRange{Min: a, Max: b})
	}
	if m := nightsRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return checkNights(models.ExactNights(n))
	}
	if m := nightsWordRe.FindStringSubmatch(s); m != nil {
		return checkNights(models.ExactNights(numberWords[m[1]]))
	}
	for _, idiom := range nightsIdioms {
		if idiom.re.MatchString(s) {
			return models.ExactNights(idiom.nights), nil
		}
	}
	if m := nightsShortRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return checkNights(models.ExactNights(n))
	}
	return models.NightRange{}, ErrNoMatch
}

func checkNights(r models.NightRange) (models.NightRange, error) {
	if !r.Valid() {
		return r, ErrOutOfRange
	}
	return r, nil
}

// BareNights accepts a lone number as a night count. Only meaningful as an
// answer to an explicit nights prompt.
func BareNights(text string) (models.NightRange, error) {
	s := Normalize(text)
	if r, err := nightsIn(s); !errors.Is(err, ErrNoMatch) {
		return r, err
	}
	m := bareRangeRe.FindStringSubmatch(s)
	if m == nil {
		return models.NightRange{}, ErrNoMatch
	}
	a, _ := strconv.Atoi(m[1])
	if m[2] == "" {
		return checkNights(models.ExactNights(a))
	}
	b, _ := strconv.Atoi(m[2])
	if a > b {
		a, b = b, a
	}
	return checkNights(models.NightRange{Min: a, Max: b})
}

var bareRangeRe = regexp.MustCompile(`^(?:на\s+|for\s+)?(\d{1,3})(?:\s*(?:-|до|to)\s*(\d{1,3}))?$`)
