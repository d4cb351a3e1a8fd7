package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	starsRe     = regexp.MustCompile(lb + `([1-5])\s*(?:\*|★|звезд\p{L}*|stars?` + rb + `)`)
	starsWordRe = regexp.MustCompile(lb + `(пяти|четырех|трех|five|four|three)[\s-]*(?:звезд\p{L}*|star)`)
	starsNounRe = regexp.MustCompile(lb + `(пятерк\p{L}*|четверк\p{L}*|тройк\p{L}*)`)
)

var starWords = map[string]int{
	"пяти": 5, "five": 5,
	"четырех": 4, "four": 4,
	"трех": 3, "three": 3,
}

var starNouns = map[string]int{"пятерк": 5, "четверк": 4, "тройк": 3}

// Stars recognizes a minimum hotel category, 1 to 5.
func Stars(text string) (int, bool) {
	s := Normalize(text)
	if m := starsRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, true
	}
	if m := starsWordRe.FindStringSubmatch(s); m != nil {
		return starWords[m[1]], true
	}
	if m := starsNounRe.FindStringSubmatch(s); m != nil {
		for stem, n := range starNouns {
			if strings.HasPrefix(m[1], stem) {
				return n, true
			}
		}
	}
	return 0, false
}

// Party is the travelling group. Zero fields were not mentioned.
type Party struct {
	Adults   int
	Children int
}

var (
	adultsRe   = regexp.MustCompile(lb + `(\d{1,2})\s*(?:взросл\p{L}*|adults?|человек\p{L}*|чел\.?|persons?|people|pax)` + rb)
	childrenRe = regexp.MustCompile(lb + `(\d{1,2})\s*(?:дет\p{L}*|ребен\p{L}*|реб\.?|child\p{L}*|kids?)` + rb)
	coupleRe   = regexp.MustCompile(lb + `(?:вдвоем|на двоих|двое|вдвоем с|for two|two of us|couple)` + rb)
	threeRe    = regexp.MustCompile(lb + `(?:втроем|на троих|трое|for three)` + rb)
	oneChildRe = regexp.MustCompile(lb + `(?:с ребенком|ребенок|с малышом|with (?:a |my )?(?:child|kid|baby))` + rb)
	twoChildRe = regexp.MustCompile(lb + `(?:с двумя детьми|двое детей|with two (?:kids|children))` + rb)
)

// ParseParty recognizes adults and children counts.
func ParseParty(text string) (Party, bool) {
	s := Normalize(text)
	var p Party
	if m := adultsRe.FindStringSubmatch(s); m != nil {
		p.Adults, _ = strconv.Atoi(m[1])
	} else if coupleRe.MatchString(s) && !twoChildRe.MatchString(s) {
		p.Adults = 2
	} else if threeRe.MatchString(s) {
		p.Adults = 3
	}
	if m := childrenRe.FindStringSubmatch(s); m != nil {
		p.Children, _ = strconv.Atoi(m[1])
	} else if twoChildRe.MatchString(s) {
		p.Children = 2
	} else if oneChildRe.MatchString(s) {
		p.Children = 1
	}
	if p.Adults > 9 || p.Children > 6 {
		return Party{}, false
	}
	return p, p.Adults > 0 || p.Children > 0
}
