package extract

import (
	"regexp"

	"github.com/shubhsaxena/tour-concierge/internal/models"
)

type countryPattern struct {
	id int
	re *regexp.Regexp
}

var supportedPatterns = []countryPattern{
	{4, regexp.MustCompile(lb + `(?:турци|турецк|турц|turkey|turkiye|türkiye|анталь|antalya|алань|alanya|кемер|kemer)`)},
	{1, regexp.MustCompile(lb + `(?:египе?т|egypt|хургад|hurghada|шарм|sharm)`)},
	{9, regexp.MustCompile(lb + `(?:оаэ|эмират|дуба[йие]|dubai|uae|абу-?даби|abu dhabi|emirates)`)},
	{2, regexp.MustCompile(lb + `(?:таиланд|тайланд|thailand|пхукет|phuket|паттай|pattaya|тайк[аиуе]` + rb + `)`)},
	{8, regexp.MustCompile(lb + `(?:мальдив|maldiv)`)},
	{16, regexp.MustCompile(lb + `(?:вьетнам|vietnam|viet nam|нячанг|nha trang|фукуок|phu quoc)`)},
}

// Country returns the earliest mentioned supported destination.
func Country(text string) (models.Country, bool) {
	return countryIn(Normalize(text))
}

func countryIn(s string) (models.Country, bool) {
	bestID, bestAt := 0, -1
	for _, p := range supportedPatterns {
		loc := p.re.FindStringIndex(s)
		if loc == nil {
			continue
		}
		if bestAt < 0 || loc[0] < bestAt {
			bestID, bestAt = p.id, loc[0]
		}
	}
	if bestAt < 0 {
		return models.Country{}, false
	}
	return models.CountryByID(bestID)
}

type unsupportedPattern struct {
	label string
	re    *regexp.Regexp
}

var unsupportedPatterns = []unsupportedPattern{
	{"Испания", regexp.MustCompile(lb + `(?:испани|spain|барселон|barcelona|тенериф)`)},
	{"Италия", regexp.MustCompile(lb + `(?:итали|italy|рим` + rb + `|римини)`)},
	{"Греция", regexp.MustCompile(lb + `(?:греци|greece|крит` + rb + `|crete|родос)`)},
	{"Кипр", regexp.MustCompile(lb + `(?:кипр|cyprus)`)},
	{"Тунис", regexp.MustCompile(lb + `(?:тунис|tunisia)`)},
	{"Грузия", regexp.MustCompile(lb + `(?:грузи[яюие]|georgia|батуми|batumi)`)},
	{"Абхазия", regexp.MustCompile(lb + `(?:абхази|abkhazia)`)},
	{"Черногория", regexp.MustCompile(lb + `(?:черногори|montenegro)`)},
	{"Болгария", regexp.MustCompile(lb + `(?:болгари|bulgaria)`)},
	{"Франция", regexp.MustCompile(lb + `(?:франци|france|париж|paris)`)},
	{"Куба", regexp.MustCompile(lb + `(?:куб(?:а|у|е|ой)` + rb + `|cuba)`)},
	{"Доминикана", regexp.MustCompile(lb + `(?:доминикан|dominican|пунта-?кана|punta cana)`)},
	{"Китай", regexp.MustCompile(lb + `(?:кита(?:й|я|е|ю)` + rb + `|china|хайнань|hainan)`)},
	{"Индия", regexp.MustCompile(lb + `(?:инди(?:я|ю|и|ей)` + rb + `|india|гоа` + rb + `|goa)`)},
	{"Шри-Ланка", regexp.MustCompile(lb + `(?:шри-? ?ланк|sri lanka)`)},
	{"Индонезия", regexp.MustCompile(lb + `(?:индонези|indonesia|бали` + rb + `|bali)`)},
	{"Мексика", regexp.MustCompile(lb + `(?:мексик|mexico|канкун|cancun)`)},
	{"Россия", regexp.MustCompile(lb + `(?:росси[яию]|russia|сочи|sochi|крым|crimea)`)},
}

// UnsupportedCountry reports a recognized destination outside the supported
// set, returning its display label.
func UnsupportedCountry(text string) (string, bool) {
	s := Normalize(text)
	label, at := "", -1
	for _, p := range unsupportedPatterns {
		loc := p.re.FindStringIndex(s)
		if loc == nil {
			continue
		}
		if at < 0 || loc[0] < at {
			label, at = p.label, loc[0]
		}
	}
	return label, at >= 0
}

// UnsupportedLabels lists every destination label UnsupportedCountry can emit.
func UnsupportedLabels() []string {
	out := make([]string, 0, len(unsupportedPatterns))
	for _, p := range unsupportedPatterns {
		out = append(out, p.label)
	}
	return out
}
