package extract

import (
	"regexp"

	"github.com/shubhsaxena/tour-concierge/internal/models"
)

type mealPattern struct {
	meal models.Meal
	re   *regexp.Regexp
}

// Checked in order. Ultra must precede all-inclusive and half board must
// precede breakfast, since their phrasings contain the later ones.
var mealPatterns = []mealPattern{
	{models.MealUAI, regexp.MustCompile(lb + `(?:ультра\s*(?:все\s*включено|олл\s*инклюзив|инклюзив)?|ultra\s*(?:all[\s-]*inclusive)?|uai)` + rb)},
	{models.MealAI, regexp.MustCompile(lb + `(?:все\s*включено|все\s*включ\p{L}*|олл?\s*инклюзив\p{L}*|инклюзив\p{L}*|all[\s-]*inclusive|ai)` + rb)},
	{models.MealFB, regexp.MustCompile(lb + `(?:полный\s*пансион|полн\p{L}*\s*пансион\p{L}*|трехразов\p{L}*|full\s*board|fb)` + rb)},
	{models.MealHB, regexp.MustCompile(lb + `(?:полупансион\p{L}*|завтрак\p{L}*\s*(?:и|\+)\s*ужин\p{L}*|двухразов\p{L}*|half\s*board|hb)` + rb)},
	{models.MealRO, regexp.MustCompile(lb + `(?:без\s*питания|без\s*еды|room\s*only|no\s*meals?|ro|ob)` + rb)},
	{models.MealBB, regexp.MustCompile(lb + `(?:завтрак\p{L}*|breakfasts?|bed\s*(?:and|&)\s*breakfast|bb)` + rb)},
	{models.MealAny, regexp.MustCompile(lb + `(?:любое\s*питание|питание\s*(?:любое|не\s*важно|неважно)|any\s*meals?|meals?\s*(?:doesn'?t|does not)\s*matter)` + rb)},
}

// Meal recognizes a meal plan code.
func Meal(text string) (models.Meal, bool) {
	return mealIn(Normalize(text))
}

func mealIn(s string) (models.Meal, bool) {
	for _, p := range mealPatterns {
		if p.re.MatchString(s) {
			return p.meal, true
		}
	}
	return "", false
}
