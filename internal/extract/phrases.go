package extract

import (
	"regexp"
	"strings"

	"github.com/shubhsaxena/tour-concierge/internal/models"
)

var commandPhrases = map[string]models.Command{
	"еще":                  models.CommandShowMore,
	"показать еще":         models.CommandShowMore,
	"покажи еще":           models.CommandShowMore,
	"еще варианты":         models.CommandShowMore,
	"больше вариантов":     models.CommandShowMore,
	"дальше":               models.CommandShowMore,
	"следующие":            models.CommandShowMore,
	"show more":            models.CommandShowMore,
	"more":                 models.CommandShowMore,
	"next":                 models.CommandShowMore,
	"изменить фильтры":     models.CommandEditFilters,
	"изменить параметры":   models.CommandEditFilters,
	"поменять параметры":   models.CommandEditFilters,
	"поменять фильтры":     models.CommandEditFilters,
	"редактировать":        models.CommandEditFilters,
	"фильтры":              models.CommandEditFilters,
	"edit":                 models.CommandEditFilters,
	"edit filters":         models.CommandEditFilters,
	"change filters":       models.CommandEditFilters,
	"новый поиск":          models.CommandNewSearch,
	"начать заново":        models.CommandNewSearch,
	"заново":               models.CommandNewSearch,
	"сначала":              models.CommandNewSearch,
	"new":                  models.CommandNewSearch,
	"new search":           models.CommandNewSearch,
	"start over":           models.CommandNewSearch,
	"restart":              models.CommandNewSearch,
	"reset":                models.CommandNewSearch,
	"сброс":                models.CommandNewSearch,
	"отмена":               models.CommandCancel,
	"отменить":             models.CommandCancel,
	"стоп":                 models.CommandCancel,
	"хватит":               models.CommandCancel,
	"cancel":               models.CommandCancel,
	"stop":                 models.CommandCancel,
	"начать поиск":         models.CommandStartSearch,
	"найти тур":            models.CommandStartSearch,
	"подобрать тур":        models.CommandStartSearch,
	"подбери тур":          models.CommandStartSearch,
	"хочу тур":             models.CommandStartSearch,
	"поиск":                models.CommandStartSearch,
	"search":               models.CommandStartSearch,
	"start search":         models.CommandStartSearch,
	"find a tour":          models.CommandStartSearch,
	"избранное":            models.CommandFavorites,
	"мое избранное":        models.CommandFavorites,
	"показать избранное":   models.CommandFavorites,
	"favorites":            models.CommandFavorites,
	"favourites":           models.CommandFavorites,
	"очистить избранное":   models.CommandClearFavorites,
	"удалить избранное":    models.CommandClearFavorites,
	"clear favorites":      models.CommandClearFavorites,
	"помощь":               models.CommandHelp,
	"help":                 models.CommandHelp,
	"start":                models.CommandHelp,
	"menu":                 models.CommandHelp,
	"меню":                 models.CommandHelp,
}

// Command matches a fixed control phrase. Matching is near-exact: the whole
// message must be the phrase, ignoring punctuation, case and "please".
func Command(text string) (models.Command, bool) {
	cmd, ok := commandPhrases[phraseKey(text)]
	return cmd, ok
}

var resetRe = regexp.MustCompile(lb + `(?:новый поиск|начать заново|начнем заново|давай заново|с нуля|отмена|отменить|отмени|стоп|new search|start over|cancel)` + rb)

// IsReset reports a reset or cancel phrase anywhere in the message. Resets
// take priority over every other reading of a message.
func IsReset(text string) bool {
	if cmd, ok := Command(text); ok && cmd.IsReset() {
		return true
	}
	return resetRe.MatchString(Normalize(text))
}

var smalltalkWords = map[string]bool{
	"привет": true, "приветик": true, "здравствуйте": true, "здравствуй": true,
	"здрасте": true, "добрый": true, "день": true, "вечер": true, "утро": true,
	"доброе": true, "hi": true, "hello": true, "hey": true, "хай": true,
	"спасибо": true, "спс": true, "благодарю": true, "большое": true,
	"thanks": true, "thank": true, "you": true, "thx": true,
	"ок": true, "окей": true, "ok": true, "okay": true, "хорошо": true,
	"понятно": true, "ясно": true, "отлично": true, "супер": true, "класс": true,
	"ладно": true, "good": true, "great": true, "cool": true, "nice": true,
	"круто": true, "пон": true, "угу": true, "ага": true,
}

// Smalltalk reports greetings, thanks and acknowledgements: every word of the
// message must belong to the smalltalk vocabulary.
func Smalltalk(text string) bool {
	key := phraseKey(text)
	if key == "" {
		return false
	}
	for _, w := range strings.Fields(key) {
		if !smalltalkWords[w] {
			return false
		}
	}
	return true
}

var metaRe = regexp.MustCompile(lb + `(?:кто ты|ты кто|ты бот|ты робот|что ты умеешь|что умеешь|как ты работаешь|как это работает|как дела|как пользоваться|чем ты можешь помочь|who are you|are you a bot|are you human|what can you do|how does this work|how are you)` + rb)

// Meta reports questions about the assistant itself.
func Meta(text string) bool {
	return metaRe.MatchString(Normalize(text))
}

var (
	yesWords = map[string]bool{"да": true, "ага": true, "угу": true, "конечно": true, "верно": true, "точно": true, "yes": true, "yep": true, "yeah": true, "sure": true, "давай": true}
	noWords  = map[string]bool{"нет": true, "неа": true, "no": true, "nope": true}
)

// YesNo reads a short confirmation. ok is false for anything else.
func YesNo(text string) (yes bool, ok bool) {
	words := strings.Fields(phraseKey(text))
	if len(words) == 0 || len(words) > 3 {
		return false, false
	}
	if yesWords[words[0]] {
		return true, true
	}
	if noWords[words[0]] {
		return false, true
	}
	return false, false
}

var questionCueRe = regexp.MustCompile(`(?:^|[^\p{L}])(?:а если|а за|а что если|может|можно|а как насчет|what about|how about|what if|can i)` + rb)

// HasQuestionCue reports question-like phrasing: a question mark or a
// tentative opener.
func HasQuestionCue(text string) bool {
	s := Normalize(text)
	return strings.Contains(s, "?") || questionCueRe.MatchString(s)
}

var (
	cheaperRe = regexp.MustCompile(lb + `(?:(?:по)?дешевле|сначала дешев\p{L}*|cheaper|less expensive)` + `(\s*\d)?`)
	pricierRe = regexp.MustCompile(lb + `(?:(?:по)?дороже|сначала дорог\p{L}*|more expensive|pricier)` + `(\s*\d)?`)
	negatedRe = regexp.MustCompile(`(?:^|[^\p{L}])не\s*$`)
)

// Sort recognizes a bare comparative price cue. A comparative followed by an
// amount ("дешевле 100к") or negated ("не дороже") is a budget, not a sort.
func Sort(text string) (models.SortOrder, bool) {
	s := Normalize(text)
	if sortCue(s, cheaperRe) {
		return models.SortPriceAsc, true
	}
	if sortCue(s, pricierRe) {
		return models.SortPriceDesc, true
	}
	return "", false
}

func sortCue(s string, re *regexp.Regexp) bool {
	for _, m := range re.FindAllStringSubmatchIndex(s, -1) {
		if m[2] >= 0 {
			continue
		}
		if negatedRe.MatchString(s[:m[0]+1]) {
			continue
		}
		return true
	}
	return false
}
