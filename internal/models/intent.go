package models

type IntentKind int

const (
	IntentUnknown IntentKind = iota
	IntentSearchTours
	IntentMeta
	IntentSmalltalk
	IntentUnsupportedCountry
	IntentCommand
)

func (k IntentKind) String() string {
	switch k {
	case IntentSearchTours:
		return "search_tours"
	case IntentMeta:
		return "meta"
	case IntentSmalltalk:
		return "smalltalk"
	case IntentUnsupportedCountry:
		return "unsupported_country"
	case IntentCommand:
		return "command"
	default:
		return "unknown"
	}
}

func ParseIntentKind(s string) (IntentKind, bool) {
	for k := IntentUnknown; k <= IntentCommand; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return IntentUnknown, false
}

type Command string

const (
	CommandShowMore       Command = "show_more"
	CommandEditFilters    Command = "edit_filters"
	CommandNewSearch      Command = "new_search"
	CommandCancel         Command = "cancel"
	CommandStartSearch    Command = "start_search"
	CommandFavorites      Command = "favorites"
	CommandClearFavorites Command = "clear_favorites"
	CommandHelp           Command = "help"
)

// IsReset reports whether the command clears search state.
func (c Command) IsReset() bool {
	return c == CommandNewSearch || c == CommandCancel
}

// MaxClarifyingQuestions bounds the follow-ups attached to an unknown intent.
const MaxClarifyingQuestions = 3

// Intent is the tagged union produced by classification. Only the fields
// belonging to Kind are meaningful.
type Intent struct {
	Kind                IntentKind   `json:"kind"`
	Draft               *SearchDraft `json:"draft,omitempty"`
	Label               string       `json:"label,omitempty"`
	Command             Command      `json:"command,omitempty"`
	Reason              string       `json:"reason,omitempty"`
	ClarifyingQuestions []string     `json:"clarifying_questions,omitempty"`
	Source              string       `json:"source,omitempty"`
}
