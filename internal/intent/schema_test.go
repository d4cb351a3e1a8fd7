package intent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shubhsaxena/tour-concierge/internal/config"
	"github.com/shubhsaxena/tour-concierge/internal/models"
)

func TestParseModelOutput_Search(t *testing.T) {
	raw := `{"intent":"search_tours","country":"Турция","nights_min":7,"nights_max":10,
		"budget":{"type":"approx","target":120000},"meal":"ai","month":"2026-07","rating":4,"adults":2,"children":1}`

	in, err := ParseModelOutput(raw, 2025)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := in.Draft
	if in.Kind != models.IntentSearchTours || d == nil {
		t.Fatalf("got %+v", in)
	}
	if d.CountryID != 4 || *d.Nights != (models.NightRange{Min: 7, Max: 10}) {
		t.Errorf("draft = %+v", d)
	}
	if *d.Budget != models.NewApproxBudget(120000) {
		t.Errorf("budget = %+v", d.Budget)
	}
	if d.Meal != models.MealAI || d.Rating != 4 || d.Adults != 2 || d.Children != 1 {
		t.Errorf("optional slots = %+v", d)
	}
	if d.Period.Kind != models.PeriodMonth || d.Period.Year != 2026 || !d.Period.YearExplicit {
		t.Errorf("period = %+v", d.Period)
	}
}

func TestParseModelOutput_SymbolicPeriodAndAnyMeal(t *testing.T) {
	in, err := ParseModelOutput(`{"intent":"search_tours","country":"Egypt","period":"winter","meal":"any","budget":{"type":"any"}}`, 2025)
	if err != nil {
		t.Fatal(err)
	}
	if in.Draft.Period.Tag != models.PeriodWinter || in.Draft.Period.Year != 2025 {
		t.Errorf("period = %+v", in.Draft.Period)
	}
	if in.Draft.Meal != models.MealAny || in.Draft.Budget.Kind != models.BudgetAny {
		t.Errorf("draft = %+v", in.Draft)
	}
}

func TestParseModelOutput_OtherKinds(t *testing.T) {
	tests := []struct {
		raw      string
		wantKind models.IntentKind
		check    func(models.Intent) bool
	}{
		{`{"intent":"meta"}`, models.IntentMeta, nil},
		{`{"intent":"smalltalk"}`, models.IntentSmalltalk, nil},
		{`{"intent":"command","command":"show_more"}`, models.IntentCommand,
			func(in models.Intent) bool { return in.Command == models.CommandShowMore }},
		{`{"intent":"unsupported_country","label":"Япония"}`, models.IntentUnsupportedCountry,
			func(in models.Intent) bool { return in.Label == "Япония" }},
		{`{"intent":"unsupported_country","label":"Вьетнам"}`, models.IntentSearchTours,
			func(in models.Intent) bool { return in.Draft != nil && in.Draft.CountryID == 16 }},
		{`{"intent":"unknown","reason":"vague","clarifying_questions":["a","b","c","d"," "]}`, models.IntentUnknown,
			func(in models.Intent) bool { return in.Reason == "vague" && len(in.ClarifyingQuestions) == 3 }},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			in, err := ParseModelOutput(tt.raw, 2025)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if in.Kind != tt.wantKind {
				t.Fatalf("kind = %s, want %s", in.Kind, tt.wantKind)
			}
			if tt.check != nil && !tt.check(in) {
				t.Errorf("unexpected intent %+v", in)
			}
		})
	}
}

func TestParseModelOutput_Invalid(t *testing.T) {
	tests := []string{
		``,
		`no json here`,
		`{"intent":"search_tours"}`,
		`{"intent":"search_tours","country":"Turkey","nights_min":10,"nights_max":5}`,
		`{"intent":"search_tours","country":"Turkey","budget":{"type":"max","max":-5}}`,
		`{"intent":"search_tours","country":"Turkey","budget":{"type":"cheap"}}`,
		`{"intent":"search_tours","country":"Turkey","budget":{"type":"range","max":100000}}`,
		`{"intent":"search_tours","country":"Turkey","meal":"lunch"}`,
		`{"intent":"search_tours","country":"Turkey","month":"July"}`,
		`{"intent":"search_tours","country":"Turkey","period":"someday"}`,
		`{"intent":"search_tours","country":"Turkey","rating":7}`,
		`{"intent":"search_tours","country":"Turkey","adults":40}`,
		`{"intent":"command","command":"book"}`,
		`{"intent":"unsupported_country"}`,
		`{"intent":"meta","extra":true}`,
	}
	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			if _, err := ParseModelOutput(raw, 2025); !errors.Is(err, ErrInvalidModelOutput) {
				t.Errorf("expected ErrInvalidModelOutput, got %v", err)
			}
		})
	}
}

func TestSystemPrompt_ListsDestinations(t *testing.T) {
	p := systemPrompt(time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), true)
	for _, c := range models.SupportedCountries() {
		if !strings.Contains(p, c.Name) {
			t.Errorf("prompt misses %s", c.Name)
		}
	}
	if !strings.Contains(p, "2025-06-10") {
		t.Error("prompt misses today's date")
	}
}

func TestChatModel_CompleteJSON(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"intent\":\"meta\"}"}}]}`))
	}))
	defer srv.Close()

	m := NewChatModel(config.ClassifierConfig{BaseURL: srv.URL + "/v1/", APIKey: "sk-test", Model: "small", Timeout: time.Second}, nil)
	out, err := m.CompleteJSON(context.Background(), "system", "а ты бот?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"intent":"meta"}` {
		t.Errorf("content = %q", out)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotReq.Model != "small" || len(gotReq.Messages) != 2 || gotReq.Messages[1].Content != "а ты бот?" {
		t.Errorf("request = %+v", gotReq)
	}
}

func TestChatModel_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusBadGateway, `upstream down`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
		{"garbage", http.StatusOK, `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			m := NewChatModel(config.ClassifierConfig{BaseURL: srv.URL, Model: "small", Timeout: time.Second}, nil)
			if _, err := m.CompleteJSON(context.Background(), "s", "u"); err == nil {
				t.Error("expected error")
			}
		})
	}
}
