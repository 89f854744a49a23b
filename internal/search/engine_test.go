package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/buonappetort/rex/internal/llm"
	"github.com/buonappetort/rex/internal/model"
)

// mockStrategy implements KeywordStrategy for testing.
type mockStrategy struct {
	keywords []string
	err      error
	calls    int
}

func (m *mockStrategy) Keywords(ctx context.Context, query string) ([]string, error) {
	m.calls++
	return m.keywords, m.err
}

// mockChatter implements llm.Chatter for testing.
type mockChatter struct {
	reply  string
	err    error
	prompt string
}

func (m *mockChatter) Chat(ctx context.Context, model string, messages []llm.Message) (string, error) {
	if len(messages) > 0 {
		m.prompt = messages[0].Content
	}
	return m.reply, m.err
}

func fixture() []model.Item {
	return []model.Item{
		{ID: "1", Title: "Best Sushi in Town", Category: "Restaurant", Description: "Fresh nigiri", Tags: []string{"sushi", "japanese"}},
		{ID: "2", Title: "Morning Coffee Spot", Category: "Cafe", Description: "Great espresso", Tags: []string{"coffee"}},
		{ID: "3", Title: "Yoga Mat", Category: "Fitness", Description: "Non-slip mat", Tags: []string{"yoga", "fitness"}},
	}
}

func ids(items []model.Item) string {
	var out []string
	for _, it := range items {
		out = append(out, it.ID)
	}
	return strings.Join(out, ",")
}

func TestSearch_SplitAND(t *testing.T) {
	e := NewEngine(nil, nil)

	tests := []struct {
		query string
		want  string
	}{
		{"sushi", "1"},
		{"  SUSHI  fresh ", "1"},
		{"sushi coffee", ""},
		{"cafe", "2"},
		{"JAPANESE", "1"},
		{"mat", "3"},
		{"", "1,2,3"},
		{"   ", "1,2,3"},
	}
	for _, tt := range tests {
		got := e.Search(context.Background(), fixture(), tt.query, false)
		if ids(got.Results) != tt.want {
			t.Errorf("Search(%q) = [%s], want [%s]", tt.query, ids(got.Results), tt.want)
		}
		if got.Keywords == nil {
			t.Errorf("Search(%q).Keywords = nil", tt.query)
		}
		if got.Query != strings.TrimSpace(tt.query) {
			t.Errorf("Query = %q, want trimmed", got.Query)
		}
	}
}

func TestSearch_ExternalUsedWhenRequested(t *testing.T) {
	strat := &mockStrategy{keywords: []string{"espresso"}}
	e := NewEngine(strat, nil)

	got := e.Search(context.Background(), fixture(), "where can I get a caffeine fix", true)
	if ids(got.Results) != "2" {
		t.Errorf("results = [%s], want [2]", ids(got.Results))
	}
	if strings.Join(got.Keywords, ",") != "espresso" {
		t.Errorf("keywords = %v", got.Keywords)
	}

	e.Search(context.Background(), fixture(), "sushi", false)
	if strat.calls != 1 {
		t.Errorf("external called %d times, want 1", strat.calls)
	}
}

func TestSearch_ExternalSkippedForEmptyQuery(t *testing.T) {
	strat := &mockStrategy{keywords: []string{"x"}}
	e := NewEngine(strat, nil)
	got := e.Search(context.Background(), fixture(), "  ", true)
	if strat.calls != 0 {
		t.Errorf("external called for empty query")
	}
	if len(got.Results) != 3 || len(got.Keywords) != 0 {
		t.Errorf("got %d results, keywords %v", len(got.Results), got.Keywords)
	}
}

func TestSearch_FallsBackToSplit(t *testing.T) {
	for name, strat := range map[string]*mockStrategy{
		"error": {err: errors.New("timeout")},
		"empty": {keywords: []string{}},
	} {
		t.Run(name, func(t *testing.T) {
			e := NewEngine(strat, nil)
			got := e.Search(context.Background(), fixture(), "Yoga mat", true)
			if strings.Join(got.Keywords, ",") != "yoga,mat" {
				t.Errorf("keywords = %v, want split", got.Keywords)
			}
			if ids(got.Results) != "3" {
				t.Errorf("results = [%s]", ids(got.Results))
			}
		})
	}
}

func TestSplitStrategy(t *testing.T) {
	var s KeywordStrategy = Split{}
	kw, err := s.Keywords(context.Background(), "  Best  SUSHI\ttown ")
	if err != nil {
		t.Fatalf("Keywords: %v", err)
	}
	if strings.Join(kw, ",") != "best,sushi,town" {
		t.Errorf("keywords = %q", kw)
	}
	if kw, _ := s.Keywords(context.Background(), "   "); kw == nil || len(kw) != 0 {
		t.Errorf("blank query keywords = %v, want empty", kw)
	}
}

func TestSearch_UsesFallbackStrategy(t *testing.T) {
	e := NewEngine(nil, nil)
	if _, ok := e.Fallback.(Split); !ok {
		t.Fatalf("default Fallback = %T, want Split", e.Fallback)
	}

	fb := &mockStrategy{keywords: []string{"coffee"}}
	e.Fallback = fb
	got := e.Search(context.Background(), fixture(), "anything at all", false)
	if fb.calls != 1 || ids(got.Results) != "2" {
		t.Errorf("calls = %d, results = [%s]", fb.calls, ids(got.Results))
	}

	e.External = &mockStrategy{err: errors.New("down")}
	got = e.Search(context.Background(), fixture(), "anything", true)
	if fb.calls != 2 || strings.Join(got.Keywords, ",") != "coffee" {
		t.Errorf("calls = %d, keywords = %v after external failure", fb.calls, got.Keywords)
	}
}

func TestSearch_FailingFallbackSplits(t *testing.T) {
	e := NewEngine(nil, nil)
	e.Fallback = &mockStrategy{err: errors.New("broken")}
	got := e.Search(context.Background(), fixture(), "Yoga mat", false)
	if strings.Join(got.Keywords, ",") != "yoga,mat" {
		t.Errorf("keywords = %v, want split", got.Keywords)
	}
}

func TestLLMStrategy(t *testing.T) {
	chat := &mockChatter{reply: " Sushi , ,Fresh Fish\n"}
	s := &LLM{Client: chat, Model: "m"}

	kw, err := s.Keywords(context.Background(), "good sushi?")
	if err != nil {
		t.Fatalf("Keywords: %v", err)
	}
	if strings.Join(kw, "|") != "sushi|fresh fish" {
		t.Errorf("keywords = %q", kw)
	}
	if !strings.Contains(chat.prompt, "Question: good sushi?") {
		t.Errorf("prompt = %q", chat.prompt)
	}
}

func TestLLMStrategy_Error(t *testing.T) {
	s := &LLM{Client: &mockChatter{err: errors.New("boom")}}
	if _, err := s.Keywords(context.Background(), "q"); err == nil {
		t.Error("Keywords succeeded, want error")
	}
}

func TestParseKeywordList_Blank(t *testing.T) {
	if got := parseKeywordList("\n"); got == nil || len(got) != 0 {
		t.Errorf("parseKeywordList(blank) = %v, want empty", got)
	}
}

func TestHaystack(t *testing.T) {
	it := model.Item{Title: "A", Description: "B", Category: "C", Tags: []string{"D", "E"}}
	if got := Haystack(it); got != "a b c d e" {
		t.Errorf("Haystack = %q", got)
	}
}

func genItem() *rapid.Generator[model.Item] {
	word := rapid.StringMatching(`[a-zA-Z]{0,8}`)
	return rapid.Custom(func(t *rapid.T) model.Item {
		return model.Item{
			ID:          rapid.StringMatching(`[a-f0-9]{8}`).Draw(t, "id"),
			Title:       word.Draw(t, "title"),
			Description: word.Draw(t, "description"),
			Category:    word.Draw(t, "category"),
			Tags:        rapid.SliceOfN(word, 0, 3).Draw(t, "tags"),
		}
	})
}

func TestSearch_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		items := rapid.SliceOfN(genItem(), 0, 12).Draw(t, "items")
		query := rapid.StringMatching(`( ?[a-zA-Z]{1,3}){0,3}`).Draw(t, "query")

		got := NewEngine(nil, nil).Search(context.Background(), items, query, false)

		// Every result contains every keyword, and every skipped item misses one.
		j := 0
		for _, it := range items {
			match := Matches(it, got.Keywords)
			if match {
				if j >= len(got.Results) || got.Results[j].ID != it.ID {
					t.Fatalf("result order differs from input order at %d", j)
				}
				j++
			}
		}
		if j != len(got.Results) {
			t.Fatalf("got %d results, want %d", len(got.Results), j)
		}
		for _, k := range got.Keywords {
			if k != strings.ToLower(k) {
				t.Fatalf("keyword %q not lowercase", k)
			}
		}
		if len(got.Keywords) == 0 && len(got.Results) != len(items) {
			t.Fatalf("no keywords returned %d of %d items", len(got.Results), len(items))
		}
	})
}
