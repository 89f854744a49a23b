package dataset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/buonappetort/rex/internal/model"
)

func writeLines(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func collect(n *Normalizer, src Source) []model.Item {
	var out []model.Item
	for it := range n.Items(context.Background(), src) {
		out = append(out, it)
	}
	return out
}

func TestNormalize(t *testing.T) {
	row, ok := decodeRow([]byte(`{
		"user_id": "AG123",
		"title": "  Loved it  ",
		"text": " Works great. ",
		"asin": "B000111",
		"parent_asin": "B000999",
		"rating": 5.0,
		"images": [
			{"foo": "bar"},
			{"small_image_url": "https://img/s.jpg", "large_image_url": "https://img/l.jpg"}
		]
	}`))
	if !ok {
		t.Fatal("decodeRow failed")
	}

	it := Normalize(row)
	if it.OwnerID != "AG123" {
		t.Errorf("OwnerID = %q", it.OwnerID)
	}
	if it.Title != "Loved it" {
		t.Errorf("Title = %q", it.Title)
	}
	if it.Description != "Works great." {
		t.Errorf("Description = %q", it.Description)
	}
	if it.Category != Category {
		t.Errorf("Category = %q", it.Category)
	}
	if it.MediaURL != "https://www.amazon.com/dp/B000111" || it.SourceURL != it.MediaURL {
		t.Errorf("MediaURL = %q SourceURL = %q", it.MediaURL, it.SourceURL)
	}
	if it.SourceMeta == nil || it.SourceMeta.Image != "https://img/l.jpg" {
		t.Errorf("SourceMeta = %+v, want large image", it.SourceMeta)
	}
	if it.Tags == nil || len(it.Tags) != 0 {
		t.Errorf("Tags = %v, want empty", it.Tags)
	}
}

func TestNormalize_Fallbacks(t *testing.T) {
	row, _ := decodeRow([]byte(`{"title": "   ", "parent_asin": "P1", "images": []}`))
	it := Normalize(row)

	if it.OwnerID != DefaultOwner {
		t.Errorf("OwnerID = %q, want %q", it.OwnerID, DefaultOwner)
	}
	if it.Title != DefaultTitle {
		t.Errorf("Title = %q, want %q", it.Title, DefaultTitle)
	}
	if it.MediaURL != "https://www.amazon.com/dp/P1" {
		t.Errorf("MediaURL = %q", it.MediaURL)
	}
	if it.SourceMeta != nil {
		t.Errorf("SourceMeta = %+v, want nil", it.SourceMeta)
	}
}

func TestNormalize_NoProductID(t *testing.T) {
	row, _ := decodeRow([]byte(`{"user_id": "u", "title": "t"}`))
	it := Normalize(row)
	if it.MediaURL != "" || it.SourceURL != "" {
		t.Errorf("MediaURL = %q SourceURL = %q, want empty", it.MediaURL, it.SourceURL)
	}
}

func TestDecodeRow_RejectsNonObjects(t *testing.T) {
	for _, in := range []string{`not json`, `[1,2]`, `"str"`, `null`, `{"a":`} {
		if _, ok := decodeRow([]byte(in)); ok {
			t.Errorf("decodeRow(%q) ok, want rejected", in)
		}
	}
}

func TestRating(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{`{"rating": 4}`, 4, true},
		{`{"rating": "5.0"}`, 5, true},
		{`{"rating": "great"}`, 0, false},
		{`{"rating": null}`, 0, false},
		{`{}`, 0, false},
	}
	for _, tt := range tests {
		row, _ := decodeRow([]byte(tt.in))
		got, ok := row.Rating()
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Rating(%s) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestItems_FiveStarFilterAndCap(t *testing.T) {
	dir := t.TempDir()
	p := writeLines(t, dir, "amazon_reviews_2023.jsonl",
		`{"title": "a", "rating": 5}`,
		`{"title": "b", "rating": 3}`,
		`this line is garbage`,
		`{"title": "c"}`,
		`{"title": "d", "rating": "5"}`,
		`{"title": "e", "rating": 5}`,
	)

	opts := DefaultOptions()
	opts.Limit = 3
	got := collect(NewNormalizer(opts, nil), Source{Path: p})

	var titles []string
	for _, it := range got {
		titles = append(titles, it.Title)
	}
	if strings.Join(titles, ",") != "a,c,d" {
		t.Errorf("titles = %v, want [a c d]", titles)
	}
}

func TestItems_FilterOff(t *testing.T) {
	dir := t.TempDir()
	p := writeLines(t, dir, "amazon_reviews_2023.jsonl",
		`{"title": "a", "rating": 1}`,
		`{"title": "b", "rating": 2}`,
	)
	opts := Options{FiveStarOnly: false, Streaming: true}
	if got := collect(NewNormalizer(opts, nil), Source{Path: p}); len(got) != 2 {
		t.Errorf("got %d items, want 2", len(got))
	}
}

func TestItems_BatchMatchesStreaming(t *testing.T) {
	dir := t.TempDir()
	p := writeLines(t, dir, "amazon_reviews_2023.jsonl",
		`{"title": "a", "rating": 5, "asin": "A"}`,
		``,
		`{"title": "b", "rating": 4}`,
		`{"title": "c", "asin": "C"}`,
	)

	streaming := DefaultOptions()
	batch := DefaultOptions()
	batch.Streaming = false

	s := collect(NewNormalizer(streaming, nil), Source{Path: p})
	b := collect(NewNormalizer(batch, nil), Source{Path: p})
	if len(s) != len(b) || len(s) != 2 {
		t.Fatalf("streaming %d items, batch %d items, want 2 each", len(s), len(b))
	}
	for i := range s {
		if s[i].Title != b[i].Title || s[i].MediaURL != b[i].MediaURL {
			t.Errorf("item %d differs: %+v vs %+v", i, s[i], b[i])
		}
	}
}

func TestItems_Restartable(t *testing.T) {
	dir := t.TempDir()
	p := writeLines(t, dir, "amazon_reviews_2023.jsonl", `{"title": "a"}`, `{"title": "b"}`)

	seq := NewNormalizer(DefaultOptions(), nil).Items(context.Background(), Source{Path: p})
	first, second := 0, 0
	for range seq {
		first++
	}
	for range seq {
		second++
	}
	if first != 2 || second != 2 {
		t.Errorf("passes yielded %d and %d, want 2 and 2", first, second)
	}
}

func TestItems_MissingFile(t *testing.T) {
	n := NewNormalizer(DefaultOptions(), nil)
	got := collect(n, Source{Path: filepath.Join(t.TempDir(), "nope.jsonl")})
	if len(got) != 0 {
		t.Errorf("got %d items from missing file", len(got))
	}
}

func TestItems_UnifiedCategoryFilter(t *testing.T) {
	dir := t.TempDir()
	p := writeLines(t, dir, "amazon_reviews_2023.jsonl",
		`{"title": "book", "main_category": "Books"}`,
		`{"title": "toy", "main_category": "Toys"}`,
		`{"title": "unknown"}`,
	)
	opts := DefaultOptions()
	opts.Categories = []string{"books"}

	var titles []string
	for _, it := range collect(NewNormalizer(opts, nil), Source{Path: p}) {
		titles = append(titles, it.Title)
	}
	if strings.Join(titles, ",") != "book,unknown" {
		t.Errorf("titles = %v, want [book unknown]", titles)
	}
}

func TestItems_StopsEarly(t *testing.T) {
	dir := t.TempDir()
	p := writeLines(t, dir, "amazon_reviews_2023.jsonl", `{"title": "a"}`, `{"title": "b"}`, `{"title": "c"}`)

	n := 0
	for range NewNormalizer(DefaultOptions(), nil).Items(context.Background(), Source{Path: p}) {
		n++
		if n == 1 {
			break
		}
	}
	if n != 1 {
		t.Errorf("consumed %d, want 1", n)
	}
}

func TestDiscover_UnifiedWins(t *testing.T) {
	dir := t.TempDir()
	writeLines(t, dir, "amazon_reviews_2023_Books.jsonl", `{}`)
	writeLines(t, dir, "amazon_reviews_2023.parquet_export.jsonl", `{}`)
	writeLines(t, dir, "amazon_reviews_2023.jsonl", `{}`)

	got, err := Discover(dir, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(got) != 2 || got[0].Name() != "amazon_reviews_2023.jsonl" || got[1].Name() != "amazon_reviews_2023.parquet_export.jsonl" {
		t.Errorf("Discover() = %+v", got)
	}
	for _, s := range got {
		if !s.Unified() {
			t.Errorf("%s not unified", s.Name())
		}
	}
}

func TestDiscover_PerCategory(t *testing.T) {
	dir := t.TempDir()
	writeLines(t, dir, "amazon_reviews_2023_Toys.jsonl", `{}`)
	writeLines(t, dir, "amazon_reviews_2023_Books.jsonl", `{}`)
	writeLines(t, dir, "rex.json", `[]`)

	all, err := Discover(dir, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(all) != 2 || all[0].Category != "Books" || all[1].Category != "Toys" {
		t.Errorf("Discover(nil) = %+v", all)
	}

	some, _ := Discover(dir, []string{"Toys"})
	if len(some) != 1 || some[0].Category != "Toys" {
		t.Errorf("Discover([Toys]) = %+v", some)
	}
}

func TestDiscover_MissingDir(t *testing.T) {
	got, err := Discover(filepath.Join(t.TempDir(), "absent"), nil)
	if err != nil || len(got) != 0 {
		t.Errorf("Discover(missing) = (%v, %v), want none", got, err)
	}
}
