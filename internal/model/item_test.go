package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestCreatedTime_Unparseable(t *testing.T) {
	for _, raw := range []string{"", "yesterday", "2025-13-45"} {
		it := Item{CreatedAt: raw}
		if got := it.CreatedTime(); !got.IsZero() {
			t.Errorf("CreatedTime(%q) = %v, want zero", raw, got)
		}
	}
}

func TestCreatedTime_RoundTrip(t *testing.T) {
	now := time.Date(2025, 10, 5, 18, 33, 11, 847191000, time.UTC)
	it := Item{CreatedAt: FormatTime(now)}
	if it.CreatedAt != "2025-10-05T18:33:11.847191Z" {
		t.Fatalf("FormatTime = %q", it.CreatedAt)
	}
	if !it.CreatedTime().Equal(now) {
		t.Errorf("CreatedTime = %v, want %v", it.CreatedTime(), now)
	}
}

func TestItemJSON_TagsNeverNull(t *testing.T) {
	b, err := json.Marshal(Item{ID: "a"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := raw["tags"].([]any); !ok {
		t.Errorf("tags = %#v, want array", raw["tags"])
	}
	if _, ok := raw["sourceMeta"]; ok {
		t.Error("sourceMeta present on item without enrichment")
	}
	if _, ok := raw["sourceUrl"]; ok {
		t.Error("sourceUrl present on item without enrichment")
	}
}

func TestItemJSON_SourceMetaOmitsMissingKeys(t *testing.T) {
	b, _ := json.Marshal(Item{SourceMeta: &SourceMeta{Image: "https://img/1.jpg"}})
	var raw struct {
		SourceMeta map[string]any `json:"sourceMeta"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(raw.SourceMeta) != 1 || raw.SourceMeta["image"] != "https://img/1.jpg" {
		t.Errorf("sourceMeta = %v, want only image", raw.SourceMeta)
	}
}

func TestItemJSON_LegacyNames(t *testing.T) {
	legacy := `{"id":"1","userId":"u1","title":"T","category":"C","amazonUrl":"https://www.amazon.com/dp/X","amazonMeta":{"image":"i.jpg"}}`
	var it Item
	if err := json.Unmarshal([]byte(legacy), &it); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if it.OwnerID != "u1" {
		t.Errorf("OwnerID = %q, want u1", it.OwnerID)
	}
	if it.SourceURL != "https://www.amazon.com/dp/X" {
		t.Errorf("SourceURL = %q", it.SourceURL)
	}
	if it.SourceMeta == nil || it.SourceMeta.Image != "i.jpg" {
		t.Errorf("SourceMeta = %+v", it.SourceMeta)
	}
	if it.Tags == nil {
		t.Error("Tags = nil, want empty slice")
	}
}

func TestItemJSON_NonStringCreatedAt(t *testing.T) {
	for _, raw := range []string{`1728153191`, `null`, `{"t":1}`, `true`} {
		var it Item
		doc := `{"id":"1","ownerId":"u","title":"T","category":"C","createdAt":` + raw + `}`
		if err := json.Unmarshal([]byte(doc), &it); err != nil {
			t.Fatalf("createdAt %s: Unmarshal: %v", raw, err)
		}
		if it.ID != "1" || it.CreatedAt != "" {
			t.Errorf("createdAt %s: item = %+v", raw, it)
		}
		if !it.CreatedTime().IsZero() {
			t.Errorf("createdAt %s: CreatedTime = %v, want zero", raw, it.CreatedTime())
		}
	}
}

func TestCandidateJSON_UserIDAlias(t *testing.T) {
	var c Candidate
	if err := json.Unmarshal([]byte(`{"userId":"u9","title":"t","category":"c"}`), &c); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if c.OwnerID != "u9" {
		t.Errorf("OwnerID = %q, want u9", c.OwnerID)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{&ValidationError{Field: "title"}, KindBadInput},
		{fmt.Errorf("creating: %w", &ValidationError{Field: "ownerId"}), KindBadInput},
		{ErrNotFound, KindNotFound},
		{fmt.Errorf("item x: %w", ErrNotFound), KindNotFound},
		{errors.New("disk full"), KindInternal},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestValidationError_NamesField(t *testing.T) {
	err := &ValidationError{Field: "category"}
	if err.Error() != "missing required field: category" {
		t.Errorf("Error() = %q", err.Error())
	}
}
