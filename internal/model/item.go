package model

import (
	"encoding/json"
	"time"
)

// TimeLayout is the layout used for createdAt values.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// SourceMeta holds the enrichment fields actually discovered for an item.
// Fields that were not found are left empty and omitted on the wire.
type SourceMeta struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}

// Empty reports whether nothing was discovered.
func (m SourceMeta) Empty() bool {
	return m.Title == "" && m.Description == "" && m.Image == ""
}

// Item is a single recommendation owned by one user.
type Item struct {
	ID          string      `json:"id"`
	OwnerID     string      `json:"ownerId"`
	Title       string      `json:"title"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	MediaURL    string      `json:"mediaUrl"`
	Tags        []string    `json:"tags"`
	CreatedAt   string      `json:"createdAt"`
	SourceURL   string      `json:"sourceUrl,omitempty"`
	SourceMeta  *SourceMeta `json:"sourceMeta,omitempty"`
}

// CreatedTime parses CreatedAt. Missing or unparseable values yield the
// zero time so they sort before everything else.
func (it Item) CreatedTime() time.Time {
	if it.CreatedAt == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, it.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FormatTime renders t the way createdAt values are stored.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// MarshalJSON keeps tags an array even when nil.
func (it Item) MarshalJSON() ([]byte, error) {
	type plain Item
	p := plain(it)
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return json.Marshal(p)
}

// UnmarshalJSON accepts the legacy userId/amazonUrl/amazonMeta names written
// by older snapshots when the current names are absent. A createdAt that is
// not a JSON string decodes as empty instead of failing the document.
func (it *Item) UnmarshalJSON(data []byte) error {
	type plain Item
	var aux struct {
		plain
		CreatedAt  json.RawMessage `json:"createdAt"`
		UserID     string          `json:"userId"`
		AmazonURL  string          `json:"amazonUrl"`
		AmazonMeta *SourceMeta     `json:"amazonMeta"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*it = Item(aux.plain)
	it.CreatedAt = ""
	var created string
	if json.Unmarshal(aux.CreatedAt, &created) == nil {
		it.CreatedAt = created
	}
	if it.OwnerID == "" {
		it.OwnerID = aux.UserID
	}
	if it.SourceURL == "" {
		it.SourceURL = aux.AmazonURL
	}
	if it.SourceMeta == nil && aux.AmazonMeta != nil && !aux.AmazonMeta.Empty() {
		it.SourceMeta = aux.AmazonMeta
	}
	if it.Tags == nil {
		it.Tags = []string{}
	}
	return nil
}

// Candidate is a creation request before validation and enrichment.
// Field order matters: validation reports the first missing field.
type Candidate struct {
	OwnerID     string   `json:"ownerId" validate:"required"`
	Title       string   `json:"title" validate:"required"`
	Category    string   `json:"category" validate:"required"`
	Description string   `json:"description"`
	MediaURL    string   `json:"mediaUrl"`
	Tags        []string `json:"tags"`
}

// UnmarshalJSON also accepts userId, the field name older clients send.
func (c *Candidate) UnmarshalJSON(data []byte) error {
	type plain Candidate
	var aux struct {
		plain
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = Candidate(aux.plain)
	if c.OwnerID == "" {
		c.OwnerID = aux.UserID
	}
	return nil
}
