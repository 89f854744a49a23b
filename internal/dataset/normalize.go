package dataset

import (
	"strings"

	"github.com/buonappetort/rex/internal/model"
)

const (
	// DefaultOwner is used for rows without a user identifier.
	DefaultOwner = "amazon-user"
	// DefaultTitle is used for rows with an empty title.
	DefaultTitle = "Amazon Review"
	// Category labels every item produced from the dataset.
	Category = "Amazon"

	productURLPrefix = "https://www.amazon.com/dp/"
)

var (
	productIDKeys = []string{"asin", "parent_asin"}
	imageKeys     = []string{
		"large_image_url",
		"medium_image_url",
		"small_image_url",
		"large",
		"medium",
		"small",
		"url",
	}
)

// Normalize maps a dataset row onto an Item. The id and createdAt are left
// for the store to stamp.
func Normalize(r Row) model.Item {
	it := model.Item{
		OwnerID:     r.String("user_id"),
		Title:       strings.TrimSpace(r.String("title")),
		Category:    Category,
		Description: strings.TrimSpace(r.String("text")),
		Tags:        []string{},
	}
	if it.OwnerID == "" {
		it.OwnerID = DefaultOwner
	}
	if it.Title == "" {
		it.Title = DefaultTitle
	}

	if url := productURL(r); url != "" {
		it.MediaURL = url
		it.SourceURL = url
	}
	if img := imageURL(r); img != "" {
		it.SourceMeta = &model.SourceMeta{Image: img}
	}
	return it
}

func productURL(r Row) string {
	for _, k := range productIDKeys {
		if id, ok := r[k].(string); ok && id != "" {
			return productURLPrefix + id
		}
	}
	return ""
}

// imageURL scans the images list and returns the first URL-bearing key of the
// first entry that has one.
func imageURL(r Row) string {
	for _, img := range r.Images() {
		for _, k := range imageKeys {
			if v, ok := img[k].(string); ok && v != "" {
				return v
			}
		}
	}
	return ""
}
