package prompts

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
	MaxContentLength     = 50000
	MaxTags              = 10
	MaxTagLength         = 50
)

// Input holds the user-editable fields of a prompt.
type Input struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	CategoryID  *int64   `json:"category_id,omitempty"`
	Tags        []string `json:"tags"`
	IsPublic    *bool    `json:"is_public,omitempty"`
}

// normalize trims text fields, lower-cases and de-duplicates tags, then
// validates the result.
func (in Input) normalize() (Input, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Tags = NormalizeTags(in.Tags)

	if n := utf8.RuneCountInString(in.Title); n == 0 || n > MaxTitleLength {
		return in, fmt.Errorf("%w: title must be 1-%d characters", ErrInvalidInput, MaxTitleLength)
	}
	if utf8.RuneCountInString(in.Description) > MaxDescriptionLength {
		return in, fmt.Errorf("%w: description must be at most %d characters", ErrInvalidInput, MaxDescriptionLength)
	}
	if strings.TrimSpace(in.Content) == "" {
		return in, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(in.Content) > MaxContentLength {
		return in, fmt.Errorf("%w: content must be at most %d characters", ErrInvalidInput, MaxContentLength)
	}
	if len(in.Tags) > MaxTags {
		return in, fmt.Errorf("%w: at most %d tags allowed", ErrInvalidInput, MaxTags)
	}
	for _, t := range in.Tags {
		if utf8.RuneCountInString(t) > MaxTagLength {
			return in, fmt.Errorf("%w: tag %q is longer than %d characters", ErrInvalidInput, t, MaxTagLength)
		}
	}
	if in.CategoryID != nil && *in.CategoryID <= 0 {
		return in, fmt.Errorf("%w: invalid category", ErrInvalidInput)
	}
	return in, nil
}

// NormalizeTags trims and lower-cases tags, dropping blanks and duplicates
// while keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
