// Package cache provides the tagged read-through cache used by the prompt
// library and the page cache used by the HTTP layer.
package cache

import (
	"net/url"
	"strconv"
)

// TagKind enumerates the partitions cached reads can be grouped by.
type TagKind int

const (
	KindAll TagKind = iota + 1
	KindCategory
	KindTag
	KindUserPrompts
	KindUserFavorites
	KindUserVotes
	KindPrompt
	KindFeatured
	KindTrending
)

// Tag names one partition of cached results. Build tags with the
// constructors below; both readers and the invalidation graph use them.
type Tag struct {
	Kind TagKind
	Key  string
}

func AllPrompts() Tag { return Tag{Kind: KindAll} }
func Featured() Tag { return Tag{Kind: KindFeatured} }
func Trending() Tag { return Tag{Kind: KindTrending} }
func Category(id int64) Tag { return Tag{Kind: KindCategory, Key: strconv.FormatInt(id, 10)} }
func PromptTag(tag string) Tag { return Tag{Kind: KindTag, Key: tag} }
func UserPrompts(userID string) Tag { return Tag{Kind: KindUserPrompts, Key: userID} }
func UserFavorites(userID string) Tag { return Tag{Kind: KindUserFavorites, Key: userID} }
func UserVotes(userID string) Tag { return Tag{Kind: KindUserVotes, Key: userID} }
func Prompt(id int64) Tag { return Tag{Kind: KindPrompt, Key: strconv.FormatInt(id, 10)} }

// String returns the stable storage form of the tag, e.g. "prompts:category:7".
func (t Tag) String() string {
	switch t.Kind {
	case KindAll:
		return "prompts:all"
	case KindCategory:
		return "prompts:category:" + t.Key
	case KindTag:
		return "prompts:tag:" + t.Key
	case KindUserPrompts:
		return "prompts:user:" + t.Key
	case KindUserFavorites:
		return "favorites:user:" + t.Key
	case KindUserVotes:
		return "votes:user:" + t.Key
	case KindPrompt:
		return "prompt:" + t.Key
	case KindFeatured:
		return "prompts:featured"
	case KindTrending:
		return "prompts:trending"
	}
	return "invalid:" + t.Key
}

// Page paths that the HTTP layer caches whole responses for.
const (
	PathRoot      = "/"
	PathShowcase  = "/prompts"
	PathFavorites = "/favorites"
)

// CategoryPath is the public page listing one category.
func CategoryPath(id int64) string {
	return "/categories/" + strconv.FormatInt(id, 10)
}

// TagPath is the public page listing one tag.
func TagPath(tag string) string {
	return "/tags/" + url.PathEscape(tag)
}
