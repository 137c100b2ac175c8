package cache

import (
	"strconv"
	"strings"
)

const versionPrefix = "ver:"

func tagVersionKey(t Tag) string        { return versionPrefix + t.String() }
func pageVersionKey(path string) string { return versionPrefix + pageKey(path) }

// Stamp records the invalidation versions of a set of tags, or of one page
// path, at the moment a load started. A stamped write is dropped if any of
// those versions moved since, so a load that raced an invalidation cannot
// put its stale result back.
type Stamp struct {
	keys     []string
	versions []int64
}

func newStamp(keys []string, versions []int64) Stamp {
	return Stamp{keys: keys, versions: versions}
}

// String identifies the versions the stamp was taken at. Loads started
// under different stamps never share a result.
func (s Stamp) String() string {
	var b strings.Builder
	for i, v := range s.versions {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(v, 10))
	}
	return b.String()
}
