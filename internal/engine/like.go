package engine

// SQL LIKE is mapped onto a glob matcher: % becomes *, _ becomes ?, and any
// glob metacharacter in the pattern is escaped so it matches literally.
// Matching is case-sensitive, same as the underlying text comparison.

import (
	"strings"

	"github.com/gobwas/glob"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Compiled patterns are cached; the same LIKE pattern is typically applied
// to every row of a scan.
var likeCache, _ = lru.New[string, glob.Glob](256)

func likeToGlob(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteByte('*')
		case '_':
			b.WriteByte('?')
		case '*', '?', '[', ']', '{', '}', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func matchLike(s, pattern string) (bool, error) {
	if g, ok := likeCache.Get(pattern); ok {
		return g.Match(s), nil
	}
	g, err := glob.Compile(likeToGlob(pattern))
	if err != nil {
		return false, &SemanticError{Msg: "invalid LIKE pattern '" + pattern + "'"}
	}
	likeCache.Add(pattern, g)
	return g.Match(s), nil
}
