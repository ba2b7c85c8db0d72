package service

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/RyanNg1403/tieplm/internal/domain"
)

// citationMarker matches [1], [2, 3] and [4,5,6].
var citationMarker = regexp.MustCompile(`\[(\d+(?:\s*,\s*\d+)*)\]`)

// resolveCitations rewrites the markers of content so they only name sources
// in 1..len(sources), and returns the cited sources ordered by number.
// Markers left with no valid number are removed.
func resolveCitations(content string, sources []domain.SourceReference) (string, []domain.SourceReference) {
	cited := make(map[int]struct{})

	rewritten := citationMarker.ReplaceAllStringFunc(content, func(marker string) string {
		inner := marker[1 : len(marker)-1]
		var kept []string
		for _, part := range strings.Split(inner, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || n < 1 || n > len(sources) {
				continue
			}
			if _, dup := cited[n]; !dup {
				cited[n] = struct{}{}
			}
			kept = append(kept, strconv.Itoa(n))
		}
		if len(kept) == 0 {
			return ""
		}
		return "[" + strings.Join(kept, ", ") + "]"
	})

	numbers := make([]int, 0, len(cited))
	for n := range cited {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	refs := make([]domain.SourceReference, 0, len(numbers))
	for _, n := range numbers {
		refs = append(refs, sources[n-1])
	}
	return rewritten, refs
}
