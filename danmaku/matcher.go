package danmaku

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	levenshtein "github.com/ka-weihe/fast-levenshtein"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func distance(query string, subject Subject) int {
	titles := append([]string{subject.Title}, subject.Aliases...)
	return lo.Min(lo.Map(titles, func(title string, _ int) int {
		return levenshtein.Distance(query, normalize(title))
	}))
}

// RankSubjects orders subjects by closeness to query. Subjects fuzzy matching the
// query come first; the rest follow by edit distance.
func RankSubjects(query string, subjects []Subject) []Subject {
	query = normalize(query)

	matches := func(s Subject) bool {
		titles := append([]string{s.Title}, s.Aliases...)
		return lo.SomeBy(titles, func(title string) bool {
			return fuzzy.MatchNormalizedFold(query, title)
		})
	}

	ranked := slices.Clone(subjects)
	slices.SortStableFunc(ranked, func(a, b Subject) int {
		matchA, matchB := matches(a), matches(b)
		if matchA != matchB {
			if matchA {
				return -1
			}
			return 1
		}

		return cmp.Compare(distance(query, a), distance(query, b))
	})

	return ranked
}

// BestSubject picks the subject for an episode named by names, and how confident the pick is.
func BestSubject(names []string, subjects []Subject) (mo.Option[Subject], MatchMethod) {
	if len(subjects) == 0 {
		return mo.None[Subject](), MatchFuzzy
	}

	for _, name := range names {
		name = normalize(name)
		exact, found := lo.Find(subjects, func(s Subject) bool {
			return normalize(s.Title) == name || lo.SomeBy(s.Aliases, func(alias string) bool {
				return normalize(alias) == name
			})
		})

		if found {
			return mo.Some(exact), MatchExactTitle
		}
	}

	return mo.Some(RankSubjects(lo.FirstOr(names, ""), subjects)[0]), MatchFuzzy
}

// BestEpisode finds the episode numbered sort, falling back to the one titled name.
func BestEpisode(sort int, name string, episodes []Episode) mo.Option[Episode] {
	want := strconv.Itoa(sort)
	if episode, found := lo.Find(episodes, func(e Episode) bool {
		return strings.TrimLeft(e.Sort, "0") == want
	}); found {
		return mo.Some(episode)
	}

	if name == "" {
		return mo.None[Episode]()
	}

	if episode, found := lo.Find(episodes, func(e Episode) bool {
		return normalize(e.Title) == normalize(name)
	}); found {
		return mo.Some(episode)
	}

	return mo.None[Episode]()
}
