package metadata

import (
	"context"
	"fmt"

	"github.com/anisan-cli/aniplay/log"
	levenshtein "github.com/ka-weihe/fast-levenshtein"
	"github.com/samber/lo"
)

const findAttempts = 3

// Bind remembers that name resolves to subject.
func (a *AniList) Bind(name string, subject *Subject) error {
	id, err := parseID(subject.ID)
	if err != nil {
		return err
	}

	if err := a.relations.Set(name, id); err != nil {
		return err
	}

	if a.subjects.Get(id).IsAbsent() {
		return a.subjects.Set(id, subject)
	}
	return nil
}

// FindClosest resolves a free form title to the closest subject by edit distance.
// When a search yields nothing the query is shortened by its last word and retried.
func (a *AniList) FindClosest(ctx context.Context, name string) (*Subject, error) {
	name = normalizedName(name)
	return a.findClosest(ctx, name, name, 0)
}

func (a *AniList) findClosest(ctx context.Context, name, original string, try int) (*Subject, error) {
	if try >= findAttempts {
		_ = a.relations.Set(original, -1)
		return nil, fmt.Errorf("%w: %q", ErrNotFound, original)
	}

	bound := a.relations.Get(name)
	if id, ok := bound.Get(); ok {
		if id == -1 {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}

		if subject, ok := a.subjects.Get(id).Get(); ok {
			if try > 0 {
				_ = a.relations.Set(original, id)
			}
			return subject, nil
		}
	}

	subjects, err := a.Search(ctx, name)
	if err != nil {
		return nil, err
	}

	if id, ok := bound.Get(); ok {
		if found, ok := lo.Find(subjects, func(s *Subject) bool {
			return s.ID == fmt.Sprint(id)
		}); ok {
			return found, nil
		}

		_ = a.relations.Delete(name)
		log.Infof("subject %d is gone from anilist", id)
	}

	if len(subjects) == 0 {
		shorter, ok := trimLastWord(name)
		if !ok {
			return a.findClosest(ctx, name, original, findAttempts)
		}

		log.Infof("no anilist results for %q, trying %q", name, shorter)
		return a.findClosest(ctx, shorter, original, try+1)
	}

	closest := lo.MinBy(subjects, func(x, y *Subject) bool {
		return distance(name, x) < distance(name, y)
	})

	for _, n := range []string{name, original} {
		if a.relations.Get(n).IsAbsent() {
			_ = a.relations.Set(n, lo.Must(parseID(closest.ID)))
		}
	}

	return closest, nil
}

func distance(name string, subject *Subject) int {
	if len(subject.Names) == 0 {
		return len(name)
	}

	return lo.Min(lo.Map(subject.Names, func(n string, _ int) int {
		return levenshtein.Distance(name, normalizedName(n))
	}))
}

// Cached returns the subject name was last resolved to, if any.
func (a *AniList) Cached(name string) (*Subject, bool) {
	id, ok := a.relations.Get(name).Get()
	if !ok || id == -1 {
		return nil, false
	}
	return a.subjects.Get(id).Get()
}
