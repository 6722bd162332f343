// Package history persists play progress and watched marks per episode.
package history

import (
	"sync"
	"time"

	"github.com/anisan-cli/aniplay/filesystem"
	"github.com/anisan-cli/aniplay/where"
	"github.com/metafates/gache"
	"github.com/samber/mo"
)

// Key identifies an episode of a subject.
type Key struct {
	SubjectID string
	EpisodeID string
}

func (k Key) encode() string {
	return k.SubjectID + "/" + k.EpisodeID
}

// Record is what is kept about one episode.
type Record struct {
	SubjectID      string    `json:"subject_id"`
	EpisodeID      string    `json:"episode_id"`
	MediaKey       string    `json:"media_key,omitempty"`
	PositionMillis int64     `json:"position_millis"`
	DurationMillis int64     `json:"duration_millis"`
	Watched        bool      `json:"watched"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Percentage watched, 0 when the duration is unknown.
func (r *Record) Percentage() float64 {
	if r.DurationMillis <= 0 {
		return 0
	}

	return float64(r.PositionMillis) / float64(r.DurationMillis) * 100
}

func (r *Record) clone() *Record {
	c := *r
	return &c
}

// Store is a gache backed history file. Records handed out are copies, the
// cached ones are replaced, never changed in place.
type Store struct {
	mu     sync.Mutex
	cacher *gache.Cache[map[string]*Record]
}

func New(path string) *Store {
	return &Store{
		cacher: gache.New[map[string]*Record](&gache.Options{
			Path:       path,
			FileSystem: &filesystem.GacheFs{},
		}),
	}
}

// Default is the history of the current user.
var Default = New(where.History())

// Get returns a copy of every record.
func (s *Store) Get() (map[string]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.get()
	if err != nil {
		return nil, err
	}

	records := make(map[string]*Record, len(saved))
	for k, r := range saved {
		records[k] = r.clone()
	}
	return records, nil
}

func (s *Store) get() (map[string]*Record, error) {
	cached, expired, err := s.cacher.Get()
	if err != nil {
		return nil, err
	}

	if expired || cached == nil {
		return make(map[string]*Record), nil
	}

	return cached, nil
}

func (s *Store) update(key Key, fn func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.get()
	if err != nil {
		return err
	}

	record := &Record{SubjectID: key.SubjectID, EpisodeID: key.EpisodeID}
	if old, ok := saved[key.encode()]; ok {
		record = old.clone()
	}

	fn(record)
	record.UpdatedAt = time.Now()
	saved[key.encode()] = record

	return s.cacher.Set(saved)
}

// SaveProgress remembers where playback of the episode is.
func (s *Store) SaveProgress(key Key, mediaKey string, position, duration int64) error {
	return s.update(key, func(r *Record) {
		r.MediaKey = mediaKey
		r.PositionMillis = position
		if duration > 0 {
			r.DurationMillis = duration
		}
	})
}

// Progress returns the saved record of the episode, if any.
func (s *Store) Progress(key Key) mo.Option[*Record] {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.get()
	if err != nil {
		return mo.None[*Record]()
	}

	record, ok := saved[key.encode()]
	if !ok {
		return mo.None[*Record]()
	}
	return mo.Some(record.clone())
}

// ClearProgress forgets the position but keeps the watched mark.
func (s *Store) ClearProgress(key Key) error {
	return s.update(key, func(r *Record) {
		r.PositionMillis = 0
	})
}

func (s *Store) MarkWatched(key Key) error {
	return s.update(key, func(r *Record) {
		r.Watched = true
	})
}

func (s *Store) IsWatched(key Key) bool {
	record, ok := s.Progress(key).Get()
	return ok && record.Watched
}

func (s *Store) Remove(key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.get()
	if err != nil {
		return err
	}

	delete(saved, key.encode())
	return s.cacher.Set(saved)
}
