package extension

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/anisan-cli/aniplay/episode"
	"github.com/anisan-cli/aniplay/filesystem"
	"github.com/anisan-cli/aniplay/player"
	"github.com/anisan-cli/aniplay/source"
	"github.com/anisan-cli/aniplay/util"
	"github.com/anisan-cli/aniplay/where"
)

// Cacher keeps a copy of a peer-to-peer media so the episode plays locally next time.
type Cacher interface {
	Cache(ctx context.Context, subjectID, episodeID string, media *source.Media) error
}

// CacheOnBtPlay hands BitTorrent media to the Cacher as soon as it starts playing.
type CacheOnBtPlay struct {
	episode.BaseExtension
	Cacher Cacher

	cached perSession[string]
}

func (*CacheOnBtPlay) Name() string { return "cache-on-bt-play" }

func (c *CacheOnBtPlay) OnPlaybackState(_ episode.Host, session *episode.Session, state player.State) {
	if state != player.StatePlaying {
		return
	}

	media := selected(session)
	if media == nil || media.Kind != source.KindBitTorrent || c.cached.swap(session, media.Key()) == media.Key() {
		return
	}

	go func() {
		if err := c.Cacher.Cache(session.Context(), session.SubjectID, session.EpisodeID(), media); err != nil {
			logger(c.Name(), session).Errorf("cache %s: %s", media.Key(), err)
			return
		}

		count(c.Name(), "cached")
	}()
}

func (c *CacheOnBtPlay) OnSessionEnd(_ episode.Host, session *episode.Session) {
	c.cached.delete(session)
}

// TorrentIndex records played torrents under a directory, one JSON file per
// episode, and serves them back as a media source. The index holds the magnet,
// not the content, so entries stay BitTorrent media and rank as such.
type TorrentIndex struct {
	Dir string
}

// IndexedTorrent is the content of one index file.
type IndexedTorrent struct {
	SubjectID string        `json:"subject_id"`
	EpisodeID string        `json:"episode_id"`
	Media     *source.Media `json:"media"`
	AddedAt   time.Time     `json:"added_at"`
}

// NewTorrentIndex indexes into the cache directory.
func NewTorrentIndex() *TorrentIndex {
	return &TorrentIndex{Dir: filepath.Join(where.Cache(), "torrents")}
}

func (t *TorrentIndex) path(subjectID, episodeID string) string {
	return filepath.Join(t.Dir, util.SanitizeFilename(subjectID+"-"+episodeID)+".json")
}

func (t *TorrentIndex) Cache(ctx context.Context, subjectID, episodeID string, media *source.Media) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(IndexedTorrent{
		SubjectID: subjectID,
		EpisodeID: episodeID,
		Media:     media,
		AddedAt:   time.Now(),
	})
	if err != nil {
		return err
	}

	return filesystem.WriteAtomic(t.path(subjectID, episodeID), data)
}

// Get reads the indexed torrent of an episode.
func (t *TorrentIndex) Get(subjectID, episodeID string) (*IndexedTorrent, error) {
	data, err := filesystem.API().ReadFile(t.path(subjectID, episodeID))
	if err != nil {
		return nil, err
	}

	var indexed IndexedTorrent
	if err := json.Unmarshal(data, &indexed); err != nil {
		return nil, err
	}

	return &indexed, nil
}

func (*TorrentIndex) InstanceID() string { return "torrent-index" }
func (*TorrentIndex) Kind() source.Kind  { return source.KindBitTorrent }

func (t *TorrentIndex) Query(ctx context.Context, request *source.FetchRequest) ([]*source.Media, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	indexed, err := t.Get(request.SubjectID, request.EpisodeID)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	media := *indexed.Media
	media.SourceID = t.InstanceID()
	media.Kind = source.KindBitTorrent
	return []*source.Media{&media}, nil
}
