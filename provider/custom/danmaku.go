package custom

import (
	"context"
	"fmt"

	"github.com/anisan-cli/aniplay/constant"
	"github.com/anisan-cli/aniplay/danmaku"
	"github.com/anisan-cli/aniplay/internal/cache"
	"github.com/anisan-cli/aniplay/log"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"
)

// DanmakuProvider matches episodes to a script's subjects and loads their comments.
type DanmakuProvider struct {
	script *Script
}

// NewDanmakuProvider wraps a script whose role is RoleDanmaku.
func NewDanmakuProvider(script *Script) (*DanmakuProvider, error) {
	if script.Role != RoleDanmaku {
		return nil, fmt.Errorf("%s is a %s provider", script.Name, script.Role)
	}
	return &DanmakuProvider{script: script}, nil
}

func (p *DanmakuProvider) ID() string {
	return p.script.Name
}

func (p *DanmakuProvider) searchSubjects(ctx context.Context, query string) ([]subject, error) {
	key := cache.GenerateKey(query, p.script.Name+"_subjects")

	var cached []subject
	if cache.Read(key, &cached) {
		return cached, nil
	}

	r, err := p.script.start(ctx)
	if err != nil {
		return nil, err
	}
	defer r.close()

	subjects, err := callList(r, constant.SearchSubjectsFn, subjectFromTable, lua.LString(query))
	if err != nil {
		return nil, err
	}

	if len(subjects) > 0 {
		_ = cache.Write(key, subjects)
	}
	return subjects, nil
}

func (p *DanmakuProvider) SearchSubjects(ctx context.Context, query string) ([]danmaku.Subject, error) {
	subjects, err := p.searchSubjects(ctx, query)
	if err != nil {
		return nil, err
	}

	return lo.Map(subjects, func(s subject, _ int) danmaku.Subject {
		return s.Subject
	}), nil
}

func (p *DanmakuProvider) SubjectEpisodes(ctx context.Context, subjectID string) ([]danmaku.Episode, error) {
	r, err := p.script.start(ctx)
	if err != nil {
		return nil, err
	}
	defer r.close()

	return callList(r, constant.SubjectEpisodesFn, episodeFromTable, lua.LString(subjectID))
}

func (p *DanmakuProvider) EpisodeDanmaku(ctx context.Context, s danmaku.Subject, e danmaku.Episode) ([]danmaku.Danmaku, error) {
	r, err := p.script.start(ctx)
	if err != nil {
		return nil, err
	}
	defer r.close()

	return callList(r, constant.EpisodeDanmakuFn, func(table *lua.LTable) (danmaku.Danmaku, error) {
		return danmakuFromTable(table, p.script.Name)
	}, subjectToTable(r.L, s), episodeToTable(r.L, e))
}

// Post hands the comment to the script's optional PostDanmaku and reads back what was stored.
func (p *DanmakuProvider) Post(ctx context.Context, ep *danmaku.EpisodeContext, item danmaku.Danmaku) (danmaku.Danmaku, error) {
	r, err := p.script.start(ctx)
	if err != nil {
		return danmaku.Danmaku{}, err
	}
	defer r.close()

	if r.L.GetGlobal(constant.PostDanmakuFn).Type() != lua.LTFunction {
		return danmaku.Danmaku{}, fmt.Errorf("%w: %s", danmaku.ErrPostUnsupported, p.script.Name)
	}

	ret, err := r.call(constant.PostDanmakuFn, lua.LTTable, episodeContextToTable(r.L, ep), danmakuToTable(r.L, item))
	if err != nil {
		return danmaku.Danmaku{}, err
	}

	return danmakuFromTable(ret.(*lua.LTable), p.script.Name)
}

// Match searches by the primary name and picks the subject and episode automatically.
// A subject declaring the episode's AniList id is an exact id match.
func (p *DanmakuProvider) Match(ctx context.Context, ep *danmaku.EpisodeContext) (danmaku.MatchResult, error) {
	logger := log.With(logrus.Fields{"provider": p.script.Name, "episode": ep.EpisodeID})

	subjects, err := p.searchSubjects(ctx, ep.PrimaryName())
	if err != nil {
		return danmaku.MatchResult{}, err
	}

	var (
		chosen danmaku.Subject
		method danmaku.MatchMethod
	)

	if byID, ok := lo.Find(subjects, func(s subject) bool {
		return s.AnilistID != "" && s.AnilistID == ep.SubjectID
	}); ok {
		chosen, method = byID.Subject, danmaku.MatchExactID
	} else {
		best, how := danmaku.BestSubject(ep.SubjectNames, lo.Map(subjects, func(s subject, _ int) danmaku.Subject {
			return s.Subject
		}))

		found, ok := best.Get()
		if !ok {
			logger.Infof("no subject found")
			return danmaku.MatchResult{Info: danmaku.MatchInfo{ServiceID: p.script.Name, Method: danmaku.MatchFuzzy}}, nil
		}
		chosen, method = found, how
	}

	episodes, err := p.SubjectEpisodes(ctx, chosen.ID)
	if err != nil {
		return danmaku.MatchResult{}, err
	}

	episode, ok := danmaku.BestEpisode(ep.EpisodeSort, ep.EpisodeName, episodes).Get()
	if !ok {
		logger.Infof("subject %q has no episode %d", chosen.Title, ep.EpisodeSort)
		return danmaku.MatchResult{Info: danmaku.MatchInfo{
			ServiceID:    p.script.Name,
			Method:       method,
			SubjectTitle: chosen.Title,
		}}, nil
	}

	items, err := p.EpisodeDanmaku(ctx, chosen, episode)
	if err != nil {
		return danmaku.MatchResult{}, err
	}

	logger.Debugf("matched %q %q by %s, %d comments", chosen.Title, episode.Title, method, len(items))

	return danmaku.MatchResult{
		Info: danmaku.MatchInfo{
			ServiceID:    p.script.Name,
			Method:       method,
			SubjectTitle: chosen.Title,
			EpisodeTitle: episode.Title,
		},
		Items: items,
	}, nil
}
