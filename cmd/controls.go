package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/anisan-cli/aniplay/episode"
	"github.com/anisan-cli/aniplay/history"
	"github.com/anisan-cli/aniplay/icon"
	"github.com/anisan-cli/aniplay/metadata"
	"github.com/anisan-cli/aniplay/source"
	"github.com/anisan-cli/aniplay/style"
	"github.com/anisan-cli/aniplay/util"
	"github.com/muesli/reflow/truncate"
	"github.com/samber/lo"
)

const (
	actionMedia   = "Choose media"
	actionRefresh = "Query sources again"
	actionNext    = "Next episode"
	actionEpisode = "Go to episode"
	actionDanmaku = "Danmaku providers"
	actionMatch   = "Match danmaku by hand"
	actionPost    = "Post danmaku"
	actionQuit    = "Quit"
)

// controls prompts for actions on the current episode until ctx is done or the user quits.
func controls(ctx context.Context, state *episode.FetchSelectPlayState, quit context.CancelFunc) {
	for ctx.Err() == nil {
		var action string
		err := survey.AskOne(&survey.Select{
			Message: "Action",
			Options: []string{actionMedia, actionRefresh, actionNext, actionEpisode, actionDanmaku, actionMatch, actionPost, actionQuit},
		}, &action)

		if errors.Is(err, terminal.InterruptErr) || action == actionQuit {
			quit()
			return
		}
		if err != nil {
			printControlErr(err)
			continue
		}

		if ctx.Err() != nil {
			return
		}

		printControlErr(runAction(ctx, state, action))
	}
}

func runAction(ctx context.Context, state *episode.FetchSelectPlayState, action string) error {
	if action == actionEpisode {
		return chooseEpisode(ctx, state)
	}

	session, ok := state.Current().Get()
	if !ok {
		return episode.ErrNoEpisode
	}

	switch action {
	case actionMedia:
		return chooseMedia(session)
	case actionRefresh:
		return state.Refresh()
	case actionNext:
		next, ok := session.Subject.Next(session.EpisodeID())
		if !ok {
			return errors.New("this is the last episode")
		}
		go switchEpisode(ctx, state, next.ID)
		return nil
	case actionDanmaku:
		return chooseDanmakuProviders(state, session)
	case actionMatch:
		return matchDanmaku(ctx, session)
	case actionPost:
		return postDanmaku(ctx, session)
	}

	return nil
}

func chooseMedia(session *episode.Session) error {
	candidates := session.Selector.Candidates()
	if len(candidates) == 0 {
		return errors.New("no media yet")
	}

	var index int
	err := survey.AskOne(&survey.Select{
		Message: "Media",
		Options: lo.Map(candidates, func(m *source.Media, _ int) string {
			return fmt.Sprintf("%s %s", kindIcon(m.Kind), style.Kind(string(m.Kind), m.String()))
		}),
	}, &index)
	if err != nil {
		return err
	}

	return session.Selector.Select(candidates[index])
}

func chooseEpisode(ctx context.Context, state *episode.FetchSelectPlayState) error {
	episodes, err := state.Episodes(ctx)
	if err != nil {
		return err
	}

	var index int
	err = survey.AskOne(&survey.Select{
		Message:  "Episode",
		Options:  lo.Map(episodes, func(e metadata.Episode, _ int) string { return episodeLabel(state, e) }),
		PageSize: 12,
	}, &index)
	if err != nil {
		return err
	}

	go switchEpisode(ctx, state, episodes[index].ID)
	return nil
}

func chooseDanmakuProviders(state *episode.FetchSelectPlayState, session *episode.Session) error {
	providers := session.Danmaku.Providers()
	if len(providers) == 0 {
		return errors.New("no danmaku providers installed")
	}

	enabled := session.Danmaku.Enabled().Get()

	var chosen []string
	err := survey.AskOne(&survey.MultiSelect{
		Message: "Enabled providers",
		Options: providers,
		Default: lo.Filter(providers, func(id string, _ int) bool { return enabled[id] }),
	}, &chosen)
	if err != nil {
		return err
	}

	for _, id := range providers {
		want := lo.Contains(chosen, id)
		if want == enabled[id] {
			continue
		}

		if err := state.SetDanmakuEnabled(id, want); err != nil {
			return err
		}
	}

	return nil
}

func postDanmaku(ctx context.Context, session *episode.Session) error {
	enabled := session.Danmaku.Enabled().Get()
	providers := lo.Filter(session.Danmaku.Providers(), func(id string, _ int) bool { return enabled[id] })
	if len(providers) == 0 {
		return errors.New("no danmaku provider enabled")
	}

	providerID := providers[0]
	if len(providers) > 1 {
		if err := survey.AskOne(&survey.Select{Message: "Post to", Options: providers}, &providerID); err != nil {
			return err
		}
	}

	var text string
	if err := survey.AskOne(&survey.Input{Message: "Comment"}, &text, survey.WithValidator(survey.Required)); err != nil {
		return err
	}

	posted, err := session.Danmaku.Post(ctx, providerID, text)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s %s\n", icon.Get(icon.Succeeded), posted.Text, style.Faint(fmt.Sprintf("at %ds", posted.PlayTimeMillis/1000)))
	return nil
}

func episodeLabel(state *episode.FetchSelectPlayState, e metadata.Episode) string {
	label := fmt.Sprintf("%02d", e.Sort)
	if e.Name != "" {
		label += " " + e.Name
	}
	if !e.KnownCompleted {
		label += " " + style.Faint("(not aired)")
	}
	if history.Default.IsWatched(history.Key{SubjectID: state.SubjectID(), EpisodeID: e.ID}) {
		label = icon.Get(icon.Finished) + " " + label
	}

	return truncate.StringWithTail(label, uint(util.TerminalWidth(80)-4), "…")
}

func switchEpisode(ctx context.Context, state *episode.FetchSelectPlayState, episodeID string) {
	err := state.SwitchEpisode(ctx, episodeID)
	if errors.Is(err, episode.ErrSuperseded) || errors.Is(err, episode.ErrClosed) {
		return
	}
	printControlErr(err)
}

func printControlErr(err error) {
	if err == nil || errors.Is(err, terminal.InterruptErr) {
		return
	}
	fmt.Printf("%s %s\n", icon.Get(icon.Failed), err)
}

func kindIcon(kind source.Kind) string {
	switch kind {
	case source.KindBitTorrent:
		return icon.Get(icon.BitTorrent)
	case source.KindLocal:
		return icon.Get(icon.Local)
	default:
		return icon.Get(icon.Web)
	}
}
