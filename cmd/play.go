package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/anisan-cli/aniplay/aniskip"
	"github.com/anisan-cli/aniplay/color"
	"github.com/anisan-cli/aniplay/danmaku"
	"github.com/anisan-cli/aniplay/episode"
	"github.com/anisan-cli/aniplay/extension"
	"github.com/anisan-cli/aniplay/history"
	"github.com/anisan-cli/aniplay/icon"
	"github.com/anisan-cli/aniplay/key"
	"github.com/anisan-cli/aniplay/log"
	"github.com/anisan-cli/aniplay/metadata"
	"github.com/anisan-cli/aniplay/metrics"
	"github.com/anisan-cli/aniplay/player"
	"github.com/anisan-cli/aniplay/preference"
	"github.com/anisan-cli/aniplay/provider"
	"github.com/anisan-cli/aniplay/selector"
	"github.com/anisan-cli/aniplay/source"
	"github.com/anisan-cli/aniplay/style"
	"github.com/anisan-cli/aniplay/util"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var errNoPlayableSource = errors.New("every media failed to play, try another source")

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().StringP("episode", "e", "", "Episode to start with, the first unwatched one when empty")
	playCmd.Flags().String("id", "", "AniList id of the subject, skips the title search")
	playCmd.Flags().BoolP("interactive", "i", false, "Prompt for actions while playing")
	playCmd.Flags().Bool("no-danmaku", false, "Do not load danmaku")
}

var playCmd = &cobra.Command{
	Use:   "play [title]",
	Short: "Find an anime and play its episodes",
	Example: `  aniplay play "sousou no frieren" -e 4
  aniplay play --id 154587 -P print | xargs -n2 sh -c 'yt-dlp "$1"' _`,
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return metadata.Default().Suggest(toComplete), cobra.ShellCompDirectiveNoFileComp
	},
	Run: func(cmd *cobra.Command, args []string) {
		options := playOptions{
			title:       strings.Join(args, " "),
			episode:     lo.Must(cmd.Flags().GetString("episode")),
			subjectID:   lo.Must(cmd.Flags().GetString("id")),
			interactive: lo.Must(cmd.Flags().GetBool("interactive")),
			danmaku:     viper.GetBool(key.DanmakuEnable) && !lo.Must(cmd.Flags().GetBool("no-danmaku")),
		}

		if options.title == "" && options.subjectID == "" {
			handleErr(errors.New("a title or --id is required"))
		}

		handleErr(play(cmd.Context(), options))
	},
}

type playOptions struct {
	title       string
	episode     string
	subjectID   string
	interactive bool
	danmaku     bool
}

func play(ctx context.Context, options playOptions) error {
	subjectID, err := resolveSubject(ctx, options)
	if err != nil {
		return err
	}

	sources, err := provider.MediaSources(viper.GetStringSlice(key.FetchSources)...)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return errors.New("no media sources installed, see `aniplay sources`")
	}

	var providers []danmaku.Provider
	if options.danmaku {
		if providers, err = provider.DanmakuProviders(viper.GetStringSlice(key.DanmakuProviders)...); err != nil {
			return err
		}
	}

	name := viper.GetString(key.Player)
	if name == "" || name == "mpv" {
		CheckDependencies()
	}

	engine, err := player.New(name, os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Warnf("close player: %s", err)
		}
	}()
	_, printing := engine.(*player.Printer)

	preferences, err := preference.OpenDefault()
	if err != nil {
		return err
	}

	index := extension.NewTorrentIndex()
	sources = append(sources, index)

	config := extension.ConfigFromViper(history.Default, preferences)
	config.Cacher = index
	config.Skipper = aniskip.Default

	state, err := episode.New(subjectID, episode.Dependencies{
		Metadata:         metadata.Default(),
		Sources:          sources,
		DanmakuProviders: providers,
		Player:           engine,
		Preferences:      preferences,
		Extensions:       extension.Chain(config),
		Options:          episode.OptionsFromConfig(),
	})
	if err != nil {
		return err
	}
	defer state.Close()

	first, err := firstEpisode(ctx, state, options.episode)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, ctx := errgroup.WithContext(ctx)

	if viper.GetBool(key.MetricsEnable) {
		group.Go(func() error {
			return metrics.Serve(ctx, viper.GetString(key.MetricsAddress))
		})
	}

	group.Go(func() error {
		defer cancel()
		return watch(ctx, state, printing)
	})

	group.Go(func() error {
		err := state.SwitchEpisode(ctx, first)
		if errors.Is(err, episode.ErrSuperseded) || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if options.interactive && !printing && util.IsTerminal() {
		// Prompts block on stdin and cannot be interrupted, so they stay out of the group.
		go controls(ctx, state, cancel)
	}

	return group.Wait()
}

func resolveSubject(ctx context.Context, options playOptions) (string, error) {
	if options.subjectID != "" {
		return options.subjectID, nil
	}

	subject, err := metadata.Default().FindClosest(ctx, options.title)
	if err != nil {
		return "", err
	}

	fmt.Printf("%s %s\n", icon.Get(icon.Succeeded), style.Bold(subject.String()))
	return subject.ID, nil
}

// firstEpisode is the requested episode, else the first one not watched yet.
func firstEpisode(ctx context.Context, state *episode.FetchSelectPlayState, requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}

	episodes, err := state.Episodes(ctx)
	if err != nil {
		return "", err
	}
	if len(episodes) == 0 {
		return "", episode.ErrUnknownEpisode
	}

	unwatched, ok := lo.Find(episodes, func(e metadata.Episode) bool {
		return !history.Default.IsWatched(history.Key{SubjectID: state.SubjectID(), EpisodeID: e.ID})
	})
	if !ok {
		return episodes[0].ID, nil
	}
	return unwatched.ID, nil
}

// watch reports the episodes as they load and play. It returns once playback
// ends: the player went idle on the session it was playing, or, when printing,
// after the first media was handed over.
func watch(ctx context.Context, state *episode.FetchSelectPlayState, printing bool) error {
	var (
		pages    = state.State().Subscribe(ctx)
		playback = state.Player().Playback().Subscribe(ctx)

		summaries <-chan selector.Summary
		noSource  <-chan bool
		results   <-chan []source.Result[*source.Media]

		current *episode.Session
		playing *episode.Session
	)

	for {
		select {
		case <-ctx.Done():
			return nil

		case page, ok := <-pages:
			if !ok {
				return nil
			}

			switch {
			case page.LoadError != nil:
				return page.LoadError
			case page.Phase == episode.PhaseLoading:
				fmt.Printf("%s loading episode %s\n", icon.Get(icon.Working), page.EpisodeID)
			case page.Phase == episode.PhaseReady && page.Session != current:
				current = page.Session
				if page.SeriesError != nil {
					fmt.Printf("%s %s\n", icon.Get(icon.Warn), style.Faint(page.SeriesError.Error()))
				}
				fmt.Printf("%s %s\n", icon.Get(icon.Play), style.Bold(current.Title()))

				summaries = current.Selector.Summary().Subscribe(current.Context())
				noSource = current.NoPlayableSource.Subscribe(current.Context())
				results = current.Fetch.Results().Subscribe(current.Context())

				showDanmaku(current, state.Player())
			}

		case summary, ok := <-summaries:
			if !ok {
				summaries = nil
				continue
			}
			fmt.Printf("%s %s\n", icon.Get(icon.Selected), style.Fg(color.Purple)(summary.String()))

		case list, ok := <-results:
			if !ok {
				results = nil
				continue
			}

			if done := lo.EveryBy(list, func(r source.Result[*source.Media]) bool { return r.IsTerminal() }); done {
				results = nil
				reportResults(list)
				if len(current.Fetch.Cumulative().Get()) == 0 {
					return fmt.Errorf("no media found for %s", current.Title())
				}
			}

		case failed, ok := <-noSource:
			if !ok {
				noSource = nil
				continue
			}
			if failed {
				return errNoPlayableSource
			}

		case playbackState, ok := <-playback:
			if !ok {
				return nil
			}

			switch playbackState {
			case player.StatePlaying:
				playing = current
				if printing {
					return nil
				}
			case player.StatePaused:
				engine := state.Player()
				fmt.Printf("%s %s\n", icon.Get(icon.Pause), style.Position(engine.Position().Get(), engine.Duration().Get()))
			case player.StateFinished:
				fmt.Printf("%s %s\n", icon.Get(icon.Finished), style.Faint("finished"))
			case player.StateIdle:
				if playing != nil && state.Current().OrEmpty() == playing {
					return nil
				}
			}
		}
	}
}

// showDanmaku draws the session's danmaku over the video while the session lives.
func showDanmaku(session *episode.Session, engine player.Engine) {
	screen, ok := engine.(danmaku.Screen)
	if !ok || !viper.GetBool(key.DanmakuOSD) || len(session.Danmaku.Providers()) == 0 {
		return
	}

	osd := danmaku.NewOSD(screen, danmaku.OSDOptions{
		Lines: viper.GetInt(key.DanmakuOSDLines),
		Hold:  viper.GetDuration(key.DanmakuOSDHold),
	})
	go osd.Run(session.Context(), session.Danmaku, engine.Position())
}

func reportResults(results []source.Result[*source.Media]) {
	for _, result := range results {
		switch result.State {
		case source.StateSucceeded:
			fmt.Printf("%s %s %s\n", icon.Get(icon.ForState(result.State)), result.InstanceID, style.Faint(util.Quantify(len(result.Items), "result", "results")))
		case source.StateFailed:
			reason := "failed"
			if result.Err != nil {
				reason = result.Err.Error()
			}
			fmt.Printf("%s %s %s\n", icon.Get(icon.ForState(result.State)), result.InstanceID, style.Fg(color.Red)(reason))
		case source.StateDisabled:
			fmt.Printf("%s %s\n", icon.Get(icon.ForState(result.State)), style.Faint(result.InstanceID))
		}
	}
}
