package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/anisan-cli/aniplay/color"
	"github.com/anisan-cli/aniplay/danmaku"
	"github.com/anisan-cli/aniplay/episode"
	"github.com/anisan-cli/aniplay/icon"
	"github.com/anisan-cli/aniplay/key"
	"github.com/anisan-cli/aniplay/preference"
	"github.com/anisan-cli/aniplay/provider"
	"github.com/anisan-cli/aniplay/provider/custom"
	"github.com/anisan-cli/aniplay/style"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// matchDanmaku walks the user through picking a provider's subject and episode
// for the current episode by hand.
func matchDanmaku(ctx context.Context, session *episode.Session) error {
	providers := session.Danmaku.Providers()
	if len(providers) == 0 {
		return errors.New("no danmaku providers installed")
	}

	providerID := providers[0]
	if len(providers) > 1 {
		if err := survey.AskOne(&survey.Select{Message: "Provider", Options: providers}, &providerID); err != nil {
			return err
		}
	}

	match, err := session.Danmaku.StartInteractiveMatch(providerID)
	if err != nil {
		return err
	}

	if err := completeMatch(ctx, match, session.Subject.PrimaryName()); err != nil {
		match.Cancel()
		return err
	}

	fmt.Printf("%s %s matched by hand\n", icon.Get(icon.Danmaku), providerID)
	return nil
}

func completeMatch(ctx context.Context, match *danmaku.MatchSession, query string) error {
	if err := survey.AskOne(&survey.Input{Message: "Search " + match.ProviderID(), Default: query}, &query, survey.WithValidator(survey.Required)); err != nil {
		return err
	}

	subjects, err := match.SubmitQuery(ctx, query)
	if err != nil {
		return err
	}
	if len(subjects) == 0 {
		return fmt.Errorf("nothing found for %q", query)
	}

	var subjectIndex int
	err = survey.AskOne(&survey.Select{
		Message:  "Subject",
		Options:  lo.Map(subjects, func(s danmaku.Subject, _ int) string { return subjectLabel(s) }),
		PageSize: 10,
	}, &subjectIndex)
	if err != nil {
		return err
	}

	episodes, err := match.SelectSubject(ctx, subjects[subjectIndex].ID)
	if err != nil {
		return err
	}
	if len(episodes) == 0 {
		return fmt.Errorf("%s has no episodes", subjects[subjectIndex].Title)
	}

	var episodeIndex int
	err = survey.AskOne(&survey.Select{
		Message: "Episode",
		Options: lo.Map(episodes, func(e danmaku.Episode, _ int) string {
			return strings.TrimSpace(e.Sort + " " + e.Title)
		}),
		PageSize: 12,
	}, &episodeIndex)
	if err != nil {
		return err
	}

	if err := match.SelectEpisode(episodes[episodeIndex].ID); err != nil {
		return err
	}

	return match.Complete(ctx)
}

func subjectLabel(s danmaku.Subject) string {
	if len(s.Aliases) == 0 {
		return s.Title
	}
	return s.Title + " " + style.Faint("("+strings.Join(s.Aliases, ", ")+")")
}

func init() {
	rootCmd.AddCommand(danmakuCmd)
}

var danmakuCmd = &cobra.Command{
	Use:   "danmaku",
	Short: "Manage danmaku providers",
}

func init() {
	danmakuCmd.AddCommand(danmakuListCmd)
	danmakuListCmd.SetOut(os.Stdout)
}

var danmakuListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the installed danmaku providers and whether they are enabled",
	Run: func(cmd *cobra.Command, args []string) {
		scripts, err := provider.List()
		handleErr(err)

		preferences, err := preference.OpenDefault()
		handleErr(err)

		enabled := preferences.Get().DanmakuProviders
		for _, script := range scripts {
			if script.Role != custom.RoleDanmaku {
				continue
			}

			on, ok := enabled[script.Name]
			if !ok || on {
				cmd.Printf("%s %s\n", icon.Get(icon.Succeeded), script.Name)
			} else {
				cmd.Printf("%s %s\n", icon.Get(icon.Disabled), style.Faint(script.Name))
			}
		}

		if !viper.GetBool(key.DanmakuEnable) {
			cmd.Printf("\n%s danmaku is turned off, see %s\n", icon.Get(icon.Warn), style.Fg(color.Yellow)(key.DanmakuEnable))
		}
	},
}

func init() {
	danmakuCmd.AddCommand(danmakuEnableCmd, danmakuDisableCmd)
}

var danmakuEnableCmd = &cobra.Command{
	Use:               "enable [provider]",
	Short:             "Enable a danmaku provider",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completionScripts(custom.RoleDanmaku),
	Run: func(cmd *cobra.Command, args []string) {
		handleErr(setDanmakuProvider(args[0], true))
	},
}

var danmakuDisableCmd = &cobra.Command{
	Use:               "disable [provider]",
	Short:             "Disable a danmaku provider",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completionScripts(custom.RoleDanmaku),
	Run: func(cmd *cobra.Command, args []string) {
		handleErr(setDanmakuProvider(args[0], false))
	},
}

func setDanmakuProvider(name string, enabled bool) error {
	script, ok := provider.Get(name)
	if !ok || script.Role != custom.RoleDanmaku {
		return fmt.Errorf("no danmaku provider named %q", name)
	}

	preferences, err := preference.OpenDefault()
	if err != nil {
		return err
	}

	if err := preferences.SetDanmakuEnabled(script.Name, enabled); err != nil {
		return err
	}

	fmt.Printf(
		"%s %s %s\n",
		style.Fg(color.Green)(icon.Get(icon.Succeeded)),
		lo.Ternary(enabled, "enabled", "disabled"),
		style.Fg(color.Yellow)(script.Name),
	)
	return nil
}

func init() {
	danmakuCmd.AddCommand(danmakuSearchCmd)
	danmakuSearchCmd.Flags().StringP("provider", "p", "", "Provider to search, the first installed one when empty")
	lo.Must0(danmakuSearchCmd.RegisterFlagCompletionFunc("provider", completionScripts(custom.RoleDanmaku)))
	danmakuSearchCmd.SetOut(os.Stdout)
}

var danmakuSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search a danmaku provider's catalog",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var names []string
		if name := lo.Must(cmd.Flags().GetString("provider")); name != "" {
			names = append(names, name)
		}

		providers, err := provider.DanmakuProviders(names...)
		handleErr(err)
		if len(providers) == 0 {
			handleErr(errors.New("no danmaku providers installed"))
		}

		interactive, ok := providers[0].(danmaku.InteractiveProvider)
		if !ok {
			handleErr(fmt.Errorf("%w: %s", danmaku.ErrInteractiveUnsupported, providers[0].ID()))
		}

		query := strings.Join(args, " ")
		subjects, err := interactive.SearchSubjects(cmd.Context(), query)
		handleErr(err)

		for _, subject := range danmaku.RankSubjects(query, subjects) {
			cmd.Printf("%s\t%s\n", style.Faint(subject.ID), subjectLabel(subject))
		}
	},
}
