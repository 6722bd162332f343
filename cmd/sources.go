package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"text/template"

	"github.com/anisan-cli/aniplay/color"
	"github.com/anisan-cli/aniplay/constant"
	"github.com/anisan-cli/aniplay/danmaku"
	"github.com/anisan-cli/aniplay/filesystem"
	"github.com/anisan-cli/aniplay/icon"
	"github.com/anisan-cli/aniplay/provider"
	"github.com/anisan-cli/aniplay/provider/custom"
	"github.com/anisan-cli/aniplay/source"
	"github.com/anisan-cli/aniplay/style"
	"github.com/anisan-cli/aniplay/util"
	"github.com/anisan-cli/aniplay/where"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

// sourcesCmd provides a parent command for managing provider scripts.
var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage media source and danmaku provider scripts",
}

func init() {
	sourcesCmd.AddCommand(sourcesListCmd)

	sourcesListCmd.Flags().BoolP("raw", "r", false, "Suppress headers in the output")
	sourcesListCmd.Flags().BoolP("media", "m", false, "Display only media sources")
	sourcesListCmd.Flags().BoolP("danmaku", "d", false, "Display only danmaku providers")

	sourcesListCmd.MarkFlagsMutuallyExclusive("media", "danmaku")
	sourcesListCmd.SetOut(os.Stdout)
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Display the installed provider scripts",
	Run: func(cmd *cobra.Command, args []string) {
		scripts, err := provider.List()
		handleErr(err)

		printHeader := !lo.Must(cmd.Flags().GetBool("raw"))
		headerStyle := style.New().Foreground(color.HiBlue).Bold(true).Render

		list := func(header string, role custom.Role) {
			if printHeader {
				cmd.Println(headerStyle(header))
			}

			for _, s := range scripts {
				if s.Role != role {
					continue
				}

				if printHeader {
					cmd.Printf("%s %s %s\n", scriptIcon(s), s.Name, style.Kind(string(s.Kind), string(s.Kind)))
				} else {
					cmd.Println(s.Name)
				}
			}
		}

		switch {
		case lo.Must(cmd.Flags().GetBool("media")):
			list("Media:", custom.RoleMedia)
		case lo.Must(cmd.Flags().GetBool("danmaku")):
			list("Danmaku:", custom.RoleDanmaku)
		default:
			list("Media:", custom.RoleMedia)
			if printHeader {
				cmd.Println()
			}
			list("Danmaku:", custom.RoleDanmaku)
		}
	},
}

func scriptIcon(s *custom.Script) string {
	if s.Role == custom.RoleDanmaku {
		return icon.Get(icon.Danmaku)
	}
	return kindIcon(s.Kind)
}

func init() {
	sourcesCmd.AddCommand(sourcesRemoveCmd)

	sourcesRemoveCmd.Flags().StringArrayP("name", "n", []string{}, "Name of the script(s) to uninstall")
	lo.Must0(sourcesRemoveCmd.RegisterFlagCompletionFunc("name", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		scripts, err := provider.List()
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}

		return lo.Map(scripts, func(s *custom.Script, _ int) string { return s.Name }), cobra.ShellCompDirectiveNoFileComp
	}))
}

var sourcesRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Uninstall provider scripts",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range lo.Must(cmd.Flags().GetStringArray("name")) {
			script, ok := provider.Get(name)
			if !ok {
				handleErr(fmt.Errorf("no script named %q", name))
			}

			handleErr(filesystem.API().Remove(script.Path))
			fmt.Printf("%s removed %s\n", icon.Get(icon.Succeeded), style.Fg(color.Yellow)(script.Name))
		}
	},
}

func init() {
	sourcesCmd.AddCommand(sourcesUpdateCmd)
	sourcesUpdateCmd.Flags().String("from", provider.RepoRawURL, "Base URL the scripts are downloaded from")
}

var sourcesUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Refresh the installed scripts from the script repository",
	Run: func(cmd *cobra.Command, args []string) {
		scripts, err := provider.List()
		handleErr(err)

		files := lo.Map(scripts, func(s *custom.Script, _ int) string { return filepath.Base(s.Path) })
		if len(files) == 0 {
			fmt.Println("No scripts installed")
			return
		}

		updated := provider.Update(cmd.Context(), lo.Must(cmd.Flags().GetString("from")), files...)
		if len(updated) == 0 {
			fmt.Printf("%s all %s up to date\n", icon.Get(icon.Succeeded), util.Quantify(len(files), "script", "scripts"))
			return
		}

		for _, file := range updated {
			fmt.Printf("%s updated %s\n", icon.Get(icon.Succeeded), style.Fg(color.Yellow)(util.FileStem(file)))
		}
	},
}

func init() {
	sourcesCmd.AddCommand(sourcesGenCmd)

	sourcesGenCmd.Flags().StringP("name", "n", "", "Display name of the new provider")
	sourcesGenCmd.Flags().StringP("url", "u", "", "Base URL of the target website")
	sourcesGenCmd.Flags().StringP("kind", "k", string(source.KindWeb), "Media kind: web, bt or local")
	sourcesGenCmd.Flags().BoolP("danmaku", "d", false, "Scaffold a danmaku provider instead of a media source")

	lo.Must0(sourcesGenCmd.MarkFlagRequired("name"))
	lo.Must0(sourcesGenCmd.MarkFlagRequired("url"))
}

// sourcesGenCmd scaffolds a boilerplate Lua provider script.
var sourcesGenCmd = &cobra.Command{
	Use:   "gen",
	Short: "Scaffold a new Lua provider script",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SetOut(os.Stdout)

		author := "Anonymous"
		if usr, err := user.Current(); err == nil {
			author = usr.Username
		}

		kind, ok := source.ParseKind(lo.Must(cmd.Flags().GetString("kind")))
		if !ok {
			handleErr(fmt.Errorf("unknown media kind %q", lo.Must(cmd.Flags().GetString("kind"))))
		}

		s := struct {
			Name, URL, Author string
			Kind              source.Kind

			QueryFn           string
			SearchSubjectsFn  string
			SubjectEpisodesFn string
			EpisodeDanmakuFn  string
			PostDanmakuFn     string
		}{
			Name:              lo.Must(cmd.Flags().GetString("name")),
			URL:               lo.Must(cmd.Flags().GetString("url")),
			Author:            author,
			Kind:              kind,
			QueryFn:           constant.QueryMediaFn,
			SearchSubjectsFn:  constant.SearchSubjectsFn,
			SubjectEpisodesFn: constant.SubjectEpisodesFn,
			EpisodeDanmakuFn:  constant.EpisodeDanmakuFn,
			PostDanmakuFn:     constant.PostDanmakuFn,
		}

		funcMap := template.FuncMap{
			"repeat": strings.Repeat,
			"plus":   func(a, b int) int { return a + b },
			"max":    func(values ...int) int { return slices.Max(values) },
		}

		text := lo.Ternary(lo.Must(cmd.Flags().GetBool("danmaku")), constant.DanmakuProviderTemplate, constant.MediaSourceTemplate)
		tmpl, err := template.New("source").Funcs(funcMap).Parse(text)
		handleErr(err)

		target := filepath.Join(where.Sources(), util.SanitizeFilename(s.Name)+".lua")
		f, err := filesystem.API().Create(target)
		handleErr(err)
		defer f.Close()

		handleErr(tmpl.Execute(f, s))
		cmd.Println(target)
	},
}

func init() {
	sourcesCmd.AddCommand(sourcesRunCmd)

	sourcesRunCmd.Flags().StringP("query", "q", "", "Subject name to query with")
	sourcesRunCmd.Flags().IntP("episode", "e", 1, "Episode number to query with")
	sourcesRunCmd.Flags().BoolP("json", "j", false, "Print the results as JSON")
	lo.Must0(sourcesRunCmd.MarkFlagRequired("query"))
	sourcesRunCmd.SetOut(os.Stdout)
}

// sourcesRunCmd runs a script once, for script development.
var sourcesRunCmd = &cobra.Command{
	Use:     "run [file]",
	Short:   "Run a Lua provider script once and print what it returns",
	Args:    cobra.ExactArgs(1),
	Example: "  aniplay sources run ./example.lua -q \"sousou no frieren\" -e 4",
	Run: func(cmd *cobra.Command, args []string) {
		script, err := custom.Load(args[0])
		handleErr(err)

		var (
			query   = lo.Must(cmd.Flags().GetString("query"))
			number  = lo.Must(cmd.Flags().GetInt("episode"))
			asJson  = lo.Must(cmd.Flags().GetBool("json"))
			results any
		)

		switch script.Role {
		case custom.RoleMedia:
			media, err := custom.NewMediaSource(script)
			handleErr(err)

			results, err = media.Query(cmd.Context(), &source.FetchRequest{
				EpisodeID:    strconv.Itoa(number),
				SubjectNames: []string{query},
				EpisodeSort:  number,
			})
			handleErr(err)
		case custom.RoleDanmaku:
			provider, err := custom.NewDanmakuProvider(script)
			handleErr(err)

			results, err = provider.SearchSubjects(cmd.Context(), query)
			handleErr(err)
		}

		if asJson {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			handleErr(encoder.Encode(results))
			return
		}

		cmd.Printf("%s %s %s\n", scriptIcon(script), style.Bold(script.Name), style.Faint(string(script.Role)))
		switch results := results.(type) {
		case []*source.Media:
			for _, m := range results {
				cmd.Printf("  %s %s\n", m, style.Faint(m.URL))
			}
		case []danmaku.Subject:
			for _, s := range results {
				cmd.Printf("  %s\t%s\n", style.Faint(s.ID), subjectLabel(s))
			}
		}
	},
}
