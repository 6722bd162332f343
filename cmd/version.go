package cmd

import (
	"context"
	"os"
	"runtime"
	"strings"
	"text/template"

	"github.com/anisan-cli/aniplay/color"
	"github.com/anisan-cli/aniplay/constant"
	"github.com/anisan-cli/aniplay/icon"
	"github.com/anisan-cli/aniplay/style"
	"github.com/anisan-cli/aniplay/version"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.SetOut(os.Stdout)
	versionCmd.Flags().BoolP("short", "s", false, "Only print the version")
	versionCmd.Flags().BoolP("check", "c", false, "Compare with the latest release and exit")
}

var versionTemplate = lo.Must(template.New("version").Funcs(template.FuncMap{
	"faint":   style.Faint,
	"bold":    style.Bold,
	"magenta": style.Fg(color.Purple),
}).Parse(`{{ magenta "▇▇▇" }} {{ magenta .App }}

  {{ faint "Version" }}      {{ bold .Version }}
  {{ faint "Commit" }}       {{ bold .Revision }}
  {{ faint "Built" }}        {{ bold .BuiltAt }} {{ faint "by" }} {{ bold .BuiltBy }}
  {{ faint "Platform" }}     {{ bold .OS }}/{{ bold .Arch }}
  {{ faint "Script hooks" }} {{ bold .ScriptHooks }}
`))

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and build information",
	Run: func(cmd *cobra.Command, args []string) {
		if lo.Must(cmd.Flags().GetBool("short")) {
			cmd.Println(constant.Version)
			return
		}

		if lo.Must(cmd.Flags().GetBool("check")) {
			handleErr(checkVersion(cmd))
			return
		}

		defer version.Notify(context.Background())

		handleErr(versionTemplate.Execute(cmd.OutOrStdout(), struct {
			App, Version, Revision, BuiltAt, BuiltBy, OS, Arch, ScriptHooks string
		}{
			App:         constant.Aniplay,
			Version:     constant.Version,
			Revision:    constant.Revision,
			BuiltAt:     strings.TrimSpace(constant.BuiltAt),
			BuiltBy:     constant.BuiltBy,
			OS:          runtime.GOOS,
			Arch:        runtime.GOARCH,
			ScriptHooks: strings.Join([]string{constant.QueryMediaFn, constant.SearchSubjectsFn, constant.SubjectEpisodesFn, constant.EpisodeDanmakuFn, constant.PostDanmakuFn}, ", "),
		}))
	},
}

func checkVersion(cmd *cobra.Command) error {
	latest, err := version.Latest(cmd.Context())
	if err != nil {
		return err
	}

	newer, err := version.Compare(latest, constant.Version)
	if err != nil {
		return err
	}

	if newer > 0 {
		cmd.Printf("%s %s is out, you have %s\n", icon.Get(icon.Warn), style.Fg(color.Green)(latest), style.Faint(constant.Version))
		return nil
	}

	cmd.Printf("%s %s is the latest release\n", icon.Get(icon.Succeeded), constant.Version)
	return nil
}
