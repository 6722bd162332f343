package cmd

import (
	"os"
	"strings"

	"github.com/anisan-cli/aniplay/color"
	"github.com/anisan-cli/aniplay/config"
	"github.com/anisan-cli/aniplay/style"
	"github.com/anisan-cli/aniplay/where"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"
)

func init() {
	rootCmd.AddCommand(envCmd)
	envCmd.Flags().BoolP("set-only", "s", false, "Only show variables that are set")
	envCmd.Flags().BoolP("unset-only", "u", false, "Only show variables that are not set")
	envCmd.Flags().BoolP("describe", "d", false, "Show what each variable configures")

	envCmd.MarkFlagsMutuallyExclusive("set-only", "unset-only")
	envCmd.SetOut(os.Stdout)
}

type envVar struct {
	name, description string
}

func envVars() []envVar {
	vars := lo.MapToSlice(config.Default, func(_ string, field config.Field) envVar {
		return envVar{name: field.Env(), description: field.Description}
	})
	vars = append(vars, envVar{name: where.EnvConfigPath, description: "Directory of aniplay.toml and the provider scripts"})

	slices.SortFunc(vars, func(a, b envVar) int { return strings.Compare(a.name, b.name) })
	return vars
}

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Show the environment variables aniplay reads",
	Run: func(cmd *cobra.Command, args []string) {
		setOnly := lo.Must(cmd.Flags().GetBool("set-only"))
		unsetOnly := lo.Must(cmd.Flags().GetBool("unset-only"))
		describe := lo.Must(cmd.Flags().GetBool("describe"))

		for _, env := range envVars() {
			value, present := os.LookupEnv(env.name)
			if present && unsetOnly || !present && setOnly {
				continue
			}

			cmd.Print(style.New().Bold(true).Foreground(color.Purple).Render(env.name), "=")
			if present {
				cmd.Println(style.Fg(color.Green)(value))
			} else {
				cmd.Println(style.Fg(color.Red)("unset"))
			}

			if describe {
				cmd.Println(style.Faint("  " + env.description))
			}
		}
	},
}
