// Package cmd implements the command-line interface for aniplay.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/anisan-cli/aniplay/color"
	"github.com/anisan-cli/aniplay/constant"
	"github.com/anisan-cli/aniplay/icon"
	"github.com/anisan-cli/aniplay/key"
	"github.com/anisan-cli/aniplay/log"
	"github.com/anisan-cli/aniplay/player"
	"github.com/anisan-cli/aniplay/provider"
	"github.com/anisan-cli/aniplay/provider/custom"
	"github.com/anisan-cli/aniplay/style"
	"github.com/anisan-cli/aniplay/util"
	"github.com/anisan-cli/aniplay/version"
	"github.com/anisan-cli/aniplay/where"
	cc "github.com/ivanpirog/coloredcobra"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print the application version")

	rootCmd.PersistentFlags().StringP("icons", "I", "", "Set the visual icon variant (e.g., nerd, emoji, squares)")
	lo.Must0(rootCmd.RegisterFlagCompletionFunc("icons", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return icon.AvailableVariants(), cobra.ShellCompDirectiveDefault
	}))
	lo.Must0(viper.BindPFlag(key.IconsVariant, rootCmd.PersistentFlags().Lookup("icons")))

	rootCmd.PersistentFlags().StringSliceP("source", "S", []string{}, "Media sources to query, all installed ones when empty")
	lo.Must0(rootCmd.RegisterFlagCompletionFunc("source", completionScripts(custom.RoleMedia)))
	lo.Must0(viper.BindPFlag(key.FetchSources, rootCmd.PersistentFlags().Lookup("source")))

	rootCmd.PersistentFlags().StringP("player", "P", "", "Playback engine")
	lo.Must0(rootCmd.RegisterFlagCompletionFunc("player", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return player.Available(), cobra.ShellCompDirectiveNoFileComp
	}))
	lo.Must0(viper.BindPFlag(key.Player, rootCmd.PersistentFlags().Lookup("player")))

	helpFunc := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		helpFunc(cmd, args)
		version.Notify(context.Background())
	})

	// Player sockets left behind by a crashed run.
	go func() {
		_ = util.Delete(where.Temp())
	}()
}

func completionScripts(role custom.Role) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		scripts, err := provider.List()
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}

		return lo.FilterMap(scripts, func(s *custom.Script, _ int) (string, bool) {
			return s.Name, s.Role == role
		}), cobra.ShellCompDirectiveNoFileComp
	}
}

// rootCmd defines the entry point for the aniplay application.
var rootCmd = &cobra.Command{
	Use:   constant.Aniplay,
	Short: "Fetch, select and play anime episodes with danmaku",
	Long: style.Bold(constant.Aniplay) + "\n" +
		style.New().Italic(true).Foreground(color.HiRed).Render("    - fetch, select and play anime episodes with danmaku"),
	Args: cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("version") {
			versionCmd.Run(versionCmd, args)
			return
		}

		if len(args) == 0 {
			handleErr(cmd.Help())
			return
		}

		playCmd.Run(cmd, args)
	},
}

// Execute initializes child command routing and processes the CLI entry point.
func Execute() {
	if viper.GetBool(key.CliColored) {
		cc.Init(&cc.Config{
			RootCmd:       rootCmd,
			Headings:      cc.HiCyan + cc.Bold + cc.Underline,
			Commands:      cc.HiYellow + cc.Bold,
			Example:       cc.Italic,
			ExecName:      cc.Bold,
			Flags:         cc.Bold,
			FlagsDataType: cc.Italic + cc.HiBlue,
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func handleErr(err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}

	log.Error(err)
	_, _ = fmt.Fprintf(os.Stderr, "%s %s\n", icon.Get(icon.Failed), strings.Trim(err.Error(), " \n"))
	os.Exit(1)
}
