package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Log is the process-wide zerolog logger, console-rendered like the
// teacher's rootCmd logger, shared by every subcommand.
var Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).With().Timestamp().Logger()

var rootCmd = &cobra.Command{
	Use:   "subgen <command>",
	Short: "Cloud-batch speech-to-text subtitle generation service",
	Long: `subgen generates timed subtitle files for video and audio media by
driving a cloud speech-to-text batch service. It accepts work from
media-server webhooks, a subtitle-manager's ASR protocol, and an
interactive batch submitter.

Example:
  subgen serve
  subgen submit movie.mkv --language en`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug-level logging")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
	}
}
