package main

import (
	"os"

	"github.com/ccalmels/opengl-player/pkg/decoder/libav"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "opengl-player [source]",
		Short: "Plays the video stream of a file or a pipe",
		Long: "Plays the video stream of the given source (a path or a libav URL);" +
			" the standard input is played if no source is given.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			source := libav.StdinURL
			if len(args) > 0 {
				source = args[0]
			}
			run(source)
		},
	}
	if err := root.Execute(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}
