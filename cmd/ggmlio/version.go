package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/born-ml/ggmlio/internal/loader"
	"github.com/born-ml/ggmlio/internal/serialization"
)

var (
	version = "v0.0.1-dev"
	commit  = "none"
	date    = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "ggmlio %s\n", version)
			fmt.Fprintf(w, "  commit: %s\n", commit)
			fmt.Fprintf(w, "  built: %s\n", date)
			fmt.Fprintf(w, "  record encoding: v%d\n", serialization.EncodingVersion)
			fmt.Fprintf(w, "  manifest schema: v%d\n", loader.ManifestVersion)
		},
	}
}
