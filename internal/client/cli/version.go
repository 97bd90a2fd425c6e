package cli

import (
	"github.com/spf13/cobra"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.io.Println("Estisync Client")
			a.io.Printf("Version:    %s\n", a.info.Version)
			a.io.Printf("Build Date: %s\n", a.info.BuildDate)
			a.io.Printf("Git Commit: %s\n", a.info.GitCommit)
			return nil
		},
	}
}
