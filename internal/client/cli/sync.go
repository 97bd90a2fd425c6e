package cli

import (
	"github.com/spf13/cobra"
)

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <document>",
		Short: "Save edits left in the local cache",
		Long: `Restore the unsaved draft of a document from the local cache and save it.

Drafts are left behind when a save fails, for example while the server
is unreachable or a conflict was not resolved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			documentID := args[0]

			s, closeSession, err := a.openSession(ctx, documentID, sessionOptions{useCache: true})
			if err != nil {
				return err
			}
			defer closeSession()

			if !s.Status().Unsaved() {
				a.io.Printf("Nothing to sync for %s (revision %d)\n", documentID, s.Status().Revision)
				return nil
			}
			if err := a.save(ctx, s); err != nil {
				return err
			}
			a.io.Printf("Saved %s at revision %d\n", documentID, s.Status().Revision)
			return nil
		},
	}
}
