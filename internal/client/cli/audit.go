package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iudanet/estisync/internal/client/storage/boltdb"
	"github.com/iudanet/estisync/internal/conflict"
)

func newAuditCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "audit <document>",
		Short: "List conflicts resolved on this machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			documentID := args[0]

			path := a.cfg.Client.CachePath
			if path == "" {
				return errors.New("audit notes live in the local cache, which is disabled")
			}
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				a.io.Printf("No resolved conflicts for %s\n", documentID)
				return nil
			}

			cache, err := boltdb.New(ctx, path)
			if err != nil {
				return fmt.Errorf("failed to open cache: %w", err)
			}
			defer cache.Close()

			notes, err := cache.ListAudit(ctx, documentID)
			if err != nil {
				return fmt.Errorf("failed to read audit notes: %w", err)
			}

			if asJSON {
				data, err := json.MarshalIndent(notes, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode audit notes: %w", err)
				}
				a.io.Println(string(data))
				return nil
			}
			if len(notes) == 0 {
				a.io.Printf("No resolved conflicts for %s\n", documentID)
				return nil
			}
			for _, n := range notes {
				a.io.Println(conflict.FormatNote(n))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print notes as JSON")
	return cmd
}
