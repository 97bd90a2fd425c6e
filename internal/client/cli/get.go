package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iudanet/estisync/internal/client/api"
	"github.com/iudanet/estisync/internal/models"
)

func newGetCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "get <document>",
		Short: "Show the saved state of a document",
		Example: `  # Show every field of an estimate
  estisync get est-42

  # Full document with value timestamps
  estisync get est-42 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(a.cfg.Client.ServerURL, a.logger)
			doc, err := client.Load(cmd.Context(), args[0])
			if errors.Is(err, models.ErrDocumentNotFound) {
				return fmt.Errorf("document %s has never been saved", args[0])
			}
			if err != nil {
				return err
			}

			if asJSON {
				data, err := json.MarshalIndent(doc, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode document: %w", err)
				}
				a.io.Println(string(data))
				return nil
			}
			a.printDocument(doc)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the document as JSON")
	return cmd
}
