package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"biru/internal/ipc"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var title string
	var sourceType string
	var contentType string

	cmd := &cobra.Command{
		Use:   "ingest <source>",
		Short: "Queue a source video for analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := strings.TrimSpace(args[0])
			if source == "" {
				return fmt.Errorf("source must not be empty")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				asset, err := client.Ingest(title, source, sourceType, contentType)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued asset %d %q (%s)\n", asset.ID, asset.Title, asset.Status)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Asset title (derived from the source when omitted)")
	cmd.Flags().StringVar(&sourceType, "source-type", "file", "Source type (file, url)")
	cmd.Flags().StringVar(&contentType, "content-type", "", "Content category hint (podcast, gameplay, tutorial)")
	return cmd
}
