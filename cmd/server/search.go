package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"service-order-attachments/internal/app"
	"service-order-attachments/internal/bootstrap"
)

func newSearchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search <service-order>",
		Short: "List the attachment URLs recorded for a service order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			stores, err := bootstrap.OpenStores(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer stores.Close()

			// Search never touches the blob store.
			service := app.NewAttachmentService(nil, stores.Records, app.AttachmentServiceConfig{
				PublicBaseURL: cfg.PublicBaseURL(),
				Bucket:        cfg.Storage.Bucket,
			}, app.WithLogger(logger))

			messages := app.NewMessages(cfg.App.Locale)
			locations, err := service.Search(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, app.ErrNoAttachments) || app.IsValidation(err) {
					fmt.Fprintln(cmd.ErrOrStderr(), messages.Describe(err))
				}
				return err
			}
			for _, p := range app.Previews(locations) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.Kind, p.URL)
			}
			return nil
		},
	}
}
