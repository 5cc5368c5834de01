package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"service-order-attachments/internal/app"
	"service-order-attachments/internal/bootstrap"
)

func newOperatorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Manage operator accounts",
	}
	cmd.AddCommand(newOperatorAddCommand())
	return cmd
}

func newOperatorAddCommand() *cobra.Command {
	var input app.RegisterInput
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an operator that can sign in to the JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			stores, err := bootstrap.OpenStores(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			defer stores.Close()

			auth := app.NewAuthService(stores.Operators, cfg.Auth.JWTSecret, time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute)
			op, err := auth.CreateOperator(cmd.Context(), input)
			if err != nil {
				return fmt.Errorf("create operator failed: %w", err)
			}
			logger.Info("operator created", slog.Uint64("id", uint64(op.ID)), slog.String("username", op.Username))
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", op.ID, op.Username, op.Workcenter)
			return nil
		},
	}
	cmd.Flags().StringVar(&input.Username, "username", "", "operator username")
	cmd.Flags().StringVar(&input.Password, "password", "", "operator password, at least 8 characters")
	cmd.Flags().StringVar(&input.Workcenter, "workcenter", "", "workcenter used when an API upload leaves it empty")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
