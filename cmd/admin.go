package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"sax-estudios/internal/admin"
	"sax-estudios/internal/config"
)

func removeCmd(configPath *string) *cobra.Command {
	var docID string
	cmd := &cobra.Command{
		Use:   "remove <clientId>",
		Short: "Elimina una solicitud (--doc) o todas las solicitudes de un cliente",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := newLogger(cfg.Log, os.Stderr)

			app, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			var res admin.Removal
			if docID != "" {
				res, err = app.admin.RemoveSubmission(cmd.Context(), args[0], docID)
			} else {
				res, err = app.admin.RemoveClient(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&docID, "doc", "", "docId de la solicitud a eliminar")
	return cmd
}

func tokenCmd(configPath *string) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Genera un token de administrador",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			token, err := admin.IssueToken(cfg.Admin.JWTSecret, subject, ttl, time.Now())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "admin", "identificador del operador")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "vigencia del token")
	return cmd
}
