package main

import (
	"fmt"
	"strings"

	"github.com/aliuyar1234/taskhub/internal/audit"
	"github.com/aliuyar1234/taskhub/internal/auth"
	"github.com/spf13/cobra"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Operator maintenance commands",
}

var resetPasswordCmd = &cobra.Command{
	Use:   "reset-password",
	Short: "Replace a user's password",
	Long: `Replaces the password of the user with --email. If --password is omitted a
random password is generated and printed.`,
	Args: cobra.NoArgs,
	RunE: runResetPassword,
}

func init() {
	addDBFlags(resetPasswordCmd)
	resetPasswordCmd.Flags().String("email", "", "User email")
	resetPasswordCmd.Flags().String("password", "", "New password (if empty, generates one)")
	_ = resetPasswordCmd.MarkFlagRequired("email")

	adminCmd.AddCommand(resetPasswordCmd)
}

func runResetPassword(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")

	cfg, h, s, err := openToolStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer h.Close()

	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	generated, err := auth.ResetPassword(ctx, s, hasher, audit.NewWriter(s), nil, strings.TrimSpace(email), password)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Password updated.")
	if generated != "" {
		fmt.Fprintln(out, generated)
	}
	return nil
}
