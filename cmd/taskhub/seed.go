package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/aliuyar1234/taskhub/internal/app"
	"github.com/aliuyar1234/taskhub/internal/db"
	"github.com/aliuyar1234/taskhub/internal/provision"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Provision organizations and users from a seed file",
	Long: `Creates missing organizations, users and memberships. Existing rows are
left untouched, so running seed repeatedly is safe. Without --file the
built-in demo tenants are used.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	addDBFlags(seedCmd)
	seedCmd.Flags().String("file", "", "YAML seed file (defaults to TH_SEED_FILE, then the built-in demo tenants)")
	seedCmd.Flags().Bool("migrate", false, "Apply pending migrations first")
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, h, s, err := openToolStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer h.Close()

	if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
		if err := db.RunMigrations(ctx, h.DB, h.Driver); err != nil {
			return err
		}
	}

	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		path = cfg.SeedFile
	}
	groups, err := provision.Source(path)
	if err != nil {
		return err
	}

	report := app.NewProvisioner(cfg, s, nil).Run(ctx, groups)
	printReport(cmd.OutOrStdout(), report)

	if report.HasFailures() {
		return fmt.Errorf("%d of %d users failed to provision", report.Failed, len(report.Results))
	}
	return nil
}

func printReport(out io.Writer, report *provision.Report) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORGANIZATION\tEMAIL\tROLE\tRESULT")
	for _, r := range report.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Organization, r.Email, r.Role, describe(r))
	}
	_ = tw.Flush()

	fmt.Fprintf(out, "\n%d organizations, %d users, %d memberships created; %d failed (%s)\n",
		report.OrgsCreated, report.UsersCreated, report.MembershipsCreated, report.Failed, report.Duration.Round(time.Millisecond))
}

func describe(r provision.UserResult) string {
	switch {
	case r.Err != nil:
		return "failed: " + r.Err.Error()
	case r.MembershipCreated && r.UserCreated:
		return "created user and membership"
	case r.MembershipCreated:
		return "created membership"
	case r.ExistingRole != "" && r.ExistingRole != r.Role:
		return fmt.Sprintf("exists (kept role %s)", r.ExistingRole)
	default:
		return "exists"
	}
}
