package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mfuentes/cuentaclara/internal/cli"
	"github.com/mfuentes/cuentaclara/internal/common"
	"github.com/mfuentes/cuentaclara/internal/service"
	"github.com/mfuentes/cuentaclara/internal/storage"
)

func auditsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audits",
		Short: "List stored audit runs",
		RunE:  runAudits,
	}

	cmd.Flags().Int("limit", 20, "maximum number of audits to list")

	return cmd
}

func runAudits(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := storage.NewSQLiteStorage(viper.GetString("database.path"))
	if err != nil {
		return common.NewUserError("could not open audit database", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(ctx); err != nil {
		return common.NewUserError("could not migrate audit database", err)
	}

	records, err := store.ListAudits(ctx, service.AuditFilter{Limit: limit})
	if err != nil {
		return common.NewUserError("could not list audits", err)
	}

	if len(records) == 0 {
		fmt.Println(cli.SubtleStyle.Render("no audits stored yet"))
		return nil
	}

	fmt.Println(cli.TitleStyle.Render("Stored audits"))
	for _, r := range records {
		fmt.Printf("#%-4d %s  total %s  A %s  Z %s  %s\n",
			r.ID,
			r.CreatedAt.Format("2006-01-02 15:04"),
			cli.FormatPesos(r.Balance.Total),
			cli.FormatPesos(r.Balance.Confirmed),
			cli.FormatPesos(r.Balance.Opaque),
			cli.SubtleStyle.Render(r.State))
	}

	return nil
}
