package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mfuentes/cuentaclara/internal/cli"
	"github.com/mfuentes/cuentaclara/internal/common"
	"github.com/mfuentes/cuentaclara/internal/engine"
	"github.com/mfuentes/cuentaclara/internal/fx"
	"github.com/mfuentes/cuentaclara/internal/ingest"
	"github.com/mfuentes/cuentaclara/internal/model"
	"github.com/mfuentes/cuentaclara/internal/service"
	"github.com/mfuentes/cuentaclara/internal/storage"
)

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Run a forensic audit over one extracted bill",
		Long: `Reads the extraction JSON documents for one clinical bill (account,
findings, optionally contract and taxonomy results), runs the reconciliation
pipeline, and prints the balanced forensic ledger.`,
		RunE: runAudit,
	}

	cmd.Flags().String("account", "", "extracted account JSON file (required)")
	cmd.Flags().String("findings", "", "findings JSON file")
	cmd.Flags().String("contract", "", "normalized contract JSON file")
	cmd.Flags().String("taxonomy", "", "taxonomy results JSON file")
	cmd.Flags().Int64("total", -1, "declared total copayment (defaults to the account's stated total)")
	cmd.Flags().String("date", "", "audit date for UF conversion (YYYY-MM-DD, default today)")
	cmd.Flags().Float64("uf", 0, "UF value in pesos for contract cap checks")
	cmd.Flags().Bool("save", false, "persist the audit result to the database")
	cmd.Flags().Bool("json", false, "emit the result as JSON instead of a styled report")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func runAudit(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	accountPath, _ := cmd.Flags().GetString("account")
	findingsPath, _ := cmd.Flags().GetString("findings")
	contractPath, _ := cmd.Flags().GetString("contract")
	taxonomyPath, _ := cmd.Flags().GetString("taxonomy")
	total, _ := cmd.Flags().GetInt64("total")
	dateStr, _ := cmd.Flags().GetString("date")
	ufValue, _ := cmd.Flags().GetFloat64("uf")
	save, _ := cmd.Flags().GetBool("save")
	asJSON, _ := cmd.Flags().GetBool("json")

	in, err := loadInput(accountPath, findingsPath, contractPath, taxonomyPath, total, dateStr)
	if err != nil {
		return err
	}

	var ufCache *fx.Cache
	if ufValue > 0 {
		source := fx.StaticSource{in.AuditDate.Format("2006-01-02"): ufValue}
		ufCache = fx.NewCache(source, 0)
		defer ufCache.Close()
	}

	result := engine.New(ufCache).Audit(ctx, *in)

	if asJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
	} else {
		fmt.Print(cli.RenderReport(result))
	}

	if save {
		if err := saveResult(ctx, accountPath, result); err != nil {
			return err
		}
	}

	return nil
}

// loadInput assembles an engine input from the extraction files. Only the
// account is mandatory; everything else degrades to empty.
func loadInput(accountPath, findingsPath, contractPath, taxonomyPath string, total int64, dateStr string) (*engine.Input, error) {
	accountData, err := os.ReadFile(accountPath)
	if err != nil {
		return nil, common.NewUserError("could not read account file", err)
	}
	account, err := ingest.ParseAccount(accountData)
	if err != nil {
		return nil, common.NewUserError("could not parse account file", err)
	}

	var findings []*model.Finding
	if findingsPath != "" {
		data, readErr := os.ReadFile(findingsPath)
		if readErr != nil {
			return nil, common.NewUserError("could not read findings file", readErr)
		}
		findings, err = ingest.ParseFindings(data)
		if err != nil {
			return nil, common.NewUserError("could not parse findings file", err)
		}
	}

	var contract *model.Contract
	if contractPath != "" {
		data, readErr := os.ReadFile(contractPath)
		if readErr != nil {
			return nil, common.NewUserError("could not read contract file", readErr)
		}
		contract, err = ingest.ParseContract(data)
		if err != nil {
			return nil, common.NewUserError("could not parse contract file", err)
		}
	}

	var classified []model.ClassifiedItem
	if taxonomyPath != "" {
		data, readErr := os.ReadFile(taxonomyPath)
		if readErr != nil {
			return nil, common.NewUserError("could not read taxonomy file", readErr)
		}
		classified, err = ingest.ParseTaxonomy(data, account)
		if err != nil {
			return nil, common.NewUserError("could not parse taxonomy file", err)
		}
	}

	if total < 0 {
		total = account.ClinicStatedTotal
	}

	auditDate := time.Now()
	if dateStr != "" {
		parsed, parseErr := time.Parse("2006-01-02", dateStr)
		if parseErr != nil {
			return nil, common.NewUserError("invalid --date, expected YYYY-MM-DD", parseErr)
		}
		auditDate = parsed
	}

	return &engine.Input{
		AuditDate:     auditDate,
		Account:       account,
		Contract:      contract,
		Findings:      findings,
		Classified:    classified,
		TotalDeclared: total,
	}, nil
}

func saveResult(ctx context.Context, billRef string, result *engine.Result) error {
	store, err := storage.NewSQLiteStorage(viper.GetString("database.path"))
	if err != nil {
		return common.NewUserError("could not open audit database", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(ctx); err != nil {
		return common.NewUserError("could not migrate audit database", err)
	}

	id, err := store.SaveAudit(ctx, &service.AuditRecord{
		BillRef:  billRef,
		Balance:  result.Balance,
		State:    result.Balance.StateLabel(),
		Findings: result.Findings,
		Alerts:   result.Alerts,
	})
	if err != nil {
		return common.NewUserError("could not save audit", err)
	}

	fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf("saved as audit #%d", id)))
	return nil
}
