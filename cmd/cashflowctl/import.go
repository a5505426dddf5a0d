package main

import (
	"context"
	"fmt"

	"cashflow/internal/core"
	"cashflow/internal/datasource/google"
	"cashflow/internal/storage"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func importSheetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-sheets",
		Short: "Copy a Google Sheets ledger into the SQLite database",
		Long: `Reads the business, categories and transactions from a spreadsheet and
writes them to SQLite under the configured business id.

Credentials come from CASHFLOW_GOOGLE_SERVICE_ACCOUNT_FILE, CASHFLOW_GOOGLE_OAUTH_TOKEN_FILE
or GOOGLE_APPLICATION_CREDENTIALS.`,
		RunE: runImportSheets,
	}
	cmd.Flags().String("spreadsheet", "", "spreadsheet id")
	cmd.Flags().Int64("business", 1, "business id to import under")
	cmd.Flags().String("cash-cell", "", "A1 reference holding current cash, e.g. Summary!B2")
	cmd.Flags().String("currency", "IDR", "ledger currency")
	cmd.Flags().Bool("force", false, "import even when the business already has transactions")
	_ = viper.BindPFlag("google_spreadsheet_id", cmd.Flags().Lookup("spreadsheet"))
	_ = viper.BindPFlag("google_business_id", cmd.Flags().Lookup("business"))
	_ = viper.BindPFlag("google_cash_cell", cmd.Flags().Lookup("cash-cell"))
	_ = viper.BindPFlag("google_currency", cmd.Flags().Lookup("currency"))
	return cmd
}

func runImportSheets(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	client, err := google.New(ctx, google.Config{
		SpreadsheetID:     viper.GetString("google_spreadsheet_id"),
		TransactionsSheet: viper.GetString("google_transactions_sheet"),
		CategoriesSheet:   viper.GetString("google_categories_sheet"),
		BusinessID:        viper.GetInt64("google_business_id"),
		Currency:          viper.GetString("google_currency"),
		CashCell:          viper.GetString("google_cash_cell"),
		Credentials: google.Credentials{
			ServiceAccountJSON: viper.GetString("google_service_account_json"),
			ServiceAccountFile: viper.GetString("google_service_account_file"),
			OAuthClientFile:    viper.GetString("google_oauth_client_file"),
			OAuthTokenFile:     viper.GetString("google_oauth_token_file"),
		},
	})
	if err != nil {
		return err
	}
	ledger, err := client.ReadLedger(ctx)
	if err != nil {
		return err
	}

	repo, err := storage.NewSQLiteRepository(viper.GetString("sqlite_db_path"))
	if err != nil {
		return err
	}
	defer repo.Close()

	force, _ := cmd.Flags().GetBool("force")
	stats, err := importLedger(ctx, repo, ledger, force)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %q as business %d: %d categories, %d transactions\n",
		ledger.Business.Name, ledger.Business.ID, stats.Categories, stats.Transactions)
	return nil
}

type ledgerTarget interface {
	UpsertBusiness(ctx context.Context, b core.Business) (core.Business, error)
	ListTransactions(ctx context.Context, businessID int64, from, to *core.Date) ([]core.Transaction, error)
	ListCategories(ctx context.Context, businessID int64) ([]core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
}

type importStats struct {
	Categories   int
	Transactions int
}

// importLedger writes l into dst, remapping sheet category ids to stored ids.
// Parents are created before their children; categories already stored under
// the same name are reused.
func importLedger(ctx context.Context, dst ledgerTarget, l google.Ledger, force bool) (importStats, error) {
	var stats importStats

	b, err := dst.UpsertBusiness(ctx, l.Business)
	if err != nil {
		return stats, fmt.Errorf("upsert business: %w", err)
	}
	if !force {
		existing, err := dst.ListTransactions(ctx, b.ID, nil, nil)
		if err != nil {
			return stats, fmt.Errorf("check existing transactions: %w", err)
		}
		if len(existing) > 0 {
			return stats, fmt.Errorf("business %d already has %d transactions, rerun with --force to append", b.ID, len(existing))
		}
	}

	stored, err := dst.ListCategories(ctx, b.ID)
	if err != nil {
		return stats, fmt.Errorf("list categories: %w", err)
	}
	byName := make(map[string]int64, len(stored))
	for _, c := range stored {
		byName[c.Name] = c.ID
	}

	ids := make(map[int64]int64, len(l.Categories))
	pending := l.Categories
	for len(pending) > 0 {
		var next []core.Category
		for _, c := range pending {
			if id, ok := byName[c.Name]; ok {
				ids[c.ID] = id
				continue
			}
			if c.ParentID != nil {
				parent, ok := ids[*c.ParentID]
				if !ok && hasCategory(pending, *c.ParentID) {
					next = append(next, c)
					continue
				}
				if ok {
					c.ParentID = &parent
				} else {
					c.ParentID = nil
				}
			}
			sheetID := c.ID
			c.ID = 0
			c.BusinessID = b.ID
			created, err := dst.CreateCategory(ctx, c)
			if err != nil {
				return stats, fmt.Errorf("create category %q: %w", c.Name, err)
			}
			ids[sheetID] = created.ID
			byName[created.Name] = created.ID
			stats.Categories++
		}
		if len(next) == len(pending) {
			return stats, fmt.Errorf("category parents form a cycle")
		}
		pending = next
	}

	for _, t := range l.Transactions {
		t.ID = 0
		t.BusinessID = b.ID
		if t.CategoryID != nil {
			if id, ok := ids[*t.CategoryID]; ok {
				t.CategoryID = &id
			}
		}
		if t.Source == "" {
			t.Source = "sheets"
		}
		if _, err := dst.CreateTransaction(ctx, t); err != nil {
			return stats, fmt.Errorf("create transaction dated %s: %w", t.Date.Key(), err)
		}
		stats.Transactions++
	}
	return stats, nil
}

func hasCategory(cats []core.Category, id int64) bool {
	for _, c := range cats {
		if c.ID == id {
			return true
		}
	}
	return false
}
