package backend

import (
	"errors"
	"fmt"

	"cashflow/internal/config"
	"cashflow/internal/datasource/google"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:         backendType,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		SeedFile:     appConfig.SeedFile,
		Sheets: google.Config{
			SpreadsheetID:     appConfig.GoogleSpreadsheetID,
			TransactionsSheet: appConfig.GoogleTransactionsSheet,
			CategoriesSheet:   appConfig.GoogleCategoriesSheet,
			BusinessID:        appConfig.GoogleBusinessID,
			Currency:          appConfig.GoogleCurrency,
			CashCell:          appConfig.GoogleCashCell,
			Credentials: google.Credentials{
				ServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
				ServiceAccountFile: appConfig.GoogleServiceAccountFile,
				OAuthClientFile:    appConfig.GoogleOAuthClientFile,
				OAuthTokenFile:     appConfig.GoogleOAuthTokenFile,
			},
		},
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return errors.New("SQLite database path is required for sqlite backend")
		}
	case SheetsBackend:
		if c.Sheets.SpreadsheetID == "" {
			return errors.New("Google Spreadsheet ID is required for sheets backend")
		}
		// forecasts, risk scores and alerts still need somewhere to live
		if c.SQLiteDBPath == "" {
			return errors.New("SQLite database path is required for sheets backend")
		}
	case MemoryBackend:
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, SheetsBackend, MemoryBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
