// Package config provides configuration management for the expense analytics service.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. YAML configuration file
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern EXPENSE_<SECTION>_<FIELD>:
//
//	EXPENSE_SERVER_PORT=8080
//	EXPENSE_ANALYSIS_HORIZON=12
//	EXPENSE_ANALYSIS_CONFIDENCE_LEVEL=0.9
//	EXPENSE_SHEETS_SPREADSHEET_ID=...
//
// Binaries load a .env file first when one exists, so these may also live there.
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	engineCfg := cfg.Analysis.EngineConfig()
package config
