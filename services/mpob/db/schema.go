package db

import (
	_ "embed"
)

//go:embed schema.sql
var Schema string

// fact tables written by the mpob pipelines
const (
	TableExportDest      = "T_AP_MYS_EXPORT_DEST"
	TableExportProduct   = "T_AP_MYS_EXPORT_PRODUCT"
	TableExportPort      = "T_AP_MYS_EXPORT_PORT"
	TableProdState       = "T_AP_MYS_PROD_STATE"
	TableProdRefinery    = "T_AP_MYS_PROD_REFINERY"
	TableStockRegion     = "T_AP_MYS_STOCK_REGION"
	TableStockRefinery   = "T_AP_MYS_STOCK_REFINERY"
	TableIndustrySummary = "T_AP_MYS_INDUSTRY_SUMMARY"
	TableScriptRunLog    = "SCRIPT_RUN_LOG"
)
