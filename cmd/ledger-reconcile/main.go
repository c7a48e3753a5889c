// ledger-reconcile compares every inventory record with the sum of its stock
// movement journal, and every purchase order line with its approved goods
// receipts. Findings are written to reconciliation_reports.
//
// Usage:
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/ledger-reconcile [-repair]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mmdatafocus/shop_backend/config"
	"github.com/mmdatafocus/shop_backend/models"
	"github.com/mmdatafocus/shop_backend/workflow"
)

func main() {
	repair := flag.Bool("repair", false, "Rewrite drifted inventory records from the journal")
	failOnDrift := flag.Bool("fail-on-drift", false, "Exit 3 when any drift is found")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()

	result, err := workflow.RunLedgerReconciliation(context.Background(), db, logger, *repair)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconciliation failed: %v\n", err)
		os.Exit(1)
	}

	reports, err := models.ListReconciliationReports(context.Background(), db, result.CorrelationId)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read reports: %v\n", err)
		os.Exit(1)
	}
	for _, r := range reports {
		fmt.Printf("%s %s#%d %s\n", r.CheckType, r.EntityType, r.EntityId, r.Details)
	}
	fmt.Printf("run %s: ledger drifts=%d order drifts=%d repaired=%d\n",
		result.CorrelationId, result.LedgerDrifts, result.OrderDrifts, result.Repaired)

	if *failOnDrift && result.LedgerDrifts+result.OrderDrifts > 0 {
		os.Exit(3)
	}
}
