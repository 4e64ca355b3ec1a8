// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// FPS — Extraction Report Command
//
// Standalone CLI over the read facade. Prints the views the downstream
// consumers use, for operators checking the pipeline's output.
//
// Usage:
//
//	go run ./cmd/report/ --view unpaid [--limit 50]
//	go run ./cmd/report/ --view due-soon [--days 7]
//	go run ./cmd/report/ --view urgent [--limit 50]
//	go run ./cmd/report/ --view month [--month 2025-06]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rhea-ops/fps/internal/config"
	"github.com/rhea-ops/fps/internal/models"
	"github.com/rhea-ops/fps/internal/query"
	"github.com/rhea-ops/fps/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	viewFlag := flag.String("view", "unpaid", "Report view: unpaid, due-soon, urgent, month")
	limitFlag := flag.Int("limit", query.DefaultLimit, "Maximum results")
	daysFlag := flag.Int("days", 7, "Days ahead for the due-soon view")
	monthFlag := flag.String("month", time.Now().Format("2006-01"), "Month for the month view (YYYY-MM)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.ProjectID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: connect to Firestore: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	facade := query.New(st)

	var results []models.FileResult
	switch *viewFlag {
	case "unpaid":
		results, err = facade.UnpaidInvoices(ctx, *limitFlag)
	case "due-soon":
		results, err = facade.PaymentDueSoon(ctx, *daysFlag)
	case "urgent":
		results, err = facade.UrgentItems(ctx, nil, *limitFlag)
	case "month":
		var t time.Time
		t, err = time.Parse("2006-01", *monthFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid --month %q: %v\n", *monthFlag, err)
			os.Exit(1)
		}
		results, err = facade.MonthlyExpenses(ctx, t.Year(), t.Month())
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown --view %q\n\n", *viewFlag)
		flag.Usage()
		os.Exit(1)
	}

	if err != nil {
		if errors.Is(err, query.ErrMissingIndex) {
			// Degrade to an empty view; the wrapped error carries the
			// index-creation link Firestore prints.
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			fmt.Fprintln(os.Stderr, "Create the composite index above and rerun.")
			printResults(nil)
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	printResults(results)
}

func printResults(results []models.FileResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EMAIL\tFILE\tTYPE\tURGENCY\tAMOUNT\tSTATUS\tDUE\tSUMMARY")
	for i := range results {
		r := &results[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.EmailID, r.FileID, r.DocumentType, r.Urgency,
			r.Amount, r.PaymentStatus, r.PaymentDueDate, truncate(r.Summary, 60))
	}
	w.Flush()
	fmt.Printf("\n%d result(s)\n", len(results))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
