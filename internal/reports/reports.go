// Package reports exports batch billing results as xlsx workbooks.
package reports

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/studio-billing/internal/billing"
)

const (
	linesSheet   = "Debts"
	summarySheet = "Summary"
)

// WriteGenerateReport writes one row per member of a dues run plus a summary sheet.
func WriteGenerateReport(w io.Writer, rep billing.GenerateReport) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), linesSheet); err != nil {
		return err
	}

	header := []any{"member_id", "username", "plan", "amount", "half_month", "outcome", "error"}
	if err := f.SetSheetRow(linesSheet, "A1", &header); err != nil {
		return fmt.Errorf("header: %w", err)
	}

	for i, l := range rep.Lines {
		amount, _ := l.Amount.Float64()
		row := []any{l.MemberID, l.Username, l.PlanName, amount, l.HalfMonth, string(l.Outcome), l.Error}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(linesSheet, cell, &row); err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	total, _ := rep.TotalAmount.Float64()
	summary := [][]any{
		{"month", rep.Month.Format("2006-01")},
		{"dry_run", rep.DryRun},
		{"generated", rep.Generated},
		{"skipped", rep.Skipped},
		{"errors", rep.Errors},
		{"total_amount", total},
	}
	for i, row := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return err
}

// FileName is the default name of the dues report for month.
func FileName(rep billing.GenerateReport) string {
	name := "dues_" + rep.Month.Format("2006-01")
	if rep.DryRun {
		name += "_dry-run"
	}
	return name + ".xlsx"
}
