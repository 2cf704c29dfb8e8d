// Command billing-jobs runs the batch billing tasks by hand:
//
//	billing-jobs generate-dues [-month YYYY-MM] [-force] [-dry-run] [-report file.xlsx] [-send]
//	billing-jobs mark-overdue [-dry-run]
//	billing-jobs renew
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Spok95/studio-billing/internal/app"
	"github.com/Spok95/studio-billing/internal/billing"
	"github.com/Spok95/studio-billing/internal/config"
	"github.com/Spok95/studio-billing/internal/infra/logger"
	"github.com/Spok95/studio-billing/internal/reports"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: billing-jobs [-config path] <generate-dues|mark-overdue|renew> [flags]")
	os.Exit(2)
}

func main() {
	configPath := flag.String("config", "config/example.yaml", "path to the YAML config")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg.App.Env, "billing-jobs")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunMigrations(cfg.Postgres.DSN); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "err", err)
		os.Exit(1)
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "generate-dues":
		err = generateDues(ctx, a, args)
	case "mark-overdue":
		err = markOverdue(ctx, a, args)
	case "renew":
		err = renew(ctx, a, args)
	default:
		a.Close()
		usage()
	}
	a.Close()
	if err != nil {
		log.Error("command failed", "command", cmd, "err", err)
		os.Exit(1)
	}
}

func generateDues(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("generate-dues", flag.ExitOnError)
	monthFlag := fs.String("month", "", "month to bill, YYYY-MM (default: current)")
	force := fs.Bool("force", false, "replace existing debts of the month")
	dryRun := fs.Bool("dry-run", false, "compute everything and roll back")
	reportPath := fs.String("report", "", "write an xlsx report to this file")
	send := fs.Bool("send", false, "upload the xlsx report to the Telegram admin chat")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var month time.Time
	if *monthFlag != "" {
		m, err := time.Parse("2006-01", *monthFlag)
		if err != nil {
			return fmt.Errorf("invalid -month %q: %w", *monthFlag, err)
		}
		month = m
	}

	rep, err := a.Billing.GenerateForAllActiveMembers(ctx, month, billing.GenerateOptions{Force: *force, DryRun: *dryRun})
	if err != nil {
		return err
	}
	for _, l := range rep.Lines {
		a.Log.Info("member billed",
			"member_id", l.MemberID, "username", l.Username, "plan", l.PlanName,
			"amount", l.Amount.StringFixed(2), "half_month", l.HalfMonth, "outcome", l.Outcome, "error", l.Error)
	}
	a.Log.Info("generate-dues finished",
		"month", rep.Month.Format("2006-01"), "dry_run", rep.DryRun,
		"generated", rep.Generated, "skipped", rep.Skipped, "errors", rep.Errors,
		"total", rep.TotalAmount.StringFixed(2))

	if *reportPath == "" && !*send {
		return nil
	}
	var buf bytes.Buffer
	if err := reports.WriteGenerateReport(&buf, rep); err != nil {
		return fmt.Errorf("build report: %w", err)
	}
	if *reportPath != "" {
		if err := os.WriteFile(*reportPath, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		a.Log.Info("report written", "path", *reportPath)
	}
	if *send {
		if a.Telegram == nil {
			a.Log.Warn("telegram is not configured, report not sent")
			return nil
		}
		caption := fmt.Sprintf("Начисления за %s: %d, сумма %s", rep.Month.Format("2006-01"), rep.Generated, rep.TotalAmount.StringFixed(2))
		if err := a.Telegram.SendDocument(reports.FileName(rep), buf.Bytes(), caption); err != nil {
			return fmt.Errorf("send report: %w", err)
		}
	}
	return nil
}

func markOverdue(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("mark-overdue", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "compute everything and roll back")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rep, err := a.Billing.MarkOverdueAndLock(ctx, time.Time{}, *dryRun)
	if err != nil {
		return err
	}
	for _, n := range rep.Notices {
		a.Log.Info("member overdue", "member_id", n.MemberID, "member", n.MemberName,
			"amount", n.AmountOverdue.StringFixed(2), "months", n.MonthsOverdue)
	}
	a.Log.Info("mark-overdue finished",
		"day", rep.Day.Format(time.DateOnly), "dry_run", rep.DryRun,
		"debts_marked", rep.DebtsMarked, "locked", rep.MembersLocked, "unlocked", rep.MembersUnlocked,
		"errors", rep.Errors, "total_overdue", rep.TotalOverdue.StringFixed(2))
	return nil
}

func renew(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("renew", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	rep, err := a.Billing.RenewAssignments(ctx, time.Time{})
	if err != nil {
		return err
	}
	a.Log.Info("renew finished", "day", rep.Day.Format(time.DateOnly), "renewed", rep.Renewed, "errors", rep.Errors)
	return nil
}
