// maintenance runs the token sweeps once and prints token statistics.
//
//	go run ./cmd/maintenance -prune-expired -prune-old -days=30 -limit-tokens -dry-run
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	configs "github.com/Payphone-Digital/adminauth/config"
	"github.com/Payphone-Digital/adminauth/internal/dto"
	"github.com/Payphone-Digital/adminauth/internal/repository"
	"github.com/Payphone-Digital/adminauth/internal/service"
	"github.com/Payphone-Digital/adminauth/pkg/clock"
	"github.com/Payphone-Digital/adminauth/pkg/database"
	"github.com/Payphone-Digital/adminauth/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	pruneExpired := flag.Bool("prune-expired", false, "Remove expired tokens")
	pruneOld := flag.Bool("prune-old", false, "Remove tokens older than -days")
	days := flag.Int("days", 0, "Age in days for -prune-old (default MAINTENANCE_PRUNE_OLD_DAYS)")
	limitTokens := flag.Bool("limit-tokens", false, "Enforce the per-user token limit")
	dryRun := flag.Bool("dry-run", false, "Report what would be removed without deleting")
	flag.Parse()

	config, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if err := logger.InitLogger(config); err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := database.NewPostgresDB(config.Database)
	if err != nil {
		logger.GetLogger().Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.CloseDB(db)

	if *days == 0 {
		*days = config.Maintenance.PruneOldDays
	}

	sweeper := service.NewSweeper(repository.NewTokenRepository(db), clock.System(), config.Token.MaxPerUser)
	ctx := context.Background()

	report, err := sweeper.Run(ctx, service.SweepOptions{
		PruneExpired:  *pruneExpired,
		PruneOld:      *pruneOld,
		OlderThanDays: *days,
		EnforceLimits: *limitTokens,
		DryRun:        *dryRun,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "maintenance:", err)
		os.Exit(1)
	}

	stats, err := sweeper.Statistics(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "statistics:", err)
		os.Exit(1)
	}

	printReport(report, stats)
}

func printReport(report *dto.MaintenanceReport, stats *dto.TokenStatistics) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	action := "removed"
	if report.DryRun {
		action = "would be removed"
	}

	var total int64
	for _, sweep := range []struct {
		name  string
		count *int64
	}{
		{"Expired tokens", report.Expired},
		{fmt.Sprintf("Tokens older than %d days", report.OlderThanDays), report.Old},
		{fmt.Sprintf("Tokens over the limit of %d", report.MaxPerUser), report.OverLimit},
	} {
		if sweep.count == nil {
			continue
		}
		total += *sweep.count
		fmt.Fprintf(w, "%s\t%d %s\n", sweep.name, *sweep.count, action)
	}
	fmt.Fprintf(w, "Total\t%d %s (%d ms)\n\n", total, action, report.DurationMillis)

	fmt.Fprintln(w, "Metric\tCount")
	fmt.Fprintf(w, "Total tokens\t%d\n", stats.Total)
	fmt.Fprintf(w, "Active tokens\t%d\n", stats.Active)
	fmt.Fprintf(w, "Expired tokens\t%d\n", stats.Expired)
	fmt.Fprintf(w, "Used today\t%d\n", stats.UsedToday)
	fmt.Fprintf(w, "Users with tokens\t%d\n", stats.Owners)

	if len(stats.TopOwners) > 0 {
		fmt.Fprintln(w, "\nUser\tRole\tTokens")
		for _, o := range stats.TopOwners {
			note := ""
			if o.Tokens > int64(stats.MaxPerUser) {
				note = "\tover limit"
			}
			fmt.Fprintf(w, "%s\t%s\t%d%s\n", o.Email, o.Role, o.Tokens, note)
		}
	}
}
