package main

import (
	"flag"
	"fmt"
	"log"
	"sort"
	"time"

	"checkin/internal/models"
	"checkin/internal/repository/sqlite"
)

func main() {
	dbPath := flag.String("db", "data/checkin.db", "Database path")
	limit := flag.Int("n", 10, "Number of recent attempts and renewals to show")
	prune := flag.Int("prune", 0, "Delete attempts older than this many days (0 keeps everything)")
	flag.Parse()

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	attempts := sqlite.NewAttemptRepository(db)
	renewals := sqlite.NewRenewalRepository(db)

	if *prune > 0 {
		cutoff := time.Now().AddDate(0, 0, -*prune)
		removed, err := attempts.DeleteBefore(cutoff)
		if err != nil {
			log.Fatalf("Failed to prune attempts: %v", err)
		}
		fmt.Printf("Removed %d attempts older than %s\n\n", removed, cutoff.Format(time.DateOnly))
	}

	stats, err := attempts.GetStats()
	if err != nil {
		log.Fatalf("Failed to read stats: %v", err)
	}
	printStats(stats)

	recent, err := attempts.GetAll(&models.AttemptFilter{Limit: *limit})
	if err != nil {
		log.Fatalf("Failed to read attempts: %v", err)
	}
	fmt.Printf("\nRecent attempts:\n")
	for _, a := range recent {
		status := "failed"
		if a.Solved {
			status = "solved"
		}
		fmt.Printf("   %s  run %s #%d  %-16s %s %dms", a.Timestamp.Format(time.DateTime), a.RunID, a.Number, a.Stage, status, a.DurationMS)
		if a.Error != "" {
			fmt.Printf("  (%s)", a.Error)
		}
		fmt.Println()
	}

	recentRenewals, err := renewals.GetRecent(*limit)
	if err != nil {
		log.Fatalf("Failed to read renewals: %v", err)
	}
	spent, err := renewals.SpentSince(time.Now().AddDate(0, -1, 0))
	if err != nil {
		log.Fatalf("Failed to read renewals: %v", err)
	}
	fmt.Printf("\nRenewals (points spent in the last month: %d):\n", spent)
	for _, r := range recentRenewals {
		fmt.Printf("   %s  %s +%d days for %d points, now expires %s\n",
			r.Timestamp.Format(time.DateTime), r.ServerName, r.Days, r.Cost, r.ExpiresAt.Format(time.DateOnly))
	}
}

func printStats(stats *models.AttemptStats) {
	fmt.Printf("Attempts: %d (%d solved)\n", stats.TotalAttempts, stats.SolvedAttempts)
	fmt.Printf("Runs:     %d (%d solved)\n", stats.TotalRuns, stats.SolvedRuns)
	if stats.TotalAttempts > 0 {
		fmt.Printf("Solve rate per attempt: %.1f%%\n", 100*float64(stats.SolvedAttempts)/float64(stats.TotalAttempts))
	}

	stages := make([]string, 0, len(stats.PerStage))
	for stage := range stats.PerStage {
		stages = append(stages, stage)
	}
	sort.Strings(stages)
	fmt.Printf("Final stage of attempts:\n")
	for _, stage := range stages {
		fmt.Printf("   - %s: %d\n", stage, stats.PerStage[stage])
	}
}
