// Command diag evaluates a launch against a catalog read from disk, without
// starting the service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/catalog"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/propagation"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/risk"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/tle"
)

func main() {
	tleFile := flag.String("tle", "", "three-line element file to load (takes precedence over -snapshots)")
	snapshotDir := flag.String("snapshots", "/tmp/launchsim/catalog", "snapshot directory to restore the catalog from")
	lat := flag.Float64("lat", 28.5729, "launch latitude in degrees")
	lon := flag.Float64("lon", -80.6490, "launch longitude in degrees")
	epoch := flag.String("epoch", "", "launch epoch, RFC3339 (default: now)")
	threshold := flag.Float64("threshold", risk.DefaultConfig().ThresholdKm, "risk threshold in km")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	texts, fetchedAt, err := loadTexts(*tleFile, *snapshotDir)
	if err != nil {
		fmt.Println("ERROR loading catalog:", err)
		os.Exit(1)
	}

	res := catalog.Build(texts, catalog.ParseSGP4, fetchedAt)
	fmt.Printf("Loaded %d objects (%d dropped), fetched %s\n", res.Catalog.Len(), res.Dropped, fetchedAt.Format(time.RFC3339))
	for _, s := range res.Catalog.Sources() {
		fmt.Printf("  %-24s %6d records %6d loaded\n", s.Name, s.Records, s.Loaded)
	}

	launchAt := time.Now().UTC()
	if *epoch != "" {
		launchAt, err = time.Parse(time.RFC3339, *epoch)
		if err != nil {
			fmt.Println("ERROR parsing -epoch:", err)
			os.Exit(1)
		}
	}

	prop := propagation.NewEngine(propagation.Config{Workers: runtime.NumCPU()}, logger)
	cfg := risk.DefaultConfig()
	cfg.ThresholdKm = *threshold
	analyzer := risk.NewAnalyzer(prop, cfg, logger)

	start := time.Now()
	report, err := analyzer.Evaluate(context.Background(), res.Catalog, risk.LaunchRequest{
		LatitudeDeg:  *lat,
		LongitudeDeg: *lon,
		Epoch:        launchAt,
	})
	if err != nil {
		fmt.Println("ERROR evaluating launch:", err)
		os.Exit(1)
	}

	fmt.Printf("Launch from %.4f, %.4f at %s (%s)\n", *lat, *lon, launchAt.Format(time.RFC3339), time.Since(start).Round(time.Millisecond))
	final := report.Trajectory[len(report.Trajectory)-1]
	fmt.Printf("Final state: t=%ds speed=%.0fm/s altitude=%.1fkm downrange=%.1fkm\n",
		final.Offset, final.SpeedMS, final.AltitudeM/1000, final.DownrangeM/1000)

	fmt.Printf("\n%d risk events within %.1fkm\n", len(report.Events), cfg.ThresholdKm)
	for _, ev := range report.Events {
		fmt.Printf("  T+%4ds  %8.2fkm  %s (%s)\n", ev.Offset, ev.DistanceKm, ev.ObjectName, ev.ObjectID)
	}
}

func loadTexts(tleFile, snapshotDir string) ([]tle.SourceText, time.Time, error) {
	if tleFile != "" {
		data, err := os.ReadFile(tleFile)
		if err != nil {
			return nil, time.Time{}, err
		}
		info, err := os.Stat(tleFile)
		if err != nil {
			return nil, time.Time{}, err
		}
		src := tle.Source{Name: tleFile, Color: [3]float32{0, 1, 0}}
		return []tle.SourceText{{Source: src, Text: string(data)}}, info.ModTime().UTC(), nil
	}
	return tle.NewSnapshots(snapshotDir, 0).LoadLatest()
}
