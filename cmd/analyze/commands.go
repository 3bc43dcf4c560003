package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/permit-map/internal/analysis"
	"github.com/permit-map/internal/classifier"
	"github.com/permit-map/internal/config"
	"github.com/permit-map/internal/domain"
	"github.com/permit-map/internal/domain/repository"
	"github.com/permit-map/internal/pkg/logger"
	"github.com/permit-map/internal/repository/cache"
	redisRepo "github.com/permit-map/internal/repository/redis"
	"github.com/permit-map/internal/repository/source"
)

const (
	formatText = "text"
	formatJSON = "json"
)

// options - общие флаги команд
type options struct {
	PermitsPath     string
	TypesPath       string
	BoundariesPath  string
	PostalCodeField string
	Format          string
	LogLevel        string

	logger *zap.Logger
}

func (o *options) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "permits",
			Usage:       "Path to weekly_permits.json",
			Category:    "Data",
			Value:       "data/processed/weekly_permits.json",
			Sources:     cli.EnvVars("DATA_PERMITS_PATH"),
			Destination: &o.PermitsPath,
		},
		&cli.StringFlag{
			Name:        "types",
			Usage:       "Path to total_by_type.json",
			Category:    "Data",
			Value:       "data/processed/total_by_type.json",
			Sources:     cli.EnvVars("DATA_TYPES_PATH"),
			Destination: &o.TypesPath,
		},
		&cli.StringFlag{
			Name:        "boundaries",
			Usage:       "Path to zip_permits.geojson",
			Category:    "Data",
			Value:       "data/processed/zip_permits.geojson",
			Sources:     cli.EnvVars("DATA_BOUNDARIES_PATH"),
			Destination: &o.BoundariesPath,
		},
		&cli.StringFlag{
			Name:        "postal-field",
			Usage:       "Boundary property holding the ZIP code",
			Category:    "Data",
			Value:       source.DefaultPostalCodeField,
			Sources:     cli.EnvVars("DATA_POSTAL_CODE_FIELD"),
			Destination: &o.PostalCodeField,
		},
		&cli.StringFlag{
			Name:        "format",
			Usage:       "Output format (text, json)",
			Value:       formatText,
			Destination: &o.Format,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Category:    "Logging",
			Value:       "warn",
			Sources:     cli.EnvVars("LOG_LEVEL"),
			Destination: &o.LogLevel,
		},
	}
}

func (o *options) repository() repository.DatasetRepository {
	return source.NewFileRepository(&config.DataConfig{
		PermitsPath:     o.PermitsPath,
		TypesPath:       o.TypesPath,
		BoundariesPath:  o.BoundariesPath,
		PostalCodeField: o.PostalCodeField,
	}, o.logger)
}

func newApp() *cli.Command {
	opts := &options{}

	return &cli.Command{
		Name:  "analyze",
		Usage: "Inspect permit datasets and tune map color thresholds",
		Flags: opts.flags(),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if opts.Format != formatText && opts.Format != formatJSON {
				return ctx, fmt.Errorf("invalid format %q", opts.Format)
			}
			// логи в stderr, чтобы не смешивались с отчётом
			log, err := logger.New(opts.LogLevel, "stderr")
			if err != nil {
				return ctx, err
			}
			opts.logger = log
			return ctx, nil
		},
		After: func(ctx context.Context, cmd *cli.Command) error {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			cmdTypes(opts),
			cmdWeekly(opts),
			cmdBreaks(opts),
			cmdNotifyReload(opts),
		},
	}
}

// typesReport - распределение типов по total_by_type
type typesReport struct {
	Types        int                      `json:"types"`
	Distribution []domain.TypeStats       `json:"distribution"`
	Counts       domain.DistributionStats `json:"counts"`
}

func cmdTypes(opts *options) *cli.Command {
	return &cli.Command{
		Name:  "types",
		Usage: "Permit type distribution",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			totals, err := opts.repository().LoadPermitTypes(ctx)
			if err != nil {
				return err
			}

			dist := analysis.TypeTotalsDistribution(totals)
			counts := make([]int, len(dist))
			for i, s := range dist {
				counts[i] = s.Permits
			}
			report := typesReport{
				Types:        len(domain.PermitTypes(totals)),
				Distribution: dist,
				Counts:       analysis.Describe(counts, []float64{25, 50, 75}),
			}

			w := cmd.Root().Writer
			if opts.Format == formatJSON {
				return writeJSON(w, report)
			}

			fmt.Fprintf(w, "Total number of types: %d\n\n", report.Types)
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tROWS\tPERMITS\tMEAN")
			for _, s := range dist {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\n", s.EventType, s.Records, s.Permits, s.Mean)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(w)
			writeDistribution(w, "Permits per type", report.Counts)
			return nil
		},
	}
}

// weeklyReport - распределение недельных сумм по ZIP
type weeklyReport struct {
	Weeks    int                      `json:"weeks"`
	ZipCodes int                      `json:"zip_codes"`
	Weekly   domain.DistributionStats `json:"weekly"`
}

func cmdWeekly(opts *options) *cli.Command {
	return &cli.Command{
		Name:  "weekly",
		Usage: "Weekly per-ZIP permit count distribution",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			records, err := opts.repository().LoadPermits(ctx)
			if err != nil {
				return err
			}

			report := weeklyReport{
				Weeks:    analysis.DistinctWeeks(records),
				ZipCodes: analysis.DistinctZipCodes(records),
				Weekly:   analysis.Describe(analysis.WeeklyZipTotals(records), analysis.DefaultPercentiles),
			}

			w := cmd.Root().Writer
			if opts.Format == formatJSON {
				return writeJSON(w, report)
			}

			fmt.Fprintf(w, "Total weeks: %d\n", report.Weeks)
			fmt.Fprintf(w, "Total ZIP codes: %d\n\n", report.ZipCodes)
			writeDistribution(w, "Per ZIP/week permit counts", report.Weekly)
			return nil
		},
	}
}

// breaksReport - квантильные пороги и заполненность бакетов
type breaksReport struct {
	Boundaries int                      `json:"boundaries"`
	Breaks     []int                    `json:"breaks"`
	Buckets    []int                    `json:"buckets"`
	Legend     []classifier.LegendEntry `json:"legend"`
}

func cmdBreaks(opts *options) *cli.Command {
	return &cli.Command{
		Name:  "breaks",
		Usage: "Quantile breaks of boundary totals and bucket occupancy",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			boundaries, err := opts.repository().LoadBoundaries(ctx)
			if err != nil {
				return err
			}

			totals := domain.BoundaryTotals(boundaries)
			breaks := classifier.QuantileBreaks(totals)
			report := breaksReport{
				Boundaries: len(boundaries),
				Breaks:     []int(breaks),
				Buckets: analysis.BucketCounts(totals, func(v int) int {
					return classifier.Bucket(v, breaks)
				}, classifier.BucketCount),
				Legend: classifier.BuildLegend(breaks, classifier.DefaultPalette),
			}
			if report.Breaks == nil {
				report.Breaks = []int{}
			}

			w := cmd.Root().Writer
			if opts.Format == formatJSON {
				return writeJSON(w, report)
			}

			fmt.Fprintf(w, "Boundaries: %d\n", report.Boundaries)
			fmt.Fprintf(w, "Quantile breaks: %v\n\n", report.Breaks)
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "BUCKET\tCOLOR\tRANGE\tZIPS")
			for i, e := range report.Legend {
				label := e.Label
				if e.Empty {
					label = "(empty)"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", e.Bucket, e.Color, label, report.Buckets[i])
			}
			return tw.Flush()
		},
	}
}

func cmdNotifyReload(opts *options) *cli.Command {
	var reason string

	return &cli.Command{
		Name:  "notify-reload",
		Usage: "Publish a dataset reload event to the reload stream",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "reason",
				Usage:       "Reason recorded in the event",
				Value:       "manual",
				Destination: &reason,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			client, err := cache.NewRedis(connectCtx, &cfg.Redis, opts.logger)
			if err != nil {
				return err
			}
			defer client.Close()

			event := &domain.DatasetReloadEvent{
				EventID:     uuid.New(),
				Reason:      reason,
				RequestedAt: time.Now().UTC(),
			}
			streams := redisRepo.NewStreamRepository(client.Client(), opts.logger)
			if err := streams.PublishToStream(ctx, domain.StreamDatasetReload, event); err != nil {
				return err
			}

			fmt.Fprintf(cmd.Root().Writer, "Published reload event %s to %s\n", event.EventID, domain.StreamDatasetReload)
			return nil
		},
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeDistribution(w io.Writer, title string, d domain.DistributionStats) {
	fmt.Fprintf(w, "=== %s ===\n", title)
	fmt.Fprintf(w, "count: %d\n", d.Count)
	fmt.Fprintf(w, "min:   %d\n", d.Min)
	fmt.Fprintf(w, "max:   %d\n", d.Max)
	fmt.Fprintf(w, "mean:  %.2f\n", d.Mean)

	keys := make([]string, 0, len(d.Percentiles))
	for k := range d.Percentiles {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return percentileOf(keys[i]) < percentileOf(keys[j])
	})
	for _, k := range keys {
		fmt.Fprintf(w, "%-6s %.2f\n", k+":", d.Percentiles[k])
	}
}

func percentileOf(key string) float64 {
	var p float64
	_, _ = fmt.Sscanf(key, "p%g", &p)
	return p
}
