// Command neoimport loads the customer, transfer and purchase CSV dataset into
// a Neo4j database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog"

	"github.com/rlch/neoimport"
	"github.com/rlch/neoimport/internal/config"
	"github.com/rlch/neoimport/internal/logger"
	"github.com/rlch/neoimport/internal/metrics"
)

const (
	exitOK     = 0
	exitFatal  = 1
	exitFailed = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// newDryRunDriver builds the driver used by -dry-run.
var newDryRunDriver = neoimport.NewMock

type options struct {
	configPath string
	phase      string
	dryRun     bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	settings, opts, err := parse(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "neoimport: %v\n", err)
		return exitFatal
	}
	phases, err := parsePhase(opts.phase)
	if err != nil {
		fmt.Fprintf(stderr, "neoimport: %v\n", err)
		return exitFatal
	}

	log, err := logger.New(logger.Options{
		Level:  settings.Log.Level,
		Format: settings.Log.Format,
		Out:    stderr,
	})
	if err != nil {
		fmt.Fprintf(stderr, "neoimport: %v\n", err)
		return exitFatal
	}
	ctx = logger.WithContext(ctx, log)

	if settings.Import.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.Import.Timeout)
		defer cancel()
	}

	db, err := open(ctx, settings, opts.dryRun)
	if err != nil {
		log.Error().Err(err).Str("uri", settings.Neo4j.URI).Msg("connection failed")
		return exitFatal
	}

	registry := metrics.NewRegistry()
	configurers := append(settings.Configurers(),
		neoimport.WithLogger(log),
		neoimport.WithObserver(registry),
	)
	imp := neoimport.New(db, configurers...)
	defer func() {
		if err := imp.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("close driver")
		}
	}()
	if len(phases) == 1 && phases[0] == neoimport.RelationshipPhase {
		imp.WaiveNodePhase()
	}

	report, runErr := imp.Run(ctx, phases...)
	registry.ObserveReport(report)
	if err := writeOutputs(ctx, settings, report, registry, stdout); err != nil {
		log.Error().Err(err).Msg("write outputs")
		return exitFatal
	}

	var bulk *neoimport.BulkOperationError
	switch {
	case errors.As(runErr, &bulk):
		log.Error().Err(runErr).Msg("import aborted")
		return exitFailed
	case runErr != nil:
		log.Error().Err(runErr).Msg("import aborted")
		return exitFatal
	case report.Failed():
		for _, op := range append(report.Nodes.Failed(), report.Relationships.Failed()...) {
			log.Warn().Str("operation", op.Name).Str("file", op.File).Err(op.Err).Msg("operation failed")
		}
		return exitFailed
	}
	return exitOK
}

func parse(args []string, stderr io.Writer) (*config.Settings, options, error) {
	fs := flag.NewFlagSet("neoimport", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&opts.phase, "phase", "all", "Phase to run: all, constraints, nodes or relationships")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "Log the statements without connecting to a database")

	var (
		uri       = fs.String("uri", "", "Neo4j URI")
		user      = fs.String("user", "", "Neo4j user")
		password  = fs.String("password", "", "Neo4j password")
		database  = fs.String("database", "", "Target database, empty for the server default")
		basePath  = fs.String("base-path", "", "Base URL or file:/// root of the CSV files")
		customers = fs.String("customers", "", "Customers CSV file name")
		transfers = fs.String("transfers", "", "Transfers CSV file name")
		purchases = fs.String("purchases", "", "Purchases CSV file name")
		batchSize = fs.Int("batch-size", 0, "Rows per inner transaction")
		parallel  = fs.Int("parallel", 0, "Operations run concurrently within a phase")
		failFast  = fs.Bool("fail-fast", false, "Abort on the first failed bulk operation")
		noSkips   = fs.Bool("no-skip-count", false, "Do not count rows dropped by key filters")
		timeout   = fs.Duration("timeout", 0, "Overall timeout, 0 for none")
		report    = fs.String("report", "", "Write the JSON report to this file instead of stdout")
		textfile  = fs.String("metrics-textfile", "", "Write Prometheus metrics to this file")
		logLevel  = fs.String("log-level", "", "Log level: trace, debug, info, warn or error")
		logFormat = fs.String("log-format", "", "Log format: console or json")
	)
	if err := fs.Parse(args); err != nil {
		return nil, opts, err
	}
	if fs.NArg() > 0 {
		return nil, opts, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	settings, err := config.Load(opts.configPath)
	if err != nil {
		return nil, opts, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "uri":
			settings.Neo4j.URI = *uri
		case "user":
			settings.Neo4j.User = *user
		case "password":
			settings.Neo4j.Password = *password
		case "database":
			settings.Neo4j.Database = *database
		case "base-path":
			settings.Files.BasePath = *basePath
		case "customers":
			settings.Files.Customers = *customers
		case "transfers":
			settings.Files.Transfers = *transfers
		case "purchases":
			settings.Files.Purchases = *purchases
		case "batch-size":
			settings.Import.BatchSize = *batchSize
		case "parallel":
			settings.Import.Parallelism = *parallel
		case "fail-fast":
			settings.Import.FailFast = *failFast
		case "no-skip-count":
			settings.Import.CountSkipped = !*noSkips
		case "timeout":
			settings.Import.Timeout = *timeout
		case "report":
			settings.Output.ReportPath = *report
		case "metrics-textfile":
			settings.Output.MetricsTextfile = *textfile
		case "log-level":
			settings.Log.Level = *logLevel
		case "log-format":
			settings.Log.Format = *logFormat
		}
	})
	if err := settings.Validate(); err != nil {
		return nil, opts, err
	}
	return settings, opts, nil
}

func parsePhase(s string) ([]neoimport.Phase, error) {
	switch p := neoimport.Phase(s); p {
	case "", "all":
		return nil, nil
	case neoimport.ConstraintPhase, neoimport.NodePhase, neoimport.RelationshipPhase:
		return []neoimport.Phase{p}, nil
	default:
		return nil, fmt.Errorf("unknown phase %q", s)
	}
}

// open connects to the configured server, or returns a recording mock that
// logs every statement when dry is set.
func open(ctx context.Context, s *config.Settings, dry bool) (neo4j.DriverWithContext, error) {
	if dry {
		log := logger.FromContext(ctx)
		mock := newDryRunDriver()
		mock.OnStatement(func(st neoimport.RecordedStatement) {
			log.Info().
				Int("session", st.Session).
				Bool("managed", st.Managed).
				Str("cypher", st.Cypher).
				Msg("dry run")
		})
		if err := neoimport.Verify(ctx, mock, "dry-run"); err != nil {
			return nil, err
		}
		return mock, nil
	}
	return neoimport.Connect(ctx, s.Neo4j.URI, s.Neo4j.User, s.Neo4j.Password, s.DriverOptions().Configure())
}

func writeOutputs(
	ctx context.Context,
	s *config.Settings,
	report *neoimport.Report,
	registry *metrics.Registry,
	stdout io.Writer,
) error {
	log := logger.FromContext(ctx)
	if path := s.Output.MetricsTextfile; path != "" {
		if err := registry.WriteTextfile(path); err != nil {
			return fmt.Errorf("metrics textfile: %w", err)
		}
		log.Debug().Str("path", path).Msg("metrics written")
	}

	path := s.Output.ReportPath
	if path == "" {
		return report.WriteJSON(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if err := report.WriteJSON(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("report: %w", err)
	}
	logReport(log, report, path)
	return f.Close()
}

func logReport(log zerolog.Logger, report *neoimport.Report, path string) {
	ev := log.Info().Str("path", path).Str("run_id", report.RunID)
	for key, n := range report.Skipped() {
		ev = ev.Int64("skipped."+key, n)
	}
	ev.Msg("report written")
}
