package neoimport

import (
	"github.com/rs/zerolog"
)

// DefaultBatchSize is the number of CSV rows committed per inner transaction.
const DefaultBatchSize = 1000

// DefaultFiles points at the published banking dataset.
var DefaultFiles = Files{
	Root:      "https://gist.githubusercontent.com/kesseract/19bf6eb6f6a5adecddedf2a081b51789/raw/f6800464bf4125b8dd218bc6168447a129205fdc/",
	Customers: "customers.csv",
	Transfers: "transfers.csv",
	Purchases: "purchases.csv",
}

// Policy decides what a phase does once one of its operations has failed.
type Policy int

const (
	// ContinueOnError runs every operation of a phase and reports failures
	// in the phase result.
	ContinueOnError Policy = iota
	// FailFast stops the phase at the first failed operation.
	FailFast
)

func (p Policy) String() string {
	switch p {
	case FailFast:
		return "fail-fast"
	default:
		return "continue"
	}
}

// Files locates the CSV resources. Root is prepended verbatim to each file
// name by the database, so it is usually a URL ending in "/" or a file:///
// prefix relative to the server's import directory.
type Files struct {
	Root      string
	Customers string
	Transfers string
	Purchases string
}

// Params returns the statement parameters shared by every load statement.
func (f Files) Params() map[string]any {
	return map[string]any{
		"file_path_root": f.Root,
		"file_0":         f.Customers,
		"file_1":         f.Transfers,
		"file_2":         f.Purchases,
	}
}

// Name returns the file name bound to a statement parameter.
func (f Files) Name(ref FileRef) string {
	switch ref {
	case CustomersFile:
		return f.Customers
	case TransfersFile:
		return f.Transfers
	case PurchasesFile:
		return f.Purchases
	}
	return ""
}

// Observer receives every finished operation. It is called from the
// goroutine that ran the operation.
type Observer interface {
	ObserveOperation(OpResult)
}

// Config holds the importer configuration.
type Config struct {
	Files    Files
	Database string

	BatchSize    int
	Parallelism  int
	Policy       Policy
	CountSkipped bool

	Logger   zerolog.Logger
	Observer Observer
}

// Configurer is a function that configures an importer Config.
type Configurer func(*Config)

func defaultConfig() Config {
	return Config{
		Files:        DefaultFiles,
		BatchSize:    DefaultBatchSize,
		Parallelism:  1,
		Policy:       ContinueOnError,
		CountSkipped: true,
		Logger:       zerolog.Nop(),
	}
}

// WithFiles sets the CSV locations.
func WithFiles(files Files) Configurer {
	return func(c *Config) {
		c.Files = files
	}
}

// WithDatabase selects the target database. Empty uses the server default.
func WithDatabase(name string) Configurer {
	return func(c *Config) {
		c.Database = name
	}
}

// WithBatchSize sets the rows per inner transaction. Values below 1 are
// ignored.
func WithBatchSize(n int) Configurer {
	return func(c *Config) {
		if n > 0 {
			c.BatchSize = n
		}
	}
}

// WithParallelism sets how many operations of one phase may run at once,
// each on its own session. Values below 1 are ignored.
//
// transaction_from_transfers and transaction_from_purchases MERGE into the
// same Transaction key space. Run concurrently, their inner transactions can
// deadlock on overlapping keys; the statements are auto-commit, so the driver
// does not retry and the whole operation fails. Rerunning the import is safe.
func WithParallelism(n int) Configurer {
	return func(c *Config) {
		if n > 0 {
			c.Parallelism = n
		}
	}
}

// WithPolicy sets the failure policy of both load phases.
func WithPolicy(p Policy) Configurer {
	return func(c *Config) {
		c.Policy = p
	}
}

// WithSkipCounting toggles the companion statements that count rows skipped
// because of a missing or unparseable key.
func WithSkipCounting(enabled bool) Configurer {
	return func(c *Config) {
		c.CountSkipped = enabled
	}
}

// WithLogger sets the logger used for per-operation progress.
func WithLogger(l zerolog.Logger) Configurer {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithObserver registers an [Observer] for finished operations.
func WithObserver(o Observer) Configurer {
	return func(c *Config) {
		c.Observer = o
	}
}
