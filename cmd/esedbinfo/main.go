// Command esedbinfo prints information about ESE database files.
// It can check file signatures, show header metadata and record every ESE
// file below a directory in a SQLite inventory.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/esedb/core/esedb"
	"github.com/FocuswithJustin/esedb/internal/inventory"
	"github.com/FocuswithJustin/esedb/internal/logging"
	"github.com/FocuswithJustin/esedb/internal/source"
)

const version = "0.4.0"

// stdout is where command output goes; tests replace it.
var stdout io.Writer = os.Stdout

// errNoSignature is returned by check when a file is not an ESE database.
var errNoSignature = errors.New("no ESE file signature")

// CLI defines the command-line interface for esedbinfo.
var CLI struct {
	// Global flags
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)" default:"warn" env:"ESEDB_LOG_LEVEL" enum:"debug,info,warn,error"`
	LogFormat string `name:"log-format" help:"Log format (json, text)" default:"text" env:"ESEDB_LOG_FORMAT" enum:"json,text"`

	Info    InfoCmd    `cmd:"" help:"Show header information of an ESE file"`
	Check   CheckCmd   `cmd:"" help:"Check whether a file carries the ESE signature"`
	Scan    ScanCmd    `cmd:"" help:"Record all ESE files below a directory in an inventory"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// report is the information printed by info and stored by scan.
type report struct {
	Path                  string `json:"path"`
	Compressed            bool   `json:"compressed,omitempty"`
	Size                  int64  `json:"size"`
	FileType              string `json:"file_type"`
	FormatVersion         uint32 `json:"format_version"`
	FormatRevision        uint32 `json:"format_revision"`
	CreationFormatVersion uint32 `json:"creation_format_version"`
	CreationRevision      uint32 `json:"creation_format_revision"`
	DatabaseState         string `json:"database_state"`
	PageSize              uint32 `json:"page_size"`
	Tables                uint32 `json:"number_of_tables"`
	HeaderBlake3          string `json:"header_blake3"`
}

// inspect opens path and collects its header metadata. The header digest is
// filled in even when the file cannot be opened as a database.
func inspect(path string) (*report, error) {
	src, err := source.Open(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	r := src.Reader()
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("seek %s: %w", path, err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek %s: %w", path, err)
	}

	header := make([]byte, esedb.HeaderSize)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	rep := &report{
		Path:         path,
		Compressed:   src.Compressed,
		Size:         size,
		HeaderBlake3: inventory.Digest(header[:n]),
	}

	f := esedb.New()
	if err := f.OpenReader(r, esedb.ModeRead); err != nil {
		return rep, err
	}
	defer f.Close()

	fileType, _ := f.Type()
	rep.FileType = fileType.String()
	rep.PageSize, _ = f.PageSize()
	rep.FormatVersion, rep.FormatRevision, _ = f.FormatVersion()
	rep.CreationFormatVersion, rep.CreationRevision, _ = f.CreationFormatVersion()
	state, _ := f.DatabaseState()
	rep.DatabaseState = state.String()

	if rep.Tables, err = f.NumberOfTables(); err != nil {
		return rep, err
	}
	return rep, nil
}

// InfoCmd prints header information.
type InfoCmd struct {
	Path   string `arg:"" help:"Path to an ESE file (.edb, .dit, .stm, optionally .xz compressed)" type:"existingfile"`
	Format string `help:"Output format (text, json)" default:"text" enum:"text,json"`
}

func (c *InfoCmd) Run() error {
	rep, err := inspect(c.Path)
	if err != nil {
		return fmt.Errorf("unable to open %s: %w", c.Path, err)
	}

	if c.Format == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	fmt.Fprintln(stdout, "Extensible Storage Engine Database information:")
	fmt.Fprintf(stdout, "\tFile type:\t\t%s\n", rep.FileType)
	fmt.Fprintf(stdout, "\tCreated in format:\t0x%x,0x%x\n", rep.CreationFormatVersion, rep.CreationRevision)
	fmt.Fprintf(stdout, "\tCurrent format:\t\t0x%x,0x%x\n", rep.FormatVersion, rep.FormatRevision)
	fmt.Fprintf(stdout, "\tDatabase state:\t\t%s\n", rep.DatabaseState)
	fmt.Fprintf(stdout, "\tPage size:\t\t%d bytes\n", rep.PageSize)
	fmt.Fprintf(stdout, "\tNumber of tables:\t%d\n", rep.Tables)
	fmt.Fprintf(stdout, "\tHeader BLAKE3:\t\t%s\n", rep.HeaderBlake3)
	if rep.Compressed {
		fmt.Fprintln(stdout, "\tCompressed:\t\txz")
	}
	return nil
}

// CheckCmd checks the file signature.
type CheckCmd struct {
	Path string `arg:"" help:"Path to the file to check" type:"existingfile"`
}

func (c *CheckCmd) Run() error {
	src, err := source.Open(c.Path)
	if err != nil {
		return err
	}
	defer src.Close()

	ok, err := esedb.CheckSignatureReader(src.Reader())
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(stdout, "%s: not an ESE database\n", c.Path)
		return fmt.Errorf("%s: %w", c.Path, errNoSignature)
	}
	fmt.Fprintf(stdout, "%s: ESE database\n", c.Path)
	return nil
}

// ScanCmd walks a directory and records ESE files.
type ScanCmd struct {
	Root string `arg:"" help:"Directory to scan" type:"existingdir"`
	DB   string `name:"db" help:"Inventory database path" default:"esedb-inventory.db" type:"path"`
}

func (c *ScanCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return c.run(ctx)
}

func (c *ScanCmd) run(ctx context.Context) error {
	store, err := inventory.Open(ctx, c.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	scanID, err := store.BeginScan(ctx, c.Root)
	if err != nil {
		return err
	}
	ctx = logging.WithScanID(ctx, scanID)

	start := time.Now()
	var scanned, matched int
	err = source.Walk(ctx, c.Root, func(path string, info fs.FileInfo) error {
		scanned++
		if info.Size() == 0 {
			return nil
		}

		src, err := source.Open(path)
		if err != nil {
			logging.WarnContext(ctx, "skipping unreadable file", "path", path, "error", err.Error())
			return nil
		}
		ok, err := esedb.CheckSignatureReader(src.Reader())
		src.Close()
		if err != nil || !ok {
			return nil
		}
		matched++

		rec := inventory.Record{Path: path, Size: info.Size()}
		rep, err := inspect(path)
		if rep != nil {
			rec.FileType = rep.FileType
			rec.PageSize = rep.PageSize
			rec.FormatVersion = rep.FormatVersion
			rec.FormatRevision = rep.FormatRevision
			rec.Tables = rep.Tables
			rec.HeaderDigest = rep.HeaderBlake3
		}
		if err != nil {
			rec.Error = err.Error()
			logging.WarnContext(ctx, "unable to inspect file", "path", path, "error", rec.Error)
		}
		if err := store.Add(ctx, scanID, rec); err != nil {
			return err
		}

		noteEarlierSighting(ctx, store, scanID, rec)
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan %s: %w", c.Root, err)
	}

	if err := store.FinishScan(ctx, scanID, scanned, matched); err != nil {
		return err
	}
	logging.ScanResult(ctx, c.Root, scanned, matched, time.Since(start))

	fmt.Fprintf(stdout, "scan %s: %d files scanned, %d ESE files recorded in %s\n", scanID, scanned, matched, c.DB)
	return nil
}

// noteEarlierSighting logs when the header of rec was already recorded by
// another scan. Records without a header digest are not looked up.
func noteEarlierSighting(ctx context.Context, store *inventory.Store, scanID string, rec inventory.Record) {
	if rec.HeaderDigest == "" {
		return
	}
	seen, err := store.SeenBefore(ctx, scanID, rec.HeaderDigest)
	if err != nil {
		logging.WarnContext(ctx, "unable to look up header digest", "path", rec.Path, "error", err.Error())
		return
	}
	if len(seen) > 0 {
		logging.InfoContext(ctx, "header seen in earlier scan", "path", rec.Path, "earlier", seen[0])
	}
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	info := inventory.GetInfo()
	fmt.Fprintf(stdout, "esedbinfo version %s (library %s)\n", version, esedb.Version())
	fmt.Fprintf(stdout, "sqlite driver: %s (%s, %s)\n", info.DriverName, info.DriverType, info.Package)
	return nil
}

// configureLogging applies the global log flags.
func configureLogging(level, format string) error {
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return err
	}
	f, err := logging.ParseFormat(format)
	if err != nil {
		return err
	}
	logging.InitLogger(lvl, f)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("esedbinfo"),
		kong.Description("Extensible Storage Engine (ESE) database information"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	ctx.FatalIfErrorf(configureLogging(CLI.LogLevel, CLI.LogFormat))
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
