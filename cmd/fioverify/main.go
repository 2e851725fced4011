package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/vincentkfu/fioverify/internal/mangle"
	"github.com/vincentkfu/fioverify/internal/matrix"
	"github.com/vincentkfu/fioverify/internal/report"
	"github.com/vincentkfu/fioverify/internal/runner"
	"github.com/vincentkfu/fioverify/internal/taxonomy"
)

// logger is the application-wide structured logger (writes to stderr).
var logger = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
	ReportTimestamp: false,
})

// Set by build flags.
var version = "dev"

// exitCode carries the run command's failed-case count to main; the
// process exit code equals the number of failed cases.
var exitCode int

func main() {
	root := &cobra.Command{
		Use:   "fioverify",
		Short: "fioverify is a data-integrity verification harness for fio",
		Long: `fioverify drives fio through parameterized verification jobs,
deliberately corrupts previously written data, and confirms fio
detects the corruption with the correct platform error code.`,
		Version: version,
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newMangleCmd())
	root.AddCommand(newSchemaCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(exitCode)
}

// runParams holds the parsed flags for the run command.
type runParams struct {
	fioPath      string
	artifactRoot string
	configPath   string
	skip         []int
	runOnly      []int
	complete     bool
	checksums    []string
	skipReq      bool
	debug        bool
	format       string
	timeout      time.Duration
	interactive  bool
	stdout       io.Writer
	stderr       io.Writer
}

// chooseChecksums resolves the verification set from, in order of
// precedence: explicit list, --complete, config file, default.
func chooseChecksums(p runParams, cfg Config) ([]matrix.Checksum, error) {
	switch {
	case len(p.checksums) > 0:
		return matrix.ParseChecksums(p.checksums)
	case p.complete:
		return matrix.CompleteChecksums(), nil
	case len(cfg.Checksums) > 0:
		return matrix.ParseChecksums(cfg.Checksums)
	}
	return matrix.DefaultChecksums(), nil
}

// runRun is the extracted, testable body of the run command. It
// returns the number of failed cases.
func runRun(ctx context.Context, p runParams) (int, error) {
	if p.format != "text" && p.format != "json" {
		return 0, fmt.Errorf("invalid format %q: must be 'text' or 'json'", p.format)
	}

	cfg, err := loadConfig(p.configPath)
	if err != nil {
		return 0, err
	}
	if p.fioPath != "" {
		cfg.Fio = p.fioPath
	}
	if p.artifactRoot != "" {
		cfg.ArtifactRoot = p.artifactRoot
	}
	if p.timeout > 0 {
		cfg.TimeoutSeconds = int(p.timeout / time.Second)
	}
	if p.skipReq {
		cfg.SkipRequirements = true
	}

	checksums, err := chooseChecksums(p, cfg)
	if err != nil {
		return 0, err
	}

	eilseq, ok := taxonomy.IllegalByteSeq(runtime.GOOS)
	if !ok {
		return 0, fmt.Errorf("no illegal-byte-sequence code known for %s", runtime.GOOS)
	}

	fioPath, err := filepath.Abs(cfg.Fio)
	if err != nil {
		return 0, fmt.Errorf("resolving fio path: %w", err)
	}

	root := cfg.ArtifactRoot
	if root == "" {
		root = fmt.Sprintf("verify-run-%s", time.Now().Format("20060102-150405"))
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return 0, fmt.Errorf("creating artifact root: %w", err)
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return 0, fmt.Errorf("resolving artifact root: %w", err)
	}

	logger.Info("starting run", "fio", fioPath, "artifacts", root)

	o := &matrix.Orchestrator{
		Invoker: &runner.Runner{
			FioPath: fioPath,
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
			Logger:  logger,
		},
		FioPath:     fioPath,
		Root:        root,
		Templates:   matrix.Templates(),
		Checksums:   checksums,
		MangleModes: mangle.Modes(),
		Skip:        p.skip,
		RunOnly:     p.runOnly,
		SkipReqs:    cfg.SkipRequirements,
		Env:         matrix.HostEnvironment(),
		EILSEQ:      eilseq,
		Logger:      logger,
	}

	summary := o.Run(ctx)

	logger.Info("run complete",
		"passed", summary.Tally.Passed,
		"failed", summary.Tally.Failed,
		"skipped", summary.Tally.Skipped)

	if p.interactive {
		if err := runInteractiveResults(summary); err != nil {
			return summary.Tally.Failed, err
		}
	}

	switch p.format {
	case "json":
		err = report.WriteJSON(p.stdout, summary, version)
	default:
		err = report.WriteText(p.stdout, summary)
	}
	return summary.Tally.Failed, err
}

func newRunCmd() *cobra.Command {
	var p runParams

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the verification matrices against fio",
		Long: `Run the direction x checksum verification matrix and the
fault-injection matrix, collecting per-case pass/fail results.
The process exit code equals the number of failed cases.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if p.debug {
				logger.SetLevel(charmlog.DebugLevel)
			}
			p.stdout = os.Stdout
			p.stderr = os.Stderr

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			failed, err := runRun(ctx, p)
			exitCode = failed
			return err
		},
	}

	cmd.Flags().StringVarP(&p.fioPath, "fio", "f", "",
		"path to the fio executable (default: fio in PATH)")
	cmd.Flags().StringVarP(&p.artifactRoot, "artifact-root", "a", "",
		"artifact root directory (default: timestamped directory)")
	cmd.Flags().StringVar(&p.configPath, "config", "",
		"path to config file (default: .fioverify.yaml if present)")
	cmd.Flags().IntSliceVarP(&p.skip, "skip", "s", nil,
		"test case id(s) to skip")
	cmd.Flags().IntSliceVarP(&p.runOnly, "run-only", "o", nil,
		"test case id(s) to run, skipping all others")
	cmd.Flags().BoolVar(&p.complete, "complete", false,
		"expand the checksum set with the SHA-3 family")
	cmd.Flags().StringSliceVar(&p.checksums, "checksums", nil,
		"explicit checksum list, overriding the default set")
	cmd.Flags().BoolVar(&p.skipReq, "skip-req", false,
		"bypass host requirement checks")
	cmd.Flags().BoolVarP(&p.debug, "debug", "d", false,
		"enable debug messages")
	cmd.Flags().StringVar(&p.format, "format", "text",
		"output format: text or json")
	cmd.Flags().DurationVar(&p.timeout, "timeout", 0,
		"per-invocation timeout (default from config, 300s)")
	cmd.Flags().BoolVarP(&p.interactive, "interactive", "i", false,
		"launch interactive TUI for browsing results")

	return cmd
}

// runList prints the case matrix without invoking the subject.
func runList(w io.Writer, complete bool) {
	checksums := matrix.DefaultChecksums()
	if complete {
		checksums = matrix.CompleteChecksums()
	}

	for _, d := range matrix.Directions() {
		for _, cs := range checksums {
			for _, tmpl := range matrix.Templates() {
				fmt.Fprintf(w, "%04d verify ddir=%s csum=%s\n", tmpl.ID, d, cs)
			}
		}
	}
	for _, m := range mangle.Modes() {
		for _, cs := range checksums {
			for _, tmpl := range matrix.Templates() {
				fmt.Fprintf(w, "%04d fault  mangle=%s csum=%s\n", tmpl.ID, m, cs)
			}
		}
	}
}

func newListCmd() *cobra.Command {
	var complete bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the test case matrix without running it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runList(cmd.OutOrStdout(), complete)
			return nil
		},
	}
	cmd.Flags().BoolVar(&complete, "complete", false,
		"expand the checksum set with the SHA-3 family")
	return cmd
}

// mangleParams holds the parsed flags for the mangle command.
type mangleParams struct {
	path      string
	mode      string
	blockSize int64
	nBytes    int64
}

// runMangle is the extracted, testable body of the mangle command.
func runMangle(p mangleParams) error {
	mode, err := mangle.ParseMode(p.mode)
	if err != nil {
		return err
	}

	info, err := os.Stat(p.path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", p.path, err)
	}

	op, err := mangle.Plan(info.Size(), p.blockSize, mode, p.nBytes)
	if err != nil {
		return err
	}
	if err := mangle.Apply(p.path, op); err != nil {
		return err
	}

	logger.Info("corrupted artifact",
		"path", p.path, "mode", mode, "offset", op.Offset, "bytes", op.Size)
	return nil
}

func newMangleCmd() *cobra.Command {
	var p mangleParams

	cmd := &cobra.Command{
		Use:   "mangle [file]",
		Short: "Corrupt one byte range of an artifact by hand",
		Long: `Overwrite one record (or a few bytes) of a previously written
artifact with random content, the same corruption the fault-injection
matrix performs. Useful for reproducing a detection failure manually.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p.path = args[0]
			return runMangle(p)
		},
	}

	cmd.Flags().StringVar(&p.mode, "mode", string(mangle.ModePartial),
		"corruption mode: block or partial")
	cmd.Flags().Int64Var(&p.blockSize, "bs", 4096,
		"record size the artifact was written with")
	cmd.Flags().Int64Var(&p.nBytes, "bytes", mangle.DefaultPartialBytes,
		"overwrite size for partial mode")

	return cmd
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for fioverify run output",
		Long: `Print the JSON Schema (Draft 2020-12) that documents the
structure of fioverify run --format=json output. Useful for
validating output or generating client types.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), report.Schema)
			return err
		},
	}
}
