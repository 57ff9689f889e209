package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"deimmu/internal/alphabet"
	"deimmu/internal/kabat"
	"deimmu/internal/msa"
	"deimmu/internal/sitemodel"
	"deimmu/internal/storage"
	deimmuapi "deimmu/pkg/deimmu"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "prepare":
		return runPrepare(ctx, args[1:])
	case "frequencies":
		return runFrequencies(ctx, args[1:])
	case "fit":
		return runFit(ctx, args[1:])
	case "kabat":
		return runKabat(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func newClient(storeKind, dbPath string) (*deimmuapi.Client, error) {
	return deimmuapi.New(deimmuapi.Options{StoreKind: storeKind, DBPath: dbPath})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "deimmu.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Init(ctx); err != nil {
		return err
	}
	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "deimmu.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Reset(ctx); err != nil {
		return err
	}
	fmt.Printf("reset store=%s\n", *storeKind)
	return nil
}

func runPrepare(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("prepare", flag.ContinueOnError)
	alignmentPath := fs.String("msa", "", "focus-mode alignment (FASTA)")
	couplingsPath := fs.String("couplings", "", "coupling model (JSON)")
	allelesPath := fs.String("alleles", "", "allele collection (JSON)")
	configPath := fs.String("config", "", "preparation config (JSON)")
	outputPath := fs.String("out", "", "data file to write")
	runID := fs.String("run-id", "", "run id (generated when empty)")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "deimmu.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	for _, required := range []struct{ name, value string }{
		{"msa", *alignmentPath},
		{"couplings", *couplingsPath},
		{"alleles", *allelesPath},
		{"config", *configPath},
		{"out", *outputPath},
	} {
		if required.value == "" {
			return usageError(fmt.Sprintf("prepare: -%s is required", required.name))
		}
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	summary, err := client.Prepare(ctx, deimmuapi.PrepareRequest{
		AlignmentPath: *alignmentPath,
		CouplingsPath: *couplingsPath,
		AllelesPath:   *allelesPath,
		ConfigPath:    *configPath,
		OutputPath:    *outputPath,
		RunID:         *runID,
	})
	if err != nil {
		return err
	}

	fmt.Printf("run=%s wildtype=%s length=%d sequences=%d fields=%d pairs=%d single_site=%v out=%s\n",
		summary.RunID, summary.WildtypeName, summary.SequenceLength, summary.NumSequences,
		summary.NumFields, summary.NumPairs, summary.SingleSiteFit, summary.OutputPath)
	return nil
}

func runFrequencies(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("frequencies", flag.ContinueOnError)
	alignmentPath := fs.String("msa", "", "alignment (FASTA)")
	alpha := fs.String("alphabet", alphabet.ProteinGapped, "model alphabet")
	outputPath := fs.String("out", "", "output CSV (stdout when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *alignmentPath == "" {
		return usageError("frequencies: -msa is required")
	}

	aln, err := msa.Open(*alignmentPath)
	if err != nil {
		return err
	}
	freq := aln.Frequencies(alphabet.Map(*alpha), len(*alpha))
	return writeMatrixCSV(*outputPath, *alpha, aln.Length, func(col, s int) float64 {
		return freq.At(col, s)
	})
}

func runFit(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("fit", flag.ContinueOnError)
	alignmentPath := fs.String("msa", "", "alignment (FASTA)")
	alpha := fs.String("alphabet", alphabet.ProteinGapped, "model alphabet")
	lambdaH := fs.Float64("lambda", 0.01, "field regularization strength")
	workers := fs.Int("workers", 4, "parallel column fits")
	outputPath := fs.String("out", "", "output CSV (stdout when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *alignmentPath == "" {
		return usageError("fit: -msa is required")
	}
	if *lambdaH <= 0 {
		return errors.New("fit: lambda must be > 0")
	}

	aln, err := msa.Open(*alignmentPath)
	if err != nil {
		return err
	}
	freq := aln.Frequencies(alphabet.Map(*alpha), len(*alpha))
	fields, err := sitemodel.Fit(freq, *lambdaH, float64(len(aln.Records)), *workers)
	if err != nil {
		return err
	}
	return writeMatrixCSV(*outputPath, *alpha, aln.Length, func(col, s int) float64 {
		return fields.At(col, s)
	})
}

func runKabat(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("kabat", flag.ContinueOnError)
	seq := fs.String("seq", "", "amino acid sequence")
	fastaPath := fs.String("fasta", "", "FASTA file; first record is numbered")
	scheme := fs.String("scheme", kabat.SchemeKabat, "numbering scheme: -k|-c")
	baseURL := fs.String("url", kabat.DefaultBaseURL, "abnum service URL")
	outputPath := fs.String("out", "", "output file (stdout when empty)")
	timeout := fs.Duration("timeout", 30*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	id := "sequence"
	sequence := *seq
	if sequence == "" {
		if *fastaPath == "" {
			return usageError("kabat: -seq or -fasta is required")
		}
		aln, err := msa.Open(*fastaPath)
		if err != nil {
			return err
		}
		rec := aln.Records[0]
		id = rec.ID
		sequence = ungapped(rec.Seq)
	}
	if sequence == "" {
		return errors.New("kabat: empty sequence")
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	numbering, err := kabat.Lookup(ctx, nil, *baseURL, sequence, *scheme)
	if err != nil {
		return err
	}

	out := io.Writer(os.Stdout)
	if *outputPath != "" {
		f, err := os.Create(*outputPath)
		if err != nil {
			return err
		}
		defer func() {
			_ = f.Close()
		}()
		out = f
	}
	return numbering.WriteReport(out, id, fmt.Sprintf("scheme %s", *scheme))
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "deimmu.db", "sqlite database path")
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	runs, err := client.Runs(ctx, deimmuapi.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	if *jsonOut {
		type runsItem struct {
			RunID          string `json:"run_id"`
			CreatedAtUTC   string `json:"created_at_utc"`
			OutputPath     string `json:"output_path"`
			WildtypeName   string `json:"wildtype_name"`
			SequenceLength int    `json:"sequence_length"`
			NumFields      int    `json:"num_fields"`
			NumPairs       int    `json:"num_pairs"`
			SingleSiteFit  bool   `json:"single_site_fit"`
		}
		items := make([]runsItem, 0, len(runs))
		for _, r := range runs {
			items = append(items, runsItem{
				RunID:          r.RunID,
				CreatedAtUTC:   r.CreatedAtUTC,
				OutputPath:     r.OutputPath,
				WildtypeName:   r.WildtypeName,
				SequenceLength: r.SequenceLength,
				NumFields:      r.NumFields,
				NumPairs:       r.NumPairs,
				SingleSiteFit:  r.SingleSiteFit,
			})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	for _, r := range runs {
		fmt.Printf("run=%s created=%s wildtype=%s length=%d fields=%d pairs=%d single_site=%v out=%s\n",
			r.RunID, r.CreatedAtUTC, r.WildtypeName, r.SequenceLength,
			r.NumFields, r.NumPairs, r.SingleSiteFit, r.OutputPath)
	}
	return nil
}

// writeMatrixCSV dumps a column-by-symbol matrix with a header row of the
// alphabet symbols and a leading 1-based column index.
func writeMatrixCSV(path, alpha string, rows int, at func(col, s int) float64) error {
	out := io.Writer(os.Stdout)
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer func() {
			_ = f.Close()
		}()
		out = f
	}

	w := csv.NewWriter(out)
	header := make([]string, 0, len(alpha)+1)
	header = append(header, "column")
	for i := 0; i < len(alpha); i++ {
		header = append(header, string(alpha[i]))
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for col := 0; col < rows; col++ {
		row := make([]string, 0, len(alpha)+1)
		row = append(row, strconv.Itoa(col+1))
		for s := 0; s < len(alpha); s++ {
			row = append(row, strconv.FormatFloat(at(col, s), 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func ungapped(seq string) string {
	var b strings.Builder
	for i := 0; i < len(seq); i++ {
		c := seq[i]
		if c == '-' || c == '.' {
			continue
		}
		b.WriteByte(alphabet.Upper(c))
	}
	return b.String()
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: deimmuctl <init|reset|prepare|frequencies|fit|kabat|runs> [flags]", msg)
}
