// Package deimmu is the embedding API for the de-immunization preparation
// pipeline: it loads the alignment, coupling model, allele definitions and
// run configuration, assembles the optimization problem and writes the
// solver data file, recording each run in a pluggable store.
package deimmu

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"deimmu/internal/alleles"
	"deimmu/internal/alphabet"
	"deimmu/internal/couplings"
	"deimmu/internal/msa"
	"deimmu/internal/mutation"
	"deimmu/internal/prep"
	"deimmu/internal/sitemodel"
	"deimmu/internal/storage"
	"deimmu/internal/wildtype"
)

const defaultDBPath = "deimmu.db"

type Options struct {
	StoreKind string
	DBPath    string
}

type Client struct {
	store storage.Store
}

// PrepareRequest names the four inputs of a preparation run and the data
// file to write. RunID is optional; a fresh one is generated when empty.
type PrepareRequest struct {
	AlignmentPath string
	CouplingsPath string
	AllelesPath   string
	ConfigPath    string
	OutputPath    string
	RunID         string
}

type PrepareSummary struct {
	RunID          string
	OutputPath     string
	WildtypeName   string
	SequenceLength int
	NumSequences   int
	NumFields      int
	NumPairs       int
	SingleSiteFit  bool
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID          string
	CreatedAtUTC   string
	OutputPath     string
	WildtypeName   string
	SequenceLength int
	NumFields      int
	NumPairs       int
	SingleSiteFit  bool
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	return &Client{store: store}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

func (c *Client) Reset(ctx context.Context) error {
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	return c.store.Reset(ctx)
}

// Prepare runs the full pipeline and records the result. The returned
// summary mirrors the stored run record.
func (c *Client) Prepare(ctx context.Context, req PrepareRequest) (PrepareSummary, error) {
	if req.OutputPath == "" {
		return PrepareSummary{}, fmt.Errorf("output path is required")
	}

	cfg, err := prep.LoadConfig(req.ConfigPath)
	if err != nil {
		return PrepareSummary{}, err
	}
	aln, err := msa.Open(req.AlignmentPath)
	if err != nil {
		return PrepareSummary{}, err
	}
	model, err := couplings.Load(req.CouplingsPath)
	if err != nil {
		return PrepareSummary{}, err
	}
	coll, err := alleles.Load(req.AllelesPath)
	if err != nil {
		return PrepareSummary{}, err
	}

	sigma := alphabet.Symbols(model.Alphabet, false)
	if err := coll.Validate(cfg.EpitopeLength, sigma); err != nil {
		return PrepareSummary{}, err
	}

	wt, err := wildtype.FromAlignment(aln)
	if err != nil {
		return PrepareSummary{}, err
	}

	freq := aln.Frequencies(model.AlphabetMap(), model.NumSymbols())
	policy := mutation.NewObservedPolicy(freq, wt, model.Alphabet, cfg.MinObservedFrequency)

	p, err := prep.New(cfg, wt, coll, policy)
	if err != nil {
		return PrepareSummary{}, err
	}

	if cfg.UseSingleSiteModel {
		fields, err := sitemodel.Fit(freq, cfg.LambdaH, float64(len(aln.Records)), cfg.Workers)
		if err != nil {
			return PrepareSummary{}, fmt.Errorf("fit single-site model: %w", err)
		}
		p.SetSingleSiteFields(fields)
	}

	if err := p.ExtractParameters(model); err != nil {
		return PrepareSummary{}, err
	}
	if err := p.WriteDataFile(req.OutputPath); err != nil {
		return PrepareSummary{}, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	record := storage.RunRecord{
		VersionedRecord: storage.VersionedRecord{
			SchemaVersion: storage.CurrentSchemaVersion,
			CodecVersion:  storage.CurrentCodecVersion,
		},
		ID:             runID,
		CreatedAt:      time.Now().UTC(),
		AlignmentPath:  req.AlignmentPath,
		CouplingsPath:  req.CouplingsPath,
		AllelesPath:    req.AllelesPath,
		ConfigPath:     req.ConfigPath,
		OutputPath:     req.OutputPath,
		WildtypeName:   wt.Name,
		SequenceLength: wt.Len(),
		NumFields:      len(p.HiIndices),
		NumPairs:       len(p.EijIndices),
		SingleSiteFit:  cfg.UseSingleSiteModel,
	}
	if err := c.store.SaveRun(ctx, record); err != nil {
		return PrepareSummary{}, fmt.Errorf("record run %s: %w", runID, err)
	}

	return PrepareSummary{
		RunID:          runID,
		OutputPath:     req.OutputPath,
		WildtypeName:   wt.Name,
		SequenceLength: wt.Len(),
		NumSequences:   len(aln.Records),
		NumFields:      len(p.HiIndices),
		NumPairs:       len(p.EijIndices),
		SingleSiteFit:  cfg.UseSingleSiteModel,
	}, nil
}

// Runs lists recorded runs, newest first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	records, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if req.Limit > 0 && len(records) > req.Limit {
		records = records[:req.Limit]
	}

	items := make([]RunItem, 0, len(records))
	for _, r := range records {
		items = append(items, RunItem{
			RunID:          r.ID,
			CreatedAtUTC:   r.CreatedAt.UTC().Format(time.RFC3339),
			OutputPath:     r.OutputPath,
			WildtypeName:   r.WildtypeName,
			SequenceLength: r.SequenceLength,
			NumFields:      r.NumFields,
			NumPairs:       r.NumPairs,
			SingleSiteFit:  r.SingleSiteFit,
		})
	}
	return items, nil
}
