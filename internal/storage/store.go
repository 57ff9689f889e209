// Package storage persists preparation run records behind a pluggable
// backend: an in-memory store for tests and short-lived invocations, and an
// optional sqlite store for durable run registries.
package storage

import (
	"context"
	"time"
)

// VersionedRecord carries the schema and codec versions of a persisted
// record so stale payloads are rejected on decode.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord describes one completed preparation run: the inputs it consumed,
// the data file it wrote, and the problem dimensions it produced.
type RunRecord struct {
	VersionedRecord

	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	AlignmentPath string `json:"alignment_path"`
	CouplingsPath string `json:"couplings_path"`
	AllelesPath   string `json:"alleles_path"`
	ConfigPath    string `json:"config_path"`
	OutputPath    string `json:"output_path"`

	WildtypeName   string `json:"wildtype_name"`
	SequenceLength int    `json:"sequence_length"`
	NumFields      int    `json:"num_fields"`
	NumPairs       int    `json:"num_pairs"`
	SingleSiteFit  bool   `json:"single_site_fit"`
}

// Store defines the persistence operations for run records.
type Store interface {
	Init(ctx context.Context) error
	Reset(ctx context.Context) error
	SaveRun(ctx context.Context, run RunRecord) error
	GetRun(ctx context.Context, id string) (RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]RunRecord, error)
}
