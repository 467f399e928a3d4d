package export

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
	"lukechampine.com/blake3"

	"stakeledger/crypto"
	"stakeledger/native/staking"
)

// Export kinds.
const (
	KindRecords     = "records"
	KindSettlements = "settlements"
	KindFunding     = "funding"
)

const pageSize = 256

// Source is the read surface of the staking engine used for exports.
type Source interface {
	Accounts(after [20]byte, limit int) ([]*staking.StakerAccount, error)
	Settlements(limit int) ([]*staking.Settlement, error)
	FundingLog(from uint64, limit int) ([]*staking.FundingRecord, error)
}

// Recorder persists export metadata.
type Recorder interface {
	RecordExport(ctx context.Context, kind, path, digest string, rows int) error
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(ctx context.Context, kind, path, digest string, rows int) error

// RecordExport implements Recorder.
func (f RecorderFunc) RecordExport(ctx context.Context, kind, path, digest string, rows int) error {
	return f(ctx, kind, path, digest, rows)
}

// Config captures exporter dependencies.
type Config struct {
	Source    Source
	Recorder  Recorder
	OutputDir string
	Now       func() time.Time
	Logger    *slog.Logger
}

// Exporter writes ledger snapshots as Parquet files alongside a manifest
// carrying the BLAKE3 digest of each file.
type Exporter struct {
	source    Source
	recorder  Recorder
	outputDir string
	now       func() time.Time
	logger    *slog.Logger
}

// Manifest describes one export artefact.
type Manifest struct {
	Kind      string    `json:"kind"`
	File      string    `json:"file"`
	Rows      int       `json:"rows"`
	Blake3    string    `json:"blake3"`
	CreatedAt time.Time `json:"createdAt"`
}

// New builds a configured exporter.
func New(cfg Config) (*Exporter, error) {
	if cfg.Source == nil {
		return nil, errors.New("export: source is required")
	}
	dir := strings.TrimSpace(cfg.OutputDir)
	if dir == "" {
		dir = filepath.Join("stakeledger-data", "exports")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{source: cfg.Source, recorder: cfg.Recorder, outputDir: dir, now: now, logger: logger}, nil
}

// Run writes the requested kinds, or all of them when none are named.
func (e *Exporter) Run(ctx context.Context, kinds ...string) ([]Manifest, error) {
	if len(kinds) == 0 {
		kinds = []string{KindRecords, KindSettlements, KindFunding}
	}
	stamp := e.now().UTC()
	runDir := filepath.Join(e.outputDir, stamp.Format("20060102T150405Z"))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("export: create dir: %w", err)
	}
	manifests := make([]Manifest, 0, len(kinds))
	for _, kind := range kinds {
		if err := ctx.Err(); err != nil {
			return manifests, err
		}
		var (
			rows int
			err  error
		)
		path := filepath.Join(runDir, kind+".parquet")
		switch kind {
		case KindRecords:
			rows, err = e.writeRecords(path)
		case KindSettlements:
			rows, err = e.writeSettlements(path)
		case KindFunding:
			rows, err = e.writeFunding(path)
		default:
			return manifests, fmt.Errorf("export: unknown kind %q", kind)
		}
		if err != nil {
			return manifests, err
		}
		digest, err := fileDigest(path)
		if err != nil {
			return manifests, err
		}
		manifest := Manifest{Kind: kind, File: path, Rows: rows, Blake3: digest, CreatedAt: stamp}
		if err := writeManifest(path+".manifest.json", manifest); err != nil {
			return manifests, err
		}
		if e.recorder != nil {
			if err := e.recorder.RecordExport(ctx, kind, path, digest, rows); err != nil {
				return manifests, fmt.Errorf("export: record: %w", err)
			}
		}
		e.logger.Info("export written", slog.String("kind", kind), slog.String("path", path), slog.Int("rows", rows))
		manifests = append(manifests, manifest)
	}
	return manifests, nil
}

type recordRow struct {
	Account         string `parquet:"name=account, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Tier            string `parquet:"name=tier, type=UTF8, encoding=PLAIN_DICTIONARY"`
	RecordID        int64  `parquet:"name=record_id, type=INT64"`
	Amount          string `parquet:"name=amount, type=UTF8, encoding=PLAIN_DICTIONARY"`
	StartTime       int64  `parquet:"name=start_time, type=INT64"`
	LockupSeconds   int64  `parquet:"name=lockup_seconds, type=INT64"`
	WeightBps       int64  `parquet:"name=weight_bps, type=INT64"`
	CreditedRewards string `parquet:"name=credited_rewards, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Claimed         bool   `parquet:"name=claimed, type=BOOLEAN"`
	PendingTransfer int64  `parquet:"name=pending_transfer, type=INT64"`
}

type settlementRow struct {
	Round           int64  `parquet:"name=round, type=INT64"`
	Release         string `parquet:"name=release, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Credited        string `parquet:"name=credited, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Dust            string `parquet:"name=dust, type=UTF8, encoding=PLAIN_DICTIONARY"`
	TotalPoints     string `parquet:"name=total_points, type=UTF8, encoding=PLAIN_DICTIONARY"`
	EligibleRecords int64  `parquet:"name=eligible_records, type=INT64"`
	Payouts         int32  `parquet:"name=payouts, type=INT32"`
	AsOf            int64  `parquet:"name=as_of, type=INT64"`
	ClosedAt        int64  `parquet:"name=closed_at, type=INT64"`
}

type fundingRow struct {
	Sequence  int64  `parquet:"name=sequence, type=INT64"`
	Funder    string `parquet:"name=funder, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Amount    string `parquet:"name=amount, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Timestamp int64  `parquet:"name=timestamp, type=INT64"`
}

func (e *Exporter) writeRecords(path string) (int, error) {
	var rows []interface{}
	var cursor [20]byte
	for {
		page, err := e.source.Accounts(cursor, pageSize)
		if err != nil {
			return 0, fmt.Errorf("export: load accounts: %w", err)
		}
		for _, acc := range page {
			cursor = acc.Address
			owner := crypto.FormatAddress(acc.Address)
			for _, rec := range acc.Records {
				rows = append(rows, &recordRow{
					Account:         owner,
					Tier:            acc.Tier.String(),
					RecordID:        int64(rec.ID),
					Amount:          staking.FormatAmount(rec.Amount),
					StartTime:       rec.StartTime,
					LockupSeconds:   int64(rec.LockupDuration),
					WeightBps:       int64(rec.WeightBps),
					CreditedRewards: staking.FormatAmount(rec.CreditedRewards),
					Claimed:         rec.Claimed,
					PendingTransfer: int64(rec.PendingTransfer),
				})
			}
		}
		if len(page) < pageSize {
			break
		}
	}
	return len(rows), writeParquet(path, new(recordRow), rows)
}

func (e *Exporter) writeSettlements(path string) (int, error) {
	list, err := e.source.Settlements(0)
	if err != nil {
		return 0, fmt.Errorf("export: load settlements: %w", err)
	}
	rows := make([]interface{}, 0, len(list))
	for _, s := range list {
		rows = append(rows, &settlementRow{
			Round:           int64(s.Round),
			Release:         staking.FormatAmount(s.Release),
			Credited:        staking.FormatAmount(s.Credited),
			Dust:            staking.FormatAmount(s.Dust),
			TotalPoints:     staking.FormatAmount(s.TotalPoints),
			EligibleRecords: int64(s.EligibleRecords),
			Payouts:         int32(len(s.Payouts)),
			AsOf:            s.AsOf,
			ClosedAt:        s.ClosedAt,
		})
	}
	return len(rows), writeParquet(path, new(settlementRow), rows)
}

func (e *Exporter) writeFunding(path string) (int, error) {
	var rows []interface{}
	from := uint64(1)
	for {
		page, err := e.source.FundingLog(from, pageSize)
		if err != nil {
			return 0, fmt.Errorf("export: load funding: %w", err)
		}
		for _, entry := range page {
			from = entry.Sequence + 1
			rows = append(rows, &fundingRow{
				Sequence:  int64(entry.Sequence),
				Funder:    crypto.FormatAddress(entry.Funder),
				Amount:    staking.FormatAmount(entry.Amount),
				Timestamp: entry.Timestamp,
			})
		}
		if len(page) < pageSize {
			break
		}
	}
	return len(rows), writeParquet(path, new(fundingRow), rows)
}

func writeParquet(path string, schema interface{}, rows []interface{}) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, schema, 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("export: parquet schema: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			file.Close()
			return fmt.Errorf("export: write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("export: finalise parquet: %w", err)
	}
	return file.Close()
}

func fileDigest(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("export: open for digest: %w", err)
	}
	defer file.Close()
	hasher := blake3.New(32, nil)
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("export: digest: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func writeManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("export: encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export: write manifest: %w", err)
	}
	return nil
}

// Verify recomputes the digest of the file referenced by a manifest.
func Verify(m Manifest) error {
	digest, err := fileDigest(m.File)
	if err != nil {
		return err
	}
	if digest != m.Blake3 {
		return fmt.Errorf("export: digest mismatch for %s", m.File)
	}
	return nil
}
