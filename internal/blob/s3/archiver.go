package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/colonyforge/marketd/internal/domain"
)

// archivedMarket is the JSONL record uploaded per settled market. Positions
// and disputes are inlined so a single line is a complete snapshot.
type archivedMarket struct {
	Market    domain.Market     `json:"market"`
	Positions []domain.Position `json:"positions"`
	Disputes  []domain.Dispute  `json:"disputes"`
}

// ArchiveImpl implements domain.Archiver by snapshotting settled markets to
// JSONL and uploading the result to object storage.
//
// Deletion of the archived rows from the primary store is intentionally NOT
// performed here. That is a separate, explicit step to be executed after the
// archive has been verified.
type ArchiveImpl struct {
	writer domain.BlobWriter
	ledger domain.Ledger
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, ledger domain.Ledger) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		ledger: ledger,
	}
}

// ArchiveSettledMarkets collects every resolved or cancelled market settled
// strictly before the cutoff, serializes each together with its positions
// and disputes as one JSONL line, and uploads the file to
// archive/markets/YYYY-MM.jsonl. The archival is recorded in the audit log
// and the count of archived markets is returned.
func (a *ArchiveImpl) ArchiveSettledMarkets(ctx context.Context, before time.Time) (int64, error) {
	var records []archivedMarket

	err := a.ledger.View(ctx, func(tx domain.LedgerTx) error {
		markets, err := tx.ListMarketsSettledBefore(ctx, before)
		if err != nil {
			return err
		}
		for _, m := range markets {
			positions, err := tx.ListPositions(ctx, m.ID)
			if err != nil {
				return fmt.Errorf("positions for %s: %w", m.ID, err)
			}
			disputes, err := tx.ListDisputes(ctx, m.ID)
			if err != nil {
				return fmt.Errorf("disputes for %s: %w", m.ID, err)
			}
			records = append(records, archivedMarket{
				Market:    m,
				Positions: positions,
				Disputes:  disputes,
			})
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive markets query: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive markets marshal: %w", err)
	}

	path := archivePath("markets", before)
	if err := a.upload(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive markets upload: %w", err)
	}

	count := int64(len(records))

	err = a.ledger.Update(ctx, func(tx domain.LedgerTx) error {
		return tx.AppendAudit(ctx, "archive.markets", map[string]any{
			"path":   path,
			"count":  count,
			"before": before.Format(time.RFC3339),
		})
	})
	if err != nil {
		return count, fmt.Errorf("s3blob: archive markets audit log: %w", err)
	}

	return count, nil
}

// multipartThreshold is the batch size above which uploads switch to the
// multipart path. A popular month of settled markets with large position
// lists can exceed a single-shot upload's comfortable size.
const multipartThreshold = 64 * 1024 * 1024

func (a *ArchiveImpl) upload(ctx context.Context, path string, buf []byte) error {
	const contentType = "application/x-ndjson"
	if len(buf) > multipartThreshold {
		return a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), contentType, minPartSize)
	}
	return a.writer.Put(ctx, path, bytes.NewReader(buf), contentType)
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/markets/2026-03.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
