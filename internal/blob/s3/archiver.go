package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

// Archiver implements domain.Archiver: it bundles one day's trade decisions
// and settlements into a JSONL object and uploads it. Nothing is deleted
// from the primary store; archives are an audit trail, not a purge.
type Archiver struct {
	writer      domain.BlobWriter
	trades      domain.TradeStore
	settlements domain.SettlementStore
}

// NewArchiver creates an Archiver.
func NewArchiver(writer domain.BlobWriter, trades domain.TradeStore, settlements domain.SettlementStore) *Archiver {
	return &Archiver{
		writer:      writer,
		trades:      trades,
		settlements: settlements,
	}
}

// archiveRecord is one JSONL line of the daily archive.
type archiveRecord struct {
	Kind       string                  `json:"kind"` // "trade" or "settlement"
	Trade      *domain.TradeDecision   `json:"trade,omitempty"`
	Settlement *domain.Settlement      `json:"settlement,omitempty"`
}

// ArchiveDay uploads the day's records to archive/outcomes/YYYY-MM-DD.jsonl
// and returns the object path. A day with no records uploads nothing and
// returns an empty path.
func (a *Archiver) ArchiveDay(ctx context.Context, day time.Time) (string, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	trades, err := a.trades.ListSince(ctx, dayStart)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive day trades: %w", err)
	}
	settlements, err := a.settlements.ListByDay(ctx, dayStart)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive day settlements: %w", err)
	}

	var records []archiveRecord
	dayEnd := dayStart.Add(24 * time.Hour)
	for i := range trades {
		if trades[i].CreatedAt.Before(dayEnd) {
			records = append(records, archiveRecord{Kind: "trade", Trade: &trades[i]})
		}
	}
	for i := range settlements {
		records = append(records, archiveRecord{Kind: "settlement", Settlement: &settlements[i]})
	}
	if len(records) == 0 {
		return "", nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive day marshal: %w", err)
	}

	path := fmt.Sprintf("archive/outcomes/%s.jsonl", dayStart.Format("2006-01-02"))
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return "", fmt.Errorf("s3blob: archive day upload: %w", err)
	}

	return path, nil
}

// marshalJSONL serialises records as newline-delimited JSON.
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
var _ domain.Archiver = (*Archiver)(nil)
