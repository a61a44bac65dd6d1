package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oddslab/courtside/internal/domain"
)

// archivePageSize bounds each ledger read so a large backlog is drained in
// chunks instead of one unbounded query.
const archivePageSize = 10000

// multipartThreshold is the payload size above which uploads switch to the
// multipart path.
const multipartThreshold = 32 * 1024 * 1024

// ---------------------------------------------------------------------------
// Narrow store interfaces required by the archiver. The Postgres stores
// satisfy these implicitly.
// ---------------------------------------------------------------------------

// EventArchiveStore provides paged read and bulk delete access to the event
// ledger for archival.
type EventArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.MarketEvent, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// SnapshotArchiveStore provides paged read and bulk delete access to the
// snapshot series for archival.
type SnapshotArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.Snapshot, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ArchiveImpl implements domain.Archiver: aged rows are serialized to JSONL,
// uploaded to S3, recorded in the audit log, and only then deleted from the
// primary store. A failed upload leaves the rows in place for the next run.
type ArchiveImpl struct {
	writer domain.BlobWriter
	events EventArchiveStore
	snaps  SnapshotArchiveStore
	audit  domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, events EventArchiveStore, snaps SnapshotArchiveStore, audit domain.AuditStore) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		events: events,
		snaps:  snaps,
		audit:  audit,
	}
}

// ArchiveEvents moves ledger events older than the cutoff to
// archive/events/YYYY-MM.jsonl and returns the number archived.
func (a *ArchiveImpl) ArchiveEvents(ctx context.Context, before time.Time) (int64, error) {
	var (
		buf   bytes.Buffer
		count int64
	)
	for {
		page, err := a.events.ListBefore(ctx, before, archivePageSize)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive events query: %w", err)
		}
		if len(page) == 0 {
			break
		}
		if err := appendJSONL(&buf, page); err != nil {
			return 0, fmt.Errorf("s3blob: archive events marshal: %w", err)
		}
		count += int64(len(page))
		if len(page) < archivePageSize {
			break
		}
	}
	if count == 0 {
		return 0, nil
	}

	path := archivePath("events", before)
	if err := a.upload(ctx, path, &buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive events upload: %w", err)
	}

	deleted, err := a.events.DeleteBefore(ctx, before)
	if err != nil {
		return count, fmt.Errorf("s3blob: archive events delete: %w", err)
	}

	if err := a.audit.Log(ctx, "archive.events", map[string]any{
		"path":    path,
		"count":   count,
		"deleted": deleted,
		"before":  before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive events audit log: %w", err)
	}
	return count, nil
}

// ArchiveSnapshots moves snapshots older than the cutoff to
// archive/snapshots/YYYY-MM.jsonl and returns the number archived.
func (a *ArchiveImpl) ArchiveSnapshots(ctx context.Context, before time.Time) (int64, error) {
	var (
		buf   bytes.Buffer
		count int64
	)
	for {
		page, err := a.snaps.ListBefore(ctx, before, archivePageSize)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive snapshots query: %w", err)
		}
		if len(page) == 0 {
			break
		}
		if err := appendJSONL(&buf, page); err != nil {
			return 0, fmt.Errorf("s3blob: archive snapshots marshal: %w", err)
		}
		count += int64(len(page))
		if len(page) < archivePageSize {
			break
		}
	}
	if count == 0 {
		return 0, nil
	}

	path := archivePath("snapshots", before)
	if err := a.upload(ctx, path, &buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots upload: %w", err)
	}

	deleted, err := a.snaps.DeleteBefore(ctx, before)
	if err != nil {
		return count, fmt.Errorf("s3blob: archive snapshots delete: %w", err)
	}

	if err := a.audit.Log(ctx, "archive.snapshots", map[string]any{
		"path":    path,
		"count":   count,
		"deleted": deleted,
		"before":  before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive snapshots audit log: %w", err)
	}
	return count, nil
}

func (a *ArchiveImpl) upload(ctx context.Context, path string, buf *bytes.Buffer) error {
	if buf.Len() > multipartThreshold {
		return a.writer.PutMultipart(ctx, path, buf, 0)
	}
	return a.writer.Put(ctx, path, buf, "application/x-ndjson")
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/events/2026-08.jsonl
//	archive/snapshots/2026-08.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// appendJSONL serialises records as newline-delimited JSON into buf.
func appendJSONL[T any](buf *bytes.Buffer, records []T) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
