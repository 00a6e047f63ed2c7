package backup

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/clinicsuite/hospital-portal/internal/observability/metrics"
	"github.com/clinicsuite/hospital-portal/pkg/logging"
)

const archiveTimeLayout = "20060102_150405"

// Source dumps one table for the archive.
type Source struct {
	Name string
	Dump func(ctx context.Context) (any, error)
}

// S3Client interface for S3 operations (allows mocking in tests).
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Metadata describes one archive. It is stored as metadata.json inside the
// zip.
type Metadata struct {
	CreatedAt time.Time      `json:"created_at"`
	Tables    map[string]int `json:"tables"`
}

// Info describes an archive on disk.
type Info struct {
	Name      string    `json:"name"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager writes zip archives of JSON table dumps, prunes old ones, and
// optionally mirrors each archive to S3.
type Manager struct {
	dir           string
	sources       []Source
	s3            S3Client
	bucket        string
	retentionDays int
	metrics       *metrics.BackupMetrics
	logger        *logging.Logger
}

// Config holds manager configuration. S3 and Bucket are optional; without
// them archives stay local only.
type Config struct {
	Dir           string
	RetentionDays int
	S3            S3Client
	Bucket        string
}

func NewManager(cfg Config, sources []Source, m *metrics.BackupMetrics, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	return &Manager{
		dir:           cfg.Dir,
		sources:       sources,
		s3:            cfg.S3,
		bucket:        cfg.Bucket,
		retentionDays: cfg.RetentionDays,
		metrics:       m,
		logger:        logger,
	}
}

// Run writes one archive, mirrors it to S3 when configured, and prunes
// archives past retention. Returns the archive path.
func (m *Manager) Run(ctx context.Context) (string, error) {
	path, size, err := m.writeArchive(ctx)
	m.metrics.ObserveRun(err, size)
	if err != nil {
		return "", err
	}

	if m.s3 != nil && m.bucket != "" {
		if err := m.upload(ctx, path); err != nil {
			// The local archive is already written; an upload miss is not fatal.
			m.logger.Error("backup upload failed", "error", err, "archive", path)
		}
	}

	if removed, err := m.Prune(); err != nil {
		m.logger.Error("backup prune failed", "error", err)
	} else if removed > 0 {
		m.logger.Info("pruned old backups", "removed", removed)
	}
	return path, nil
}

func (m *Manager) writeArchive(ctx context.Context) (string, int64, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("backup: create dir: %w", err)
	}

	now := time.Now().UTC()
	name := "backup_" + now.Format(archiveTimeLayout) + ".zip"
	path := filepath.Join(m.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("backup: create archive: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	meta := Metadata{CreatedAt: now, Tables: map[string]int{}}

	for _, src := range m.sources {
		records, err := src.Dump(ctx)
		if err != nil {
			zw.Close()
			os.Remove(path)
			return "", 0, fmt.Errorf("backup: dump %s: %w", src.Name, err)
		}
		meta.Tables[src.Name] = recordCount(records)
		if err := writeJSONEntry(zw, src.Name+".json", records); err != nil {
			zw.Close()
			os.Remove(path)
			return "", 0, err
		}
	}
	if err := writeJSONEntry(zw, "metadata.json", meta); err != nil {
		zw.Close()
		os.Remove(path)
		return "", 0, err
	}
	if err := zw.Close(); err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("backup: finalize archive: %w", err)
	}

	st, err := os.Stat(path)
	if err != nil {
		return "", 0, fmt.Errorf("backup: stat archive: %w", err)
	}
	m.logger.Info("backup written", "archive", path, "bytes", st.Size(), "tables", len(m.sources))
	return path, st.Size(), nil
}

func writeJSONEntry(zw *zip.Writer, name string, payload any) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("backup: create entry %s: %w", name, err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("backup: encode entry %s: %w", name, err)
	}
	return nil
}

func recordCount(v any) int {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Map {
		return rv.Len()
	}
	return 1
}

func (m *Manager) upload(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("backup: read archive: %w", err)
	}
	key := "backups/" + filepath.Base(path)
	_, err = m.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return fmt.Errorf("backup: put object: %w", err)
	}
	m.logger.Info("backup uploaded", "bucket", m.bucket, "key", key)
	return nil
}

// Prune removes archives older than the retention window, judged by the
// timestamp embedded in the filename. Files that don't match the naming
// scheme are left alone.
func (m *Manager) Prune() (int, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("backup: read dir: %w", err)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -m.retentionDays)
	removed := 0
	for _, entry := range entries {
		created, ok := parseArchiveName(entry.Name())
		if !ok || !created.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, entry.Name())); err != nil {
			return removed, fmt.Errorf("backup: remove %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}

// List returns the archives on disk, newest first.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Info{}, nil
		}
		return nil, fmt.Errorf("backup: read dir: %w", err)
	}

	out := []Info{}
	for _, entry := range entries {
		created, ok := parseArchiveName(entry.Name())
		if !ok {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, Info{Name: entry.Name(), SizeBytes: fi.Size(), CreatedAt: created})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func parseArchiveName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, "backup_") || !strings.HasSuffix(name, ".zip") {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, "backup_"), ".zip")
	t, err := time.Parse(archiveTimeLayout, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
