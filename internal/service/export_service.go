package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/exam-room-allocator/internal/allocator"
	"github.com/noah-isme/exam-room-allocator/internal/dto"
	"github.com/noah-isme/exam-room-allocator/internal/models"
	appErrors "github.com/noah-isme/exam-room-allocator/pkg/errors"
	"github.com/noah-isme/exam-room-allocator/pkg/export"
	"github.com/noah-isme/exam-room-allocator/pkg/storage"
)

const (
	metricsFileName   = "metrics.csv"
	shortagesFileName = "shortages.csv"
	resultFileName    = "result.json"
)

type objectStore interface {
	Save(ctx context.Context, relPath string, data []byte) (string, error)
	Open(ctx context.Context, relPath string) ([]byte, error)
	Delete(ctx context.Context, relPath string) error
	CleanupOlderThan(ctx context.Context, ttl time.Duration) ([]string, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix       string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// Download is a resolved stored file.
type Download struct {
	Filename    string
	ContentType string
	Data        []byte
	ExpiresAt   time.Time
}

// ExportService renders allocation tables and persists them in object storage.
type ExportService struct {
	storage objectStore
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	signer  *storage.SignedURLSigner
	cache   cacheInvalidator
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService. cache may be nil.
func NewExportService(store objectStore, signer *storage.SignedURLSigner, cache cacheInvalidator, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	cfg.APIPrefix = strings.TrimRight(cfg.APIPrefix, "/")
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api"
	}
	return &ExportService{
		storage: store,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		signer:  signer,
		cache:   cache,
		logger:  logger,
		cfg:     cfg,
	}
}

// NewRun returns a sink that stores the output of one run under runs/<runID>/.
func (s *ExportService) NewRun(runID string, formats []export.Format) *RunSink {
	if len(formats) == 0 {
		formats = []export.Format{export.FormatCSV}
	}
	return &RunSink{
		svc:     s,
		runID:   runID,
		formats: formats,
		outputs: make(map[string]string),
		names:   make(map[string]struct{}),
	}
}

// RunPrefix is the storage prefix of a run.
func RunPrefix(runID string) string {
	return path.Join("runs", runID)
}

// SaveResult stores the JSON response of a run next to its files.
func (s *ExportService) SaveResult(ctx context.Context, runID string, result *dto.AllocateResponse) (string, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal run result: %w", err)
	}
	rel, err := s.storage.Save(ctx, path.Join(RunPrefix(runID), resultFileName), payload)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store run result")
	}
	return rel, nil
}

// LoadResult reads a stored run result.
func (s *ExportService) LoadResult(ctx context.Context, relPath string) (*dto.AllocateResponse, error) {
	data, err := s.storage.Open(ctx, relPath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "run result expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to read run result")
	}
	var out dto.AllocateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode run result: %w", err)
	}
	return &out, nil
}

// Resolve validates a download token and loads the file it grants.
func (s *ExportService) Resolve(ctx context.Context, token string) (*Download, error) {
	claims, err := s.signer.Verify(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	if !strings.HasPrefix(claims.Path, RunPrefix(claims.RunID)+"/") {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	data, err := s.storage.Open(ctx, claims.Path)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to open allocation file")
	}
	name := path.Base(claims.Path)
	return &Download{
		Filename:    name,
		ContentType: export.FormatForName(name).ContentType(),
		Data:        data,
		ExpiresAt:   claims.ExpiresAt,
	}, nil
}

// Cleanup deletes stored objects older than the result TTL.
func (s *ExportService) Cleanup(ctx context.Context) ([]string, error) {
	deleted, err := s.storage.CleanupOlderThan(ctx, s.cfg.ResultTTL)
	if err != nil {
		return deleted, err
	}
	if len(deleted) > 0 {
		s.logger.Info("expired allocation files removed", zap.Int("files", len(deleted)))
		if s.cache != nil {
			if err := s.cache.Invalidate(ctx); err != nil {
				s.logger.Warn("cache invalidation after cleanup failed", zap.Error(err))
			}
		}
	}
	return deleted, nil
}

// StartCleanup boots a goroutine that purges expired files periodically.
func (s *ExportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Cleanup(ctx); err != nil {
					s.logger.Warn("storage cleanup failed", zap.Error(err))
				}
			}
		}
	}()
}

func (s *ExportService) downloadURL(token string) string {
	return fmt.Sprintf("%s/allocations/files/%s", s.cfg.APIPrefix, token)
}

// RunSink implements allocator.Sink for one run. It is not safe for concurrent runs.
type RunSink struct {
	svc     *ExportService
	runID   string
	formats []export.Format

	mu      sync.Mutex
	files   []dto.GeneratedFile
	outputs map[string]string
	names   map[string]struct{}
}

var _ allocator.Sink = (*RunSink)(nil)

// WriteGroup stores the allocation table of one department/year group.
func (r *RunSink) WriteGroup(ctx context.Context, group allocator.OutputGroup) error {
	csvName := r.reserve(group.FileName())
	data, err := r.svc.csv.Render(group.Rows)
	if err != nil {
		return err
	}
	base := dto.GeneratedFile{
		Kind:       dto.FileKindAllocation,
		Department: group.Department,
		Year:       group.Year,
		Date:       group.Slot.Date,
		Time:       group.Slot.Time,
		Rows:       len(group.Rows),
	}
	if err := r.store(ctx, csvName, export.FormatCSV, data, base); err != nil {
		return err
	}
	r.mu.Lock()
	r.outputs[csvName] = string(data)
	r.mu.Unlock()

	if !r.wants(export.FormatPDF) {
		return nil
	}
	table, err := r.svc.csv.Dataset(group.Rows)
	if err != nil {
		return err
	}
	title := fmt.Sprintf("Seating Plan: %s Year %s", group.Department, group.Year)
	subtitle := strings.TrimSpace(group.Slot.Date + " " + group.Slot.Time)
	pdf, err := r.svc.pdf.Render(table, title, subtitle)
	if err != nil {
		return err
	}
	return r.store(ctx, strings.TrimSuffix(csvName, ".csv")+".pdf", export.FormatPDF, pdf, base)
}

// reserve returns name, or name with a _2, _3, ... suffix when an earlier group of the run already
// produced it. Slot times such as "09:00" and "09.00" sanitise to the same file name.
func (r *RunSink) reserve(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for n := 2; ; n++ {
		if _, taken := r.names[candidate]; !taken {
			break
		}
		candidate = fmt.Sprintf("%s_%d%s", stem, n, ext)
	}
	r.names[candidate] = struct{}{}
	return candidate
}

// WriteMetrics stores metrics.csv.
func (r *RunSink) WriteMetrics(ctx context.Context, rows []models.MetricsRow) error {
	data, err := r.svc.csv.Render(rows)
	if err != nil {
		return err
	}
	if err := r.store(ctx, metricsFileName, export.FormatCSV, data, dto.GeneratedFile{Kind: dto.FileKindMetrics, Rows: len(rows)}); err != nil {
		return err
	}
	r.mu.Lock()
	r.outputs[metricsFileName] = string(data)
	r.mu.Unlock()
	return nil
}

// WriteShortages stores shortages.csv when any cohort went partially unseated.
func (r *RunSink) WriteShortages(ctx context.Context, shortages []models.Shortage) error {
	if len(shortages) == 0 {
		return nil
	}
	data, err := r.svc.csv.Render(shortages)
	if err != nil {
		return err
	}
	return r.store(ctx, shortagesFileName, export.FormatCSV, data, dto.GeneratedFile{Kind: dto.FileKindShortages, Rows: len(shortages)})
}

// Files lists the stored files in write order.
func (r *RunSink) Files() []dto.GeneratedFile {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]dto.GeneratedFile, len(r.files))
	copy(out, r.files)
	return out
}

// OutputFiles maps CSV file names to their content.
func (r *RunSink) OutputFiles() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.outputs))
	for k, v := range r.outputs {
		out[k] = v
	}
	return out
}

func (r *RunSink) wants(format export.Format) bool {
	for _, f := range r.formats {
		if f == format {
			return true
		}
	}
	return false
}

func (r *RunSink) store(ctx context.Context, name string, format export.Format, data []byte, file dto.GeneratedFile) error {
	rel, err := r.svc.storage.Save(ctx, path.Join(RunPrefix(r.runID), name), data)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store "+name)
	}
	file.Name = name
	file.Format = string(format)
	file.Path = rel
	if r.svc.signer != nil {
		token, expiresAt, err := r.svc.signer.Generate(r.runID, rel)
		if err != nil {
			return fmt.Errorf("sign %s: %w", name, err)
		}
		file.URL = r.svc.downloadURL(token)
		file.ExpiresAt = expiresAt
	}
	r.mu.Lock()
	r.files = append(r.files, file)
	r.mu.Unlock()
	return nil
}
