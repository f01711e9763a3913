// Package diagnosis orchestrates the per-request pipeline: upload validation,
// temp-file handling, image normalization, model inference, and history
// persistence.
package diagnosis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/eye-diagnosis/internal/inference"
	"github.com/example/eye-diagnosis/internal/logging"
	"github.com/example/eye-diagnosis/internal/preprocess"
	"github.com/example/eye-diagnosis/internal/store"
)

// ErrNoFiles is returned when a predict request carries no usable uploads.
var ErrNoFiles = errors.New("no file part")

// Item error messages embedded in the batch response. Individual failures
// never abort the batch.
const (
	msgTypeNotAllowed  = "File type not allowed"
	msgProcessingError = "Error processing image"
	msgPredictionError = "Prediction failed"
	msgRecordError     = "Prediction succeeded but could not be recorded"
)

var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// Upload is one file received over HTTP, held in memory until it is written
// to a scoped temporary path.
type Upload struct {
	Filename string
	Data     []byte
}

// ItemResult is the outcome for a single upload within a batch. Either the
// prediction fields or Error is set, never both.
type ItemResult struct {
	Filename   string              `json:"filename"`
	Disease    string              `json:"disease,omitempty"`
	Confidence float32             `json:"confidence,omitempty"`
	Ranked     []store.RankedLabel `json:"ranked,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// MetricsSummary aggregates prediction history insights.
type MetricsSummary struct {
	TotalPredictions int64            `json:"total_predictions"`
	ByDisease        map[string]int64 `json:"by_disease"`
}

// HistoryStore defines the persistence operations needed by the service.
type HistoryStore interface {
	Insert(ctx context.Context, rec *store.HistoryRecord) (string, error)
	ListByPatient(ctx context.Context, patientID string) ([]store.HistoryRecord, error)
	CountByDisease(ctx context.Context) (map[string]int64, error)
}

// Service runs the diagnosis pipeline for uploaded scans.
type Service struct {
	classifier     inference.Classifier
	history        HistoryStore
	cache          Cache
	pingStore      func(ctx context.Context) error
	uploadDir      string
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewService constructs the diagnosis service. pingStore reports whether the
// history database is reachable and is only used by Health.
func NewService(classifier inference.Classifier, history HistoryStore, cache Cache, pingStore func(ctx context.Context) error, uploadDir string, logger *zap.Logger) *Service {
	return &Service{
		classifier:     classifier,
		history:        history,
		cache:          cache,
		pingStore:      pingStore,
		uploadDir:      uploadDir,
		logger:         logger.Named("diagnosis"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

type cachedPrediction struct {
	Disease    string              `json:"disease"`
	Confidence float32             `json:"confidence"`
	Ranked     []store.RankedLabel `json:"ranked,omitempty"`
}

// Diagnose processes a batch of uploads. Each file is handled independently:
// a bad file contributes an error entry to the result slice without touching
// the others. A record is written to history only when patientID is non-empty.
func (s *Service) Diagnose(ctx context.Context, uploads []Upload, patientID string) ([]ItemResult, error) {
	if !hasUsableUpload(uploads) {
		return nil, ErrNoFiles
	}

	requestID := uuid.NewString()
	opLogger := logging.WithOperation(s.logger, "diagnosis.diagnose", requestID)
	opLogger.Info("processing batch", zap.Int("files", len(uploads)), zap.Bool("record", patientID != ""))

	results := make([]ItemResult, 0, len(uploads))
	for _, up := range uploads {
		results = append(results, s.diagnoseOne(ctx, requestID, up, patientID))
	}
	return results, nil
}

func hasUsableUpload(uploads []Upload) bool {
	for _, up := range uploads {
		if up.Filename != "" {
			return true
		}
	}
	return false
}

func (s *Service) diagnoseOne(ctx context.Context, requestID string, up Upload, patientID string) ItemResult {
	filename := sanitizeFilename(up.Filename)
	item := ItemResult{Filename: filename}
	opLogger := logging.WithOperation(s.logger, "diagnosis.diagnose_one", requestID).With(zap.String("filename", filename))

	ext := strings.ToLower(filepath.Ext(filename))
	if filename == "" || !allowedExtensions[ext] {
		item.Error = msgTypeNotAllowed
		return item
	}

	tensor, err := s.saveAndNormalize(up.Data, ext)
	if err != nil {
		opLogger.Error("normalization failed", zap.Error(err))
		item.Error = msgProcessingError
		return item
	}

	result, err := s.classifyCached(ctx, requestID, up.Data, tensor)
	if err != nil {
		opLogger.Error("classification failed", zap.Error(err))
		item.Error = msgPredictionError
		return item
	}

	item.Disease = result.Disease
	item.Confidence = result.Confidence
	item.Ranked = result.Ranked

	// An empty patient id means "do not record": the caller still gets the
	// prediction, the history store is untouched.
	if patientID != "" {
		rec := &store.HistoryRecord{
			PatientID: patientID,
			Filename:  filename,
			Prediction: store.Prediction{
				Disease:    result.Disease,
				Confidence: result.Confidence,
				Ranked:     result.Ranked,
			},
			Timestamp: time.Now().UTC(),
		}
		if _, err := s.history.Insert(ctx, rec); err != nil {
			wrapped := logging.NewOperationError("diagnosis.record_history", requestID, err)
			opLogger.Error("failed to record prediction", zap.Error(wrapped))
			return ItemResult{Filename: filename, Error: msgRecordError}
		}
	}

	return item
}

// saveAndNormalize writes the upload to a uniquely named temporary file under
// the upload directory, normalizes it, and removes the file again on every
// path. Nothing of the upload survives the call.
func (s *Service) saveAndNormalize(data []byte, ext string) (*preprocess.Tensor, error) {
	tmp, err := os.CreateTemp(s.uploadDir, "upload-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("rewind temp file: %w", err)
	}
	return preprocess.Normalize(tmp)
}

// classifyCached consults the prediction cache keyed by the image digest
// before running the model. Identical scans within the cache window skip the
// forward pass entirely; the model is deterministic so this is safe.
func (s *Service) classifyCached(ctx context.Context, requestID string, data []byte, tensor *preprocess.Tensor) (*cachedPrediction, error) {
	digest := sha256.Sum256(data)
	cacheKey := "prediction:" + hex.EncodeToString(digest[:])

	if raw, err := s.cache.Get(ctx, cacheKey); err == nil {
		var cached cachedPrediction
		if decodeErr := json.Unmarshal([]byte(raw), &cached); decodeErr != nil {
			logging.WithOperation(s.logger, "diagnosis.cache_get", requestID).Warn("failed to decode cached prediction", zap.Error(decodeErr))
		} else {
			return &cached, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logging.WithOperation(s.logger, "diagnosis.cache_get", requestID).Warn("failed to read cache", zap.Error(err))
	}

	result, err := s.classifier.Classify(ctx, tensor)
	if err != nil {
		return nil, err
	}

	ranked := make([]store.RankedLabel, len(result.Ranked))
	for i, p := range result.Ranked {
		ranked[i] = store.RankedLabel{Label: p.Label, Confidence: p.Confidence}
	}
	out := &cachedPrediction{
		Disease:    result.Disease,
		Confidence: result.Confidence,
		Ranked:     ranked,
	}

	serialized, err := json.Marshal(out)
	if err != nil {
		return out, nil
	}
	if err := s.withCacheRetry(ctx, requestID, "cache.set.prediction", func() error {
		return s.cache.Set(ctx, cacheKey, string(serialized), 5*time.Minute)
	}); err != nil {
		// Caching is best effort; the prediction still stands.
		logging.WithOperation(s.logger, "diagnosis.cache_set", requestID).Warn("failed to cache prediction", zap.Error(err))
	}
	return out, nil
}

// History returns the recorded predictions for a patient, newest first.
func (s *Service) History(ctx context.Context, patientID string) ([]store.HistoryRecord, error) {
	return s.history.ListByPatient(ctx, patientID)
}

// Metrics aggregates prediction counts from the history store.
func (s *Service) Metrics(ctx context.Context) (*MetricsSummary, error) {
	counts, err := s.history.CountByDisease(ctx)
	if err != nil {
		return nil, err
	}
	summary := &MetricsSummary{ByDisease: counts}
	for _, n := range counts {
		summary.TotalPredictions += n
	}
	return summary, nil
}

// Health verifies the service's dependencies: the model server must be
// reachable, the upload directory writable, and the history database up.
func (s *Service) Health(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.classifier.Ready(readyCtx); err != nil {
		return fmt.Errorf("model: %w", err)
	}

	probe, err := os.CreateTemp(s.uploadDir, "healthz-*")
	if err != nil {
		return fmt.Errorf("upload dir not writable: %w", err)
	}
	probe.Close()
	os.Remove(probe.Name())

	if s.pingStore != nil {
		if err := s.pingStore(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	return nil
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}

func (s *Service) withCacheRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	if s.retryAttempts <= 1 {
		return logging.NewOperationError(operation, requestID, fn())
	}

	backoff := s.initialBackoff
	opLogger := logging.WithOperation(s.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < s.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= s.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("cache operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == s.retryAttempts-1 {
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient cache error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
