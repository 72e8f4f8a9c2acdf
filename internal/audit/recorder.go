package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/secaware/admin-api/internal/models"
	"github.com/secaware/admin-api/pkg/config"
	"github.com/secaware/admin-api/pkg/jobs"
)

type recordInserter interface {
	Insert(ctx context.Context, record *models.AuditRecord) error
}

// RecorderMetrics receives side-channel signals about trail health.
type RecorderMetrics interface {
	AuditRecordWritten()
	AuditWriteFailed(reason string)
	SetAuditQueueDepth(depth int)
}

type nopMetrics struct{}

func (nopMetrics) AuditRecordWritten()     {}
func (nopMetrics) AuditWriteFailed(string) {}
func (nopMetrics) SetAuditQueueDepth(int)  {}

// Recorder is the write half of the audit store. Record is fire-and-forget:
// the record is validated, queued, and persisted by background workers, and
// no failure ever reaches the caller. WriteSync persists inline for the few
// call sites that must observe the outcome.
type Recorder struct {
	repo          recordInserter
	queue         *jobs.Queue
	logger        *zap.Logger
	metrics       RecorderMetrics
	detailsMaxLen int
	drainTimeout  time.Duration
}

// NewRecorder builds a recorder backed by a bounded worker queue.
func NewRecorder(repo recordInserter, cfg config.AuditConfig, logger *zap.Logger, metrics RecorderMetrics) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	drain := cfg.DrainTimeout
	if drain <= 0 {
		drain = 10 * time.Second
	}
	r := &Recorder{
		repo:          repo,
		logger:        logger,
		metrics:       metrics,
		detailsMaxLen: cfg.DetailsMaxLen,
		drainTimeout:  drain,
	}
	r.queue = jobs.NewQueue("audit-writer", r.handle, jobs.QueueConfig{
		Workers:    cfg.QueueWorkers,
		BufferSize: cfg.QueueBuffer,
		MaxRetries: cfg.QueueRetries,
		Logger:     logger,
	})
	return r
}

// Start launches the background workers.
func (r *Recorder) Start(ctx context.Context) {
	r.queue.Start(ctx)
}

// Stop drains in-flight writes within the configured timeout. Records
// dropped under time pressure are counted and logged, not silently lost.
func (r *Recorder) Stop() {
	dropped := r.queue.Stop(r.drainTimeout)
	for i := 0; i < dropped; i++ {
		r.metrics.AuditWriteFailed("drain_timeout")
	}
	r.metrics.SetAuditQueueDepth(0)
}

// Record validates and enqueues a record. Failures are routed to the side
// channel only; the audited action must never be affected by trail health.
func (r *Recorder) Record(record *models.AuditRecord) {
	if err := r.validate(record); err != nil {
		r.sideChannel("validate", record, err)
		return
	}

	err := r.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "audit_record",
		Payload: record,
	})
	if err != nil {
		r.sideChannel("enqueue", record, err)
		return
	}
	r.metrics.SetAuditQueueDepth(r.queue.Depth())
}

// WriteSync validates and persists a record inline, surfacing any failure.
// Used where ordering or durability matters, such as the retention purge
// record that must postdate the purge it describes.
func (r *Recorder) WriteSync(ctx context.Context, record *models.AuditRecord) error {
	if err := r.validate(record); err != nil {
		return err
	}
	if err := r.repo.Insert(ctx, record); err != nil {
		r.metrics.AuditWriteFailed("insert")
		return err
	}
	r.metrics.AuditRecordWritten()
	return nil
}

func (r *Recorder) handle(ctx context.Context, job jobs.Job) error {
	record, ok := job.Payload.(*models.AuditRecord)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	if err := r.repo.Insert(ctx, record); err != nil {
		r.metrics.AuditWriteFailed("insert")
		return err
	}

	r.metrics.AuditRecordWritten()
	r.metrics.SetAuditQueueDepth(r.queue.Depth())
	return nil
}

func (r *Recorder) validate(record *models.AuditRecord) error {
	if record == nil {
		return fmt.Errorf("record is nil")
	}
	if !record.ActionType.Valid() {
		return fmt.Errorf("unknown action type %q", record.ActionType)
	}
	if !record.Resource.Valid() {
		record.Resource = models.ResourceSystem
	}
	if !record.Severity.Valid() {
		record.Severity = models.SeverityLow
	}
	if !record.Status.Valid() {
		record.Status = models.StatusSuccess
	}
	if record.ActorID == nil {
		if record.ActionType != models.ActionLogin || record.Status != models.StatusFailed {
			return fmt.Errorf("actor required for %s/%s", record.ActionType, record.Status)
		}
	}
	if record.Metadata.IPAddress == "" {
		return fmt.Errorf("metadata.ip_address required")
	}
	if record.Metadata.UserAgent == "" {
		return fmt.Errorf("metadata.user_agent required")
	}
	if r.detailsMaxLen > 0 && len(record.Details) > r.detailsMaxLen {
		record.Details = record.Details[:r.detailsMaxLen]
	}
	return nil
}

func (r *Recorder) sideChannel(stage string, record *models.AuditRecord, err error) {
	r.metrics.AuditWriteFailed(stage)
	r.logger.Error("audit record dropped",
		zap.String("stage", stage),
		zap.String("action_type", string(record.ActionType)),
		zap.String("endpoint", record.Metadata.Endpoint),
		zap.Error(err),
	)
}
