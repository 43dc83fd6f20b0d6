package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"gorm.io/gorm"

	"coachflow/config"
	"coachflow/models"
	"coachflow/utils"
)

const (
	backoffBase = time.Minute
	backoffCap  = 4 * time.Hour
)

// Backoff computes the retry delay for a send that has failed retryCount
// times: exponential from one minute, multiplied by a jitter in
// [0.75, 1.25] so a burst of simultaneous failures doesn't retry in
// lockstep, capped at four hours.
func Backoff(retryCount int) time.Duration {
	if retryCount > 20 {
		retryCount = 20
	}
	d := backoffBase * time.Duration(int64(1)<<uint(retryCount))
	jitter := 0.75 + rand.Float64()*0.5
	d = time.Duration(float64(d) * jitter)
	if d > backoffCap {
		d = backoffCap
	}
	return d
}

// TickStats summarizes one dispatch+retry pass
type TickStats struct {
	Dispatched        int `json:"dispatched"`
	Failed            int `json:"failed"`
	Skipped           int `json:"skipped"`
	Retried           int `json:"retried"`
	PermanentlyFailed int `json:"permanently_failed"`
}

// Status is a snapshot of the worker exposed on the admin API
type Status struct {
	Running                bool       `json:"running"`
	Interval               string     `json:"interval"`
	BatchSize              int        `json:"batch_size"`
	MaxRetries             int        `json:"max_retries"`
	StartedAt              *time.Time `json:"started_at"`
	LastTickAt             *time.Time `json:"last_tick_at"`
	LastTick               TickStats  `json:"last_tick"`
	PendingSends           int64      `json:"pending_sends"`
	FailedSends            int64      `json:"failed_sends"`
	PermanentlyFailedSends int64      `json:"permanently_failed_sends"`
}

// SequenceWorker is the drip-sequence scheduler: a polling loop that
// dispatches due sends and re-attempts failed ones with backoff. It is
// constructed once in main and handed to whatever needs it - there is no
// package-level instance.
type SequenceWorker struct {
	DB     *gorm.DB
	Mailer utils.Mailer
	Logger *log.Logger

	Interval   time.Duration
	BatchSize  int
	MaxRetries int

	// tickMu serializes the dispatch+retry pass: the ticker goroutine and
	// the admin process-once endpoint both land in ProcessOnce, and two
	// overlapping passes could select the same due send and deliver it
	// twice.
	tickMu sync.Mutex

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	startedAt  *time.Time
	lastTickAt *time.Time
	lastStats  TickStats
}

func NewSequenceWorker(db *gorm.DB, mailer utils.Mailer, logger *log.Logger, cfg config.SchedulerConfig) *SequenceWorker {
	return &SequenceWorker{
		DB:         db,
		Mailer:     mailer,
		Logger:     logger,
		Interval:   cfg.Interval,
		BatchSize:  cfg.BatchSize,
		MaxRetries: cfg.MaxRetries,
	}
}

// Start launches the polling loop in a background goroutine
func (w *SequenceWorker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("scheduler already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.running = true
	now := time.Now()
	w.startedAt = &now

	go w.run(ctx)
	return nil
}

// Stop halts the polling loop. In-flight provider calls are not
// interrupted; the current tick finishes on its own.
func (w *SequenceWorker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return errors.New("scheduler is not running")
	}
	w.cancel()
	w.running = false
	w.startedAt = nil
	return nil
}

func (w *SequenceWorker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Status reports the worker state plus queue depth counters
func (w *SequenceWorker) Status() Status {
	w.mu.Lock()
	st := Status{
		Running:    w.running,
		Interval:   w.Interval.String(),
		BatchSize:  w.BatchSize,
		MaxRetries: w.MaxRetries,
		StartedAt:  w.startedAt,
		LastTickAt: w.lastTickAt,
		LastTick:   w.lastStats,
	}
	w.mu.Unlock()

	w.DB.Model(&models.ScheduledSend{}).Where("status = ?", models.SendScheduled).Count(&st.PendingSends)
	w.DB.Model(&models.ScheduledSend{}).Where("status = ?", models.SendFailed).Count(&st.FailedSends)
	w.DB.Model(&models.ScheduledSend{}).Where("status = ?", models.SendPermanentlyFailed).Count(&st.PermanentlyFailedSends)
	return st
}

func (w *SequenceWorker) run(ctx context.Context) {
	w.Logger.Printf("Sequence worker started (interval %s, batch %d)", w.Interval, w.BatchSize)

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Logger.Println("Sequence worker shutting down...")
			return
		case <-ticker.C:
			w.ProcessOnce()
		}
	}
}

// ProcessOnce executes a single dispatch+retry pass. At most one pass
// runs at a time regardless of caller; a panic anywhere in the tick is
// caught so the loop survives to the next interval.
func (w *SequenceWorker) ProcessOnce() TickStats {
	w.tickMu.Lock()
	defer w.tickMu.Unlock()

	stats := TickStats{}
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("scheduler tick panicked: %v", r)
			w.Logger.Printf("Error: %v", err)
			utils.LogError("scheduler_tick", err, nil)
		}
		now := time.Now()
		w.mu.Lock()
		w.lastTickAt = &now
		w.lastStats = stats
		w.mu.Unlock()
	}()

	w.dispatchDue(&stats)
	w.retryFailed(&stats)

	if stats.Dispatched+stats.Failed+stats.Retried+stats.PermanentlyFailed+stats.Skipped > 0 {
		w.Logger.Printf("Tick: dispatched=%d failed=%d retried=%d permanent=%d skipped=%d",
			stats.Dispatched, stats.Failed, stats.Retried, stats.PermanentlyFailed, stats.Skipped)
	}
	return stats
}

// dispatchDue sends every due scheduled email on an active enrollment, up
// to the batch size.
func (w *SequenceWorker) dispatchDue(stats *TickStats) {
	var sends []models.ScheduledSend
	err := w.DB.
		Joins("JOIN enrollments ON enrollments.id = scheduled_sends.enrollment_id").
		Where("scheduled_sends.status = ? AND scheduled_sends.scheduled_for <= ? AND enrollments.status = ?",
			models.SendScheduled, time.Now(), models.EnrollmentActive).
		Order("scheduled_sends.scheduled_for").
		Limit(w.BatchSize).
		Find(&sends).Error
	if err != nil {
		w.Logger.Printf("Error fetching due sends: %v", err)
		return
	}

	for i := range sends {
		w.dispatchSend(&sends[i], stats)
	}
}

// dispatchSend personalizes and delivers a single scheduled send. Lookup
// problems are skips, not failures: nothing is mutated and no retry is
// scheduled for a send whose subscriber or template is gone.
func (w *SequenceWorker) dispatchSend(send *models.ScheduledSend, stats *TickStats) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("dispatch panicked: %v", r)
			w.Logger.Printf("Panic dispatching send %d: %v", send.ID, r)
			utils.LogError("dispatch_panic", err, map[string]interface{}{"send_id": send.ID})
		}
	}()

	var enrollment models.Enrollment
	if err := w.DB.First(&enrollment, send.EnrollmentID).Error; err != nil {
		w.Logger.Printf("Skipping send %d: enrollment %d not found", send.ID, send.EnrollmentID)
		stats.Skipped++
		return
	}
	if enrollment.Status != models.EnrollmentActive {
		stats.Skipped++
		return
	}

	var subscriber models.Subscriber
	if err := w.DB.First(&subscriber, enrollment.SubscriberID).Error; err != nil {
		w.Logger.Printf("Skipping send %d: subscriber %d not found", send.ID, enrollment.SubscriberID)
		stats.Skipped++
		return
	}
	if !subscriber.IsActive {
		w.Logger.Printf("Skipping send %d: subscriber %d is inactive", send.ID, subscriber.ID)
		stats.Skipped++
		return
	}

	var email models.SequenceEmail
	if err := w.DB.First(&email, send.SequenceEmailID).Error; err != nil {
		w.Logger.Printf("Skipping send %d: sequence email %d not found", send.ID, send.SequenceEmailID)
		stats.Skipped++
		return
	}

	fields := subscriber.PersonalizationFields()
	subject := utils.Personalize(email.Subject, fields)
	html := utils.Personalize(email.HTMLBody, fields)

	messageID, err := w.Mailer.Send(subscriber.Email, subject, html)
	if err != nil {
		w.recordFailure(send, err)
		stats.Failed++
		return
	}

	now := time.Now()
	if err := w.DB.Model(send).Updates(map[string]interface{}{
		"status":        models.SendSent,
		"sent_at":       now,
		"message_id":    messageID,
		"next_retry_at": nil,
	}).Error; err != nil {
		w.Logger.Printf("Error marking send %d sent: %v", send.ID, err)
		return
	}
	send.Status = models.SendSent

	if err := w.DB.Model(&models.SequenceEmail{}).Where("id = ?", email.ID).
		Update("sent_count", gorm.Expr("sent_count + ?", 1)).Error; err != nil {
		w.Logger.Printf("Error updating sent count for email %d: %v", email.ID, err)
	}

	w.advanceEnrollment(&enrollment, &email)
	stats.Dispatched++
}

// advanceEnrollment moves the cursor past a successfully sent email and
// completes the enrollment once the sequence is exhausted. The index only
// ever moves forward.
func (w *SequenceWorker) advanceEnrollment(enrollment *models.Enrollment, email *models.SequenceEmail) {
	nextIndex := email.EmailIndex + 1
	if err := w.DB.Model(&models.Enrollment{}).
		Where("id = ? AND current_email_index < ?", enrollment.ID, nextIndex).
		Update("current_email_index", nextIndex).Error; err != nil {
		w.Logger.Printf("Error advancing enrollment %d: %v", enrollment.ID, err)
		return
	}

	var total int64
	if err := w.DB.Model(&models.SequenceEmail{}).
		Where("sequence_id = ?", enrollment.SequenceID).Count(&total).Error; err != nil {
		w.Logger.Printf("Error counting sequence emails: %v", err)
		return
	}

	if int64(nextIndex) >= total {
		if err := w.DB.Model(&models.Enrollment{}).Where("id = ?", enrollment.ID).
			Updates(map[string]interface{}{
				"status":       models.EnrollmentCompleted,
				"completed_at": time.Now(),
			}).Error; err != nil {
			w.Logger.Printf("Error completing enrollment %d: %v", enrollment.ID, err)
			return
		}
		w.Logger.Printf("Enrollment %d completed the sequence", enrollment.ID)
	}
}

// recordFailure marks a send failed and books its retry slot. Failures
// that will never be retried get no backoff window so the retry pass can
// settle them as permanent right away.
func (w *SequenceWorker) recordFailure(send *models.ScheduledSend, sendErr error) {
	kind := utils.ErrKindUnknown
	message := sendErr.Error()
	var se *utils.SendError
	if errors.As(sendErr, &se) {
		kind = se.Kind
		message = se.Message
	}

	newCount := send.RetryCount + 1
	updates := map[string]interface{}{
		"status":        models.SendFailed,
		"error_kind":    string(kind),
		"error_message": message,
		"retry_count":   newCount,
	}
	var nextRetry *time.Time
	if utils.RetryableError(string(kind), message) {
		t := time.Now().Add(Backoff(newCount))
		nextRetry = &t
	}
	updates["next_retry_at"] = nextRetry

	if err := w.DB.Model(send).Updates(updates).Error; err != nil {
		w.Logger.Printf("Error recording failure for send %d: %v", send.ID, err)
		return
	}
	send.Status = models.SendFailed
	send.RetryCount = newCount
	send.ErrorKind = string(kind)
	send.ErrorMessage = message
	send.NextRetryAt = nextRetry

	w.Logger.Printf("Send %d failed (%s, attempt %d/%d): %s",
		send.ID, kind, newCount, w.MaxRetries, message)
}

// retryFailed re-evaluates failed sends whose backoff window has elapsed
func (w *SequenceWorker) retryFailed(stats *TickStats) {
	var sends []models.ScheduledSend
	err := w.DB.
		Joins("JOIN enrollments ON enrollments.id = scheduled_sends.enrollment_id").
		Where("scheduled_sends.status = ? AND scheduled_sends.retry_count < ? AND enrollments.status = ?",
			models.SendFailed, w.MaxRetries, models.EnrollmentActive).
		Limit(w.BatchSize).
		Find(&sends).Error
	if err != nil {
		w.Logger.Printf("Error fetching failed sends: %v", err)
		return
	}

	for i := range sends {
		w.evaluateRetry(&sends[i], stats)
	}
}

// evaluateRetry decides a failed send's fate: wait, retry now, or give up
// for good. A crash inside the evaluation forces the send to
// permanently_failed so a poisoned row can't thrash the retry loop
// forever.
func (w *SequenceWorker) evaluateRetry(send *models.ScheduledSend, stats *TickStats) {
	defer func() {
		if r := recover(); r != nil {
			w.forcePermanentFailure(send, fmt.Sprintf("retry evaluation panicked: %v", r))
			stats.PermanentlyFailed++
		}
	}()

	if send.NextRetryAt != nil && time.Now().Before(*send.NextRetryAt) {
		return // backoff window still open
	}

	if !utils.RetryableError(send.ErrorKind, send.ErrorMessage) {
		if err := w.DB.Model(send).Update("status", models.SendPermanentlyFailed).Error; err != nil {
			w.Logger.Printf("Error marking send %d permanently failed: %v", send.ID, err)
			return
		}
		send.Status = models.SendPermanentlyFailed
		stats.PermanentlyFailed++
		w.Logger.Printf("Send %d permanently failed (%s): %s", send.ID, send.ErrorKind, send.ErrorMessage)
		w.deactivateForHardFailure(send)
		return
	}

	if err := w.DB.Model(send).Update("status", models.SendScheduled).Error; err != nil {
		w.Logger.Printf("Error resetting send %d for retry: %v", send.ID, err)
		return
	}
	send.Status = models.SendScheduled
	stats.Retried++
	w.dispatchSend(send, stats)
}

// forcePermanentFailure is the retry machinery's own failure path
func (w *SequenceWorker) forcePermanentFailure(send *models.ScheduledSend, reason string) {
	if err := w.DB.Model(send).Updates(map[string]interface{}{
		"status":        models.SendPermanentlyFailed,
		"error_message": reason,
	}).Error; err != nil {
		w.Logger.Printf("Error force-failing send %d: %v", send.ID, err)
		return
	}
	send.Status = models.SendPermanentlyFailed
	utils.LogError("retry_machinery", errors.New(reason), map[string]interface{}{"send_id": send.ID})
}

// deactivateForHardFailure turns off a subscriber whose address hard
// bounced or who told the provider to stop mailing them.
func (w *SequenceWorker) deactivateForHardFailure(send *models.ScheduledSend) {
	kind := utils.ErrorKind(send.ErrorKind)
	if kind == "" || kind == utils.ErrKindUnknown {
		kind = utils.ClassifyErrorMessage(send.ErrorMessage)
	}
	if kind != utils.ErrKindHardBounce && kind != utils.ErrKindUnsubscribed {
		return
	}

	var enrollment models.Enrollment
	if err := w.DB.First(&enrollment, send.EnrollmentID).Error; err != nil {
		return
	}
	if err := w.DB.Model(&models.Subscriber{}).Where("id = ?", enrollment.SubscriberID).
		Update("is_active", false).Error; err != nil {
		w.Logger.Printf("Error deactivating subscriber %d: %v", enrollment.SubscriberID, err)
		return
	}
	w.Logger.Printf("Deactivated subscriber %d after %s", enrollment.SubscriberID, kind)
}
