package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/gorm"

	"coachflow/models"
	"coachflow/utils"
)

// EngagementWorker periodically recomputes each subscriber's engagement
// level from their open/click history so the admin dashboard and future
// segmentation have something fresher than "signed up once".
type EngagementWorker struct {
	DB       *gorm.DB
	Logger   *log.Logger
	Interval time.Duration
}

func NewEngagementWorker(db *gorm.DB) *EngagementWorker {
	return &EngagementWorker{
		DB:       db,
		Logger:   log.New(os.Stdout, "ENGAGEMENT: ", log.Ldate|log.Ltime|log.Lshortfile),
		Interval: 24 * time.Hour,
	}
}

func (ew *EngagementWorker) Start(ctx context.Context) {
	ew.Logger.Println("Engagement worker started")

	// Let the app finish booting before the first sweep
	time.Sleep(10 * time.Second)
	ew.safeRecompute()

	ticker := time.NewTicker(ew.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ew.Logger.Println("Engagement worker shutting down...")
			return
		case <-ticker.C:
			ew.safeRecompute()
		}
	}
}

func (ew *EngagementWorker) safeRecompute() {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("engagement sweep panicked: %v", r)
			ew.Logger.Printf("Error: %v", err)
			utils.LogError("engagement_sweep", err, nil)
		}
	}()
	ew.RecomputeAll()
}

// RecomputeAll reclassifies every active subscriber:
//   - hot:    clicked within the last 30 days
//   - active: opened within the last 30 days
//   - cold:   has sent mail but nothing opened for 60 days
//   - new:    no email delivered yet
func (ew *EngagementWorker) RecomputeAll() {
	var subscribers []models.Subscriber
	if err := ew.DB.Where("is_active = ?", true).Find(&subscribers).Error; err != nil {
		ew.Logger.Printf("Error fetching subscribers: %v", err)
		return
	}

	updated := 0
	for i := range subscribers {
		level := ew.classify(&subscribers[i])
		if level == subscribers[i].EngagementLevel {
			continue
		}
		if err := ew.DB.Model(&subscribers[i]).Update("engagement_level", level).Error; err != nil {
			ew.Logger.Printf("Error updating subscriber %d: %v", subscribers[i].ID, err)
			continue
		}
		updated++
	}

	if updated > 0 {
		ew.Logger.Printf("Engagement sweep: %d of %d subscribers reclassified", updated, len(subscribers))
	}
}

func (ew *EngagementWorker) classify(sub *models.Subscriber) string {
	recentWindow := time.Now().AddDate(0, 0, -30)
	staleWindow := time.Now().AddDate(0, 0, -60)

	if ew.countEvents(sub.ID, "clicked_at", recentWindow) > 0 {
		return models.EngagementHot
	}
	if ew.countEvents(sub.ID, "opened_at", recentWindow) > 0 {
		return models.EngagementActive
	}

	var sent int64
	ew.DB.Model(&models.ScheduledSend{}).
		Joins("JOIN enrollments ON enrollments.id = scheduled_sends.enrollment_id").
		Where("enrollments.subscriber_id = ? AND scheduled_sends.status = ?", sub.ID, models.SendSent).
		Count(&sent)
	if sent == 0 {
		return models.EngagementNew
	}

	if ew.countEvents(sub.ID, "opened_at", staleWindow) == 0 {
		return models.EngagementCold
	}
	return models.EngagementActive
}

func (ew *EngagementWorker) countEvents(subscriberID uint, column string, since time.Time) int64 {
	var count int64
	ew.DB.Model(&models.SendAnalytics{}).
		Joins("JOIN scheduled_sends ON scheduled_sends.id = send_analytics.scheduled_send_id").
		Joins("JOIN enrollments ON enrollments.id = scheduled_sends.enrollment_id").
		Where("enrollments.subscriber_id = ? AND send_analytics."+column+" >= ?", subscriberID, since).
		Count(&count)
	return count
}
