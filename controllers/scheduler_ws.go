package controller

import (
	"log"
	"time"

	"github.com/gofiber/websocket/v2"

	"coachflow/worker"
)

// HandleSchedulerStatusWS streams scheduler status snapshots to the admin
// dashboard so the queue counters update live without polling.
func HandleSchedulerStatusWS(w *worker.SequenceWorker) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		// First snapshot immediately, then every few seconds until the
		// client goes away.
		if err := c.WriteJSON(w.Status()); err != nil {
			return
		}

		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			if err := c.WriteJSON(w.Status()); err != nil {
				log.Printf("Scheduler WS client disconnected: %v", err)
				return
			}
		}
	}
}
