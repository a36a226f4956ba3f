package jobs

import (
	"log"

	ws "github.com/nyumbalink/property_chat/websocket"
)

// MessagingStats returns a cron-runnable closure reporting presence
// and pending-delivery backlog. Both live only in this process, so the
// log line is the place to watch them.
func MessagingStats(hub *ws.Hub, pending *ws.PendingQueue) func() {
	return func() {
		online := len(hub.OnlineUsers())
		queued := pending.Depth()
		log.Printf("Messaging stats: %d clients online, %d messages awaiting delivery", online, queued)
	}
}
