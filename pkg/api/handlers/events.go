package handlers

import (
	"encoding/json"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/moonctl/pkg/device"
)

const heartbeatInterval = 30 * time.Second

// EventsHandler streams printer state changes.
type EventsHandler struct {
	controller device.Controller
	subscriber device.EventSubscriber
}

func NewEventsHandler(controller device.Controller, subscriber device.EventSubscriber) *EventsHandler {
	return &EventsHandler{controller: controller, subscriber: subscriber}
}

// Events handles GET /printer/events (SSE stream)
// @Summary      Subscribe to printer events
// @Description  Server-Sent Events stream of status updates, Klippy state changes and console lines
// @Tags         printer
// @Produce      text/event-stream
// @Success      200  {string}  string  "SSE event stream"
// @Router       /printer/events [get]
func (h *EventsHandler) Events(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	events := h.subscriber.Subscribe()
	defer h.subscriber.Unsubscribe(events)

	sendSSEEvent(c.Writer, "connected", map[string]any{
		"timestamp":  time.Now(),
		"connection": h.controller.ConnectionState().String(),
	})
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-clientGone:
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			sendSSEEvent(c.Writer, string(event.Type), event)
			c.Writer.Flush()

		case <-ticker.C:
			sendSSEEvent(c.Writer, "heartbeat", map[string]any{
				"timestamp":  time.Now(),
				"connection": h.controller.ConnectionState().String(),
			})
			c.Writer.Flush()
		}
	}
}

func sendSSEEvent(w io.Writer, eventType string, data any) {
	payload, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\ndata: "+string(payload)+"\n\n")
}
