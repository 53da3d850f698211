// Demo endpoints: a single fixed value and an endless tick stream.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-movie-info/internal/http/middleware"
)

// Mono writes the fixed demo string as text/plain.
func (h *Handlers) Mono(c *gin.Context) {
	c.String(http.StatusOK, h.ticker.Mono())
}

// Stream sends Server-Sent Events carrying 0, 1, 2, … one per interval
// until the client disconnects.
func (h *Handlers) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	lg := middleware.LoggerFrom(c)

	// The server write timeout would otherwise end the stream.
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})

	hdr := c.Writer.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	// Headers go out now so clients see the stream before the first tick.
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	closed := middleware.StreamOpened()
	defer closed()

	lg.Debug().Msg("stream opened")
	var sent int64
	for n := range h.ticker.Run(ctx) {
		c.SSEvent("", n)
		c.Writer.Flush()
		middleware.StreamTick()
		sent++
	}
	lg.Debug().Int64("ticks", sent).Msg("stream closed")
}
