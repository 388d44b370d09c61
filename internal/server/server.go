/*
PURPOSE:
  Stand-in detection function for calibrating the benchmark rig.
  Speaks the same contract as the deployed handler so the driver, the
  energy meter and the sinks can be exercised without the model.

REQUIREMENTS:
  Implementation-discovered:
  - Accept {"image_data":{"image":"<base64>"}} on POST / and /function/<name>.
  - Answer {"status":"success","count":N} or {"status":"error","message":...}.
  - Optional latency and log noise in front of the JSON, the way the
    function watchdog sometimes leaks it.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli (serve)
  - Uses: internal/engine (payload codec), internal/output (logger)

ERROR HANDLING:
  - Bad payloads are reported in-band with status "error", HTTP 200,
    matching the deployed handler.

USAGE:
  h := server.NewHandler(server.StaticDetector{Count: 3, Delay: 150 * time.Millisecond}, "")
  err := server.Serve(ctx, ":8080", h)

RELATED FILES:
  - internal/engine/payload.go
*/

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/daryltucker/crowdcount-bench/internal/engine"
	"github.com/daryltucker/crowdcount-bench/internal/output"
)

// Detector counts the target class in an image blob.
type Detector interface {
	Detect(ctx context.Context, blob []byte) (int, error)
}

// StaticDetector reports a fixed count after a fixed delay.
type StaticDetector struct {
	Count int
	Delay time.Duration
}

func (d StaticDetector) Detect(ctx context.Context, blob []byte) (int, error) {
	if d.Delay > 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(d.Delay):
		}
	}
	return d.Count, nil
}

// Handler serves detection requests.
type Handler struct {
	Detector Detector
	// Noise is written before the JSON body when non-empty.
	Noise string
}

// NewHandler builds the gin engine for d.
func NewHandler(d Detector, noise string) *gin.Engine {
	h := &Handler{Detector: d, Noise: noise}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.POST("/", h.Detect)
	r.POST("/function/:name", h.Detect)
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func (h *Handler) Detect(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.reply(c, gin.H{"status": "error", "message": err.Error()})
		return
	}

	blob, err := engine.DecodePayload(body)
	if err != nil {
		h.reply(c, gin.H{"status": "error", "message": "Invalid input data"})
		return
	}

	count, err := h.Detector.Detect(c.Request.Context(), blob)
	if err != nil {
		h.reply(c, gin.H{"status": "error", "message": err.Error()})
		return
	}
	h.reply(c, gin.H{"status": "success", "count": count})
}

func (h *Handler) reply(c *gin.Context, payload gin.H) {
	if h.Noise == "" {
		c.JSON(http.StatusOK, payload)
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", append([]byte(h.Noise+"\n"), body...))
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		output.Logger.Debug("Served request", "method", c.Request.Method, "path", c.Request.URL.Path,
			"status", c.Writer.Status(), "elapsed", time.Since(start))
	}
}

// Serve runs h on addr until ctx is done.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: h}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	output.Logger.Info("Detection function listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
