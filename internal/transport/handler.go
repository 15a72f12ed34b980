package transport

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/screenshot-inspector-go/internal/config"
	apperrors "github.com/anime-shed/screenshot-inspector-go/internal/errors"
	"github.com/anime-shed/screenshot-inspector-go/internal/logger"
	"github.com/anime-shed/screenshot-inspector-go/internal/observer"
	"github.com/anime-shed/screenshot-inspector-go/internal/service"
	"github.com/anime-shed/screenshot-inspector-go/pkg/models"
	"github.com/anime-shed/screenshot-inspector-go/pkg/validation"
)

const (
	screenshotField   = "screenshot"
	businessNameField = "businessName"
	requestIDHeader   = "X-Request-ID"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func NewHandler(
	svc service.ScreenshotAnalysisService,
	validator *validation.UploadValidator,
	metrics *observer.MetricsObserver,
	stream *observer.StreamObserver,
	cfg *config.Config,
) http.Handler {
	r := gin.New()
	r.MaxMultipartMemory = cfg.MaxRequestBodySize

	r.Use(
		requestID(),
		requestLogger(),
		recovery(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	run := runAnalysis(svc, validator, cfg.MaxRequestBodySize)
	r.POST("/api/run", run)
	r.POST("/run", run)

	r.GET("/health", healthCheck)
	r.GET("/metrics", metricsSnapshot(metrics))
	r.GET("/alerts", alertStream(stream))

	return r
}

func runAnalysis(svc service.ScreenshotAnalysisService, validator *validation.UploadValidator, maxMemory int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx := c.Request.Context()

		screenshot, businessName, err := readForm(c, validator, maxMemory)
		if err != nil {
			_ = c.Error(err)
			return
		}

		if err := validator.Validate(screenshot, businessName); err != nil {
			_ = c.Error(err)
			return
		}

		data, err := readUpload(screenshot)
		if err != nil {
			_ = c.Error(err)
			return
		}

		result, err := svc.AnalyzeScreenshot(ctx, data, businessName)
		if err != nil {
			_ = c.Error(err)
			return
		}

		logger.FromContext(ctx).WithFields(logrus.Fields{
			"business_name":      businessName,
			"filename":           screenshot.Filename,
			"upload_bytes":       screenshot.Size,
			"score":              result.Score,
			"processing_time_ms": time.Since(startTime).Milliseconds(),
		}).Info("Screenshot analysis completed")

		c.JSON(http.StatusOK, models.AnalysisResponse{
			Message:            models.CompletedMessage,
			ScreenshotAnalysis: *result,
		})
	}
}

// readForm parses the multipart body. Bodies that are not multipart at all
// are treated like a request with both fields missing.
func readForm(c *gin.Context, validator *validation.UploadValidator, maxMemory int64) (*multipart.FileHeader, string, error) {
	if err := c.Request.ParseMultipartForm(maxMemory); err != nil {
		if isBodyTooLarge(err) {
			return nil, "", apperrors.NewPayloadTooLargeError(validator.TooLargeMessage(), err)
		}
		return nil, "", apperrors.NewValidationError(validation.MissingFieldsMessage, err)
	}

	screenshot, err := c.FormFile(screenshotField)
	if err != nil {
		screenshot = nil
	}
	return screenshot, c.PostForm(businessNameField), nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, apperrors.NewProcessingError("unable to open screenshot", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to read screenshot", err)
	}
	return data, nil
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func metricsSnapshot(metrics *observer.MetricsObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, metrics.GetMetrics())
	}
}

// alertStream upgrades to a WebSocket and keeps the client registered until it disconnects
func alertStream(stream *observer.StreamObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.FromContext(c.Request.Context()).WithError(err).Warn("Alert stream upgrade failed")
			return
		}
		// Server read timeouts must not end long-lived subscriptions.
		_ = conn.SetReadDeadline(time.Time{})

		unregister := stream.Register(conn)
		defer unregister()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}

// Middleware and helper functions
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.FromContext(c.Request.Context()).WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"user_agent": c.Request.UserAgent(),
			"ip":         c.ClientIP(),
		}).Info("Request handled")
	}
}

// recovery turns panics into the standard error envelope. Panics carrying an
// error report its message; anything else is reported as an unknown error.
func recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			message := "Unknown error"
			if err, ok := r.(error); ok {
				message = "Error: " + err.Error()
			}
			logger.FromContext(c.Request.Context()).WithFields(logrus.Fields{
				"panic": fmt.Sprint(r),
				"path":  c.Request.URL.Path,
			}).Error("Recovered from panic")

			c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{Error: message})
		}()
		c.Next()
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			respondError(c, c.Errors.Last().Err)
		}
	}
}

func respondError(c *gin.Context, err error) {
	code := apperrors.GetStatusCode(err)

	entry := logger.FromContext(c.Request.Context()).WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	})
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error: apperrors.PublicMessage(err),
	})
}
