package ingestion

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	v1 "github.com/aevon-lab/timebucket/internal/api/v1"
	coreagg "github.com/aevon-lab/timebucket/internal/core/aggregation"
	httperr "github.com/aevon-lab/timebucket/internal/core/errors"
	"github.com/aevon-lab/timebucket/internal/core/storage"
)

const (
	msgReadBodyFailed  = "Failed to read request body"
	msgInvalidJSON     = "Invalid JSON body"
	msgPersistFailed   = "Failed to persist record"
	msgDuplicateRecord = "Record already exists"

	defaultListLimit = 100
	maxListLimit     = 1000
)

// ingestionError carries the structured HTTP error shape from a helper back to the orchestrator.
// Helpers return this instead of writing to gin.Context directly, keeping them decoupled from HTTP.
type ingestionError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *ingestionError) Error() string {
	return e.message
}

// ListRecordsResponse is one page of a series scan.
type ListRecordsResponse struct {
	Records []*v1.Record `json:"records"`
	// NextCursor continues the scan; zero when the page was the last one.
	NextCursor int64 `json:"next_cursor,omitempty"`
}

// IngestHandler handles HTTP POST requests for record ingestion.
func (s *Service) IngestHandler(c *gin.Context) {
	rec, payloadSize, err := s.parseRecord(c)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := validateRecord(rec); err != nil {
		writeError(c, err)
		return
	}

	slog.Info("Received Record",
		"record_id", rec.ID,
		"series", rec.Series,
		"has_timestamp", rec.OccurredAt != nil,
		"payload_size", payloadSize)

	if err := s.persistRecord(c.Request.Context(), rec); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "id": rec.ID})
}

// parseRecord reads the raw request body and binds it into a Record.
// Returns the parsed record and the raw payload size (used for structured logging upstream).
func (s *Service) parseRecord(c *gin.Context) (*v1.Record, int, *ingestionError) {
	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		return nil, 0, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return nil, len(bodyBytes), &ingestionError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpPayloadTooLargeError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	var rec v1.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		slog.Warn("Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		return nil, len(bodyBytes), &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		}
	}

	if rec.ID == "" {
		rec.ID = s.newID()
	}
	rec.IngestedAt = s.now().UTC()
	return &rec, len(bodyBytes), nil
}

func validateRecord(rec *v1.Record) *ingestionError {
	if err := rec.Validate(); err != nil {
		slog.Warn("Record validation failed", "error", err, "record_id", rec.ID)
		return &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpRecordValidationError,
			message:    err.Error(),
		}
	}
	return nil
}

// persistRecord saves the record to the backing store.
func (s *Service) persistRecord(ctx context.Context, rec *v1.Record) *ingestionError {
	if err := s.store.SaveRecord(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			slog.Info("Duplicate record rejected", "record_id", rec.ID, "series", rec.Series)
			return &ingestionError{
				statusCode: http.StatusConflict,
				errorType:  httperr.HttpDuplicateRecordError,
				message:    msgDuplicateRecord,
				details:    map[string]string{"id": rec.ID, "series": rec.Series},
			}
		}

		slog.Error("Failed to persist record", "error", err, "record_id", rec.ID)
		return &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgPersistFailed,
		}
	}

	return nil
}

// ListRecordsHandler handles GET /v1/series/:series/records?start=...&last=...&cursor=...&limit=...
func (s *Service) ListRecordsHandler(c *gin.Context) {
	q := storage.ScanQuery{Series: c.Param("series")}

	var ierr *ingestionError
	if q.From, ierr = timeQuery(c, "start"); ierr != nil {
		writeError(c, ierr)
		return
	}
	if q.Through, ierr = timeQuery(c, "last"); ierr != nil {
		writeError(c, ierr)
		return
	}
	if q.From != nil && q.Through != nil && q.From.After(*q.Through) {
		writeError(c, badQuery("start must not be after last"))
		return
	}

	cursor, err := strconv.ParseInt(c.DefaultQuery("cursor", "0"), 10, 64)
	if err != nil || cursor < 0 {
		writeError(c, badQuery("cursor must be a non-negative integer"))
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit <= 0 || limit > maxListLimit {
		writeError(c, badQuery("limit must be between 1 and "+strconv.Itoa(maxListLimit)))
		return
	}

	records, err := s.store.ScanRecords(c.Request.Context(), q, cursor, limit)
	if err != nil {
		slog.Error("Failed to list records", "error", err, "series", q.Series)
		writeError(c, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    "Failed to list records",
		})
		return
	}

	resp := ListRecordsResponse{Records: records}
	if resp.Records == nil {
		resp.Records = []*v1.Record{}
	}
	if len(records) == limit {
		resp.NextCursor = records[len(records)-1].IngestSeq
	}
	c.JSON(http.StatusOK, resp)
}

func timeQuery(c *gin.Context, name string) (*time.Time, *ingestionError) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := coreagg.ParseTime(raw)
	if err != nil {
		return nil, badQuery(name + " must be an RFC 3339 timestamp or a date")
	}
	return &t, nil
}

func badQuery(msg string) *ingestionError {
	return &ingestionError{
		statusCode: http.StatusBadRequest,
		errorType:  httperr.HttpInvalidOptionsError,
		message:    msg,
	}
}

// writeError serializes an ingestionError as the JSON HTTP response.
func writeError(c *gin.Context, err *ingestionError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
