package grouping

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	coreagg "github.com/aevon-lab/timebucket/internal/core/aggregation"
	httperr "github.com/aevon-lab/timebucket/internal/core/errors"
	"github.com/aevon-lab/timebucket/internal/core/storage"
)

// RegisterRoutes registers all grouping API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/series/:series/buckets", s.HandleSeriesBuckets)
	r.GET("/v1/rules", s.HandleListRules)
	r.GET("/v1/rules/:rule/buckets", s.HandleRuleBuckets)
}

// HandleSeriesBuckets handles GET /v1/series/:series/buckets
func (s *Service) HandleSeriesBuckets(c *gin.Context) {
	resp, err := s.QuerySeries(c.Request.Context(), c.Param("series"), c.Request.URL.Query())
	if err != nil {
		writeQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleRuleBuckets handles GET /v1/rules/:rule/buckets
func (s *Service) HandleRuleBuckets(c *gin.Context) {
	resp, err := s.QueryRule(c.Request.Context(), c.Param("rule"), c.Request.URL.Query())
	if err != nil {
		writeQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleListRules handles GET /v1/rules?series=...
func (s *Service) HandleListRules(c *gin.Context) {
	rules, err := s.ListRules(c.Request.Context(), c.Query("series"))
	if err != nil {
		writeQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

func writeQueryError(c *gin.Context, err error) {
	var (
		cfgErr      *coreagg.ConfigurationError
		unsupported *storage.UnsupportedBackendOperationError
	)

	switch {
	case errors.As(err, &cfgErr):
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidOptionsError,
			Message:   "Invalid grouping options",
			Details: gin.H{
				"options": cfgErr.Options,
				"reason":  cfgErr.Error(),
			},
		})
	case errors.As(err, &unsupported):
		c.JSON(http.StatusUnprocessableEntity, httperr.ErrorResponse{
			ErrorType: httperr.HttpUnsupportedBackendOperation,
			Message:   "Storage backend cannot group this request",
			Details: gin.H{
				"backend": unsupported.Backend,
				"feature": unsupported.Feature,
			},
		})
	case errors.Is(err, coreagg.ErrRuleNotFound):
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpRuleNotFoundError,
			Message:   "Rule not found",
			Details:   err.Error(),
		})
	case errors.Is(err, coreagg.ErrTooManyBuckets), errors.Is(err, ErrScanLimit):
		c.JSON(http.StatusUnprocessableEntity, httperr.ErrorResponse{
			ErrorType: httperr.HttpTooManyBucketsError,
			Message:   "Request covers too much data",
			Details:   err.Error(),
		})
	default:
		slog.Error("[Grouping] Query failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to group records",
			Details:   err.Error(),
		})
	}
}
