// Package ingestion accepts records over HTTP and persists them.
package ingestion

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aevon-lab/timebucket/internal/core/storage"
)

type Service struct {
	store            storage.RecordStore
	maxBodySizeBytes int
	newID            func() string
	now              func() time.Time
}

func NewService(repo storage.RecordStore, maxBodySizeMB int) *Service {
	if repo == nil {
		panic("ingestion: store must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		store:            repo,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
		newID:            func() string { return uuid.NewString() },
		now:              time.Now,
	}
}

// RegisterRoutes registers the ingestion service routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/records", s.IngestHandler)
	r.GET("/v1/series/:series/records", s.ListRecordsHandler)
}
