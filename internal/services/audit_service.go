package services

import (
	"net/http"

	"github.com/campusconnect/backend/internal/store"
	"github.com/sirupsen/logrus"
)

type AuditService struct {
	entries AuditLister
	log     logrus.FieldLogger
}

func NewAuditService(entries AuditLister, log logrus.FieldLogger) *AuditService {
	return &AuditService{entries: entries, log: log.WithField("component", "audit")}
}

// List returns recent audit entries, newest first
// @Summary List audit log entries
// @Tags audit
// @Produce json
// @Security BearerAuth
// @Param action query string false "Filter by action"
// @Param performedBy query string false "Filter by acting user ID"
// @Param targetResource query string false "Filter by resource"
// @Param limit query int false "Page size, at most 100"
// @Param offset query int false "Offset"
// @Success 200 {array} models.AuditEntry
// @Failure 403 {object} ErrorResponse
// @Router /audit-logs [get]
func (s *AuditService) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries, err := s.entries.List(r.Context(), store.AuditFilter{
		Action:         q.Get("action"),
		PerformedBy:    q.Get("performedBy"),
		TargetResource: q.Get("targetResource"),
		Page:           pageFromQuery(r),
	})
	if err != nil {
		writeStoreError(w, s.log, err, "Audit entry")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
