package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/irpf-engine/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Dashboard — GET /v1/dashboard/{userId}
// ============================================================

func dashboardHandler(svc *service.DashboardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard/{userId}")
		defer span.End()

		userID, ok := parseUserID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "userId must be an integer")
			return
		}
		span.SetAttributes(attribute.Int64("user.id", userID))

		summary, err := svc.ComputeDashboard(ctx, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, presentDashboard(summary, time.Now()))
	}
}
