package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/irpf-engine/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// IRPF — GET /v1/ir/calculate/{userId}
// ============================================================

func taxReportHandler(svc *service.TaxReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/ir/calculate/{userId}")
		defer span.End()

		userID, ok := parseUserID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "userId must be an integer")
			return
		}
		year, ok := parseYear(r.URL.Query().Get("year"))
		if !ok {
			writeError(w, http.StatusBadRequest, "year must be an integer")
			return
		}
		span.SetAttributes(attribute.Int64("user.id", userID), attribute.Int("tax.year", year))
		if sub := SubjectFromContext(ctx); sub != "" {
			span.SetAttributes(attribute.String("auth.subject", sub))
		}

		report, err := svc.ComputeTaxReport(ctx, userID, year)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, presentTaxReport(report, time.Now()))
	}
}

// ============================================================
// IRPF config — GET /v1/ir/config, GET /v1/ir/config/{year}
// ============================================================

func activeConfigHandler(configs *service.TaxConfigProvider, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/ir/config")
		defer span.End()

		cfg, err := configs.ActiveConfig(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, presentTaxConfig(cfg, time.Now()))
	}
}

func yearConfigHandler(configs *service.TaxConfigProvider, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/ir/config/{year}")
		defer span.End()

		year, ok := parseYear(chi.URLParam(r, "year"))
		if !ok {
			writeError(w, http.StatusBadRequest, "year must be an integer")
			return
		}
		span.SetAttributes(attribute.Int("tax.year", year))

		cfg, err := configs.ConfigFor(ctx, year)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, presentTaxConfig(cfg, time.Now()))
	}
}
