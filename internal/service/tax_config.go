package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/irpf-engine/internal/domain"
	"github.com/boddenberg/irpf-engine/internal/infra/observability"
	"github.com/boddenberg/irpf-engine/internal/port"
	"github.com/boddenberg/irpf-engine/internal/taxcalc"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service/irpf")

const activeConfigKey = "active"

// TaxConfigProvider resolves the tax configuration for a fiscal year.
// Stored configurations are validated and cached; the built-in default is
// substituted when nothing is stored and is rebuilt on every call.
type TaxConfigProvider struct {
	store   port.TaxConfigFinder
	cache   port.Cache[*domain.TaxConfiguration]
	metrics *observability.Metrics
	logger  *zap.Logger
	now     Clock
}

// NewTaxConfigProvider creates the provider.
func NewTaxConfigProvider(
	store port.TaxConfigFinder,
	cache port.Cache[*domain.TaxConfiguration],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *TaxConfigProvider {
	return &TaxConfigProvider{
		store:   store,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the clock used to pick the default year of ActiveConfig.
func (p *TaxConfigProvider) WithClock(now Clock) *TaxConfigProvider {
	p.now = now
	return p
}

// ConfigFor returns the configuration stored for year, or the default.
func (p *TaxConfigProvider) ConfigFor(ctx context.Context, year int) (*domain.TaxConfiguration, error) {
	ctx, span := tracer.Start(ctx, "TaxConfigProvider.ConfigFor")
	defer span.End()
	span.SetAttributes(attribute.Int("tax.year", year))

	if err := validateYear(year); err != nil {
		return nil, err
	}

	return p.lookup(ctx, fmt.Sprintf("year:%d", year), "year", year, func(ctx context.Context) (*domain.TaxConfiguration, error) {
		return p.store.FindTaxConfiguration(ctx, year)
	})
}

// ActiveConfig returns the most recent active configuration, or the default
// for the current year flagged IsDefault.
func (p *TaxConfigProvider) ActiveConfig(ctx context.Context) (*domain.TaxConfiguration, error) {
	ctx, span := tracer.Start(ctx, "TaxConfigProvider.ActiveConfig")
	defer span.End()

	return p.lookup(ctx, activeConfigKey, "active", p.now().Year(), p.store.FindActiveTaxConfiguration)
}

func (p *TaxConfigProvider) lookup(
	ctx context.Context,
	key, lookup string,
	fallbackYear int,
	find func(context.Context) (*domain.TaxConfiguration, error),
) (*domain.TaxConfiguration, error) {
	if cached, ok := p.cache.Get(key); ok {
		p.metrics.IncrCacheHit("tax_config")
		return cached, nil
	}
	p.metrics.IncrCacheMiss("tax_config")

	cfg, err := find(ctx)
	if err != nil {
		p.metrics.IncrStoreError("tax_config")
		p.logger.Error("tax config lookup failed",
			zap.String("lookup", lookup),
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, fmt.Errorf("tax config %s: %w", key, err)
	}

	if cfg == nil {
		p.metrics.IncrConfigFallback(lookup)
		p.logger.Info("no stored tax config, using default",
			zap.String("lookup", lookup),
			zap.Int("year", fallbackYear),
		)
		d := taxcalc.DefaultConfiguration(fallbackYear)
		return &d, nil
	}

	if err := cfg.Validate(); err != nil {
		p.metrics.IncrIntegrityError()
		p.logger.Error("stored tax config is inconsistent",
			zap.Int("year", cfg.Year),
			zap.Error(err),
		)
		return nil, err
	}

	p.cache.Set(key, cfg)
	return cfg, nil
}

// Invalidate drops cached configurations so the next lookup reads the store.
func (p *TaxConfigProvider) Invalidate(year int) {
	p.cache.Delete(fmt.Sprintf("year:%d", year))
	p.cache.Delete(activeConfigKey)
}
