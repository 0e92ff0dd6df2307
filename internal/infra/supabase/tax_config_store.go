package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/boddenberg/irpf-engine/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Tax configuration reads: tax_configs + tax_categories
// ============================================================

type taxConfigRow struct {
	ID              int64               `json:"id"`
	Year            int                 `json:"year"`
	TaxBrackets     json.RawMessage     `json:"tax_brackets"`
	DeductionLimits json.RawMessage     `json:"deduction_limits"`
	CategoryNames   json.RawMessage     `json:"category_names"`
	ExemptAmount    decimal.Decimal     `json:"exempt_amount"`
	MinimumWage     decimal.NullDecimal `json:"minimum_wage"`
	IsActive        bool                `json:"is_active"`
}

type taxCategoryRow struct {
	CategoryID    int64  `json:"category_id"`
	DeductionType string `json:"deduction_type"`
}

// FindTaxConfiguration returns the configuration stored for year, or nil.
func (c *Client) FindTaxConfiguration(ctx context.Context, year int) (*domain.TaxConfiguration, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindTaxConfiguration")
	defer span.End()
	span.SetAttributes(attribute.Int("tax.year", year))

	q := url.Values{}
	q.Set("year", "eq."+strconv.Itoa(year))
	q.Set("order", "id.desc")
	q.Set("limit", "1")
	return c.findTaxConfig(ctx, q)
}

// FindActiveTaxConfiguration returns the most recent active configuration, or nil.
func (c *Client) FindActiveTaxConfiguration(ctx context.Context) (*domain.TaxConfiguration, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindActiveTaxConfiguration")
	defer span.End()

	q := url.Values{}
	q.Set("is_active", "eq.true")
	q.Set("order", "year.desc,id.desc")
	q.Set("limit", "1")
	return c.findTaxConfig(ctx, q)
}

func (c *Client) findTaxConfig(ctx context.Context, q url.Values) (*domain.TaxConfiguration, error) {
	var rows []taxConfigRow
	if err := c.selectRows(ctx, "tax_configs", q, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	row := rows[0]

	lq := url.Values{}
	lq.Set("tax_config_id", "eq."+strconv.FormatInt(row.ID, 10))
	lq.Set("select", "category_id,deduction_type")

	var links []taxCategoryRow
	if err := c.selectRows(ctx, "tax_categories", lq, &links); err != nil {
		return nil, err
	}

	cfg, err := row.toDomain(links)
	if err != nil {
		return nil, &domain.ErrConfigurationIntegrity{Year: row.Year, Reason: err.Error()}
	}
	return cfg, nil
}

func (r taxConfigRow) toDomain(links []taxCategoryRow) (*domain.TaxConfiguration, error) {
	var brackets []domain.TaxBracket
	if err := jsonColumn(r.TaxBrackets, &brackets); err != nil {
		return nil, fmt.Errorf("tax_configs %d: tax_brackets: %w", r.ID, err)
	}
	var limits map[string]decimal.Decimal
	if err := jsonColumn(r.DeductionLimits, &limits); err != nil {
		return nil, fmt.Errorf("tax_configs %d: deduction_limits: %w", r.ID, err)
	}
	var names map[string]string
	if err := jsonColumn(r.CategoryNames, &names); err != nil {
		return nil, fmt.Errorf("tax_configs %d: category_names: %w", r.ID, err)
	}

	dl := make([]domain.TaxCategoryLink, 0, len(links))
	for _, l := range links {
		dl = append(dl, domain.TaxCategoryLink{CategoryID: l.CategoryID, DeductionType: l.DeductionType})
	}

	return &domain.TaxConfiguration{
		Year:            r.Year,
		Brackets:        brackets,
		DeductionLimits: domain.DeductionLimitsFrom(limits),
		ExemptAmount:    r.ExemptAmount,
		MinimumWage:     r.MinimumWage.Decimal,
		IsActive:        r.IsActive,
		Mapping:         domain.DeductionMappingFrom(dl, names),
	}, nil
}
