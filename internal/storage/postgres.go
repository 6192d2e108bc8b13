package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attributionops/attribution-engine/internal/models"
)

// PostgresLedger implements LedgerReader using PostgreSQL, which holds the
// synced spend ledger, the platform reported-value ledger, and ad_names.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

func (r *PostgresLedger) SpendDimensions(ctx context.Context) ([]models.SpendDimension, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT
			COALESCE(platform, ''), COALESCE(account_id, ''),
			COALESCE(campaign_id, ''), COALESCE(adset_id, ''), COALESCE(ad_id, '')
		FROM spend
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query spend dimensions: %w", err)
	}
	defer rows.Close()

	var dims []models.SpendDimension
	for rows.Next() {
		var d models.SpendDimension
		if err := rows.Scan(&d.Platform, &d.AccountID, &d.CampaignID, &d.AdsetID, &d.AdID); err != nil {
			return nil, fmt.Errorf("failed to scan spend dimension: %w", err)
		}
		dims = append(dims, d)
	}
	return dims, rows.Err()
}

func (r *PostgresLedger) SpendInRange(ctx context.Context, start, end time.Time, platform string) ([]models.SpendRow, error) {
	query := `
		SELECT
			COALESCE(platform, ''), date, COALESCE(account_id, ''),
			COALESCE(campaign_id, ''), COALESCE(adset_id, ''), COALESCE(ad_id, ''),
			COALESCE(creative_id, ''), COALESCE(clicks, 0), COALESCE(cost, 0),
			COALESCE(impressions, 0), COALESCE(metadata, '')
		FROM spend
		WHERE date BETWEEN $1 AND $2
	`
	args := []interface{}{start, end}
	if hasPlatformFilter(platform) {
		query += ` AND platform = $3`
		args = append(args, platform)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query spend: %w", err)
	}
	defer rows.Close()

	var result []models.SpendRow
	for rows.Next() {
		var row models.SpendRow
		var date time.Time
		if err := rows.Scan(
			&row.Platform, &date, &row.AccountID, &row.CampaignID, &row.AdsetID,
			&row.AdID, &row.CreativeID, &row.Clicks, &row.Cost, &row.Impressions, &row.Metadata,
		); err != nil {
			return nil, fmt.Errorf("failed to scan spend row: %w", err)
		}
		row.Date = date.Format(dateLayout)
		result = append(result, row)
	}
	return result, rows.Err()
}

func (r *PostgresLedger) ReportedValueInRange(ctx context.Context, start, end time.Time, platform, conversionType string) ([]models.ReportedValueRow, error) {
	query := `
		SELECT
			COALESCE(platform, ''), date, COALESCE(account_id, ''),
			COALESCE(campaign_id, ''), COALESCE(adset_id, ''), COALESCE(ad_id, ''),
			conversion_type, COALESCE(reported_value, 0)
		FROM reported_value
		WHERE date BETWEEN $1 AND $2
		  AND conversion_type = $3
	`
	args := []interface{}{start, end, conversionType}
	if hasPlatformFilter(platform) {
		query += ` AND platform = $4`
		args = append(args, platform)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reported value: %w", err)
	}
	defer rows.Close()

	var result []models.ReportedValueRow
	for rows.Next() {
		var row models.ReportedValueRow
		var date time.Time
		if err := rows.Scan(
			&row.Platform, &date, &row.AccountID, &row.CampaignID,
			&row.AdsetID, &row.AdID, &row.ConversionType, &row.ReportedValue,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reported value row: %w", err)
		}
		row.Date = date.Format(dateLayout)
		result = append(result, row)
	}
	return result, rows.Err()
}

func (r *PostgresLedger) Platforms(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT platform FROM spend
		WHERE COALESCE(platform, '') <> ''
		ORDER BY platform
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query platforms: %w", err)
	}
	defer rows.Close()

	var platforms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan platform: %w", err)
		}
		platforms = append(platforms, p)
	}
	return platforms, rows.Err()
}

func (r *PostgresLedger) AdNames(ctx context.Context) ([]models.AdName, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT
			COALESCE(platform, ''), COALESCE(entity_type, ''),
			COALESCE(entity_id, ''), COALESCE(name, '')
		FROM ad_names
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ad names: %w", err)
	}
	defer rows.Close()

	var names []models.AdName
	for rows.Next() {
		var n models.AdName
		if err := rows.Scan(&n.Platform, &n.EntityType, &n.EntityID, &n.Name); err != nil {
			return nil, fmt.Errorf("failed to scan ad name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func hasPlatformFilter(platform string) bool {
	return platform != "" && !strings.EqualFold(platform, "all")
}
