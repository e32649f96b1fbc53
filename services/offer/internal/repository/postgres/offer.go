package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tourhub/offers/pkg/database"
	apperrors "github.com/tourhub/offers/pkg/errors"
	"github.com/tourhub/offers/services/offer/internal/domain"
)

const offerColumns = `id, tenant_id, name, description,
	type, discount_value, value_kind, min_days_in_advance, max_days_before_tour,
	min_group_size, min_items, code,
	max_discount, currency, start_date, end_date, is_active, usage_limit, used_count,
	priority, min_booking_value, applicable_tours, excluded_tours, tour_option_selections,
	is_featured, featured_badge_text, eligibility_rule, created_at, updated_at`

// OfferRepository implements repository.OfferRepository on PostgreSQL.
type OfferRepository struct {
	db database.DBTX
}

// NewOfferRepository creates a repository over a pgx pool.
func NewOfferRepository(db database.DBTX) *OfferRepository {
	return &OfferRepository{db: db}
}

type jsonColumns struct {
	applicable, excluded, selections []byte
}

func marshalColumns(o *domain.Offer) (jsonColumns, error) {
	var (
		c   jsonColumns
		err error
	)
	if c.applicable, err = json.Marshal(nonNil(o.ApplicableTours)); err != nil {
		return c, fmt.Errorf("marshal applicable_tours: %w", err)
	}
	if c.excluded, err = json.Marshal(nonNil(o.ExcludedTours)); err != nil {
		return c, fmt.Errorf("marshal excluded_tours: %w", err)
	}
	sel := o.TourOptionSelections
	if sel == nil {
		sel = []domain.TourOptionSelection{}
	}
	if c.selections, err = json.Marshal(sel); err != nil {
		return c, fmt.Errorf("marshal tour_option_selections: %w", err)
	}
	return c, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Create inserts a new offer.
func (r *OfferRepository) Create(ctx context.Context, o *domain.Offer) (err error) {
	cols, err := marshalColumns(o)
	if err != nil {
		return err
	}
	f := domain.Flatten(o.Terms)

	query := `INSERT INTO offers (` + offerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)`

	ctx, end := database.TraceQuery(ctx, "CreateOffer", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		o.ID, o.TenantID, o.Name, o.Description,
		f.Type, f.DiscountValue, f.ValueKind, f.MinDaysInAdvance, f.MaxDaysBeforeTour,
		f.MinGroupSize, f.MinItems, f.Code,
		o.MaxDiscount, o.Currency, o.StartDate, o.EndDate, o.IsActive, o.UsageLimit, o.UsedCount,
		o.Priority, o.MinBookingValue, cols.applicable, cols.excluded, cols.selections,
		o.IsFeatured, o.FeaturedBadgeText, o.EligibilityRule, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("offer", "code", f.Code)
		}
		return fmt.Errorf("insert offer: %w", err)
	}
	return nil
}

// GetByID returns one offer of the tenant.
func (r *OfferRepository) GetByID(ctx context.Context, tenantID, id string) (_ *domain.Offer, err error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE tenant_id = $1 AND id = $2`

	ctx, end := database.TraceQuery(ctx, "GetOffer", query)
	defer func() { end(err) }()

	o, err := scanOffer(r.db.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("offer", id)
		}
		return nil, fmt.Errorf("get offer: %w", err)
	}
	return o, nil
}

// List returns a filtered page of the tenant's offers, newest first.
func (r *OfferRepository) List(ctx context.Context, tenantID string, filter domain.ListFilter) (_ []*domain.Offer, _ int, err error) {
	conditions := []string{"tenant_id = $1"}
	args := []any{tenantID}

	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if filter.Featured != nil {
		args = append(args, *filter.Featured)
		conditions = append(conditions, fmt.Sprintf("is_featured = $%d", len(args)))
	}

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf(`SELECT %s, count(*) OVER() AS total_count
		FROM offers
		WHERE %s
		ORDER BY created_at DESC, id ASC
		LIMIT $%d OFFSET $%d`,
		offerColumns, strings.Join(conditions, " AND "), len(args)-1, len(args))

	ctx, end := database.TraceQuery(ctx, "ListOffers", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	offers := []*domain.Offer{}
	total := 0
	for rows.Next() {
		o, err := scanOffer(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan offer row: %w", err)
		}
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate offer rows: %w", err)
	}
	return offers, total, nil
}

// ListActive returns candidate offers for evaluation in a stable order.
// The window test is deliberately wide (date-only ends, domain.ActiveHorizon);
// callers still check validity per offer.
func (r *OfferRepository) ListActive(ctx context.Context, tenantID string, now time.Time) (_ []*domain.Offer, err error) {
	query := `SELECT ` + offerColumns + `
		FROM offers
		WHERE tenant_id = $1
		  AND is_active
		  AND start_date <= $2
		  AND end_date >= $3
		  AND (usage_limit = 0 OR used_count < usage_limit)
		ORDER BY priority DESC, created_at ASC, id ASC`

	ctx, end := database.TraceQuery(ctx, "ListActiveOffers", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, tenantID, now.Add(domain.ActiveHorizon), now.Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("list active offers: %w", err)
	}
	defer rows.Close()

	offers := []*domain.Offer{}
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan active offer row: %w", err)
		}
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active offer rows: %w", err)
	}
	return offers, nil
}

// Update overwrites the offer's mutable fields. used_count is left to Redeem.
func (r *OfferRepository) Update(ctx context.Context, o *domain.Offer) (err error) {
	cols, err := marshalColumns(o)
	if err != nil {
		return err
	}
	f := domain.Flatten(o.Terms)

	query := `UPDATE offers
		SET name = $3, description = $4,
		    type = $5, discount_value = $6, value_kind = $7, min_days_in_advance = $8,
		    max_days_before_tour = $9, min_group_size = $10, min_items = $11, code = $12,
		    max_discount = $13, currency = $14, start_date = $15, end_date = $16,
		    is_active = $17, usage_limit = $18, priority = $19, min_booking_value = $20,
		    applicable_tours = $21, excluded_tours = $22, tour_option_selections = $23,
		    is_featured = $24, featured_badge_text = $25, eligibility_rule = $26,
		    updated_at = $27
		WHERE tenant_id = $1 AND id = $2`

	ctx, end := database.TraceQuery(ctx, "UpdateOffer", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query,
		o.TenantID, o.ID, o.Name, o.Description,
		f.Type, f.DiscountValue, f.ValueKind, f.MinDaysInAdvance,
		f.MaxDaysBeforeTour, f.MinGroupSize, f.MinItems, f.Code,
		o.MaxDiscount, o.Currency, o.StartDate, o.EndDate,
		o.IsActive, o.UsageLimit, o.Priority, o.MinBookingValue,
		cols.applicable, cols.excluded, cols.selections,
		o.IsFeatured, o.FeaturedBadgeText, o.EligibilityRule,
		o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("offer", "code", f.Code)
		}
		return fmt.Errorf("update offer: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("offer", o.ID)
	}
	return nil
}

// Redeem takes one use of the offer and records the redemption in one
// transaction. The conditional UPDATE serializes concurrent redemptions of
// a capped offer on the row lock.
func (r *OfferRepository) Redeem(ctx context.Context, red *domain.Redemption, at time.Time) (_ int, err error) {
	const incr = `UPDATE offers
		SET used_count = used_count + 1, updated_at = $3
		WHERE tenant_id = $1 AND id = $2
		  AND (usage_limit = 0 OR used_count < usage_limit)
		RETURNING used_count`
	const exists = `SELECT EXISTS(SELECT 1 FROM offers WHERE tenant_id = $1 AND id = $2)`
	const insert = `INSERT INTO offer_redemptions (
			id, tenant_id, offer_id, booking_id, customer_id,
			original_price, discount_amount, final_price, currency, redeemed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	ctx, end := database.TraceQuery(ctx, "RedeemOffer", incr)
	defer func() { end(err) }()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin redeem: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var used int
	err = tx.QueryRow(ctx, incr, red.TenantID, red.OfferID, at).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		var found bool
		if err = tx.QueryRow(ctx, exists, red.TenantID, red.OfferID).Scan(&found); err != nil {
			return 0, fmt.Errorf("check offer: %w", err)
		}
		if !found {
			err = apperrors.NotFound("offer", red.OfferID)
			return 0, err
		}
		err = apperrors.Conflict("offer usage limit reached")
		return 0, err
	}
	if err != nil {
		return 0, fmt.Errorf("increment offer usage: %w", err)
	}

	if _, err = tx.Exec(ctx, insert,
		red.ID, red.TenantID, red.OfferID, red.BookingID, red.CustomerID,
		red.OriginalPrice, red.DiscountAmount, red.FinalPrice, red.Currency, red.RedeemedAt,
	); err != nil {
		if isUniqueViolation(err) {
			err = apperrors.AlreadyExists("redemption", "booking_id", red.BookingID)
			return 0, err
		}
		return 0, fmt.Errorf("insert redemption: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit redeem: %w", err)
	}
	return used, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanOffer reads offerColumns plus any extra trailing columns.
func scanOffer(row rowScanner, extra ...any) (*domain.Offer, error) {
	var (
		o                                domain.Offer
		f                                domain.FlatTerms
		applicable, excluded, selections []byte
	)
	dest := []any{
		&o.ID, &o.TenantID, &o.Name, &o.Description,
		&f.Type, &f.DiscountValue, &f.ValueKind, &f.MinDaysInAdvance, &f.MaxDaysBeforeTour,
		&f.MinGroupSize, &f.MinItems, &f.Code,
		&o.MaxDiscount, &o.Currency, &o.StartDate, &o.EndDate, &o.IsActive, &o.UsageLimit, &o.UsedCount,
		&o.Priority, &o.MinBookingValue, &applicable, &excluded, &selections,
		&o.IsFeatured, &o.FeaturedBadgeText, &o.EligibilityRule, &o.CreatedAt, &o.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	terms, err := f.Terms()
	if err != nil {
		return nil, fmt.Errorf("offer %s: %w", o.ID, err)
	}
	o.Terms = terms

	if err := unmarshalIfSet(applicable, &o.ApplicableTours); err != nil {
		return nil, fmt.Errorf("unmarshal applicable_tours: %w", err)
	}
	if err := unmarshalIfSet(excluded, &o.ExcludedTours); err != nil {
		return nil, fmt.Errorf("unmarshal excluded_tours: %w", err)
	}
	if err := unmarshalIfSet(selections, &o.TourOptionSelections); err != nil {
		return nil, fmt.Errorf("unmarshal tour_option_selections: %w", err)
	}
	return &o, nil
}

func unmarshalIfSet(b []byte, dst any) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, dst)
}

// isUniqueViolation reports a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "23505")
}
