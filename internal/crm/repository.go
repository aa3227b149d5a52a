// Package crm keeps the customer book: contact data, family birthdays and
// loyalty points.
package crm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const customerColumns = `id, full_name, phone, birthday, spouse_name, spouse_phone, spouse_birthday,
	favorite_flowers, notes, points, created_at, updated_at`

// listLimit caps unpaginated customer listings.
const listLimit = 200

type CustomerRepository struct {
	db *sql.DB
}

func NewCustomerRepository(db *sql.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (domain.Customer, error) {
	var (
		c                        domain.Customer
		birthday, spouseBirthday sql.NullTime
	)
	err := row.Scan(&c.ID, &c.FullName, &c.Phone, &birthday, &c.SpouseName, &c.SpousePhone, &spouseBirthday,
		&c.FavoriteFlowers, &c.Notes, &c.Points, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, err
	}
	c.Birthday = timePtr(birthday)
	c.SpouseBirthday = timePtr(spouseBirthday)
	return c, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (r *CustomerRepository) queryCustomers(ctx context.Context, query string, args ...any) ([]domain.Customer, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	customers := []domain.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}

	return customers, rows.Err()
}

// List returns customers ordered by name. A non-empty search matches,
// case-insensitively, the customer's or the spouse's name or phone.
func (r *CustomerRepository) List(ctx context.Context, search string) ([]domain.Customer, error) {
	search = strings.TrimSpace(search)
	if search == "" {
		return r.queryCustomers(ctx, `
			SELECT `+customerColumns+`
			FROM customers
			ORDER BY full_name, id
			LIMIT $1
		`, listLimit)
	}

	pattern := "%" + escapeLike(search) + "%"
	return r.queryCustomers(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE full_name ILIKE $1 OR phone ILIKE $1 OR spouse_name ILIKE $1 OR spouse_phone ILIKE $1
		ORDER BY full_name, id
		LIMIT $2
	`, pattern, listLimit)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	c, err := scanCustomer(r.db.QueryRowContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("customer %d: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CustomerRepository) Create(ctx context.Context, c *domain.Customer) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO customers (full_name, phone, birthday, spouse_name, spouse_phone, spouse_birthday,
			favorite_flowers, notes, points)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`, c.FullName, c.Phone, nullTime(c.Birthday), c.SpouseName, c.SpousePhone, nullTime(c.SpouseBirthday),
		c.FavoriteFlowers, c.Notes, c.Points).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

// Update overwrites the editable fields of c. Points are changed only through
// AdjustPoints.
func (r *CustomerRepository) Update(ctx context.Context, c *domain.Customer) error {
	updated, err := scanCustomer(r.db.QueryRowContext(ctx, `
		UPDATE customers
		SET full_name = $1, phone = $2, birthday = $3, spouse_name = $4, spouse_phone = $5,
			spouse_birthday = $6, favorite_flowers = $7, notes = $8, updated_at = NOW()
		WHERE id = $9
		RETURNING `+customerColumns,
		c.FullName, c.Phone, nullTime(c.Birthday), c.SpouseName, c.SpousePhone, nullTime(c.SpouseBirthday),
		c.FavoriteFlowers, c.Notes, c.ID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("customer %d: %w", c.ID, domain.ErrNotFound)
		}
		return err
	}
	*c = updated
	return nil
}

// AdjustPoints adds delta to the loyalty balance and returns the new balance.
// The balance never goes below zero; such a change fails with
// domain.ErrInsufficientPoints.
func (r *CustomerRepository) AdjustPoints(ctx context.Context, id int64, delta int) (int, error) {
	var points int
	err := r.db.QueryRowContext(ctx, `
		UPDATE customers
		SET points = points + $1, updated_at = NOW()
		WHERE id = $2 AND points + $1 >= 0
		RETURNING points
	`, delta, id).Scan(&points)
	if err == nil {
		return points, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, id).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("customer %d: %w", id, domain.ErrNotFound)
	}
	return 0, fmt.Errorf("customer %d by %d: %w", id, delta, domain.ErrInsufficientPoints)
}

// BirthdaysOn selects customers whose own or spouse's birthday falls on month
// and day. A customer matching both yields two entries, own birthday first.
func (r *CustomerRepository) BirthdaysOn(ctx context.Context, month time.Month, day int) ([]domain.BirthdayMatch, error) {
	customers, err := r.queryCustomers(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE (EXTRACT(MONTH FROM birthday) = $1 AND EXTRACT(DAY FROM birthday) = $2)
			OR (EXTRACT(MONTH FROM spouse_birthday) = $1 AND EXTRACT(DAY FROM spouse_birthday) = $2)
		ORDER BY full_name, id
	`, int(month), day)
	if err != nil {
		return nil, err
	}

	return matchBirthdays(customers, month, day), nil
}

func matchBirthdays(customers []domain.Customer, month time.Month, day int) []domain.BirthdayMatch {
	ref := time.Date(2000, month, day, 0, 0, 0, 0, time.UTC)
	matches := []domain.BirthdayMatch{}
	for _, c := range customers {
		if domain.SameDay(c.Birthday, ref) {
			matches = append(matches, domain.BirthdayMatch{Customer: c})
		}
		if domain.SameDay(c.SpouseBirthday, ref) {
			matches = append(matches, domain.BirthdayMatch{Customer: c, Spouse: true})
		}
	}
	return matches
}
