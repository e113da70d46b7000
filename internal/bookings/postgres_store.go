package bookings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// pgDB is the subset of *pgxpool.Pool used by PostgresStore.
type pgDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore keeps bookings in the bookings table. A partial unique index on
// slot_ts for completed rows backs the conflict checks.
type PostgresStore struct {
	db pgDB
}

// NewPostgresStore initializes a store backed by a pgx pool.
func NewPostgresStore(db pgDB) *PostgresStore {
	if db == nil {
		panic("bookings: pgx pool required")
	}
	return &PostgresStore{db: db}
}

const bookingColumns = `id, slot_ts, slot_time, slot_date, full_time, client_name, client_email,
	client_phone, payment_status, stripe_session_id, created_at, updated_at`

func (s *PostgresStore) List(ctx context.Context) ([]*Booking, error) {
	rows, err := s.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("bookings: list: %w", err)
	}
	defer rows.Close()

	out := []*Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("bookings: scan: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings: list rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SlotTaken(ctx context.Context, timestamp int64) (bool, error) {
	var taken bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings WHERE slot_ts = $1 AND payment_status = 'completed'
		)
	`, timestamp).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("bookings: slot taken: %w", err)
	}
	return taken, nil
}

// Insert writes the row only if no completed booking holds the slot. A concurrent insert
// that slips past the NOT EXISTS guard is caught by the partial unique index.
func (s *PostgresStore) Insert(ctx context.Context, b *Booking) error {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		SELECT $1::text, $2::bigint, $3::text, $4::text, $5::text, $6::text, $7::text,
			$8::text, $9::text, $10::text, $11::timestamptz, $12::timestamptz
		WHERE NOT EXISTS (
			SELECT 1 FROM bookings WHERE slot_ts = $2::bigint AND payment_status = 'completed'
		)
	`,
		b.ID,
		b.Timestamp,
		b.SlotTime,
		b.SlotDate,
		b.FullTime,
		b.ClientName,
		b.ClientEmail,
		b.ClientPhone,
		string(b.PaymentStatus),
		b.StripeSessionID,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotConflict
		}
		return fmt.Errorf("bookings: insert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotConflict
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Booking, error) {
	row := s.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("bookings: get: %w", err)
	}
	return b, nil
}

// Update locks the row for the duration of fn.
func (s *PostgresStore) Update(ctx context.Context, id string, fn func(*Booking) error) (*Booking, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("bookings: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("bookings: lock: %w", err)
	}
	if err := fn(b); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE bookings
		SET payment_status = $2, stripe_session_id = $3, updated_at = $4
		WHERE id = $1
	`, b.ID, string(b.PaymentStatus), b.StripeSessionID, b.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotConflict
		}
		return nil, fmt.Errorf("bookings: update: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotConflict
		}
		return nil, fmt.Errorf("bookings: commit: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("bookings: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var (
		b      Booking
		status string
	)
	if err := row.Scan(
		&b.ID,
		&b.Timestamp,
		&b.SlotTime,
		&b.SlotDate,
		&b.FullTime,
		&b.ClientName,
		&b.ClientEmail,
		&b.ClientPhone,
		&status,
		&b.StripeSessionID,
		&b.CreatedAt,
		&b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	b.PaymentStatus = PaymentStatus(status)
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return &b, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
