// Package reservation is the persistence collaborator for finished bookings.
package reservation

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/casavia/concierge/agent/contract"
	logx "github.com/casavia/concierge/pkg/logger"
)

var logger = logx.Component("reservation")

// Config carries the committer's connection settings.
type Config struct {
	DSN             string        `envconfig:"DSN"`
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" default:"4"`
	ConnMaxIdleTime time.Duration `envconfig:"CONN_MAX_IDLE_TIME" default:"5m"`
	Timeout         time.Duration `envconfig:"TIMEOUT" default:"5s"`
}

type reservationRow struct {
	bun.BaseModel `bun:"table:reservations,alias:r"`

	ID              string    `bun:"id,pk"`
	VenueID         int64     `bun:"venue_id,notnull"`
	IdempotencyKey  string    `bun:"idempotency_key,notnull,unique"`
	Date            string    `bun:"reserved_date,notnull"`
	Time            string    `bun:"reserved_time,notnull"`
	PartySize       int       `bun:"party_size,notnull"`
	Name            string    `bun:"guest_name,notnull"`
	Phone           string    `bun:"guest_phone,notnull"`
	SpecialRequests string    `bun:"special_requests"`
	CreatedAt       time.Time `bun:"created_at,notnull"`
}

// PostgresStore commits bookings to the reservations table. Replayed commits
// with the same idempotency key return the originally inserted row instead of
// inserting twice.
type PostgresStore struct {
	db      *bun.DB
	now     func() time.Time
	timeout time.Duration
}

var _ contractx.ReservationStore = (*PostgresStore)(nil)

// NewPostgresStore opens the connection pool. The database is not contacted
// until the first commit.
func NewPostgresStore(cfg Config) (*PostgresStore, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("%w: reservation DSN is empty", contractx.ErrValidation)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqldb.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &PostgresStore{
		db:      bun.NewDB(sqldb, pgdialect.New()),
		now:     time.Now,
		timeout: timeout,
	}, nil
}

// InsertReservation commits one complete booking payload.
func (s *PostgresStore) InsertReservation(
	ctx context.Context,
	payload contractx.ReservationPayload,
	venueID int64,
	idempotencyKey string,
) (string, time.Time, error) {
	if !payload.Complete() {
		return "", time.Time{}, fmt.Errorf("%w: reservation payload is incomplete: missing %s",
			contractx.ErrValidation, strings.Join(payload.MissingFields(), ", "))
	}
	if strings.TrimSpace(idempotencyKey) == "" {
		idempotencyKey = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row := &reservationRow{
		ID:              uuid.NewString(),
		VenueID:         venueID,
		IdempotencyKey:  idempotencyKey,
		Date:            payload.Date,
		Time:            payload.Time,
		PartySize:       payload.PartySize,
		Name:            payload.Name,
		Phone:           payload.Phone,
		SpecialRequests: payload.SpecialRequests,
		CreatedAt:       s.now().UTC(),
	}

	res, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (idempotency_key) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: insert reservation: %v", contractx.ErrPersistence, err)
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		logger.Debug().Str("idempotency_key", idempotencyKey).Msg("replayed reservation commit")
		return s.lookupByKey(ctx, idempotencyKey)
	}
	return row.ID, row.CreatedAt, nil
}

func (s *PostgresStore) lookupByKey(ctx context.Context, idempotencyKey string) (string, time.Time, error) {
	existing := new(reservationRow)
	err := s.db.NewSelect().
		Model(existing).
		Where("idempotency_key = ?", idempotencyKey).
		Scan(ctx)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: load replayed reservation: %v", contractx.ErrPersistence, err)
	}
	return existing.ID, existing.CreatedAt, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
