package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"limits/internal/core"
	applog "limits/internal/log"
)

var (
	// ErrNotFound is returned when a user or card does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStaleCard is returned when a balance update loses an optimistic
	// version check: another load finished between read and write.
	ErrStaleCard = errors.New("card version is stale")
)

// LoadEvent is one audited load attempt.
type LoadEvent struct {
	ID             int64
	CardID         int64
	CustomerID     string
	Amount         decimal.Decimal
	Outcome        string
	ViolationCodes []string
	TransactionID  string
	OccurredAt     time.Time
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateUser inserts a user with a fresh gateway customer id.
func (r *SQLiteRepository) CreateUser(ctx context.Context, username, email string) (core.User, error) {
	user := core.User{
		Username:   username,
		Email:      email,
		CustomerID: core.NewCustomerID(),
	}
	if err := user.Validate(); err != nil {
		return core.User{}, fmt.Errorf("validate user: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, email, customer_id) VALUES (?, ?, ?)`,
		user.Username, user.Email, user.CustomerID)
	if err != nil {
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	user.ID, err = res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("user insert id: %w", err)
	}
	return user, nil
}

// GetUser fetches a user by id.
func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, customer_id FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &u.Email, &u.CustomerID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// FirstUser returns the lowest-id user. The API has no session layer; every
// request acts as the demo user, mirroring the single-user deployment mode.
func (r *SQLiteRepository) FirstUser(ctx context.Context) (core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, customer_id FROM users ORDER BY id LIMIT 1`).
		Scan(&u.ID, &u.Username, &u.Email, &u.CustomerID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("no users: %w", ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("first user: %w", err)
	}
	return u, nil
}

// CreateCard inserts a card with a zero balance for the given user.
func (r *SQLiteRepository) CreateCard(ctx context.Context, userID int64, name string) (core.Card, error) {
	card := core.Card{UserID: userID, Name: name, Balance: decimal.Zero}
	if err := card.Validate(); err != nil {
		return core.Card{}, fmt.Errorf("validate card: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO cards (user_id, name, balance) VALUES (?, ?, '0')`,
		card.UserID, card.Name)
	if err != nil {
		return core.Card{}, fmt.Errorf("insert card: %w", err)
	}
	card.ID, err = res.LastInsertId()
	if err != nil {
		return core.Card{}, fmt.Errorf("card insert id: %w", err)
	}
	return card, nil
}

// GetCard fetches a card owned by the given user. A card belonging to a
// different user reads as not found; ownership is never leaked.
func (r *SQLiteRepository) GetCard(ctx context.Context, userID, cardID int64) (core.Card, error) {
	var (
		c       core.Card
		balance string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, balance, version FROM cards WHERE id = ? AND user_id = ?`,
		cardID, userID).
		Scan(&c.ID, &c.UserID, &c.Name, &balance, &c.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Card{}, fmt.Errorf("card %d: %w", cardID, ErrNotFound)
	}
	if err != nil {
		return core.Card{}, fmt.Errorf("get card: %w", err)
	}

	c.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return core.Card{}, fmt.Errorf("parse card balance %q: %w", balance, err)
	}
	return c, nil
}

// UpdateCardBalance writes a new balance guarded by an optimistic version
// check. If the stored version moved since the card was read, no row is
// updated and ErrStaleCard is returned; the caller re-reads and re-evaluates.
func (r *SQLiteRepository) UpdateCardBalance(ctx context.Context, cardID int64, balance decimal.Decimal, expectedVersion int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE cards SET balance = ?, version = version + 1 WHERE id = ? AND version = ?`,
		balance.String(), cardID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update card balance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update card balance rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("card %d at version %d: %w", cardID, expectedVersion, ErrStaleCard)
	}

	slog.InfoContext(ctx, "Card balance updated",
		"card_id", cardID,
		"balance", balance.String(),
		applog.FieldComponent, applog.ComponentStorage)
	return nil
}

// InsertLoadEvent appends one audited load attempt.
func (r *SQLiteRepository) InsertLoadEvent(ctx context.Context, e LoadEvent) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO load_events (card_id, customer_id, amount, outcome, violation_codes, transaction_id, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.CardID, e.CustomerID, e.Amount.String(), e.Outcome,
		strings.Join(e.ViolationCodes, ","), e.TransactionID, e.OccurredAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("insert load event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("load event insert id: %w", err)
	}
	return id, nil
}

// ListLoadEvents returns the most recent audited attempts for a card.
func (r *SQLiteRepository) ListLoadEvents(ctx context.Context, cardID int64, limit int) ([]LoadEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, card_id, customer_id, amount, outcome, violation_codes, transaction_id, occurred_at
		 FROM load_events WHERE card_id = ? ORDER BY occurred_at DESC, id DESC LIMIT ?`,
		cardID, limit)
	if err != nil {
		return nil, fmt.Errorf("list load events: %w", err)
	}
	defer rows.Close()

	var events []LoadEvent
	for rows.Next() {
		var (
			e      LoadEvent
			amount string
			codes  string
		)
		if err := rows.Scan(&e.ID, &e.CardID, &e.CustomerID, &amount, &e.Outcome, &codes, &e.TransactionID, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan load event: %w", err)
		}
		e.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse event amount %q: %w", amount, err)
		}
		if codes != "" {
			e.ViolationCodes = strings.Split(codes, ",")
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate load events: %w", err)
	}
	return events, nil
}

// SeedDemoData creates the demo user and card when the database is empty.
// Idempotent: an existing demo user is left alone.
func (r *SQLiteRepository) SeedDemoData(ctx context.Context) error {
	var count int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE username = 'guest'`).Scan(&count); err != nil {
		return fmt.Errorf("count demo users: %w", err)
	}
	if count > 0 {
		return nil
	}

	user, err := r.CreateUser(ctx, "guest", "guest@example.com")
	if err != nil {
		return fmt.Errorf("seed user: %w", err)
	}
	card, err := r.CreateCard(ctx, user.ID, "Card-1")
	if err != nil {
		return fmt.Errorf("seed card: %w", err)
	}

	slog.InfoContext(ctx, "Seeded demo data",
		"user_id", user.ID,
		"customer_id", user.CustomerID,
		"card_id", card.ID,
		applog.FieldComponent, applog.ComponentStorage)
	return nil
}
