package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Registers the "sqlite" driver (pure Go).
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ykvlv/payment-bot/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

var _ Repo = (*SQLiteRepo)(nil)

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	// foreign_keys is per connection; the DSN pragma covers reconnects too.
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// --- Users ---

const userColumns = `id, telegram_id, username, is_admin, created_at`

// EnsureUser creates the user on first contact. An existing user keeps their
// display name; only the admin flag is refreshed.
func (r *SQLiteRepo) EnsureUser(ctx context.Context, telegramID int64, username string, isAdmin bool) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		username = domain.DefaultUsername
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (telegram_id, username, is_admin, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET
			is_admin = excluded.is_admin`,
		telegramID, username, boolToInt(isAdmin), time.Now().UTC().Unix(),
	)
	if err != nil {
		return nil, err
	}
	return r.GetUserByTelegramID(ctx, telegramID)
}

// GetUserByTelegramID returns a user or domain.ErrNotFound.
func (r *SQLiteRepo) GetUserByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE telegram_id = ?`, telegramID)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// RenameUser changes a user's display name.
func (r *SQLiteRepo) RenameUser(ctx context.Context, telegramID int64, username string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET username = ? WHERE telegram_id = ?`, username, telegramID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// ListUsers returns every user ordered by id.
func (r *SQLiteRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// --- Payments ---

const paymentColumns = `id, user_id, name, description, price, due_date, created_at`

// CreatePayment stores a new payment for the user. A name already used by
// the same user yields domain.ErrDuplicatePayment.
func (r *SQLiteRepo) CreatePayment(ctx context.Context, userID int64, d domain.PaymentDraft) (*domain.Payment, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (user_id, name, description, price, due_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		userID, d.Name, d.Description, d.Price.String(), formatDate(d.DueDate), now.Unix(),
	)
	if err != nil {
		switch {
		case isConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE):
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicatePayment, d.Name)
		case isConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY):
			return nil, fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &domain.Payment{
		ID:          id,
		UserID:      userID,
		Name:        d.Name,
		Description: d.Description,
		Price:       d.Price,
		DueDate:     d.DueDate,
		CreatedAt:   fromUnix(now.Unix()),
	}, nil
}

// GetPayment returns a payment or domain.ErrNotFound.
func (r *SQLiteRepo) GetPayment(ctx context.Context, id int64) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
	p, err := scanPayment(row)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// ListPayments returns a user's payments ordered by id.
func (r *SQLiteRepo) ListPayments(ctx context.Context, userID int64) ([]domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// DeletePayment removes a payment; its notification rules go with it.
// Scheduled jobs are not touched here.
func (r *SQLiteRepo) DeletePayment(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// --- Notification rules ---

// CreateNotification returns the rule for (paymentID, daysBefore), creating
// it if needed. created reports whether a new row was inserted.
func (r *SQLiteRepo) CreateNotification(ctx context.Context, paymentID int64, daysBefore int) (domain.Notification, bool, error) {
	if err := domain.ValidateDaysBefore(daysBefore); err != nil {
		return domain.Notification{}, false, err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (payment_id, days_before)
		VALUES (?, ?)
		ON CONFLICT(payment_id, days_before) DO NOTHING`,
		paymentID, daysBefore,
	)
	if err != nil {
		if isConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY) {
			return domain.Notification{}, false, fmt.Errorf("payment %d: %w", paymentID, domain.ErrNotFound)
		}
		return domain.Notification{}, false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Notification{}, false, err
	}

	n := domain.Notification{PaymentID: paymentID, DaysBefore: daysBefore}
	err = r.db.QueryRowContext(ctx,
		`SELECT id FROM notifications WHERE payment_id = ? AND days_before = ?`,
		paymentID, daysBefore,
	).Scan(&n.ID)
	if err != nil {
		return domain.Notification{}, false, notFound(err)
	}
	return n, affected > 0, nil
}

// GetNotification returns a rule or domain.ErrNotFound.
func (r *SQLiteRepo) GetNotification(ctx context.Context, id int64) (*domain.Notification, error) {
	var n domain.Notification
	err := r.db.QueryRowContext(ctx,
		`SELECT id, payment_id, days_before FROM notifications WHERE id = ?`, id,
	).Scan(&n.ID, &n.PaymentID, &n.DaysBefore)
	if err != nil {
		return nil, notFound(err)
	}
	return &n, nil
}

// ListNotifications returns the rules of one payment ordered by id.
func (r *SQLiteRepo) ListNotifications(ctx context.Context, paymentID int64) ([]domain.Notification, error) {
	return r.queryNotifications(ctx,
		`SELECT id, payment_id, days_before FROM notifications WHERE payment_id = ? ORDER BY id`,
		paymentID)
}

// ListAllNotifications returns every rule ordered by id.
func (r *SQLiteRepo) ListAllNotifications(ctx context.Context) ([]domain.Notification, error) {
	return r.queryNotifications(ctx,
		`SELECT id, payment_id, days_before FROM notifications ORDER BY id`)
}

func (r *SQLiteRepo) queryNotifications(ctx context.Context, query string, args ...any) ([]domain.Notification, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.PaymentID, &n.DaysBefore); err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

// DeleteNotification removes a rule. Deleting a missing rule returns false.
func (r *SQLiteRepo) DeleteNotification(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ResolveReminder loads a rule together with its payment and user.
func (r *SQLiteRepo) ResolveReminder(ctx context.Context, notificationID int64) (domain.Target, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT n.id, n.payment_id, n.days_before,
		       p.id, p.user_id, p.name, p.description, p.price, p.due_date, p.created_at,
		       u.id, u.telegram_id, u.username, u.is_admin, u.created_at
		FROM notifications n
		JOIN payments p ON p.id = n.payment_id
		JOIN users u    ON u.id = p.user_id
		WHERE n.id = ?`,
		notificationID,
	)

	var (
		t                  domain.Target
		price, due         string
		pCreated, uCreated int64
		isAdmin            int
	)
	if err := row.Scan(
		&t.Notification.ID, &t.Notification.PaymentID, &t.Notification.DaysBefore,
		&t.Payment.ID, &t.Payment.UserID, &t.Payment.Name, &t.Payment.Description, &price, &due, &pCreated,
		&t.User.ID, &t.User.TelegramID, &t.User.Username, &isAdmin, &uCreated,
	); err != nil {
		return domain.Target{}, notFound(err)
	}

	var err error
	if t.Payment.Price, err = parsePrice(price); err != nil {
		return domain.Target{}, err
	}
	if t.Payment.DueDate, err = parseDate(due); err != nil {
		return domain.Target{}, err
	}
	t.Payment.CreatedAt = fromUnix(pCreated)
	t.User.IsAdmin = isAdmin != 0
	t.User.CreatedAt = fromUnix(uCreated)
	return t, nil
}

// --- helpers ---

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (domain.User, error) {
	var (
		u       domain.User
		isAdmin int
		created int64
	)
	if err := s.Scan(&u.ID, &u.TelegramID, &u.Username, &isAdmin, &created); err != nil {
		return domain.User{}, err
	}
	u.IsAdmin = isAdmin != 0
	u.CreatedAt = fromUnix(created)
	return u, nil
}

func scanPayment(s scanner) (domain.Payment, error) {
	var (
		p          domain.Payment
		price, due string
		created    int64
	)
	if err := s.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &price, &due, &created); err != nil {
		return domain.Payment{}, err
	}
	var err error
	if p.Price, err = parsePrice(price); err != nil {
		return domain.Payment{}, err
	}
	if p.DueDate, err = parseDate(due); err != nil {
		return domain.Payment{}, err
	}
	p.CreatedAt = fromUnix(created)
	return p, nil
}

// notFound maps sql.ErrNoRows to domain.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// constraintMessages are the texts SQLite uses when only the primary
// SQLITE_CONSTRAINT code is reported.
var constraintMessages = map[int]string{
	sqlite3.SQLITE_CONSTRAINT_UNIQUE:     "UNIQUE constraint failed",
	sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY: "FOREIGN KEY constraint failed",
}

// isConstraint reports whether err is the given extended constraint violation.
func isConstraint(err error, code int) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	if se.Code() == code {
		return true
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT &&
		strings.Contains(se.Error(), constraintMessages[code])
}
