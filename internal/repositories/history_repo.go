package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/loginsentry/internal/database"
	"github.com/BradenHooton/loginsentry/internal/models"
	"github.com/BradenHooton/loginsentry/internal/services"
)

// HistoryRepository handles database operations for the login history.
// Rows are partitioned by realm; a repository only answers for realms it
// has been told it serves, reporting models.ErrRealmUnavailable for the
// rest so the resolver skips them.
type HistoryRepository struct {
	db        *database.DB
	retention time.Duration
	served    map[string]bool // empty means every realm is served
}

// NewHistoryRepository creates a new HistoryRepository. servedRealms
// limits which realms this instance answers for; pass nil to serve all.
func NewHistoryRepository(db *database.DB, retention time.Duration, servedRealms []string) *HistoryRepository {
	served := make(map[string]bool, len(servedRealms))
	for _, realm := range servedRealms {
		served[realm] = true
	}
	return &HistoryRepository{db: db, retention: retention, served: served}
}

func (r *HistoryRepository) checkRealm(realm string) error {
	if len(r.served) > 0 && !r.served[realm] {
		return fmt.Errorf("%w: %s", models.ErrRealmUnavailable, realm)
	}
	return nil
}

// HasAnyRecords reports whether the user has any login history in a realm
func (r *HistoryRepository) HasAnyRecords(ctx context.Context, userID int64, realm string) (bool, error) {
	if err := r.checkRealm(realm); err != nil {
		return false, err
	}

	query := `
		SELECT EXISTS (
			SELECT 1 FROM login_history
			WHERE user_id = $1 AND realm = $2 AND expires_at > now()
		)
	`

	var exists bool
	err := r.db.Pool.QueryRow(ctx, query, userID, realm).Scan(&exists)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

// HasMatchingNetwork reports whether the user has logged in from the
// given network prefix in a realm
func (r *HistoryRepository) HasMatchingNetwork(ctx context.Context, userID int64, realm, subnet string) (bool, error) {
	if err := r.checkRealm(realm); err != nil {
		return false, err
	}

	query := `
		SELECT EXISTS (
			SELECT 1 FROM login_history
			WHERE user_id = $1 AND realm = $2 AND ip_prefix = $3 AND expires_at > now()
		)
	`

	var exists bool
	err := r.db.Pool.QueryRow(ctx, query, userID, realm, subnet).Scan(&exists)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

// TopRealmsByActivity returns the realms where the user has the most
// recorded logins, most active first
func (r *HistoryRepository) TopRealmsByActivity(ctx context.Context, userID int64, limit int) ([]services.Realm, error) {
	query := `
		SELECT realm, COUNT(*) AS activity
		FROM login_history
		WHERE user_id = $1 AND expires_at > now()
		GROUP BY realm
		ORDER BY activity DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	realms := make([]services.Realm, 0)
	for rows.Next() {
		var realm services.Realm
		if err := rows.Scan(&realm.Name, &realm.Activity); err != nil {
			return nil, fmt.Errorf("failed to scan realm: %w", err)
		}
		realms = append(realms, realm)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return realms, nil
}

// RecordLogin stores a successful login for later known-location checks
func (r *HistoryRepository) RecordLogin(ctx context.Context, userID int64, realm, subnet string) error {
	query := `
		INSERT INTO login_history (user_id, realm, ip_prefix, expires_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.Pool.Exec(ctx, query, userID, realm, subnet, time.Now().Add(r.retention))
	return database.MapPostgresError(err)
}

// CleanupExpired removes history rows past their retention window and
// returns the number of rows deleted
func (r *HistoryRepository) CleanupExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM login_history WHERE expires_at < now()`

	result, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
