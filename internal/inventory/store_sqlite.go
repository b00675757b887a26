package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/matijazezelj/peerscope/pkg/models"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS networks (
    id              TEXT PRIMARY KEY,
    ordinal         INTEGER NOT NULL,
    generation      INTEGER NOT NULL,
    kind            TEXT NOT NULL,
    name            TEXT,
    resource_group  TEXT,
    subscription_id TEXT,
    last_seen       DATETIME NOT NULL,
    first_seen      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS peerings (
    network_id     TEXT NOT NULL REFERENCES networks(id) ON DELETE CASCADE,
    position       INTEGER NOT NULL,
    name           TEXT,
    remote_network TEXT NOT NULL,
    state          TEXT NOT NULL,
    PRIMARY KEY (network_id, position)
);

CREATE INDEX IF NOT EXISTS idx_networks_ordinal ON networks(ordinal);
CREATE INDEX IF NOT EXISTS idx_networks_kind ON networks(kind);
CREATE INDEX IF NOT EXISTS idx_networks_subscription ON networks(subscription_id);
CREATE INDEX IF NOT EXISTS idx_peerings_remote ON peerings(remote_network);

CREATE TABLE IF NOT EXISTS subscriptions (
    subscription_id TEXT PRIMARY KEY,
    ordinal         INTEGER NOT NULL,
    name            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS refreshes (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    source      TEXT NOT NULL,
    source_path TEXT NOT NULL,
    started_at  DATETIME NOT NULL,
    finished_at DATETIME,
    networks    INTEGER DEFAULT 0,
    peerings    INTEGER DEFAULT 0,
    status      TEXT DEFAULT 'running'
);
`

const networkColumns = `id, kind, name, resource_group, subscription_id, last_seen, first_seen`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Init creates the database schema if it doesn't exist.
func (s *SQLiteStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ReplaceSnapshot swaps the stored snapshot inside one transaction. Networks
// that survive a refresh keep their first_seen timestamp.
func (s *SQLiteStore) ReplaceSnapshot(ctx context.Context, networks []models.StoredNetwork, subs []models.Subscription) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var gen int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(generation), 0) + 1 FROM networks`).Scan(&gen); err != nil {
		return fmt.Errorf("reading generation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM peerings`); err != nil {
		return fmt.Errorf("clearing peerings: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	seen := make(map[string]bool, len(networks))
	for i, n := range networks {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true

		lastSeen := now
		if !n.LastSeen.IsZero() {
			lastSeen = n.LastSeen.UTC().Format(time.RFC3339)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO networks (id, ordinal, generation, kind, name, resource_group, subscription_id, last_seen, first_seen)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				ordinal = excluded.ordinal,
				generation = excluded.generation,
				kind = excluded.kind,
				name = excluded.name,
				resource_group = excluded.resource_group,
				subscription_id = excluded.subscription_id,
				last_seen = excluded.last_seen
		`, n.ID, i, gen, string(n.Kind), n.Name, n.ResourceGroup, n.SubscriptionID, lastSeen, lastSeen)
		if err != nil {
			return fmt.Errorf("storing network %s: %w", n.ID, err)
		}

		for pos, p := range n.Peerings {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO peerings (network_id, position, name, remote_network, state) VALUES (?, ?, ?, ?, ?)
			`, n.ID, pos, p.Name, p.RemoteNetwork, string(p.State))
			if err != nil {
				return fmt.Errorf("storing peering %d of %s: %w", pos, n.ID, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM networks WHERE generation <> ?`, gen); err != nil {
		return fmt.Errorf("pruning networks: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM subscriptions`); err != nil {
		return fmt.Errorf("clearing subscriptions: %w", err)
	}
	for i, sub := range subs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO subscriptions (subscription_id, ordinal, name) VALUES (?, ?, ?)
			ON CONFLICT(subscription_id) DO NOTHING
		`, sub.SubscriptionID, i, sub.Name)
		if err != nil {
			return fmt.Errorf("storing subscription %s: %w", sub.SubscriptionID, err)
		}
	}

	return tx.Commit()
}

// GetNetwork retrieves a single network by ID.
func (s *SQLiteStore) GetNetwork(ctx context.Context, id string) (*models.StoredNetwork, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+networkColumns+` FROM networks WHERE id = ?`, id)
	n, err := scanNetwork(row)
	if err != nil || n == nil {
		return nil, err
	}

	peerings, err := s.peeringsByNetwork(ctx, id)
	if err != nil {
		return nil, err
	}
	n.Peerings = peerings[id]
	if n.Peerings == nil {
		n.Peerings = []models.PeeringRecord{}
	}
	return n, nil
}

func scanNetwork(row interface{ Scan(dest ...any) error }) (*models.StoredNetwork, error) {
	var n models.StoredNetwork
	var name, rg, sub sql.NullString
	var lastSeen, firstSeen string

	err := row.Scan(&n.ID, &n.Kind, &name, &rg, &sub, &lastSeen, &firstSeen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	n.Name = name.String
	n.ResourceGroup = rg.String
	n.SubscriptionID = sub.String
	n.LastSeen, _ = time.Parse(time.RFC3339, lastSeen)
	n.FirstSeen, _ = time.Parse(time.RFC3339, firstSeen)
	return &n, nil
}

// peeringsByNetwork loads peerings keyed by owning network. An empty id loads all.
func (s *SQLiteStore) peeringsByNetwork(ctx context.Context, id string) (map[string][]models.PeeringRecord, error) {
	query := `SELECT network_id, name, remote_network, state FROM peerings`
	var args []any
	if id != "" {
		query += ` WHERE network_id = ?`
		args = append(args, id)
	}
	query += ` ORDER BY network_id, position`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // best-effort cleanup

	out := make(map[string][]models.PeeringRecord)
	for rows.Next() {
		var networkID string
		var name sql.NullString
		var p models.PeeringRecord
		if err := rows.Scan(&networkID, &name, &p.RemoteNetwork, &p.State); err != nil {
			return nil, err
		}
		p.Name = name.String
		out[networkID] = append(out[networkID], p)
	}
	return out, rows.Err()
}

// ListNetworks returns networks matching the filter, in snapshot order.
func (s *SQLiteStore) ListNetworks(ctx context.Context, filter NetworkFilter) ([]models.StoredNetwork, error) {
	query := `SELECT ` + networkColumns + ` FROM networks WHERE 1=1`
	var args []any

	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, filter.Kind)
	}
	if filter.SubscriptionID != "" {
		query += ` AND subscription_id = ?`
		args = append(args, filter.SubscriptionID)
	}
	if filter.ResourceGroup != "" {
		query += ` AND resource_group = ? COLLATE NOCASE`
		args = append(args, filter.ResourceGroup)
	}

	query += ` ORDER BY ordinal`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // best-effort cleanup

	var networks []models.StoredNetwork
	for rows.Next() {
		n, err := scanNetwork(rows)
		if err != nil {
			return nil, err
		}
		networks = append(networks, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	peerings, err := s.peeringsByNetwork(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("loading peerings: %w", err)
	}
	for i := range networks {
		networks[i].Peerings = peerings[networks[i].ID]
		if networks[i].Peerings == nil {
			networks[i].Peerings = []models.PeeringRecord{}
		}
	}
	return networks, nil
}

// ListSubscriptions returns the subscription table in snapshot order.
func (s *SQLiteStore) ListSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT subscription_id, name FROM subscriptions ORDER BY ordinal`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // best-effort cleanup

	var subs []models.Subscription
	for rows.Next() {
		var sub models.Subscription
		if err := rows.Scan(&sub.SubscriptionID, &sub.Name); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// Snapshot returns the stored inventory as build input.
func (s *SQLiteStore) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	networks, err := s.ListNetworks(ctx, NetworkFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing networks: %w", err)
	}
	subs, err := s.ListSubscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}

	snap := &models.Snapshot{
		Subscriptions: subs,
		Networks:      make([]models.NetworkResource, len(networks)),
	}
	if snap.Subscriptions == nil {
		snap.Subscriptions = []models.Subscription{}
	}
	for i, n := range networks {
		snap.Networks[i] = n.NetworkResource
	}
	return snap, nil
}

// NetworkCount returns the total number of networks.
func (s *SQLiteStore) NetworkCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM networks`).Scan(&count)
	return count, err
}

// PeeringCount returns the total number of directed peering records.
func (s *SQLiteStore) PeeringCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM peerings`).Scan(&count)
	return count, err
}

// NetworkCountByKind returns network counts grouped by kind.
func (s *SQLiteStore) NetworkCountByKind(ctx context.Context) (map[string]int, error) {
	return s.countBy(ctx, `SELECT kind, COUNT(*) FROM networks GROUP BY kind ORDER BY kind`)
}

// PeeringCountByState returns peering counts grouped by state.
func (s *SQLiteStore) PeeringCountByState(ctx context.Context) (map[string]int, error) {
	return s.countBy(ctx, `SELECT state, COUNT(*) FROM peerings GROUP BY state ORDER BY state`)
}

func (s *SQLiteStore) countBy(ctx context.Context, query string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // best-effort cleanup

	counts := make(map[string]int)
	for rows.Next() {
		var k string
		var c int
		if err := rows.Scan(&k, &c); err != nil {
			return nil, err
		}
		counts[k] = c
	}
	return counts, rows.Err()
}

// RecordRefresh inserts a new refresh record and returns its ID.
func (s *SQLiteStore) RecordRefresh(ctx context.Context, r Refresh) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO refreshes (source, source_path, started_at, status) VALUES (?, ?, ?, ?)
	`, r.Source, r.SourcePath, r.StartedAt.Format(time.RFC3339), r.Status)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateRefresh updates a refresh record with its final status and counts.
func (s *SQLiteStore) UpdateRefresh(ctx context.Context, id int64, status string, networks, peerings int) error {
	now := time.Now().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		UPDATE refreshes SET status = ?, networks = ?, peerings = ?, finished_at = ? WHERE id = ?
	`, status, networks, peerings, now, id)
	return err
}

// ListRefreshes returns the most recent refresh records, up to limit.
func (s *SQLiteStore) ListRefreshes(ctx context.Context, limit int) ([]Refresh, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, source_path, started_at, finished_at, networks, peerings, status
		FROM refreshes ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // best-effort cleanup

	var refreshes []Refresh
	for rows.Next() {
		var r Refresh
		var finishedAt sql.NullString
		var startedAt string
		if err := rows.Scan(&r.ID, &r.Source, &r.SourcePath, &startedAt, &finishedAt, &r.Networks, &r.Peerings, &r.Status); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		if finishedAt.Valid {
			t, _ := time.Parse(time.RFC3339, finishedAt.String)
			r.FinishedAt = &t
		}
		refreshes = append(refreshes, r)
	}
	return refreshes, rows.Err()
}

// Backup writes a consistent copy of the database to path.
func (s *SQLiteStore) Backup(ctx context.Context, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating backup directory: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return fmt.Errorf("vacuum into %s: %w", path, err)
	}
	return nil
}
