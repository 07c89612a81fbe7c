package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"assetd/pkg/db"
)

// Store is the entity store adapter: the persistence contract the create
// pipelines run against. The production implementation is Postgres; tests use
// an in-memory double.
type Store interface {
	// NextSequence atomically advances and returns the per-type counter that
	// backs sequential identifiers. It never returns the same value twice for
	// one entity type, even under concurrent callers.
	NextSequence(ctx context.Context, entity EntityType) (int64, error)

	CreateAsset(ctx context.Context, a Asset) error
	GetAsset(ctx context.Context, identifier string) (Asset, error)

	CreateLocation(ctx context.Context, l Location) error
	GetLocation(ctx context.Context, identifier string) (Location, error)
	// AdjustAssetCount shifts a location's cached asset count by delta. The
	// location is addressed by name, counts never drop below zero, and unknown
	// names are a no-op.
	AdjustAssetCount(ctx context.Context, locationName string, delta int) error

	CreateMutation(ctx context.Context, m Mutation) error

	CreateUser(ctx context.Context, u User) error
	// FindUserByEmail returns nil when the address is unregistered.
	FindUserByEmail(ctx context.Context, email string) (*User, error)

	AppendAudit(ctx context.Context, entry AuditLogEntry) error
	// ListAudit returns entries newest-first; limit <= 0 means no limit.
	ListAudit(ctx context.Context, limit int) ([]AuditLogEntry, error)

	// SyncSequences reconciles the counters with the greatest numeric suffix
	// already present per entity type, for stores populated before counters
	// existed.
	SyncSequences(ctx context.Context) error

	Ping(ctx context.Context) error
}

// PGStore implements Store on a pgx connection pool.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps an open pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

var sequenceTables = map[EntityType]string{
	EntityAsset:    "assets",
	EntityLocation: "locations",
	EntityMutation: "mutations",
	EntityUser:     "users",
}

func (s *PGStore) NextSequence(ctx context.Context, entity EntityType) (int64, error) {
	var next int64
	err := db.Get(ctx, s.pool, &next, `
INSERT INTO id_sequences (entity_type, last_value)
VALUES ($1, 1)
ON CONFLICT (entity_type) DO UPDATE SET last_value = id_sequences.last_value + 1
RETURNING last_value
`, string(entity))
	if err != nil {
		return 0, unavailable(err)
	}
	return next, nil
}

func (s *PGStore) CreateAsset(ctx context.Context, a Asset) error {
	_, err := db.Exec(ctx, s.pool, `
INSERT INTO assets (identifier, name, category, status, location, purchase_date, purchase_price, condition, description, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
`, a.Identifier, a.Name, a.Category, string(a.Status), a.Location, a.PurchaseDate, a.PurchasePrice, string(a.Condition), a.Description)
	return translateInsertErr(err, "")
}

func (s *PGStore) GetAsset(ctx context.Context, identifier string) (Asset, error) {
	var a Asset
	err := db.Get(ctx, s.pool, &a, `
SELECT identifier, name, category, status, location, purchase_date, purchase_price, condition, description, created_at, updated_at
FROM assets
WHERE identifier = $1
`, identifier)
	if db.NotFound(err) {
		return Asset{}, &NotFoundError{Ref: "asset", ID: identifier}
	}
	if err != nil {
		return Asset{}, unavailable(err)
	}
	return a, nil
}

func (s *PGStore) CreateLocation(ctx context.Context, l Location) error {
	_, err := db.Exec(ctx, s.pool, `
INSERT INTO locations (identifier, name, type, parent_id, asset_count, created_at)
VALUES ($1, $2, $3, $4, $5, now())
`, l.Identifier, l.Name, string(l.Type), l.ParentID, l.AssetCount)
	return translateInsertErr(err, "")
}

func (s *PGStore) GetLocation(ctx context.Context, identifier string) (Location, error) {
	var l Location
	err := db.Get(ctx, s.pool, &l, `
SELECT identifier, name, type, parent_id, asset_count, created_at
FROM locations
WHERE identifier = $1
`, identifier)
	if db.NotFound(err) {
		return Location{}, &NotFoundError{Ref: "location", ID: identifier}
	}
	if err != nil {
		return Location{}, unavailable(err)
	}
	return l, nil
}

func (s *PGStore) AdjustAssetCount(ctx context.Context, locationName string, delta int) error {
	_, err := db.Exec(ctx, s.pool, `
UPDATE locations
SET asset_count = GREATEST(asset_count + $1, 0)
WHERE name = $2
`, delta, locationName)
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *PGStore) CreateMutation(ctx context.Context, m Mutation) error {
	_, err := db.Exec(ctx, s.pool, `
INSERT INTO mutations (identifier, asset_id, asset_name, from_location, to_location, date, status, requester, notes, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
`, m.Identifier, m.AssetID, m.AssetName, m.FromLocation, m.ToLocation, m.Date, string(m.Status), m.Requester, m.Notes)
	return translateInsertErr(err, "")
}

func (s *PGStore) CreateUser(ctx context.Context, u User) error {
	_, err := db.Exec(ctx, s.pool, `
INSERT INTO users (identifier, name, email, password_hash, role, status, avatar, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
`, u.Identifier, u.Name, u.Email, u.PasswordHash, string(u.Role), string(u.Status), u.Avatar)
	return translateInsertErr(err, u.Email)
}

func (s *PGStore) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := db.Get(ctx, s.pool, &u, `
SELECT identifier, name, email, password_hash, role, status, avatar, created_at, updated_at
FROM users
WHERE email = $1
`, email)
	if db.NotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return &u, nil
}

type auditRow struct {
	ID      string `db:"id"`
	Actor   string `db:"actor"`
	Action  string `db:"action"`
	Module  string `db:"module"`
	Details string `db:"details"`
	Meta    []byte `db:"meta"`
	Ts      string `db:"ts"`
}

func (s *PGStore) AppendAudit(ctx context.Context, entry AuditLogEntry) error {
	metaBytes, err := json.Marshal(entry.Meta)
	if err != nil {
		return err
	}

	_, err = db.Exec(ctx, s.pool, `
INSERT INTO audit_logs (id, actor, action, module, details, meta, ts)
VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
`, entry.ID, entry.Actor, string(entry.Action), entry.Module, entry.Details, metaBytes, entry.Timestamp)
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *PGStore) ListAudit(ctx context.Context, limit int) ([]AuditLogEntry, error) {
	query := `
SELECT id, actor, action, module, details, meta, ts
FROM audit_logs
ORDER BY ts DESC
`
	args := []any{}
	if limit > 0 {
		query += "LIMIT $1\n"
		args = append(args, limit)
	}

	var rows []auditRow
	if err := db.Select(ctx, s.pool, &rows, query, args...); err != nil {
		return nil, unavailable(err)
	}

	entries := make([]AuditLogEntry, 0, len(rows))
	for _, r := range rows {
		entry, err := r.toEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r auditRow) toEntry() (AuditLogEntry, error) {
	entry := AuditLogEntry{
		Timestamp: r.Ts,
		Actor:     r.Actor,
		Action:    AuditAction(r.Action),
		Module:    r.Module,
		Details:   r.Details,
	}
	if err := entry.ID.UnmarshalText([]byte(r.ID)); err != nil {
		return AuditLogEntry{}, fmt.Errorf("decode audit id: %w", err)
	}
	if len(r.Meta) > 0 {
		if err := json.Unmarshal(r.Meta, &entry.Meta); err != nil {
			return AuditLogEntry{}, fmt.Errorf("decode audit meta: %w", err)
		}
	}
	return entry, nil
}

func (s *PGStore) SyncSequences(ctx context.Context) error {
	for entity, table := range sequenceTables {
		query := fmt.Sprintf(`
INSERT INTO id_sequences (entity_type, last_value)
SELECT $1, COALESCE(MAX(NULLIF(SUBSTRING(identifier FROM '[0-9]+$'), '')::bigint), 0)
FROM %s
ON CONFLICT (entity_type) DO UPDATE SET last_value = GREATEST(id_sequences.last_value, EXCLUDED.last_value)
`, table)
		if _, err := db.Exec(ctx, s.pool, query, string(entity)); err != nil {
			return unavailable(err)
		}
	}
	return nil
}

func (s *PGStore) Ping(ctx context.Context) error {
	if err := db.Ping(ctx, s.pool); err != nil {
		return unavailable(err)
	}
	return nil
}

// translateInsertErr maps unique violations from create statements onto the
// failure taxonomy: the email index becomes a DuplicateError, any identifier
// primary key becomes the retryable ErrIdentifierConflict.
func translateInsertErr(err error, email string) error {
	if err == nil {
		return nil
	}
	if constraint, ok := db.UniqueViolation(err); ok {
		if strings.Contains(constraint, "email") {
			return &DuplicateError{Field: "email", Value: email}
		}
		return fmt.Errorf("%w: %s", ErrIdentifierConflict, constraint)
	}
	return unavailable(err)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
