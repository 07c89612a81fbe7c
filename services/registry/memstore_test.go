package registry

import (
	"context"
	"fmt"
	"sync"
)

// memStore is an in-memory Store used by the pipeline tests. All methods are
// mutex-guarded so concurrency tests exercise the same atomicity the Postgres
// implementation provides.
type memStore struct {
	mu        sync.Mutex
	seqs      map[EntityType]int64
	assets    map[string]Asset
	locations map[string]Location
	mutations map[string]Mutation
	users     map[string]User
	audit     []AuditLogEntry

	unavailable bool
	auditErr    error
}

func newMemStore() *memStore {
	return &memStore{
		seqs:      make(map[EntityType]int64),
		assets:    make(map[string]Asset),
		locations: make(map[string]Location),
		mutations: make(map[string]Mutation),
		users:     make(map[string]User),
	}
}

func (m *memStore) down() error {
	if m.unavailable {
		return fmt.Errorf("%w: connection refused", ErrStoreUnavailable)
	}
	return nil
}

func (m *memStore) NextSequence(_ context.Context, entity EntityType) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.down(); err != nil {
		return 0, err
	}
	m.seqs[entity]++
	return m.seqs[entity], nil
}

func (m *memStore) CreateAsset(_ context.Context, a Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.down(); err != nil {
		return err
	}
	if _, exists := m.assets[a.Identifier]; exists {
		return fmt.Errorf("%w: assets_pkey", ErrIdentifierConflict)
	}
	m.assets[a.Identifier] = a
	return nil
}

func (m *memStore) GetAsset(_ context.Context, identifier string) (Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.down(); err != nil {
		return Asset{}, err
	}
	a, ok := m.assets[identifier]
	if !ok {
		return Asset{}, &NotFoundError{Ref: "asset", ID: identifier}
	}
	return a, nil
}

func (m *memStore) CreateLocation(_ context.Context, l Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.down(); err != nil {
		return err
	}
	if _, exists := m.locations[l.Identifier]; exists {
		return fmt.Errorf("%w: locations_pkey", ErrIdentifierConflict)
	}
	m.locations[l.Identifier] = l
	return nil
}

func (m *memStore) GetLocation(_ context.Context, identifier string) (Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.down(); err != nil {
		return Location{}, err
	}
	l, ok := m.locations[identifier]
	if !ok {
		return Location{}, &NotFoundError{Ref: "location", ID: identifier}
	}
	return l, nil
}

func (m *memStore) AdjustAssetCount(_ context.Context, name string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.down(); err != nil {
		return err
	}
	for id, l := range m.locations {
		if l.Name != name {
			continue
		}
		l.AssetCount += delta
		if l.AssetCount < 0 {
			l.AssetCount = 0
		}
		m.locations[id] = l
	}
	return nil
}

func (m *memStore) CreateMutation(_ context.Context, mu Mutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.down(); err != nil {
		return err
	}
	if _, exists := m.mutations[mu.Identifier]; exists {
		return fmt.Errorf("%w: mutations_pkey", ErrIdentifierConflict)
	}
	m.mutations[mu.Identifier] = mu
	return nil
}

func (m *memStore) CreateUser(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.down(); err != nil {
		return err
	}
	if _, exists := m.users[u.Identifier]; exists {
		return fmt.Errorf("%w: users_pkey", ErrIdentifierConflict)
	}
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return &DuplicateError{Field: "email", Value: u.Email}
		}
	}
	m.users[u.Identifier] = u
	return nil
}

func (m *memStore) FindUserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.down(); err != nil {
		return nil, err
	}
	for _, u := range m.users {
		if u.Email == email {
			copied := u
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStore) AppendAudit(_ context.Context, entry AuditLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.auditErr != nil {
		return m.auditErr
	}
	if err := m.down(); err != nil {
		return err
	}
	m.audit = append(m.audit, entry)
	return nil
}

func (m *memStore) ListAudit(_ context.Context, limit int) ([]AuditLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.down(); err != nil {
		return nil, err
	}
	entries := make([]AuditLogEntry, len(m.audit))
	copy(entries, m.audit)
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *memStore) SyncSequences(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.down(); err != nil {
		return err
	}
	for entity := range idPatterns {
		var max int64
		scan := func(id string) {
			if n, ok := IdentifierSuffix(entity, id); ok && n > max {
				max = n
			}
		}
		switch entity {
		case EntityAsset:
			for id := range m.assets {
				scan(id)
			}
		case EntityLocation:
			for id := range m.locations {
				scan(id)
			}
		case EntityMutation:
			for id := range m.mutations {
				scan(id)
			}
		case EntityUser:
			for id := range m.users {
				scan(id)
			}
		}
		if max > m.seqs[entity] {
			m.seqs[entity] = max
		}
	}
	return nil
}

func (m *memStore) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.down()
}

func (m *memStore) auditEntries() []AuditLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]AuditLogEntry, len(m.audit))
	copy(entries, m.audit)
	return entries
}
