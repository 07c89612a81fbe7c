package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

const seedFixture = `
locations:
  - name: HQ
    type: building
  - name: IT Room
    type: room
users:
  - name: Ani Wijaya
    email: ani@example.com
    password: pw123456
    role: admin
assets:
  - name: Dell Laptop
    category: Electronics
    location: IT Room
    purchaseDate: "2024-01-15"
    purchasePrice: "15000000"
`

func writeSeedFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(seedFixture), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestSeedCreatesThroughPipelines(t *testing.T) {
	svc, store := newTestService(t)

	file, err := LoadSeedFile(writeSeedFixture(t))
	if err != nil {
		t.Fatalf("LoadSeedFile() error = %v", err)
	}

	if err := svc.Seed(context.Background(), "System", file); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	if len(store.locations) != 2 {
		t.Errorf("locations = %d, want 2", len(store.locations))
	}
	if len(store.users) != 1 {
		t.Errorf("users = %d, want 1", len(store.users))
	}
	if len(store.assets) != 1 {
		t.Errorf("assets = %d, want 1", len(store.assets))
	}
	// Seeded rows are audited like API-created ones.
	if got := len(store.auditEntries()); got != 4 {
		t.Errorf("audit entries = %d, want 4", got)
	}
}

func TestSeedSkipsDuplicateUsers(t *testing.T) {
	store := newMemStore()
	svc, err := NewService(store, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	ctx := context.Background()

	file := SeedFile{
		Users: []UserInput{{Name: "Ani Wijaya", Email: "ani@example.com", Password: "pw123456", Role: "admin"}},
	}

	if err := svc.Seed(ctx, "System", file); err != nil {
		t.Fatalf("first Seed() error = %v", err)
	}
	if err := svc.Seed(ctx, "System", file); err != nil {
		t.Fatalf("second Seed() error = %v, want duplicate skipped", err)
	}
	if len(store.users) != 1 {
		t.Errorf("users = %d, want 1", len(store.users))
	}
}
