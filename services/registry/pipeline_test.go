package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	svc, err := NewService(store, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc, store
}

func validAssetInput() AssetInput {
	return AssetInput{
		Name:          "Dell Laptop",
		Category:      "Electronics",
		Location:      "IT Room",
		PurchaseDate:  "2024-01-15",
		PurchasePrice: json.Number("15000000"),
		Description:   "",
	}
}

func TestCreateAssetFirstIdentifier(t *testing.T) {
	svc, store := newTestService(t)

	id, err := svc.CreateAsset(context.Background(), "System", validAssetInput())
	if err != nil {
		t.Fatalf("CreateAsset() error = %v", err)
	}
	if id != "AST-0001" {
		t.Fatalf("CreateAsset() id = %q, want AST-0001", id)
	}

	asset, err := store.GetAsset(context.Background(), id)
	if err != nil {
		t.Fatalf("GetAsset() error = %v", err)
	}
	if asset.Status != AssetStatusActive {
		t.Errorf("asset status = %q, want active", asset.Status)
	}
	if asset.Condition != AssetConditionGood {
		t.Errorf("asset condition = %q, want good", asset.Condition)
	}

	entries := store.auditEntries()
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(entries))
	}
	entry := entries[0]
	if entry.Action != AuditActionCreate {
		t.Errorf("audit action = %q, want CREATE", entry.Action)
	}
	if entry.Module != "Asset" {
		t.Errorf("audit module = %q, want Asset", entry.Module)
	}
	if !strings.Contains(entry.Details, "Dell Laptop") || !strings.Contains(entry.Details, "AST-0001") {
		t.Errorf("audit details = %q, want name and identifier included", entry.Details)
	}
	if entry.Actor != "System" {
		t.Errorf("audit actor = %q, want System", entry.Actor)
	}
}

func TestCreateIdentifiersSequentialPerType(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	patterns := map[EntityType]*regexp.Regexp{
		EntityAsset:    regexp.MustCompile(`^AST-\d{4}$`),
		EntityLocation: regexp.MustCompile(`^LOC-\d{3}$`),
		EntityUser:     regexp.MustCompile(`^USR-\d{3}$`),
	}

	create := map[EntityType]func(i int) (string, error){
		EntityAsset: func(i int) (string, error) {
			in := validAssetInput()
			in.Name = fmt.Sprintf("Asset %d", i)
			return svc.CreateAsset(ctx, "System", in)
		},
		EntityLocation: func(i int) (string, error) {
			return svc.CreateLocation(ctx, "System", LocationInput{
				Name: fmt.Sprintf("Building %d", i),
				Type: "building",
			})
		},
		EntityUser: func(i int) (string, error) {
			return svc.CreateUser(ctx, "System", UserInput{
				Name:     fmt.Sprintf("User %d", i),
				Email:    fmt.Sprintf("user%d@example.com", i),
				Password: "s3cret-pass",
				Role:     "staff",
			})
		},
	}

	for entity, fn := range create {
		var prev int64
		for i := 0; i < 3; i++ {
			id, err := fn(i)
			if err != nil {
				t.Fatalf("%s create %d error = %v", entity, i, err)
			}
			if !patterns[entity].MatchString(id) {
				t.Fatalf("%s id %q does not match pattern", entity, id)
			}
			n, ok := IdentifierSuffix(entity, id)
			if !ok {
				t.Fatalf("%s id %q has no parseable suffix", entity, id)
			}
			if prev != 0 && n != prev+1 {
				t.Fatalf("%s suffix = %d after %d, want strictly sequential", entity, n, prev)
			}
			prev = n
		}
	}
}

func TestCreateAssetConcurrentIdentifiersUnique(t *testing.T) {
	svc, _ := newTestService(t)

	const workers = 50
	ids := make(chan string, workers)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := validAssetInput()
			in.Name = fmt.Sprintf("Concurrent Asset %d", i)
			id, err := svc.CreateAsset(context.Background(), "System", in)
			if err != nil {
				t.Errorf("CreateAsset() error = %v", err)
				return
			}
			ids <- id
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("identifier %q issued twice", id)
		}
		seen[id] = true
	}
	if len(seen) != workers {
		t.Fatalf("unique identifiers = %d, want %d", len(seen), workers)
	}
}

func TestCreateAssetValidationFailureHasNoSideEffects(t *testing.T) {
	svc, store := newTestService(t)

	in := validAssetInput()
	in.Name = "   "

	_, err := svc.CreateAsset(context.Background(), "System", in)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("CreateAsset() error = %v, want ValidationError", err)
	}
	if msg, ok := verr.FieldMessage("name"); !ok || msg != "Name is required" {
		t.Errorf("name field message = %q, ok = %v", msg, ok)
	}
	if got := len(store.auditEntries()); got != 0 {
		t.Errorf("audit entries = %d, want 0", got)
	}
	if len(store.assets) != 0 {
		t.Errorf("assets persisted = %d, want 0", len(store.assets))
	}
}

func TestCreateMutationSameLocationRejected(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	assetID, err := svc.CreateAsset(ctx, "System", validAssetInput())
	if err != nil {
		t.Fatalf("CreateAsset() error = %v", err)
	}
	auditBefore := len(store.auditEntries())

	_, err = svc.CreateMutation(ctx, "System", MutationInput{
		AssetID:      assetID,
		FromLocation: "IT Room",
		ToLocation:   "IT Room",
		Date:         "2024-02-01",
		Requester:    "Budi",
	})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("CreateMutation() error = %v, want ValidationError", err)
	}
	msg, ok := verr.FieldMessage("toLocation")
	if !ok {
		t.Fatalf("no error attached to toLocation: %v", verr)
	}
	if !strings.Contains(msg, "must not be the same") {
		t.Errorf("toLocation message = %q, want 'must not be the same'", msg)
	}
	if got := len(store.auditEntries()); got != auditBefore {
		t.Errorf("audit entries = %d, want %d", got, auditBefore)
	}
}

func TestCreateMutationMissingAssetRejected(t *testing.T) {
	svc, store := newTestService(t)

	_, err := svc.CreateMutation(context.Background(), "System", MutationInput{
		AssetID:      "AST-9999",
		FromLocation: "IT Room",
		ToLocation:   "Warehouse",
		Date:         "2024-02-01",
		Requester:    "Budi",
	})

	var nerr *NotFoundError
	if !errors.As(err, &nerr) {
		t.Fatalf("CreateMutation() error = %v, want NotFoundError", err)
	}
	if nerr.Ref != "asset" {
		t.Errorf("NotFoundError ref = %q, want asset", nerr.Ref)
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %q, want 'not found'", err.Error())
	}
	if got := len(store.auditEntries()); got != 0 {
		t.Errorf("audit entries = %d, want 0", got)
	}
}

func TestCreateMutationSnapshotsAssetName(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	assetID, err := svc.CreateAsset(ctx, "System", validAssetInput())
	if err != nil {
		t.Fatalf("CreateAsset() error = %v", err)
	}

	mutID, err := svc.CreateMutation(ctx, "System", MutationInput{
		AssetID:      assetID,
		FromLocation: "IT Room",
		ToLocation:   "Warehouse",
		Date:         "2024-02-01",
		Requester:    "Budi",
	})
	if err != nil {
		t.Fatalf("CreateMutation() error = %v", err)
	}
	if mutID != "MUT-001" {
		t.Errorf("mutation id = %q, want MUT-001", mutID)
	}

	mut := store.mutations[mutID]
	if mut.AssetName != "Dell Laptop" {
		t.Errorf("mutation assetName = %q, want snapshot of asset name", mut.AssetName)
	}
	if mut.Status != MutationStatusProcessing {
		t.Errorf("mutation status = %q, want processing", mut.Status)
	}

	entries := store.auditEntries()
	last := entries[len(entries)-1]
	if last.Module != "Mutation" {
		t.Errorf("audit module = %q, want Mutation", last.Module)
	}
	for _, want := range []string{"Dell Laptop", "IT Room", "Warehouse", mutID} {
		if !strings.Contains(last.Details, want) {
			t.Errorf("audit details = %q, want %q included", last.Details, want)
		}
	}
}

func TestCreateUserDuplicateEmailRejected(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	in := UserInput{
		Name:     "Ani Wijaya",
		Email:    "ani@example.com",
		Password: "s3cret-pass",
		Role:     "manager",
	}

	if _, err := svc.CreateUser(ctx, "System", in); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	auditBefore := len(store.auditEntries())

	in.Name = "Ani Duplicate"
	_, err := svc.CreateUser(ctx, "System", in)

	var derr *DuplicateError
	if !errors.As(err, &derr) {
		t.Fatalf("CreateUser() error = %v, want DuplicateError", err)
	}
	if !strings.Contains(err.Error(), "already registered") {
		t.Errorf("error = %q, want 'already registered'", err.Error())
	}
	if got := len(store.auditEntries()); got != auditBefore {
		t.Errorf("audit entries = %d, want %d", got, auditBefore)
	}
}

func TestCreateUserDefaultsAndHashedPassword(t *testing.T) {
	svc, store := newTestService(t)

	id, err := svc.CreateUser(context.Background(), "System", UserInput{
		Name:     "Dewi Lestari",
		Email:    "Dewi@Example.com",
		Password: "s3cret-pass",
		Role:     "staff",
	})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	user := store.users[id]
	if user.Status != UserStatusActive {
		t.Errorf("user status = %q, want active", user.Status)
	}
	if user.Avatar != "DL" {
		t.Errorf("user avatar = %q, want DL", user.Avatar)
	}
	if user.Email != "dewi@example.com" {
		t.Errorf("user email = %q, want lower-cased", user.Email)
	}
	if user.PasswordHash == "" || user.PasswordHash == "s3cret-pass" {
		t.Errorf("password stored without hashing")
	}
}

func TestCreateUserOverlongPasswordIsValidationFailure(t *testing.T) {
	svc, store := newTestService(t)

	_, err := svc.CreateUser(context.Background(), "System", UserInput{
		Name:     "Ani Wijaya",
		Email:    "ani@example.com",
		Password: strings.Repeat("x", 100),
		Role:     "staff",
	})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("CreateUser() error = %v, want ValidationError", err)
	}
	if errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("caller-input fault surfaced as store unavailability: %v", err)
	}
	if msg, ok := verr.FieldMessage("password"); !ok || !strings.Contains(msg, "72") {
		t.Errorf("password field message = %q, ok = %v, want byte-limit violation", msg, ok)
	}
	if len(store.users) != 0 {
		t.Errorf("users persisted = %d, want 0", len(store.users))
	}
	if got := len(store.auditEntries()); got != 0 {
		t.Errorf("audit entries = %d, want 0", got)
	}
}

func TestCreateLocationParentMustExist(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateLocation(ctx, "System", LocationInput{
		Name:     "Second Floor",
		Type:     "floor",
		ParentID: "LOC-999",
	})
	var nerr *NotFoundError
	if !errors.As(err, &nerr) {
		t.Fatalf("CreateLocation() error = %v, want NotFoundError", err)
	}
	if got := len(store.auditEntries()); got != 0 {
		t.Errorf("audit entries = %d, want 0", got)
	}

	parentID, err := svc.CreateLocation(ctx, "System", LocationInput{Name: "HQ", Type: "building"})
	if err != nil {
		t.Fatalf("CreateLocation() error = %v", err)
	}

	childID, err := svc.CreateLocation(ctx, "System", LocationInput{
		Name:     "Second Floor",
		Type:     "floor",
		ParentID: parentID,
	})
	if err != nil {
		t.Fatalf("CreateLocation() with parent error = %v", err)
	}

	child := store.locations[childID]
	if child.ParentID == nil || *child.ParentID != parentID {
		t.Errorf("child parent = %v, want %q", child.ParentID, parentID)
	}
	if child.AssetCount != 0 {
		t.Errorf("child assetCount = %d, want 0", child.AssetCount)
	}
}

func TestCreateAssetStoreUnavailable(t *testing.T) {
	svc, store := newTestService(t)
	store.unavailable = true

	_, err := svc.CreateAsset(context.Background(), "System", validAssetInput())
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("CreateAsset() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestCreateAssetAuditFailureStillSucceeds(t *testing.T) {
	svc, store := newTestService(t)
	store.auditErr = errors.New("audit table gone")

	id, err := svc.CreateAsset(context.Background(), "System", validAssetInput())
	if err != nil {
		t.Fatalf("CreateAsset() error = %v, want success despite audit failure", err)
	}
	if _, ok := store.assets[id]; !ok {
		t.Fatalf("asset %q not persisted", id)
	}
	if got := len(store.auditEntries()); got != 0 {
		t.Errorf("audit entries = %d, want 0", got)
	}
}

func TestEverySuccessfulCreateRecordsOneAuditEntry(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	assetID, err := svc.CreateAsset(ctx, "System", validAssetInput())
	if err != nil {
		t.Fatalf("CreateAsset() error = %v", err)
	}
	if _, err := svc.CreateLocation(ctx, "System", LocationInput{Name: "HQ", Type: "building"}); err != nil {
		t.Fatalf("CreateLocation() error = %v", err)
	}
	if _, err := svc.CreateMutation(ctx, "System", MutationInput{
		AssetID:      assetID,
		FromLocation: "IT Room",
		ToLocation:   "Warehouse",
		Date:         "2024-02-01",
		Requester:    "Budi",
	}); err != nil {
		t.Fatalf("CreateMutation() error = %v", err)
	}
	if _, err := svc.CreateUser(ctx, "System", UserInput{
		Name:     "Ani Wijaya",
		Email:    "ani@example.com",
		Password: "s3cret-pass",
		Role:     "admin",
	}); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	entries := store.auditEntries()
	if len(entries) != 4 {
		t.Fatalf("audit entries = %d, want 4", len(entries))
	}

	modules := make(map[string]int)
	for _, entry := range entries {
		if entry.Action != AuditActionCreate {
			t.Errorf("audit action = %q, want CREATE", entry.Action)
		}
		if entry.Timestamp == "" {
			t.Errorf("audit timestamp empty")
		}
		modules[entry.Module]++
	}
	for _, module := range []string{"Asset", "Location", "Mutation", "User"} {
		if modules[module] != 1 {
			t.Errorf("audit entries for %s = %d, want 1", module, modules[module])
		}
	}
}

func TestPersistRetriesIdentifierConflict(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	// Simulate a row created by another writer that already owns AST-0001.
	store.assets["AST-0001"] = Asset{Identifier: "AST-0001", Name: "Squatter"}

	id, err := svc.CreateAsset(ctx, "System", validAssetInput())
	if err != nil {
		t.Fatalf("CreateAsset() error = %v", err)
	}
	if id != "AST-0002" {
		t.Fatalf("CreateAsset() id = %q, want AST-0002 after conflict retry", id)
	}
}
