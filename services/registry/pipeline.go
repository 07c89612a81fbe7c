package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/crypto/bcrypt"

	"assetd/pkg/bus"
)

const (
	assetCreatedSubject    = "registry.asset.created"
	locationCreatedSubject = "registry.location.created"
	mutationCreatedSubject = "registry.mutation.created"
	userCreatedSubject     = "registry.user.created"

	// identifierRetries bounds how often a create retries with a fresh
	// identifier after losing a unique-index race to a concurrent writer.
	identifierRetries = 2
)

// Service runs the create pipelines: validate, cross-entity checks, identifier
// issuance, persistence, audit recording, event publication. Each create call
// runs its steps sequentially and short-circuits on the first failure; no
// store or audit write happens once validation or a business rule fails.
//
// Audit recording after a successful persist is best-effort: when it fails the
// entity row stays, the failure is logged and counted, and the create still
// reports success. Primary-entity durability outranks trail completeness.
type Service struct {
	store  Store
	audit  *Recorder
	events *bus.Bus
	log    zerolog.Logger
}

// NewService wires the pipeline dependencies. events may be nil when no bus is
// configured.
func NewService(store Store, events *bus.Bus, logger zerolog.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	recorder, err := NewRecorder(store)
	if err != nil {
		return nil, err
	}
	return &Service{
		store:  store,
		audit:  recorder,
		events: events,
		log:    logger,
	}, nil
}

// CreateAsset registers a new asset and returns its identifier. New assets
// start active and in good condition.
func (s *Service) CreateAsset(ctx context.Context, actor string, in AssetInput) (string, error) {
	if verr := ValidateAsset(in); verr != nil {
		return "", s.reject(EntityAsset, verr)
	}

	price, _ := in.PurchasePrice.Float64()
	asset := Asset{
		Name:          strings.TrimSpace(in.Name),
		Category:      strings.TrimSpace(in.Category),
		Status:        AssetStatusActive,
		Location:      strings.TrimSpace(in.Location),
		PurchaseDate:  strings.TrimSpace(in.PurchaseDate),
		PurchasePrice: price,
		Condition:     AssetConditionGood,
		Description:   strings.TrimSpace(in.Description),
	}

	id, err := s.persist(ctx, EntityAsset, func(identifier string) error {
		asset.Identifier = identifier
		return s.store.CreateAsset(ctx, asset)
	})
	if err != nil {
		return "", s.reject(EntityAsset, err)
	}

	createsTotal.WithLabelValues("Asset", "ok").Inc()
	s.recordCreate(ctx, actor, EntityAsset, id,
		fmt.Sprintf("Created asset %q (%s)", asset.Name, id),
		map[string]any{"identifier": id, "name": asset.Name, "category": asset.Category})
	s.publish(ctx, assetCreatedSubject, assetCreatedEvent{Identifier: id, Name: asset.Name, Location: asset.Location})
	return id, nil
}

// CreateLocation registers a new location node. A parent reference, when
// present, must name an existing location.
func (s *Service) CreateLocation(ctx context.Context, actor string, in LocationInput) (string, error) {
	if verr := ValidateLocation(in); verr != nil {
		return "", s.reject(EntityLocation, verr)
	}

	location := Location{
		Name:       strings.TrimSpace(in.Name),
		Type:       LocationType(strings.TrimSpace(in.Type)),
		AssetCount: 0,
	}
	if parent := strings.TrimSpace(in.ParentID); parent != "" {
		if _, err := s.store.GetLocation(ctx, parent); err != nil {
			return "", s.reject(EntityLocation, err)
		}
		location.ParentID = &parent
	}

	id, err := s.persist(ctx, EntityLocation, func(identifier string) error {
		location.Identifier = identifier
		return s.store.CreateLocation(ctx, location)
	})
	if err != nil {
		return "", s.reject(EntityLocation, err)
	}

	createsTotal.WithLabelValues("Location", "ok").Inc()
	s.recordCreate(ctx, actor, EntityLocation, id,
		fmt.Sprintf("Created location %q (%s)", location.Name, id),
		map[string]any{"identifier": id, "name": location.Name, "type": string(location.Type)})
	s.publish(ctx, locationCreatedSubject, locationCreatedEvent{Identifier: id, Name: location.Name, Type: string(location.Type)})
	return id, nil
}

// CreateMutation records an asset relocation. The referenced asset must exist;
// its name is snapshotted onto the mutation at this moment and never rederived.
func (s *Service) CreateMutation(ctx context.Context, actor string, in MutationInput) (string, error) {
	if verr := ValidateMutation(in); verr != nil {
		return "", s.reject(EntityMutation, verr)
	}

	asset, err := s.store.GetAsset(ctx, strings.TrimSpace(in.AssetID))
	if err != nil {
		return "", s.reject(EntityMutation, err)
	}

	mutation := Mutation{
		AssetID:      asset.Identifier,
		AssetName:    asset.Name,
		FromLocation: strings.TrimSpace(in.FromLocation),
		ToLocation:   strings.TrimSpace(in.ToLocation),
		Date:         strings.TrimSpace(in.Date),
		Status:       MutationStatusProcessing,
		Requester:    strings.TrimSpace(in.Requester),
		Notes:        strings.TrimSpace(in.Notes),
	}

	id, err := s.persist(ctx, EntityMutation, func(identifier string) error {
		mutation.Identifier = identifier
		return s.store.CreateMutation(ctx, mutation)
	})
	if err != nil {
		return "", s.reject(EntityMutation, err)
	}

	createsTotal.WithLabelValues("Mutation", "ok").Inc()
	s.recordCreate(ctx, actor, EntityMutation, id,
		fmt.Sprintf("Created mutation %s for asset %q from %s to %s",
			id, mutation.AssetName, mutation.FromLocation, mutation.ToLocation),
		map[string]any{"identifier": id, "assetId": mutation.AssetID, "assetName": mutation.AssetName})
	s.publish(ctx, mutationCreatedSubject, mutationCreatedEvent{
		Identifier:   id,
		AssetID:      mutation.AssetID,
		FromLocation: mutation.FromLocation,
		ToLocation:   mutation.ToLocation,
	})
	return id, nil
}

// CreateUser registers a new account. The email pre-check catches duplicates
// early; the unique index on users.email closes the race the pre-check leaves
// open, so a concurrent duplicate still surfaces as DuplicateError.
func (s *Service) CreateUser(ctx context.Context, actor string, in UserInput) (string, error) {
	if verr := ValidateUser(in); verr != nil {
		return "", s.reject(EntityUser, verr)
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	existing, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return "", s.reject(EntityUser, err)
	}
	if existing != nil {
		return "", s.reject(EntityUser, &DuplicateError{Field: "email", Value: email})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", s.reject(EntityUser, err)
	}

	name := strings.TrimSpace(in.Name)
	user := User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         UserRole(strings.TrimSpace(in.Role)),
		Status:       UserStatusActive,
		Avatar:       avatarFor(name),
	}

	id, err := s.persist(ctx, EntityUser, func(identifier string) error {
		user.Identifier = identifier
		return s.store.CreateUser(ctx, user)
	})
	if err != nil {
		return "", s.reject(EntityUser, err)
	}

	createsTotal.WithLabelValues("User", "ok").Inc()
	s.recordCreate(ctx, actor, EntityUser, id,
		fmt.Sprintf("Created user %q (%s)", user.Name, id),
		map[string]any{"identifier": id, "name": user.Name, "role": string(user.Role)})
	s.publish(ctx, userCreatedSubject, userCreatedEvent{Identifier: id, Name: user.Name, Role: string(user.Role)})
	return id, nil
}

// persist issues a fresh identifier and runs the entity write, retrying with a
// new identifier when a concurrent create of the same type won the unique
// index first.
func (s *Service) persist(ctx context.Context, entity EntityType, write func(identifier string) error) (string, error) {
	var issued string

	backoff := retry.WithMaxRetries(identifierRetries, retry.NewConstant(10*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		n, err := s.store.NextSequence(ctx, entity)
		if err != nil {
			return err
		}
		issued = FormatIdentifier(entity, n)

		if err := write(issued); err != nil {
			if errors.Is(err, ErrIdentifierConflict) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return issued, nil
}

// recordCreate appends the CREATE audit entry for an already persisted entity.
// Failures here do not unwind the create; see the Service doc for the policy.
func (s *Service) recordCreate(ctx context.Context, actor string, entity EntityType, identifier, details string, meta map[string]any) {
	module := entity.ModuleLabel()
	if _, err := s.audit.Record(ctx, actor, AuditActionCreate, module, details, meta); err != nil {
		auditWriteFailures.Inc()
		awErr := &AuditWriteError{Module: module, Identifier: identifier, Err: err}
		s.log.Error().
			Err(awErr).
			Str("event", "audit_write_failed").
			Str("module", module).
			Str("identifier", identifier).
			Msg("entity persisted but audit entry was not recorded")
	}
}

func (s *Service) publish(ctx context.Context, subject string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, subject, payload); err != nil {
		s.log.Warn().Err(err).Str("subject", subject).Msg("publish event")
	}
}

// reject counts a failed create and returns the taxonomy error unchanged,
// wrapping anything unrecognized as a store fault so nothing below the
// pipeline leaks past it.
func (s *Service) reject(entity EntityType, err error) error {
	kind := classify(err)
	if kind == failUnknown {
		err = fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		kind = failStore
	}
	createsTotal.WithLabelValues(entity.ModuleLabel(), outcomeLabel(err)).Inc()
	return err
}

type failureKind int

const (
	failNone failureKind = iota
	failValidation
	failBusinessRule
	failReference
	failStore
	failUnknown
)

func classify(err error) failureKind {
	if err == nil {
		return failNone
	}
	var (
		verr *ValidationError
		nerr *NotFoundError
		derr *DuplicateError
	)
	switch {
	case errors.As(err, &verr):
		return failValidation
	case errors.As(err, &nerr):
		return failReference
	case errors.As(err, &derr):
		return failBusinessRule
	case errors.Is(err, ErrStoreUnavailable):
		return failStore
	}
	return failUnknown
}
