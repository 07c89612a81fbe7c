package registry

import (
	"context"
	"encoding/json"
	"io"

	"assetd/pkg/bus"
)

// Event payloads published after each successful create. Consumers rely on the
// JSON field names staying stable.

type assetCreatedEvent struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	Location   string `json:"location"`
}

type locationCreatedEvent struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	Type       string `json:"type"`
}

type mutationCreatedEvent struct {
	Identifier   string `json:"identifier"`
	AssetID      string `json:"assetId"`
	FromLocation string `json:"fromLocation"`
	ToLocation   string `json:"toLocation"`
}

type userCreatedEvent struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	Role       string `json:"role"`
}

const assetCountsDurable = "registry-asset-counts"

// ConsumeAssetCounts keeps locations.asset_count current from the event
// stream: a new asset raises its location's count, a mutation moves one count
// from the source location to the destination. Returned closers drain the
// subscriptions.
func (s *Service) ConsumeAssetCounts(ctx context.Context, events *bus.Bus) ([]io.Closer, error) {
	assetSub, err := events.Subscribe(ctx, assetCreatedSubject, assetCountsDurable+"-assets", s.applyAssetCreated)
	if err != nil {
		return nil, err
	}

	mutationSub, err := events.Subscribe(ctx, mutationCreatedSubject, assetCountsDurable+"-mutations", s.applyMutationCreated)
	if err != nil {
		_ = assetSub.Close()
		return nil, err
	}

	return []io.Closer{assetSub, mutationSub}, nil
}

// applyAssetCreated counts a freshly registered asset against its location.
// Malformed payloads are logged and dropped rather than redelivered forever.
func (s *Service) applyAssetCreated(ctx context.Context, data []byte) error {
	var ev assetCreatedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.log.Error().Err(err).Str("subject", assetCreatedSubject).Msg("decode event")
		return nil
	}
	if ev.Location == "" {
		return nil
	}
	return s.store.AdjustAssetCount(ctx, ev.Location, 1)
}

// applyMutationCreated moves one asset count from the mutation's source
// location to its destination.
func (s *Service) applyMutationCreated(ctx context.Context, data []byte) error {
	var ev mutationCreatedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.log.Error().Err(err).Str("subject", mutationCreatedSubject).Msg("decode event")
		return nil
	}
	if ev.FromLocation == "" || ev.ToLocation == "" {
		return nil
	}
	if err := s.store.AdjustAssetCount(ctx, ev.FromLocation, -1); err != nil {
		return err
	}
	return s.store.AdjustAssetCount(ctx, ev.ToLocation, 1)
}
