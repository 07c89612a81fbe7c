package registry

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedFile holds fixture entities loaded from YAML. Seeding runs through the
// regular create pipelines, so seeded rows are validated, identified, and
// audited exactly like API-created ones.
type SeedFile struct {
	Locations []LocationInput `yaml:"locations"`
	Users     []UserInput     `yaml:"users"`
	Assets    []AssetInput    `yaml:"assets"`
}

// LoadSeedFile parses a YAML fixture file.
func LoadSeedFile(path string) (SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SeedFile{}, err
	}

	var file SeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return SeedFile{}, fmt.Errorf("parse seed file: %w", err)
	}
	return file, nil
}

// Seed creates the fixture entities. Rows that already exist (duplicate email)
// are skipped so reseeding is harmless; any other failure aborts.
func (s *Service) Seed(ctx context.Context, actor string, file SeedFile) error {
	for _, in := range file.Locations {
		if _, err := s.CreateLocation(ctx, actor, in); err != nil {
			return fmt.Errorf("seed location %q: %w", in.Name, err)
		}
	}

	for _, in := range file.Users {
		_, err := s.CreateUser(ctx, actor, in)
		var derr *DuplicateError
		if errors.As(err, &derr) {
			s.log.Info().Str("email", in.Email).Msg("seed user already present, skipping")
			continue
		}
		if err != nil {
			return fmt.Errorf("seed user %q: %w", in.Email, err)
		}
	}

	for _, in := range file.Assets {
		if _, err := s.CreateAsset(ctx, actor, in); err != nil {
			return fmt.Errorf("seed asset %q: %w", in.Name, err)
		}
	}

	return nil
}
