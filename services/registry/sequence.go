package registry

import (
	"fmt"
	"strconv"
	"strings"
)

// EntityType names one of the four record kinds with a sequential identifier.
type EntityType string

const (
	EntityAsset    EntityType = "asset"
	EntityLocation EntityType = "location"
	EntityMutation EntityType = "mutation"
	EntityUser     EntityType = "user"
)

// ModuleLabel is the human label used for audit entries and API errors.
func (t EntityType) ModuleLabel() string {
	switch t {
	case EntityAsset:
		return "Asset"
	case EntityLocation:
		return "Location"
	case EntityMutation:
		return "Mutation"
	case EntityUser:
		return "User"
	}
	return string(t)
}

type idPattern struct {
	prefix string
	width  int
}

var idPatterns = map[EntityType]idPattern{
	EntityAsset:    {prefix: "AST-", width: 4},
	EntityLocation: {prefix: "LOC-", width: 3},
	EntityMutation: {prefix: "MUT-", width: 3},
	EntityUser:     {prefix: "USR-", width: 3},
}

// FormatIdentifier renders the nth identifier for an entity type, zero-padded
// to the type's fixed width. Values past the width widen rather than fail.
func FormatIdentifier(entity EntityType, n int64) string {
	p := idPatterns[entity]
	return fmt.Sprintf("%s%0*d", p.prefix, p.width, n)
}

// IdentifierSuffix parses the numeric suffix of an identifier of the given
// type. It returns false when the value does not carry the type's prefix or a
// parseable number.
func IdentifierSuffix(entity EntityType, identifier string) (int64, bool) {
	p := idPatterns[entity]
	rest, ok := strings.CutPrefix(identifier, p.prefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
