package registry

import (
	"encoding/json"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// AssetStatus enumerates asset lifecycle states.
type AssetStatus string

const (
	AssetStatusActive         AssetStatus = "active"
	AssetStatusInactive       AssetStatus = "inactive"
	AssetStatusMaintenance    AssetStatus = "maintenance"
	AssetStatusDecommissioned AssetStatus = "decommissioned"
)

// AssetCondition enumerates physical condition grades.
type AssetCondition string

const (
	AssetConditionGood    AssetCondition = "good"
	AssetConditionFair    AssetCondition = "fair"
	AssetConditionPoor    AssetCondition = "poor"
	AssetConditionDamaged AssetCondition = "damaged"
)

// LocationType enumerates the levels of the location tree.
type LocationType string

const (
	LocationTypeBuilding LocationType = "building"
	LocationTypeFloor    LocationType = "floor"
	LocationTypeRoom     LocationType = "room"
)

// MutationStatus enumerates relocation workflow states.
type MutationStatus string

const (
	MutationStatusProcessing MutationStatus = "processing"
	MutationStatusCompleted  MutationStatus = "completed"
	MutationStatusCancelled  MutationStatus = "cancelled"
)

// UserRole enumerates access roles.
type UserRole string

const (
	UserRoleAdmin   UserRole = "admin"
	UserRoleManager UserRole = "manager"
	UserRoleStaff   UserRole = "staff"
	UserRoleViewer  UserRole = "viewer"
)

// UserStatus enumerates account states.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

// AuditAction enumerates recordable audit actions.
type AuditAction string

const (
	AuditActionCreate AuditAction = "CREATE"
	AuditActionUpdate AuditAction = "UPDATE"
	AuditActionDelete AuditAction = "DELETE"
	AuditActionRead   AuditAction = "READ"
)

// Asset is a registered asset row.
type Asset struct {
	Identifier    string         `json:"identifier" db:"identifier"`
	Name          string         `json:"name" db:"name"`
	Category      string         `json:"category" db:"category"`
	Status        AssetStatus    `json:"status" db:"status"`
	Location      string         `json:"location" db:"location"`
	PurchaseDate  string         `json:"purchaseDate" db:"purchase_date"`
	PurchasePrice float64        `json:"purchasePrice" db:"purchase_price"`
	Condition     AssetCondition `json:"condition" db:"condition"`
	Description   string         `json:"description" db:"description"`
	CreatedAt     time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time      `json:"updatedAt" db:"updated_at"`
}

// Location is a node in the building/floor/room tree.
type Location struct {
	Identifier string       `json:"identifier" db:"identifier"`
	Name       string       `json:"name" db:"name"`
	Type       LocationType `json:"type" db:"type"`
	ParentID   *string      `json:"parentId,omitempty" db:"parent_id"`
	AssetCount int          `json:"assetCount" db:"asset_count"`
	CreatedAt  time.Time    `json:"createdAt" db:"created_at"`
}

// Mutation is an asset relocation record. AssetName is a snapshot captured at
// creation time and is intentionally never re-derived from the live asset.
type Mutation struct {
	Identifier   string         `json:"identifier" db:"identifier"`
	AssetID      string         `json:"assetId" db:"asset_id"`
	AssetName    string         `json:"assetName" db:"asset_name"`
	FromLocation string         `json:"fromLocation" db:"from_location"`
	ToLocation   string         `json:"toLocation" db:"to_location"`
	Date         string         `json:"date" db:"date"`
	Status       MutationStatus `json:"status" db:"status"`
	Requester    string         `json:"requester" db:"requester"`
	Notes        string         `json:"notes" db:"notes"`
	CreatedAt    time.Time      `json:"createdAt" db:"created_at"`
}

// User is a registry account row. PasswordHash holds the bcrypt digest; the
// clear-text credential never reaches the store.
type User struct {
	Identifier   string     `json:"identifier" db:"identifier"`
	Name         string     `json:"name" db:"name"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Role         UserRole   `json:"role" db:"role"`
	Status       UserStatus `json:"status" db:"status"`
	Avatar       string     `json:"avatar" db:"avatar"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time  `json:"updatedAt" db:"updated_at"`
}

// AuditLogEntry is one immutable row of the audit trail.
type AuditLogEntry struct {
	ID        uuid.UUID      `json:"id"`
	Timestamp string         `json:"timestamp"`
	Actor     string         `json:"actor"`
	Action    AuditAction    `json:"action"`
	Module    string         `json:"module"`
	Details   string         `json:"details"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// AssetInput is the untrusted create payload for assets.
type AssetInput struct {
	Name          string      `json:"name" yaml:"name"`
	Category      string      `json:"category" yaml:"category"`
	Location      string      `json:"location" yaml:"location"`
	PurchaseDate  string      `json:"purchaseDate" yaml:"purchaseDate"`
	PurchasePrice json.Number `json:"purchasePrice" yaml:"purchasePrice"`
	Description   string      `json:"description" yaml:"description"`
}

// LocationInput is the untrusted create payload for locations.
type LocationInput struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	ParentID string `json:"parentId,omitempty" yaml:"parentId"`
}

// MutationInput is the untrusted create payload for mutations.
type MutationInput struct {
	AssetID      string `json:"assetId" yaml:"assetId"`
	FromLocation string `json:"fromLocation" yaml:"fromLocation"`
	ToLocation   string `json:"toLocation" yaml:"toLocation"`
	Date         string `json:"date" yaml:"date"`
	Requester    string `json:"requester" yaml:"requester"`
	Notes        string `json:"notes" yaml:"notes"`
}

// UserInput is the untrusted create payload for users.
type UserInput struct {
	Name     string `json:"name" yaml:"name"`
	Email    string `json:"email" yaml:"email"`
	Password string `json:"password" yaml:"password"`
	Role     string `json:"role" yaml:"role"`
}

// avatarFor derives a deterministic avatar string from a display name: the
// upper-cased initials of the first two words.
func avatarFor(name string) string {
	var initials []rune
	for _, word := range strings.Fields(name) {
		for _, r := range word {
			initials = append(initials, unicode.ToUpper(r))
			break
		}
		if len(initials) == 2 {
			break
		}
	}
	return string(initials)
}
