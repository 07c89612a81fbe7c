package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

type Asset struct {
	Identifier    string    `gorm:"type:text;primaryKey"`
	Name          string    `gorm:"type:text;not null"`
	Category      string    `gorm:"type:text;not null"`
	Status        string    `gorm:"type:text;not null;default:'active'"`
	Location      string    `gorm:"type:text;not null"`
	PurchaseDate  string    `gorm:"type:text;not null"`
	PurchasePrice float64   `gorm:"type:numeric(14,2);not null;default:0"`
	Condition     string    `gorm:"type:text;not null;default:'good'"`
	Description   string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt     time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

type Location struct {
	Identifier string    `gorm:"type:text;primaryKey"`
	Name       string    `gorm:"type:text;not null"`
	Type       string    `gorm:"type:text;not null"`
	ParentID   *string   `gorm:"type:text;index"`
	AssetCount int       `gorm:"type:integer;not null;default:0"`
	CreatedAt  time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

type Mutation struct {
	Identifier   string    `gorm:"type:text;primaryKey"`
	AssetID      string    `gorm:"type:text;not null;index"`
	AssetName    string    `gorm:"type:text;not null"`
	FromLocation string    `gorm:"type:text;not null"`
	ToLocation   string    `gorm:"type:text;not null"`
	Date         string    `gorm:"type:text;not null"`
	Status       string    `gorm:"type:text;not null;default:'processing'"`
	Requester    string    `gorm:"type:text;not null"`
	Notes        string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

type User struct {
	Identifier   string    `gorm:"type:text;primaryKey"`
	Name         string    `gorm:"type:text;not null"`
	Email        string    `gorm:"type:text;uniqueIndex:idx_users_email;not null"`
	PasswordHash string    `gorm:"type:text;not null"`
	Role         string    `gorm:"type:text;not null"`
	Status       string    `gorm:"type:text;not null;default:'active'"`
	Avatar       string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt    time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

// AuditLog rows are append-only; the application never updates or deletes them.
type AuditLog struct {
	ID      uuid.UUID         `gorm:"type:uuid;primaryKey"`
	Actor   string            `gorm:"type:text;not null"`
	Action  string            `gorm:"type:text;not null"`
	Module  string            `gorm:"type:text;not null"`
	Details string            `gorm:"type:text;not null"`
	Meta    datatypes.JSONMap `gorm:"type:jsonb"`
	Ts      string            `gorm:"column:ts;type:text;not null"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// IDSequence backs sequential identifier issuance. last_value is advanced with
// a single atomic upsert so concurrent creates never observe the same value.
type IDSequence struct {
	EntityType string `gorm:"type:text;primaryKey"`
	LastValue  int64  `gorm:"type:bigint;not null;default:0"`
}

func (IDSequence) TableName() string { return "id_sequences" }

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).AutoMigrate(
		&Asset{},
		&Location{},
		&Mutation{},
		&User{},
		&AuditLog{},
		&IDSequence{},
	)
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().DropTable(
		&IDSequence{},
		&AuditLog{},
		&Mutation{},
		&User{},
		&Location{},
		&Asset{},
	)
}
