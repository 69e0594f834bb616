package database

import (
	"fmt"
	"reflect"
	"time"

	"doin-challenge/config"
	"doin-challenge/logger"
	"doin-challenge/models"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Open connects using the configured driver and registers the uuid primary key callback.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.URL)
	case "sqlite":
		dialector = sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  NewGormLogger(logger.L(), gormlogger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := RegisterUUIDCallback(db); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenSQLite opens a sqlite database at dsn. Tests use an in-memory dsn.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	return Open(config.DatabaseConfig{Driver: "sqlite", Path: dsn})
}

// RegisterUUIDCallback fills empty string primary keys with a new uuid before insert.
// Models carry `type:uuid` without a database default so the same schema runs on sqlite.
func RegisterUUIDCallback(db *gorm.DB) error {
	return db.Callback().Create().Before("gorm:create").Register("app:uuid_primary_key", func(tx *gorm.DB) {
		if tx.Statement.Schema == nil {
			return
		}
		field := tx.Statement.Schema.PrioritizedPrimaryField
		if field == nil || field.FieldType.Kind() != reflect.String {
			return
		}

		rv := tx.Statement.ReflectValue
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			for i := 0; i < rv.Len(); i++ {
				assignUUID(tx, field, reflect.Indirect(rv.Index(i)))
			}
		case reflect.Struct:
			assignUUID(tx, field, rv)
		}
	})
}

func assignUUID(tx *gorm.DB, field *schema.Field, rv reflect.Value) {
	if rv.Kind() != reflect.Struct {
		return
	}
	if _, isZero := field.ValueOf(tx.Statement.Context, rv); isZero {
		_ = field.Set(tx.Statement.Context, rv, uuid.NewString())
	}
}

// AllModels lists every table managed by AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.UserProgress{},
		&models.Category{},
		&models.Challenge{},
		&models.ChallengeTemplate{},
		&models.ChallengeStats{},
		&models.Participation{},
		&models.ParticipationCompanion{},
		&models.Invitation{},
		&models.InvitationUse{},
		&models.Collaborator{},
		&models.CollaboratorInvitation{},
		&models.Badge{},
		&models.UserBadge{},
		&models.Achievement{},
		&models.UserAchievement{},
		&models.AchievementPage{},
		&models.TicketTransfer{},
		&models.TicketWaitlist{},
		&models.NotificationSetting{},
		&models.Notification{},
		&models.AuditLog{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
