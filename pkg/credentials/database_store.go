package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sqliteDialector "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// DatabaseStore persists the credential pair as two key/value rows using GORM.
type DatabaseStore struct {
	db          *gorm.DB
	driverLabel string
}

type credentialRecord struct {
	Name        string `gorm:"column:name;primaryKey"`
	Value       string `gorm:"column:value;not null"`
	UpdatedUnix int64  `gorm:"column:updated_unix;not null"`
}

func (credentialRecord) TableName() string {
	return "client_credentials"
}

// NewDatabaseStore opens a sqlite:// or postgres:// database and migrates the credential table.
func NewDatabaseStore(ctx context.Context, databaseURL string) (*DatabaseStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("credentials.open: %w", errEmptyStoreURL)
	}
	dialector, driverLabel, err := resolveDialector(databaseURL)
	if err != nil {
		return nil, err
	}
	gormDB, openErr := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if openErr != nil {
		return nil, fmt.Errorf("credentials.open.%s: %w", driverLabel, openErr)
	}
	if migrateErr := gormDB.WithContext(ctx).AutoMigrate(&credentialRecord{}); migrateErr != nil {
		return nil, fmt.Errorf("credentials.migrate.%s: %w", driverLabel, migrateErr)
	}
	return &DatabaseStore{
		db:          gormDB,
		driverLabel: driverLabel,
	}, nil
}

// Driver exposes the selected database driver label.
func (store *DatabaseStore) Driver() string {
	return store.driverLabel
}

// AccessToken returns the stored access token.
func (store *DatabaseStore) AccessToken(ctx context.Context) (string, bool, error) {
	return store.lookup(ctx, AccessTokenKey)
}

// RefreshToken returns the stored refresh token.
func (store *DatabaseStore) RefreshToken(ctx context.Context) (string, bool, error) {
	return store.lookup(ctx, RefreshTokenKey)
}

// Save upserts both rows in one transaction.
func (store *DatabaseStore) Save(ctx context.Context, pair Pair) error {
	if err := pair.validate(); err != nil {
		return fmt.Errorf("credentials.save.%s: %w", store.driverLabel, err)
	}
	nowUnix := time.Now().UTC().Unix()
	records := []credentialRecord{
		{Name: AccessTokenKey, Value: pair.AccessToken, UpdatedUnix: nowUnix},
		{Name: RefreshTokenKey, Value: pair.RefreshToken, UpdatedUnix: nowUnix},
	}
	err := store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return transaction.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_unix"}),
		}).Create(&records).Error
	})
	if err != nil {
		return fmt.Errorf("credentials.save.%s: %w", store.driverLabel, err)
	}
	return nil
}

// Clear deletes both rows.
func (store *DatabaseStore) Clear(ctx context.Context) error {
	err := store.db.WithContext(ctx).
		Where("name IN ?", []string{AccessTokenKey, RefreshTokenKey}).
		Delete(&credentialRecord{}).Error
	if err != nil {
		return fmt.Errorf("credentials.clear.%s: %w", store.driverLabel, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (store *DatabaseStore) Close() error {
	sqlDB, err := store.db.DB()
	if err != nil {
		return fmt.Errorf("credentials.close.%s: %w", store.driverLabel, err)
	}
	return sqlDB.Close()
}

func (store *DatabaseStore) lookup(ctx context.Context, name string) (string, bool, error) {
	var record credentialRecord
	err := store.db.WithContext(ctx).Where("name = ?", name).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("credentials.lookup.%s: %w", store.driverLabel, err)
	}
	return record.Value, true, nil
}

func resolveDialector(databaseURL string) (gorm.Dialector, string, error) {
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("credentials.parse_url: %w", err)
	}
	if parsed.Scheme == "" {
		return nil, "", fmt.Errorf("credentials.dialect: %w", errUnsupportedNoScheme)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "postgres", "postgresql":
		return postgres.Open(databaseURL), "postgres", nil
	case "sqlite", "sqlite3":
		dsn, dsnErr := buildSQLiteDSN(parsed)
		if dsnErr != nil {
			return nil, "", fmt.Errorf("credentials.sqlite: %w", dsnErr)
		}
		return sqliteDialector.Open(dsn), "sqlite", nil
	default:
		return nil, "", fmt.Errorf("credentials.dialect.%s: %w", strings.ToLower(parsed.Scheme), ErrUnsupportedScheme)
	}
}

func buildSQLiteDSN(parsed *url.URL) (string, error) {
	if parsed == nil {
		return "", errSQLiteInvalidURL
	}
	var builder strings.Builder
	switch {
	case parsed.Opaque != "":
		builder.WriteString(parsed.Opaque)
	case parsed.Host != "":
		builder.WriteString(parsed.Host)
		if parsed.Path != "" {
			if !strings.HasPrefix(parsed.Path, "/") {
				builder.WriteString("/")
			}
			builder.WriteString(parsed.Path)
		}
	default:
		builder.WriteString(parsed.Path)
	}
	if builder.Len() == 0 {
		return "", errSQLiteEmptyPath
	}
	if parsed.RawQuery != "" {
		builder.WriteString("?")
		builder.WriteString(parsed.RawQuery)
	}
	return builder.String(), nil
}
