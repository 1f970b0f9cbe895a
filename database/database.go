package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

const (
	SchemaName = "velo"

	CTXKeyDBConfig = "DBConfig"
)

type HeadColumns struct {
	ID uint `gorm:"primarykey"`
}

type TailColumns struct {
	CreatedAt time.Time      `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

type Date struct {
	Year  int
	Month int
	Day   int
}

func NewDateFromString(value string) (Date, error) {
	d := Date{}
	if _, err := fmt.Sscanf(value, "%04d-%02d-%02d", &d.Year, &d.Month, &d.Day); err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", value, err)
	}

	return d, nil
}

// @see sql.Scanner
func (d *Date) Scan(value interface{}) error {
	var str string
	switch v := value.(type) {
	case string:
		str = v
	case time.Time:
		str = v.Format("2006-01-02")
	default:
		return errors.New(fmt.Sprint("Failed to unmarshal string date value: ", value))
	}

	_, err := fmt.Sscanf(str, "%04d-%02d-%02d", &d.Year, &d.Month, &d.Day)
	if err != nil {
		return err
	}

	return nil
}

// @see sql.Valuer
func (d Date) Value() (driver.Value, error) {
	return d.Format(), nil
}

func (d *Date) Format() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// FetchRecord mirrors one raw data artifact: one row per (date, source),
// overwritten by the latest fetch of the day.
type FetchRecord struct {
	HeadColumns

	Date           Date            `gorm:"type:date;not null;uniqueIndex:idx_fetch_records_date_source"`
	Source         string          `gorm:"not null;uniqueIndex:idx_fetch_records_date_source"`
	Outcome        string          `gorm:"not null"`
	StatusCode     int             `gorm:"not null;default:0"`
	FilePath       string          `gorm:"not null;default:''"`
	Bytes          int64           `gorm:"not null;default:0"`
	ElapsedSeconds decimal.Decimal `gorm:"type:numeric(10,3);null"`
	Message        string          `gorm:"not null;default:''"`

	TailColumns
}

type RawDB struct {
	db     *sql.DB
	config Config
}

func NewRawDB(config Config) *RawDB {
	return &RawDB{db: nil, config: config}
}

func (r *RawDB) Connect() error {
	db, err := sql.Open("pgx", r.DSN())
	if err != nil {
		return err
	}

	r.db = db

	return nil
}

func (r *RawDB) Init() error {
	initialized, err := r.checkInitialized()
	if err != nil {
		return fmt.Errorf("failed to check if database is initialized: %w", err)
	} else if initialized {
		return nil
	}

	if _, err := r.db.Exec(fmt.Sprintf(`CREATE SCHEMA %s`, SchemaName)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", SchemaName, err)
	}

	return nil
}

func (r *RawDB) checkInitialized() (bool, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM information_schema.schemata WHERE schema_name = $1", SchemaName).Scan(&count)
	if err != nil {
		return false, err
	}

	return count != 0, nil
}

func (r *RawDB) Shutdown() error {
	return r.db.Close()
}

func (r *RawDB) DSN() string {
	return r.config.DSN()
}

func (db *RawDB) DB() *sql.DB {
	return db.db
}

type DB interface {
	gorm() *gorm.DB
}

type postgresDB struct {
	gormDB *gorm.DB
}

func (db *postgresDB) gorm() *gorm.DB {
	return db.gormDB
}

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  bool
}

func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.DBName,
		func(value bool) string {
			if value {
				return "require"
			} else {
				return "disable"
			}
		}(c.SSLMode),
	)
}

var namingStrategy = schema.NamingStrategy{TablePrefix: SchemaName + "."}

func Connect(config Config) (DB, error) {
	gormDB, err := gorm.Open(postgres.Open(config.DSN()), &gorm.Config{NamingStrategy: namingStrategy})
	if err != nil {
		return nil, err
	}

	return &postgresDB{gormDB: gormDB}, nil
}

func UpsertToFetchRecords(ctx context.Context, db DB, records []FetchRecord) error {
	if len(records) == 0 {
		return nil
	}

	s, err := schema.Parse(&FetchRecord{}, &sync.Map{}, namingStrategy)
	if err != nil {
		return fmt.Errorf("failed to parse fetch record schema: %w", err)
	}

	updateColumns := []string{}
	ignoreColumns := []string{"id", "created_at"}
	for _, field := range s.Fields {
		if field.DBName == "" {
			continue
		}

		ignore := false
		for _, ignoreColumn := range ignoreColumns {
			if field.DBName == ignoreColumn {
				ignore = true
				break
			}
		}
		if ignore {
			continue
		}

		updateColumns = append(updateColumns, field.DBName)
	}

	result := db.gorm().WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}, {Name: "source"}},
		DoUpdates: clause.AssignmentColumns(updateColumns),
	}).Create(&records)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert fetch records: %w", result.Error)
	}

	return nil
}

func ListFetchRecords(ctx context.Context, db DB, date Date) ([]FetchRecord, error) {
	var records []FetchRecord
	result := db.gorm().WithContext(ctx).Where("date = ?", date).Order("id").Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list fetch records: %w", result.Error)
	}

	return records, nil
}
