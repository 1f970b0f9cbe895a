package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

func TestDateScan(t *testing.T) {
	input := "2024-06-01"

	actual := Date{}
	err := actual.Scan(input)

	assert.Nil(t, err)
	assert.Equal(t, Date{Year: 2024, Month: 6, Day: 1}, actual)
}

func TestDateScan_Invalid(t *testing.T) {
	actual := Date{}

	assert.NotNil(t, actual.Scan(42))
	assert.NotNil(t, actual.Scan("June 1st"))
}

func TestDateValue(t *testing.T) {
	date := Date{Year: 2024, Month: 6, Day: 1}

	actual, err := date.Value()

	assert.Nil(t, err)
	assert.Equal(t, "2024-06-01", actual)
}

func TestNewDateFromString(t *testing.T) {
	date, err := NewDateFromString("2024-06-01")

	assert.Nil(t, err)
	assert.Equal(t, Date{Year: 2024, Month: 6, Day: 1}, date)

	_, err = NewDateFromString("01/06/2024")
	assert.NotNil(t, err)
}

func TestConfigDSN(t *testing.T) {
	config := Config{Host: "localhost", Port: 5432, User: "velo", Password: "secret", DBName: "velo"}

	assert.Equal(t, "host=localhost port=5432 user=velo password=secret dbname=velo sslmode=disable", config.DSN())

	config.SSLMode = true
	assert.True(t, strings.HasSuffix(config.DSN(), "sslmode=require"))
}

type DBTestSuite struct {
	suite.Suite

	config Config
	db     DB
}

func (s *DBTestSuite) SetupSuite() {
	config, ok := s.loadDBConfig()
	if !ok {
		s.T().Skip("TEST_DB_HOST is not set")
	}

	s.config = config
	s.setupDB()
}

func (s *DBTestSuite) SetupTest() {
	err := s.db.gorm().AutoMigrate(&FetchRecord{})
	s.Require().Nil(err)
}

func (s *DBTestSuite) TearDownTest() {
	result := s.db.gorm().Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s.fetch_records CASCADE", SchemaName))
	s.Require().Nil(result.Error)
}

func (s *DBTestSuite) loadDBConfig() (Config, bool) {
	curDir, err := os.Getwd()
	s.Require().Nil(err)

	dotEnvPath := filepath.Join(curDir, "..", ".env")
	if _, err := os.Stat(dotEnvPath); err == nil {
		s.Require().Nil(godotenv.Load(dotEnvPath))
	}

	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		return Config{}, false
	}

	port, err := strconv.Atoi(os.Getenv("TEST_DB_PORT"))
	s.Require().Nil(err)

	user := os.Getenv("TEST_DB_USER")
	s.Require().NotEmpty(user)

	password := os.Getenv("TEST_DB_PASSWORD")
	s.Require().NotEmpty(password)

	return Config{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		DBName:   "velo-test",
		SSLMode:  false,
	}, true
}

func (s *DBTestSuite) setupDB() {
	raw := NewRawDB(s.config)
	s.Require().Nil(raw.Connect())
	s.Require().Nil(raw.Init())
	s.Require().Nil(raw.Init())
	s.Require().Nil(raw.Shutdown())

	db, err := Connect(s.config)
	s.Require().Nil(err)

	s.db = db
}

func (s *DBTestSuite) AssertPartialEqual(expected any, actual any, diffOpts cmp.Option) bool {
	if cmp.Equal(expected, actual, diffOpts) {
		return true
	}

	diff := cmp.Diff(expected, actual, diffOpts)
	return s.Fail(
		fmt.Sprintf(
			"Not equal: \n"+"expected: %v\n"+"actual  : %v%v",
			expected,
			actual,
			diff,
		),
	)
}

func Test_DBTestSuite(t *testing.T) {
	suite.Run(t, new(DBTestSuite))
}

func (s *DBTestSuite) Test_UpsertToFetchRecords() {
	date := Date{Year: 2024, Month: 6, Day: 1}
	records := []FetchRecord{
		{
			Date:           date,
			Source:         "paris",
			Outcome:        "saved",
			StatusCode:     200,
			FilePath:       "data/raw_data/2024-06-01/paris_realtime_bicycle_data.json",
			Bytes:          1024,
			ElapsedSeconds: decimal.RequireFromString("0.250"),
		},
		{
			Date:       date,
			Source:     "nantes",
			Outcome:    "http_error",
			StatusCode: 503,
			Message:    "Service Unavailable",
		},
	}

	err := UpsertToFetchRecords(context.Background(), s.db, records)
	s.Nil(err)

	actual, err := ListFetchRecords(context.Background(), s.db, date)
	s.Nil(err)
	s.Equal(2, len(actual))

	diffOpts := cmp.Options{
		cmpopts.IgnoreFields(FetchRecord{}, "HeadColumns", "TailColumns"),
		cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) }),
	}
	for i := range actual {
		s.AssertPartialEqual(records[i], actual[i], diffOpts)
	}
}

func (s *DBTestSuite) Test_UpsertToFetchRecords_LastWriteWins() {
	date := Date{Year: 2024, Month: 6, Day: 1}

	first := []FetchRecord{{Date: date, Source: "toulouse", Outcome: "http_error", StatusCode: 500}}
	s.Nil(UpsertToFetchRecords(context.Background(), s.db, first))

	second := []FetchRecord{{Date: date, Source: "toulouse", Outcome: "saved", StatusCode: 200, Bytes: 42}}
	s.Nil(UpsertToFetchRecords(context.Background(), s.db, second))

	actual, err := ListFetchRecords(context.Background(), s.db, date)
	s.Nil(err)
	s.Equal(1, len(actual))
	s.Equal("saved", actual[0].Outcome)
	s.Equal(int64(42), actual[0].Bytes)
}

func (s *DBTestSuite) Test_UpsertToFetchRecords_Canceled() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records := []FetchRecord{{Date: Date{Year: 2024, Month: 6, Day: 1}, Source: "paris", Outcome: "saved"}}
	err := UpsertToFetchRecords(ctx, s.db, records)
	s.NotNil(err)

	actual, err := ListFetchRecords(context.Background(), s.db, Date{Year: 2024, Month: 6, Day: 1})
	s.Nil(err)
	s.Empty(actual)
}
