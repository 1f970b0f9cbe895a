package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/samber/do"

	"velo-ingest/cmd/task/cmd"
	"velo-ingest/database"
	"velo-ingest/internal/api/opendata"
	"velo-ingest/internal/ledger"
	"velo-ingest/internal/rawdata"
	"velo-ingest/internal/source"
	usecase "velo-ingest/internal/usecase/task"
)

const (
	envFile = "./cmd/task/.env"
)

type envVars struct {
	RawDataDir  string        `env:"RAW_DATA_DIR" envDefault:"data/raw_data"`
	SourcesFile string        `env:"SOURCES_FILE"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"0s"`
	DBHost      string        `env:"DB_HOST"`
	DBPort      int           `env:"DB_PORT" envDefault:"5432"`
	DBUser      string        `env:"DB_USER"`
	DBPassword  string        `env:"DB_PASSWORD"`
	DBName      string        `env:"DB_NAME"`
}

var ev envVars

func init() {
	_, err := os.Stat(envFile)
	if err == nil {
		if err := godotenv.Load(envFile); err != nil {
			fmt.Printf("failed to load .env file: %v\n", err)
			os.Exit(1)
		}
	} else if !os.IsNotExist(err) {
		fmt.Printf("failed to check env file existence: %v\n", err)
		os.Exit(1)
	}

	ev, err = env.ParseAs[envVars]()
	if err != nil {
		fmt.Printf("failed to parse environment variables: %v\n", err)
		os.Exit(1)
	}
}

func main() {
	log.SetHandler(cli.New(os.Stderr))

	catalog := source.DefaultCatalog()
	if ev.SourcesFile != "" {
		c, err := source.LoadCatalog(ev.SourcesFile)
		if err != nil {
			fmt.Printf("%v\n", err)
			os.Exit(1)
		}
		catalog = c
	}

	injector := do.New()
	do.ProvideValue(injector, cmd.Settings{RawDataDir: ev.RawDataDir})
	do.ProvideValue[rawdata.Clock](injector, rawdata.SystemClock)
	do.ProvideValue[log.Interface](injector, log.Log)
	do.ProvideValue(injector, catalog)
	do.Provide(injector, func(i *do.Injector) (*opendata.Client, error) {
		return opendata.NewClient(ev.HTTPTimeout), nil
	})
	do.Provide(injector, func(i *do.Injector) (usecase.Recorder, error) {
		if ev.DBHost == "" {
			return usecase.NopRecorder{}, nil
		}

		db, err := database.Connect(database.Config{
			Host:     ev.DBHost,
			Port:     ev.DBPort,
			User:     ev.DBUser,
			Password: ev.DBPassword,
			DBName:   ev.DBName,
			SSLMode:  false,
		})
		if err != nil {
			log.WithError(err).Warn("fetch ledger disabled")
			return usecase.NopRecorder{}, nil
		}

		return ledger.New(db), nil
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	command := cmd.NewRootCmd(injector)
	command.SetContext(ctx)

	if err := command.Execute(); err != nil {
		fmt.Printf("%v\n", err)
		stop()
		os.Exit(1)
	}
}
