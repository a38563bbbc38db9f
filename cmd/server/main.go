package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mindwell-app/mindwell-server/auth/audit"
	"github.com/mindwell-app/mindwell-server/internal/config"
	"github.com/mindwell-app/mindwell-server/internal/postgres"
	"github.com/mindwell-app/mindwell-server/ratelimit"
	"github.com/mindwell-app/mindwell-server/records"
	"github.com/mindwell-app/mindwell-server/resettoken"
	"github.com/mindwell-app/mindwell-server/server"
	postgresuserrepo "github.com/mindwell-app/mindwell-server/users/postgresrepo"
	fakeuserrepo "github.com/mindwell-app/mindwell-server/users/repofake"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	_ = godotenv.Load()

	c := config.New()
	configureLogging(c)
	displayAppname(c.GetAppName())

	repos, cleanup, err := buildRepos(context.Background(), c)
	if err != nil {
		return err
	}
	defer cleanup()

	srv, err := server.New(c, repos)
	if err != nil {
		return err
	}
	defer srv.Close()

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

// buildRepos wires the storage layer. With DATABASE_DSN set everything is
// Postgres-backed; without it the server runs fully in-memory, which is only
// suitable for local development. REDIS_ADDR switches the rate-limit counters
// to a shared store so limits hold across instances.
func buildRepos(ctx context.Context, c config.Config) (server.Repos, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var db *sql.DB
	if dsn := c.GetDatabaseDSN(); dsn != "" {
		var err error
		db, err = postgres.Open(ctx, dsn)
		if err != nil {
			return server.Repos{}, cleanup, err
		}
		cleanups = append(cleanups, func() { _ = db.Close() })
		log.Info().Msg("using postgres-backed repositories")
	} else {
		log.Warn().Msg("DATABASE_DSN not set, running with in-memory repositories")
	}

	repos := server.Repos{}
	if db != nil {
		repos.Users = postgresuserrepo.New(db)
		repos.Records = records.NewPostgresRepo(db)
		repos.ResetTokens = resettoken.NewPostgresRepo(db)
		repos.Audit = audit.NewPostgresRecorder(db)
	} else {
		repos.Users = fakeuserrepo.NewFakeUserRepo()
		repos.Records = records.NewInMemoryRepo()
		repos.ResetTokens = resettoken.NewInMemoryRepo()
		repos.Audit = audit.NewLogRecorder()
	}

	if addr := c.GetRedisAddr(); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, Password: c.GetRedisPassword()})
		cleanups = append(cleanups, func() { _ = client.Close() })
		repos.Counters = ratelimit.NewRedisStore(client)
		log.Info().Str("addr", addr).Msg("using redis rate-limit counters")
	} else {
		store := ratelimit.NewMemoryStore()
		store.StartSweeper(time.Minute)
		cleanups = append(cleanups, store.Close)
		repos.Counters = store
	}

	return repos, cleanup, nil
}

func configureLogging(c config.Config) {
	if c.GetEnv() == "DEV" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
