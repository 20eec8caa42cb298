package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ts4z/placerank/config"
	"github.com/ts4z/placerank/dbcache"
	"github.com/ts4z/placerank/dbnotify"
	"github.com/ts4z/placerank/dbutil"
	"github.com/ts4z/placerank/league"
	"github.com/ts4z/placerank/metrics"
	"github.com/ts4z/placerank/state"
	"github.com/ts4z/placerank/ts"
	"github.com/ts4z/placerank/webapp"
)

// openStorage returns the backing store, and the database behind it if
// there is one.
func openStorage(ctx context.Context) (state.Storage, *sql.DB) {
	if !config.UseDatabase() {
		log.Printf("ratings will be lost on restart")
		return state.NewMemStorage(), nil
	}
	db, err := dbutil.Connect(ctx)
	if err != nil {
		log.Fatalf("can't connect to database: %v", err)
	}
	storage, err := state.NewDBStorage(ctx, db)
	if err != nil {
		log.Fatalf("can't configure database: %v", err)
	}
	return storage, storage.DB()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	config.Init()

	clock := ts.NewRealClock()

	backing, db := openStorage(ctx)
	storage := dbcache.NewStorage(config.PlayerCacheSize(), backing)
	defer storage.Close()

	if db != nil {
		listener, err := dbnotify.NewDBNotifyListener(db, storage)
		if err != nil {
			log.Fatalf("can't listen for db changes: %v", err)
		}
		go listener.ListenForever(ctx)
	}

	m := metrics.New()

	manager := league.New(league.Config{
		Storage:       storage,
		Clock:         clock,
		Options:       config.RatingOptions(),
		InitialRating: config.InitialRating(),
		Recorder:      m,
	})

	app := webapp.New(ctx, &webapp.Config{
		Manager:        manager,
		Storage:        storage,
		Clock:          clock,
		Metrics:        m,
		AllowedOrigins: config.AllowedOrigins(),
		RateLimit:      config.RateLimit(),
		RateBurst:      config.RateBurst(),
	})

	if err := app.Serve(ctx, config.ListenAddress()); err != nil && ctx.Err() == nil {
		log.Fatalf("can't serve: %v", err)
	}
	log.Printf("shut down")
}
