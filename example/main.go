// Command example wires an order aggregate to an event store, mutates it,
// rolls it back and reads it at earlier points of its history.
//
// The event store is selected with the STORE environment variable, one of
// memory (default), sqlite, bbolt, postgres or eventstoredb.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	esdbclient "github.com/EventStore/EventStore-Client-Go/v3/esdb"
	"github.com/ilyakaznacheev/cleanenv"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Noru-0/ordersourcing"
	"github.com/Noru-0/ordersourcing/core"
	"github.com/Noru-0/ordersourcing/eventstore/bbolt"
	"github.com/Noru-0/ordersourcing/eventstore/esdb"
	"github.com/Noru-0/ordersourcing/eventstore/memory"
	"github.com/Noru-0/ordersourcing/eventstore/postgres"
	sqlstore "github.com/Noru-0/ordersourcing/eventstore/sql"
	"github.com/Noru-0/ordersourcing/order"
)

type config struct {
	Store         string `env:"STORE" env-default:"memory" env-description:"event store backend: memory, sqlite, bbolt, postgres or eventstoredb"`
	SQLitePath    string `env:"SQLITE_PATH" env-default:"orders.db"`
	BBoltPath     string `env:"BBOLT_PATH" env-default:"orders.bolt"`
	PostgresURL   string `env:"POSTGRES_URL" env-default:"postgres://localhost:5432/orders"`
	EventStoreURL string `env:"EVENTSTORE_URL" env-default:"esdb://localhost:2113?tls=false"`
	LogLevel      string `env:"LOG_LEVEL" env-default:"info"`
}

func main() {
	var cfg config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, "read config:", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if err := run(cfg, logger); err != nil {
		logger.Error("example failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg config, logger *slog.Logger) error {
	ctx := context.Background()

	eventStore, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s event store: %w", cfg.Store, err)
	}
	defer closeStore()
	logger.Info("event store ready", "backend", cfg.Store)

	repo := ordersourcing.NewEventRepository(eventStore)
	repo.Register(&order.Order{})
	repo.Warnings = func(w ordersourcing.Warning) {
		logger.Warn(w.Message, "aggregate_id", w.AggregateID, "version", w.Version, "reason", w.Reason)
	}

	// every saved event
	all := repo.Subscribers().All(func(e ordersourcing.Event) {
		logger.Debug("event saved", "aggregate_id", e.AggregateID, "version", e.Version, "reason", e.Reason())
	})
	defer all.Close()

	// rollback audit trail
	audit := repo.Subscribers().Name(func(e ordersourcing.Event) {
		var rb ordersourcing.RolledBack
		if err := e.DataAs(&rb); err != nil {
			logger.Error("decode rollback event", "err", err)
			return
		}
		logger.Info("order rolled back",
			"aggregate_id", e.AggregateID,
			"version", e.Version,
			"kind", rb.Kind,
			"to_version", rb.ToVersion,
			"events_undone", rb.EventsUndone,
			"previous_state", rb.PreviousState,
			"new_state", rb.NewState,
		)
	}, "Order", "RolledBack")
	defer audit.Close()

	// build up an order history
	o, err := order.Create("customer-42", nil)
	if err != nil {
		return err
	}
	if err := o.AddItem("p-100", "keyboard", 1, 150); err != nil {
		return err
	}
	if err := o.AddItem("p-200", "mouse", 2, 40); err != nil {
		return err
	}
	if err := repo.Save(o); err != nil {
		return err
	}
	basketAt := time.Now().UTC()
	// let the clock tick so the next events land after the capture
	time.Sleep(10 * time.Millisecond)

	if err := o.UpdateStatus(order.StatusConfirmed); err != nil {
		return err
	}
	if err := o.UpdateStatus(order.StatusShipped); err != nil {
		return err
	}
	if err := repo.Save(o); err != nil {
		return err
	}
	id := o.ID()
	logger.Info("order saved", "aggregate_id", id, "version", o.Version(), "state", o.String())

	// undo the confirm and ship steps
	if err := repo.RollbackToVersion(ctx, id, &order.Order{}, 3); err != nil {
		return err
	}

	current := order.Order{}
	if err := repo.Get(id, &current); err != nil {
		return err
	}
	logger.Info("after rollback", "version", current.Version(), "state", current.String())

	skipped, err := repo.SkippedVersions(ctx, id, &order.Order{})
	if err != nil {
		return err
	}
	logger.Info("skipped versions", "versions", fmt.Sprint(skipped))

	// a skipped version is rejected as a rollback target
	err = repo.RollbackToVersion(ctx, id, &order.Order{}, 4)
	var targetErr *ordersourcing.RollbackTargetError
	if errors.As(err, &targetErr) {
		logger.Info("rollback target rejected", "err", targetErr.Error())
	} else if err != nil {
		return err
	}

	// historical reads
	atTwo := order.Order{}
	if err := repo.GetToVersion(ctx, id, &atTwo, 2); err != nil {
		return err
	}
	logger.Info("state at version 2", "state", atTwo.String())

	asOfBasket := order.Order{}
	if err := repo.GetToTimestamp(ctx, id, &asOfBasket, basketAt); err != nil {
		return err
	}
	logger.Info("state as of basket capture", "at", basketAt, "state", asOfBasket.String())

	// the rolled back order keeps moving forward from the restored point
	if err := current.UpdateStatus(order.StatusCancelled); err != nil {
		return err
	}
	if err := repo.Save(&current); err != nil {
		return err
	}
	logger.Info("order cancelled after rollback", "version", current.Version(), "state", current.String())
	return nil
}

func openStore(ctx context.Context, cfg config) (core.EventStore, func(), error) {
	switch cfg.Store {
	case "memory":
		store := memory.Create()
		return store, store.Close, nil
	case "sqlite":
		db, err := sql.Open("sqlite3", cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		store := sqlstore.Open(db)
		if err := store.Migrate(); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, store.Close, nil
	case "bbolt":
		store := bbolt.MustOpenBBolt(cfg.BBoltPath)
		return store, func() { store.Close() }, nil
	case "postgres":
		store, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, store.Close, nil
	case "eventstoredb":
		settings, err := esdbclient.ParseConnectionString(cfg.EventStoreURL)
		if err != nil {
			return nil, nil, err
		}
		client, err := esdbclient.NewClient(settings)
		if err != nil {
			return nil, nil, err
		}
		store := esdb.Open(client, true)
		return store, func() { client.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store)
}
