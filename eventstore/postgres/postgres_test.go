package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/Noru-0/ordersourcing/core"
	"github.com/Noru-0/ordersourcing/core/testsuite"
	"github.com/Noru-0/ordersourcing/eventstore/postgres"
)

func TestSuite(t *testing.T) {
	url := os.Getenv("POSTGRES_URL")
	if url == "" {
		t.Skip("POSTGRES_URL not set")
	}
	f := func() (core.EventStore, func(), error) {
		es, err := postgres.Open(context.Background(), url)
		if err != nil {
			return nil, nil, err
		}
		if err := es.Migrate(context.Background()); err != nil {
			return nil, nil, err
		}
		return es, func() { es.Close() }, nil
	}
	testsuite.Test(t, f)
}
