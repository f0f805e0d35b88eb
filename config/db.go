package config

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
)

// SetupDatabase opens a connection pool to the officer directory database.
func SetupDatabase(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.Connect(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	return pool, nil
}
