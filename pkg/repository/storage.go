package repository

import (
	"context"
	"strconv"

	"cloud.google.com/go/firestore"
	"github.com/georgysavva/scany/pgxscan"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"

	"patrolchat/pkg/api"
	"patrolchat/pkg/errors"
)

// Storage combines the Firestore conversation store with the
// PostgreSQL officer directory, matching the two collaborator
// interfaces the chat service consumes.
type Storage interface {
	api.ChatRepository
	api.UserRepository
}

type storage struct {
	db     *pgxpool.Pool
	client *firestore.Client
	log    *zap.Logger
}

func NewStorage(db *pgxpool.Pool, client *firestore.Client, log *zap.Logger) Storage {
	return &storage{db: db, client: client, log: log}
}

func (s *storage) GetUserByIds(ctx context.Context, uIds []string) ([]*api.UserModel, error) {
	if len(uIds) == 0 {
		return nil, nil
	}

	ids := make([]interface{}, len(uIds))
	inStmt := "$1"
	ids[0] = uIds[0]
	for i := 1; i < len(uIds); i++ {
		inStmt = inStmt + ",$" + strconv.Itoa(i+1)
		ids[i] = uIds[i]
	}

	var users []*api.UserModel
	if err := pgxscan.Select(ctx, s.db, &users, "SELECT * FROM user_account WHERE uid IN ("+inStmt+")", ids...); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "querying user accounts", err)
	}
	return users, nil
}

func (s *storage) GetUsersByUsernameContaining(ctx context.Context, query string) ([]*api.UserModel, error) {
	var users []*api.UserModel
	if err := pgxscan.Select(ctx, s.db, &users,
		"SELECT * FROM user_account WHERE username ILIKE '%' || $1 || '%'", query); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "searching user accounts", err)
	}
	return users, nil
}
