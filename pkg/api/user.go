package api

import (
	"context"

	"patrolchat/pkg/errors"
)

type UserService interface {
	GetUserByIds(ctx context.Context, userIds []string) ([]*UserModel, error)
	GetUsersByUsernameContaining(ctx context.Context, query string) ([]*UserModel, error)
}

type UserRepository interface {
	GetUserByIds(ctx context.Context, userIds []string) ([]*UserModel, error)
	GetUsersByUsernameContaining(ctx context.Context, query string) ([]*UserModel, error)
}

type userService struct {
	storage UserRepository
}

func NewUserService(repository UserRepository) UserService {
	return &userService{storage: repository}
}

func (u *userService) GetUserByIds(ctx context.Context, userIds []string) ([]*UserModel, error) {
	if len(userIds) == 0 {
		return nil, errors.InvalidArg("userId array is empty")
	}

	return u.storage.GetUserByIds(ctx, userIds)
}

func (u *userService) GetUsersByUsernameContaining(ctx context.Context, username string) ([]*UserModel, error) {
	if username == "" {
		return nil, errors.InvalidArg("username is empty")
	}

	return u.storage.GetUsersByUsernameContaining(ctx, username)
}
