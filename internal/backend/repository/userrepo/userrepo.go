package userrepo

import "errors"

var (
	ErrNotFound       = errors.New("user not found")
	ErrUsernameExists = errors.New("username already exists")
	ErrEmailExists    = errors.New("email already exists")
	ErrActionNotFound = errors.New("action not found")
)

type ListUsersRequest struct {
	Search  string
	OrderBy string
	Limit   int
	Offset  int
}
