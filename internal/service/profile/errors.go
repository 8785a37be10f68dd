package profile

import (
	"errors"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrAvatarTooLarge = errors.New("avatar is too large")
	ErrAvatarEmpty    = errors.New("avatar file is empty")
)
