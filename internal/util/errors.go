package util

import "errors"

var (
	ErrEmailRegistered       = errors.New("该邮箱已被注册")
	ErrPermissionDenied      = errors.New("permission denied")
	ErrGenerationUnavailable = errors.New("generation client is not configured")
	ErrInvalidCredentials    = errors.New("invalid email or password")
)
