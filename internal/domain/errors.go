package domain

import "errors"

var (
	ErrHistoryRecordNotFound = errors.New("history record not found")
	ErrSecretNotFound        = errors.New("secret not found")
	ErrSecretReadOnly        = errors.New("secret backend is read-only")
	ErrCacheClosed           = errors.New("history cache closed")
)
