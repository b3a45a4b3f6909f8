package domain

import (
	"errors"
	"fmt"
)

var (
	// Degradable failures: absorbed by the orchestrator and recorded as
	// metadata on the eventual Answer rather than surfaced to the caller.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// Fatal failures.
	ErrAllModelsExhausted = errors.New("all models exhausted")
	ErrConfiguration      = errors.New("configuration error")

	// CacheCorrupt is treated as a cache miss, logged, never user-facing.
	ErrCacheCorrupt = errors.New("cache entry corrupt")

	ErrSourceNotFound = errors.New("source document not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrTemporary      = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

func Errorf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

// ErrorKind maps an error to its stable taxonomy string for API responses
// and attempt logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsKind(err, ErrConfiguration):
		return "ConfigurationError"
	case IsKind(err, ErrAllModelsExhausted):
		return "AllModelsExhausted"
	case IsKind(err, ErrEmbeddingUnavailable):
		return "EmbeddingUnavailable"
	case IsKind(err, ErrRetrievalUnavailable):
		return "RetrievalUnavailable"
	case IsKind(err, ErrCacheCorrupt):
		return "CacheCorrupt"
	case IsKind(err, ErrSourceNotFound):
		return "SourceNotFound"
	case IsKind(err, ErrInvalidInput):
		return "InvalidInput"
	case IsKind(err, ErrTemporary):
		return "Temporary"
	default:
		return "Internal"
	}
}
