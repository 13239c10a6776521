package models

import (
	"errors"

	"github.com/rotisserie/eris"
)

var (
	ErrDocumentNotFound      = errors.New("document not found")
	ErrInvalidInput          = errors.New("invalid input")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrNoDatabase            = errors.New("database not available")
	ErrNoStorage             = errors.New("storage not available")
	ErrExtractionFailed      = errors.New("extraction failed")
	ErrOracleUnavailable     = errors.New("oracle unavailable")
	ErrMalformedOracleOutput = errors.New("malformed oracle output")
	ErrBillingFailed         = errors.New("billing api error")
	ErrNoBills               = errors.New("no bills container in extraction")
	ErrTemplateLearning      = errors.New("template learning failed")
)

// WrapError keeps the error kind reachable through errors.Is while adding operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return eris.Wrap(errors.Join(kind, err), operation)
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
