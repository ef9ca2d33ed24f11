package embedding

import "errors"

var (
	ErrMissingCredentials = errors.New("embedding provider credentials not configured")
	ErrUnknownProvider    = errors.New("unknown embedding provider")
	ErrEmbedding          = errors.New("embedding request failed")
)
