package credentials

import "errors"

var (
	// ErrEmptyToken indicates a Save call with a blank access or refresh token.
	ErrEmptyToken = errors.New("credentials.empty_token")
	// ErrUnsupportedScheme indicates that no store backend matches the URL scheme.
	ErrUnsupportedScheme = errors.New("credentials.unsupported_scheme")
	// ErrMalformedToken indicates that a token could not be decoded as a JWT.
	ErrMalformedToken = errors.New("credentials.malformed_token")

	errEmptyStoreURL       = errors.New("credentials.empty_store_url")
	errSQLiteEmptyPath     = errors.New("credentials.sqlite.empty_path")
	errSQLiteInvalidURL    = errors.New("credentials.sqlite.invalid_url")
	errUnsupportedNoScheme = errors.New("credentials.unsupported_no_scheme")
)
