package oauthmodel

import "errors"

var (
	ErrMissingClientCredentials = errors.New("client id and secret are required")
	ErrMissingUserCredentials   = errors.New("username and password are required")
	ErrMissingRefreshToken      = errors.New("refresh token is required")
	ErrUnsupportedGrantType     = errors.New("unsupported grant type")
)
