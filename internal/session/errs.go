package session

import "github.com/pkg/errors"

var (
	ErrNoScript    = errors.New("login script not configured")
	ErrLoginFailed = errors.New("unable to connect to OpenFaaS gateway")
)
