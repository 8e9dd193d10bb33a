package provider

import (
	"github.com/brojonat/custodian/client"
	"github.com/brojonat/custodian/service/config"
	"github.com/pkg/errors"
)

var (
	// ErrUnsupportedNetwork is returned by New for networks outside the
	// supported set.
	ErrUnsupportedNetwork = config.ErrUnsupportedNetwork

	// ErrNoServer is returned when no wallet service origin could be resolved.
	ErrNoServer = errors.New("wallet service origin is not configured")

	// ErrNoSurface is returned when an operation needs to show the wallet
	// service's pages but the provider has no surface or message channel.
	ErrNoSurface = errors.New("no rendering surface available")

	// ErrHandshakeCanceled is returned when the user cancels sign-in.
	ErrHandshakeCanceled = errors.New("sign-in canceled")

	// ErrMalformedChallenge is returned when the sign-in page approves
	// without a session code.
	ErrMalformedChallenge = errors.New("malformed challenge response")

	// ErrNotConnected is returned when an authorization is attempted
	// without a session.
	ErrNotConnected = errors.New("session is not connected")

	// ErrAuthorizationDeclined is returned when the user declines a transaction.
	ErrAuthorizationDeclined = errors.New("transaction canceled")

	// ErrUnsupportedOperation is returned for the legacy signing methods.
	ErrUnsupportedOperation = errors.New("unsupported operation: this provider only supports signAndSendTransaction")

	// ErrInvalidParams is returned when request params have the wrong shape.
	ErrInvalidParams = errors.New("invalid params")
)

// TransportError is the error type for failed backend and RPC exchanges.
type TransportError = client.TransportError
