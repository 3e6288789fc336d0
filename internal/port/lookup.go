package port

import (
	"context"

	"ipanalyzer/internal/domain"
)

// IPLookup abstracts a single upstream geolocation/ISP query.
type IPLookup interface {
	Lookup(ctx context.Context, ip domain.IPKey) (*domain.IPInfo, error)
}

// CredentialChecker calls a remote service with the configured credentials.
type CredentialChecker interface {
	Name() string
	CheckCredentials(ctx context.Context) error
}
