package service

import (
	"context"
	"fmt"
	"net/url"

	"gocloud.dev/secrets"

	cryptoDomain "github.com/allisson/secretvault/internal/crypto/domain"
	apperrors "github.com/allisson/secretvault/internal/errors"

	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// kmsProviderSchemes maps a KMS provider name to the URI scheme its keeper is opened with.
var kmsProviderSchemes = map[string]string{
	"awskms":        "awskms",
	"azurekeyvault": "azurekeyvault",
	"gcpkms":        "gcpkms",
	"hashivault":    "hashivault",
	"localsecrets":  "base64key",
}

// ErrUnsupportedKMSProvider is returned for a provider name with no registered keeper.
var ErrUnsupportedKMSProvider = apperrors.Wrap(apperrors.ErrInvalidInput, "unsupported kms provider")

// KMSService opens keepers that wrap and unwrap master keys.
type KMSService interface {
	cryptoDomain.KeeperOpener
}

type kmsService struct{}

// NewKMSService creates a KMSService backed by gocloud.dev/secrets.
func NewKMSService() KMSService {
	return &kmsService{}
}

// OpenKeeper opens the keeper for keyURI.
func (k *kmsService) OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error) {
	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	return keeper, nil
}

// ValidateKMSKeyURI checks that keyURI uses the scheme served by provider.
func ValidateKMSKeyURI(provider, keyURI string) error {
	scheme, ok := kmsProviderSchemes[provider]
	if !ok {
		return apperrors.Wrapf(ErrUnsupportedKMSProvider, "%q", provider)
	}

	parsed, err := url.Parse(keyURI)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrInvalidInput, "invalid kms key uri: %v", err)
	}
	if parsed.Scheme != scheme {
		return apperrors.Wrapf(apperrors.ErrInvalidInput,
			"kms key uri for provider %s must use the %s:// scheme", provider, scheme)
	}
	return nil
}
