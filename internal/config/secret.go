package config

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Secrets that ship in examples and must never sign production tokens.
var knownWeakSecrets = []string{
	"local-dev-token-secret-not-for-production",
	"changeme",
	"secret",
	"password",
	"test",
	"dev",
	"development",
}

const minSecretLength = 32

// ValidateSecret rejects empty, known-weak and short token secrets. In
// development a weak secret only produces a warning.
func ValidateSecret(secret string, isDev bool) error {
	if secret == "" {
		return errors.New(envPrefix + "TOKEN_SECRET is required")
	}
	for _, weak := range knownWeakSecrets {
		if secret == weak {
			if isDev {
				log.Warn().Msg("using a default token secret, not for production use")
				return nil
			}
			return fmt.Errorf("default/weak token secret not allowed in production environment")
		}
	}
	if len(secret) < minSecretLength {
		return fmt.Errorf("token secret must be at least %d characters (got %d)", minSecretLength, len(secret))
	}
	return nil
}
