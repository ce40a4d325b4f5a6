package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	cryptoService "github.com/allisson/secretvault/internal/crypto/service"
)

// RunRotateMasterKey generates a new master key, appends it to the existing MASTER_KEYS and
// prints the configuration that makes it active. Existing secrets stay readable with the old
// keys until "rewrap-secrets" moves them to the new one.
func RunRotateMasterKey(
	ctx context.Context,
	kmsService cryptoService.KMSService,
	logger *slog.Logger,
	writer io.Writer,
	keyID, kmsProvider, kmsKeyURI, existingMasterKeys, existingActiveKeyID string,
) error {
	if err := validateKMSParams(kmsProvider, kmsKeyURI); err != nil {
		return err
	}
	if existingMasterKeys == "" {
		return fmt.Errorf("MASTER_KEYS is not set - cannot rotate without existing keys")
	}
	if existingActiveKeyID == "" {
		return fmt.Errorf("ACTIVE_MASTER_KEY_ID is not set")
	}
	if keyID == "" {
		keyID = defaultMasterKeyID()
	}
	for _, entry := range strings.Split(existingMasterKeys, ",") {
		if id, _, _ := strings.Cut(strings.TrimSpace(entry), ":"); id == keyID {
			return fmt.Errorf("master key id %q already exists", keyID)
		}
	}

	encodedKey, err := newEncodedMasterKey(ctx, kmsService, logger, kmsKeyURI)
	if err != nil {
		return err
	}

	// New key last, set as active
	newMasterKeys := fmt.Sprintf("%s,%s:%s", existingMasterKeys, keyID, encodedKey)

	_, _ = fmt.Fprintln(writer, "# Master Key Rotation")
	_, _ = fmt.Fprintln(writer, "# Update these environment variables in your .env file or secrets manager")
	_, _ = fmt.Fprintln(writer)
	if kmsKeyURI != "" {
		_, _ = fmt.Fprintf(writer, "KMS_PROVIDER=\"%s\"\n", kmsProvider)
		_, _ = fmt.Fprintf(writer, "KMS_KEY_URI=\"%s\"\n", kmsKeyURI)
	}
	_, _ = fmt.Fprintf(writer, "MASTER_KEYS=\"%s\"\n", newMasterKeys)
	_, _ = fmt.Fprintf(writer, "ACTIVE_MASTER_KEY_ID=\"%s\"\n", keyID)
	_, _ = fmt.Fprintln(writer)
	_, _ = fmt.Fprintln(writer, "# Rotation Workflow:")
	_, _ = fmt.Fprintln(writer, "# 1. Update the above environment variables")
	_, _ = fmt.Fprintln(writer, "# 2. Restart the application")
	_, _ = fmt.Fprintln(writer, "# 3. Re-encrypt secrets: app rewrap-secrets")
	_, _ = fmt.Fprintf(writer,
		"# 4. After all secrets are rewrapped, remove the old key (%s) from MASTER_KEYS\n",
		existingActiveKeyID,
	)

	logger.Info("master key rotated",
		slog.String("previous_key_id", existingActiveKeyID),
		slog.String("key_id", keyID),
	)
	return nil
}
