package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	cryptoService "github.com/allisson/secretvault/internal/crypto/service"
)

// RunCreateMasterKey generates a 32-byte master key and prints it as environment variables.
// If keyID is empty, generates a default ID in format "master-key-YYYY-MM-DD".
//
// With kmsProvider and kmsKeyURI the key is encrypted with KMS before output; without them
// the raw key is printed base64 encoded, which is only suitable for local development.
//
// Output format:
//   - MASTER_KEYS="<keyID>:<base64>"
//   - ACTIVE_MASTER_KEY_ID="<keyID>"
//   - KMS_PROVIDER and KMS_KEY_URI in KMS mode
func RunCreateMasterKey(
	ctx context.Context,
	kmsService cryptoService.KMSService,
	logger *slog.Logger,
	writer io.Writer,
	keyID, kmsProvider, kmsKeyURI string,
) error {
	if err := validateKMSParams(kmsProvider, kmsKeyURI); err != nil {
		return err
	}
	if keyID == "" {
		keyID = defaultMasterKeyID()
	}

	encodedKey, err := newEncodedMasterKey(ctx, kmsService, logger, kmsKeyURI)
	if err != nil {
		return err
	}

	if kmsKeyURI != "" {
		_, _ = fmt.Fprintln(writer, "# Master Key Configuration (KMS Mode)")
	} else {
		_, _ = fmt.Fprintln(writer, "# Master Key Configuration (plaintext, development only)")
	}
	_, _ = fmt.Fprintln(writer, "# Copy these environment variables to your .env file or secrets manager")
	_, _ = fmt.Fprintln(writer)
	if kmsKeyURI != "" {
		_, _ = fmt.Fprintf(writer, "KMS_PROVIDER=\"%s\"\n", kmsProvider)
		_, _ = fmt.Fprintf(writer, "KMS_KEY_URI=\"%s\"\n", kmsKeyURI)
	}
	_, _ = fmt.Fprintf(writer, "MASTER_KEYS=\"%s:%s\"\n", keyID, encodedKey)
	_, _ = fmt.Fprintf(writer, "ACTIVE_MASTER_KEY_ID=\"%s\"\n", keyID)

	logger.Info("master key created", slog.String("key_id", keyID), slog.Bool("kms", kmsKeyURI != ""))
	return nil
}
