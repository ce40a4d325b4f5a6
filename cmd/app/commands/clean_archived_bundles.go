package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	vaultUseCase "github.com/allisson/secretvault/internal/vault/usecase"
)

// RunCleanArchivedBundles deletes rotated-out bundles whose retention ended before now.
func RunCleanArchivedBundles(
	ctx context.Context,
	useCase vaultUseCase.VaultUseCase,
	logger *slog.Logger,
	writer io.Writer,
	now time.Time,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	logger.Info("cleaning archived bundles", slog.Time("before", now))

	count, err := useCase.PurgeArchivedBundles(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to purge archived bundles: %w", err)
	}

	if format == "json" {
		if err := writeJSON(writer, map[string]any{"count": count}); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintf(writer, "Successfully deleted %d archived bundle(s)\n", count)
	}

	logger.Info("cleanup completed", slog.Int64("count", count))
	return nil
}
