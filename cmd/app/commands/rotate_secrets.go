package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	vaultUseCase "github.com/allisson/secretvault/internal/vault/usecase"
)

// RunRotateDueSecrets rotates every secret whose rotation policy is due at now.
// Returns an error when any secret failed to rotate.
func RunRotateDueSecrets(
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

	logger.Info("rotating due secrets", slog.Time("now", now))

	report, err := useCase.RotateDueSecrets(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to rotate due secrets: %w", err)
	}
	return outputRotationReport(writer, logger, "rotate-due-secrets", report, format)
}

// RunRewrapSecrets re-encrypts every secret still bound to a master key other than the
// active one. Run it after "rotate-master-key" and a restart.
func RunRewrapSecrets(
	ctx context.Context,
	useCase vaultUseCase.VaultUseCase,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	logger.Info("rewrapping secrets to the active master key")

	report, err := useCase.RotateMasterKey(ctx)
	if err != nil {
		return fmt.Errorf("failed to rewrap secrets: %w", err)
	}
	return outputRotationReport(writer, logger, "rewrap-secrets", report, format)
}

func outputRotationReport(
	writer io.Writer,
	logger *slog.Logger,
	operation string,
	report *vaultUseCase.RotationReport,
	format string,
) error {
	failed := make([]string, 0, len(report.Errors))
	for id, rotationErr := range report.Errors {
		failed = append(failed, fmt.Sprintf("%s: %v", id, rotationErr))
	}
	sort.Strings(failed)

	if format == "json" {
		if err := writeJSON(writer, map[string]any{
			"rotated": report.Rotated,
			"failed":  report.Failed,
			"errors":  failed,
		}); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintf(writer, "Rotated: %d\n", report.Rotated)
		_, _ = fmt.Fprintf(writer, "Failed:  %d\n", report.Failed)
		for _, line := range failed {
			_, _ = fmt.Fprintf(writer, "  - %s\n", line)
		}
	}

	logger.Info("rotation completed",
		slog.String("operation", operation),
		slog.Int("rotated", report.Rotated),
		slog.Int("failed", report.Failed),
	)

	if report.Failed > 0 {
		return fmt.Errorf("%s: %d secret(s) failed to rotate", operation, report.Failed)
	}
	return nil
}
