package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	vaultUseCase "github.com/allisson/secretvault/internal/vault/usecase"
)

// dateLayouts are tried in order; all are interpreted as UTC.
var dateLayouts = []string{time.DateTime, time.DateOnly}

// verifyResult is the JSON shape of verify-audit-logs.
type verifyResult struct {
	*vaultUseCase.AuditVerificationReport
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Passed bool      `json:"passed"`
}

// RunVerifyAuditLogs recomputes the signature of every audit entry created in [start, end).
// It returns an error when any entry fails to verify, so schedulers can alert on the exit code.
func RunVerifyAuditLogs(
	ctx context.Context,
	useCase vaultUseCase.VaultUseCase,
	logger *slog.Logger,
	writer io.Writer,
	startDate, endDate string,
	format string,
) error {
	start, end, err := parseRange(startDate, endDate)
	if err != nil {
		return err
	}
	if err := validateFormat(format); err != nil {
		return err
	}

	logger.Info("verifying audit signatures", slog.Time("start", start), slog.Time("end", end))

	report, err := useCase.VerifyAuditLogs(ctx, start, end)
	if err != nil {
		return fmt.Errorf("failed to verify audit logs: %w", err)
	}

	result := verifyResult{AuditVerificationReport: report, Start: start, End: end, Passed: report.Passed()}
	if format == "json" {
		err = writeJSON(writer, result)
	} else {
		err = writeVerifyText(writer, result)
	}
	if err != nil {
		return err
	}

	logger.Info("audit verification finished",
		slog.Int("checked", report.Total),
		slog.Int("invalid", report.Invalid),
	)

	if !result.Passed {
		return fmt.Errorf("integrity check failed: %d invalid signature(s)", report.Invalid)
	}
	return nil
}

func parseRange(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := parseDate(startDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date: %w", err)
	}
	end, err := parseDate(endDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date: %w", err)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date must be after start date")
	}
	return start, end, nil
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q does not match %q or %q", value, time.DateOnly, time.DateTime)
}

func writeVerifyText(writer io.Writer, result verifyResult) error {
	tw := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(tw, "Range:\t%s .. %s\n", result.Start.Format(time.DateTime), result.End.Format(time.DateTime))
	_, _ = fmt.Fprintf(tw, "Checked:\t%d\n", result.Total)
	_, _ = fmt.Fprintf(tw, "Valid:\t%d\n", result.Valid)
	_, _ = fmt.Fprintf(tw, "Invalid:\t%d\n", result.Invalid)
	for _, id := range result.InvalidIDs {
		_, _ = fmt.Fprintf(tw, "Tampered entry:\t%s\n", id)
	}

	status := "PASSED"
	switch {
	case !result.Passed:
		status = "FAILED"
	case result.Total == 0:
		status = "EMPTY (no entries in range)"
	}
	_, _ = fmt.Fprintf(tw, "Status:\t%s\n", status)

	return tw.Flush()
}
