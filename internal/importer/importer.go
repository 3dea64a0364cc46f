// Package importer loads guest records from a CSV export into the store.
// It is an offline, idempotent operation: re-running it replaces existing
// guest documents and never touches RSVPs.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ldelange/invitation/internal/models"
	"github.com/ldelange/invitation/internal/storage"
)

// Importer reads guest rows and upserts them.
type Importer struct {
	store  storage.Store
	logger *slog.Logger
}

func New(store storage.Store, logger *slog.Logger) *Importer {
	return &Importer{store: store, logger: logger}
}

// Run imports every valid row from r and returns the number of guests
// written. The first row must be a header; column order is free. Rows
// missing a code or name, or with a non-positive seat allocation, are
// skipped with a warning rather than aborting the whole import.
func (i *Importer) Run(ctx context.Context, r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read csv header: %w", err)
	}
	col := map[string]int{}
	for idx, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = idx
	}
	for _, required := range []string{"code", "name", "seatsallocated"} {
		if _, ok := col[required]; !ok {
			return 0, fmt.Errorf("csv header is missing column %q", required)
		}
	}

	field := func(row []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	imported := 0
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return imported, fmt.Errorf("failed to read csv row %d: %w", line, err)
		}

		guest := &models.Guest{
			Code:           strings.ToUpper(field(row, "code")),
			Name:           field(row, "name"),
			Email:          field(row, "email"),
			DietaryDefault: field(row, "dietarydefault"),
			MessageDefault: field(row, "messagedefault"),
		}
		guest.SeatsAllocated, _ = strconv.Atoi(field(row, "seatsallocated"))
		guest.HostedStay, _ = strconv.ParseBool(field(row, "hostedstay"))
		guest.CompedNights, _ = strconv.Atoi(field(row, "compednights"))
		guest.AmountDueZAR, _ = strconv.ParseFloat(field(row, "amountduezar"), 64)

		if guest.Code == "" || guest.Name == "" {
			i.logger.Warn("skipping row without code or name", "line", line)
			continue
		}
		if guest.SeatsAllocated < 1 {
			i.logger.Warn("skipping row with invalid seat allocation",
				"line", line, "code", guest.Code, "seats", field(row, "seatsallocated"))
			continue
		}

		if err := i.store.UpsertGuest(ctx, guest); err != nil {
			return imported, fmt.Errorf("failed to import guest %s: %w", guest.Code, err)
		}
		imported++
		if imported%25 == 0 {
			i.logger.Info("import progress", "imported", imported)
		}
	}

	i.logger.Info("import complete", "imported", imported)
	return imported, nil
}
