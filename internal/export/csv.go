// Package export renders finalized claims into human-readable documents:
// CSV rows and an Excel voucher. Read-only; never touches workflow state.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/mstancik/expenseflow/internal/domain/claim"
)

var csvHeader = []string{
	"Claim ID", "Requester", "Vendor", "Category", "Description",
	"Amount", "Currency", "Status", "Step Role", "Step Approver",
	"Step Status", "Action Date", "Comment",
}

// WriteCSV writes one row per approval step of the claim, with the claim
// columns repeated, matching the flattened export of the dashboard.
func WriteCSV(w io.Writer, c *claim.Claim) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, step := range c.Chain {
		actionDate := ""
		if step.ActionDate != nil {
			actionDate = step.ActionDate.Format(time.RFC3339)
		}
		row := []string{
			c.ID,
			c.RequesterID,
			c.Vendor,
			c.Category,
			c.Description,
			c.Amount.Amount.String(),
			c.Amount.Currency,
			c.Status.String(),
			step.Approver.Role.String(),
			step.Approver.UserID,
			string(step.Status),
			actionDate,
			step.Comment,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
