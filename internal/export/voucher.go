package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/mstancik/expenseflow/internal/domain/claim"
)

// VoucherWriter renders a payment voucher workbook for a finalized claim.
type VoucherWriter struct {
	companyName string
	logger      *zap.Logger
}

// NewVoucherWriter creates a new voucher writer
func NewVoucherWriter(companyName string, logger *zap.Logger) *VoucherWriter {
	return &VoucherWriter{
		companyName: companyName,
		logger:      logger,
	}
}

// WriteVoucher builds the voucher workbook and writes it to w.
func (vw *VoucherWriter) WriteVoucher(w io.Writer, c *claim.Claim) error {
	vw.logger.Info("Generating voucher",
		zap.String("claim_id", c.ID),
		zap.String("status", c.Status.String()))

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	set := func(cell string, value interface{}) {
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			vw.logger.Error("Failed to set voucher cell",
				zap.String("cell", cell),
				zap.Error(err))
		}
	}

	set("A1", vw.companyName)
	set("A2", "Expense Voucher")
	set("A4", "Voucher No.")
	set("B4", voucherNumber(c))
	set("A5", "Date")
	set("B5", c.UpdatedAt.Format("2006-01-02"))
	set("A6", "Requester")
	set("B6", c.RequesterID)
	set("A7", "Vendor")
	set("B7", c.Vendor)
	set("A8", "Category")
	set("B8", c.Category)
	set("A9", "Description")
	set("B9", c.Description)
	set("A10", "Amount")
	set("B10", fmt.Sprintf("%s %s", c.Amount.Amount.String(), c.Amount.Currency))
	set("A11", "Status")
	set("B11", c.Status.String())

	// Approval trail
	set("A13", "Approvals")
	row := 14
	for _, step := range c.Chain {
		set(fmt.Sprintf("A%d", row), step.Approver.Role.String())
		set(fmt.Sprintf("B%d", row), string(step.Status))
		set(fmt.Sprintf("C%d", row), step.Approver.UserID)
		if step.ActionDate != nil {
			set(fmt.Sprintf("D%d", row), step.ActionDate.Format("2006-01-02 15:04"))
		}
		set(fmt.Sprintf("E%d", row), step.Comment)
		row++
	}

	if c.Proposal != nil {
		row++
		set(fmt.Sprintf("A%d", row), "Proposed GL Account")
		set(fmt.Sprintf("B%d", row), fmt.Sprintf("%s %s", c.Proposal.GLAccount.AccountCode, c.Proposal.GLAccount.AccountName))
		row++
		set(fmt.Sprintf("A%d", row), "Journal")
		set(fmt.Sprintf("B%d", row), fmt.Sprintf("Dr %s %s / Cr %s %s",
			c.Proposal.Journal.DebitAccount, c.Proposal.Journal.DebitAmount.String(),
			c.Proposal.Journal.CreditAccount, c.Proposal.Journal.CreditAmount.String()))
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write voucher workbook: %w", err)
	}
	return nil
}

func voucherNumber(c *claim.Claim) string {
	id := c.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("EXP-%s-%s", time.Now().Format("200601"), id)
}
