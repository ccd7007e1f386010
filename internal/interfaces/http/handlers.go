package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/mstancik/expenseflow/internal/application/port"
	"github.com/mstancik/expenseflow/internal/application/service"
	"github.com/mstancik/expenseflow/internal/domain/claim"
	"github.com/mstancik/expenseflow/internal/domain/org"
	"github.com/mstancik/expenseflow/internal/export"
)

// maxReceiptUpload caps the multipart memory for receipt uploads.
const maxReceiptUpload = 20 << 20

// Handlers contains all HTTP request handlers
type Handlers struct {
	claims    service.ClaimService
	orgs      service.OrgService
	extractor port.ReceiptExtractor
	vouchers  *export.VoucherWriter
	logger    Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	claims service.ClaimService,
	orgs service.OrgService,
	extractor port.ReceiptExtractor,
	vouchers *export.VoucherWriter,
	logger Logger,
) *Handlers {
	return &Handlers{
		claims:    claims,
		orgs:      orgs,
		extractor: extractor,
		vouchers:  vouchers,
		logger:    logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// GetOrg handles GET /api/org
func (h *Handlers) GetOrg(c *gin.Context) {
	model, err := h.orgs.Get(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: model})
}

// ReplaceOrg handles PUT /api/org. The body replaces the model wholesale.
func (h *Handlers) ReplaceOrg(c *gin.Context) {
	var model org.Model
	if err := c.ShouldBindJSON(&model); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid organization model"})
		return
	}
	if err := h.orgs.Replace(c.Request.Context(), &model); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: model})
}

// CreateClaimRequest is the payload for POST /api/claims.
type CreateClaimRequest struct {
	RequesterID string                `json:"requester_id" binding:"required"`
	Amount      string                `json:"amount" binding:"required"`
	Currency    string                `json:"currency" binding:"required"`
	TaxAmount   string                `json:"tax_amount"`
	Vendor      string                `json:"vendor"`
	Category    string                `json:"category"`
	Description string                `json:"description"`
	Reference   string                `json:"reference"`
	PayTo       string                `json:"pay_to"`
	ExpenseType string                `json:"expense_type"`
	Urgency     string                `json:"urgency"`
	InvoiceDate string                `json:"invoice_date"`
	DueDate     string                `json:"due_date"`
	Extracted   *port.ExtractedFields `json:"extracted,omitempty"`
}

// CreateClaim handles POST /api/claims
func (h *Handlers) CreateClaim(c *gin.Context) {
	var req CreateClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid claim payload"})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.IsNegative() {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "amount must be a non-negative decimal"})
		return
	}
	taxAmount := decimal.Zero
	if req.TaxAmount != "" {
		if taxAmount, err = decimal.NewFromString(req.TaxAmount); err != nil {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "tax_amount must be a decimal"})
			return
		}
	}

	input := service.CreateClaimInput{
		RequesterID: req.RequesterID,
		Amount:      amount,
		Currency:    req.Currency,
		TaxAmount:   taxAmount,
		Vendor:      req.Vendor,
		Category:    req.Category,
		Description: req.Description,
		Reference:   req.Reference,
		PayTo:       req.PayTo,
		ExpenseType: claim.ExpenseType(req.ExpenseType),
		Urgency:     claim.Urgency(req.Urgency),
		InvoiceDate: parseDate(req.InvoiceDate),
		DueDate:     parseDate(req.DueDate),
		Extracted:   req.Extracted,
	}

	created, err := h.claims.Create(c.Request.Context(), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: created})
}

// ListClaims handles GET /api/claims
func (h *Handlers) ListClaims(c *gin.Context) {
	filter := port.ClaimFilter{
		RequesterID: c.Query("requester_id"),
		Status:      claim.Status(c.Query("status")),
		Search:      c.Query("search"),
		Sort:        c.Query("sort"),
	}
	claims, err := h.claims.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: claims})
}

// GetClaim handles GET /api/claims/:id
func (h *Handlers) GetClaim(c *gin.Context) {
	found, err := h.claims.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: found})
}

// ActionRequest is the payload for approve/reject actions.
type ActionRequest struct {
	ActorID string `json:"actor_id" binding:"required"`
	Comment string `json:"comment"`
}

// Approve handles POST /api/claims/:id/approve
func (h *Handlers) Approve(c *gin.Context) {
	h.act(c, claim.DecisionApprove)
}

// Reject handles POST /api/claims/:id/reject
func (h *Handlers) Reject(c *gin.Context) {
	h.act(c, claim.DecisionReject)
}

func (h *Handlers) act(c *gin.Context, decision claim.Decision) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid action payload"})
		return
	}

	updated, err := h.claims.Act(c.Request.Context(), c.Param("id"), req.ActorID, decision, req.Comment)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: updated})
}

// FinanceApprovalRequest carries the final-step approval with posting
// choices.
type FinanceApprovalRequest struct {
	ActorID       string `json:"actor_id" binding:"required"`
	GLAccountCode string `json:"gl_account_code"`
	CreateAPAR    bool   `json:"create_ap_ar"`
	PostJournal   bool   `json:"post_journal"`
	Comments      string `json:"comments"`
}

// FinanceApprove handles POST /api/claims/:id/finance-approval
func (h *Handlers) FinanceApprove(c *gin.Context) {
	var req FinanceApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid finance approval payload"})
		return
	}

	updated, err := h.claims.FinanceApprove(c.Request.Context(), c.Param("id"), req.ActorID, claim.FinancePosting{
		GLAccountCode: req.GLAccountCode,
		CreateAPAR:    req.CreateAPAR,
		PostJournal:   req.PostJournal,
		Comments:      req.Comments,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: updated})
}

// PendingApprovals handles GET /api/approvals/pending?user_id=
func (h *Handlers) PendingApprovals(c *gin.Context) {
	h.userView(c, h.claims.AwaitingUser)
}

// ApprovalHistory handles GET /api/approvals/history?user_id=
func (h *Handlers) ApprovalHistory(c *gin.Context) {
	h.userView(c, h.claims.ActedOnByUser)
}

func (h *Handlers) userView(c *gin.Context, view func(ctx context.Context, userID string) ([]*claim.Claim, error)) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "user_id is required"})
		return
	}
	claims, err := view(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: claims})
}

// ExtractReceipt handles POST /api/extract with multipart receipt files.
// Extraction failure is a successful response carrying the structured
// error; the form falls back to manual entry.
func (h *Handlers) ExtractReceipt(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid multipart form"})
		return
	}

	currency := c.PostForm("currency")
	if currency == "" {
		currency = "EUR"
	}

	var files []port.ReceiptFile
	for _, fh := range form.File["files"] {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: fmt.Sprintf("cannot read %s", fh.Filename)})
			return
		}
		content, err := io.ReadAll(io.LimitReader(f, maxReceiptUpload))
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: fmt.Sprintf("cannot read %s", fh.Filename)})
			return
		}
		files = append(files, port.ReceiptFile{Name: fh.Filename, Content: content})
	}
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "no files uploaded"})
		return
	}

	result, err := h.extractor.Extract(c.Request.Context(), files, currency)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// ExportCSV handles GET /api/claims/:id/export.csv
func (h *Handlers) ExportCSV(c *gin.Context) {
	found, err := h.claims.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, found); err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=claim-%s.csv", found.ID))
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

// ExportVoucher handles GET /api/claims/:id/voucher
func (h *Handlers) ExportVoucher(c *gin.Context) {
	found, err := h.claims.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	var buf bytes.Buffer
	if err := h.vouchers.WriteVoucher(&buf, found); err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=voucher-%s.xlsx", found.ID))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// fail maps domain and port errors onto HTTP statuses. Precondition and
// authorization failures are non-destructive client errors.
func (h *Handlers) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, port.ErrClaimNotFound):
		status = http.StatusNotFound
	case errors.Is(err, claim.ErrRequesterNotFound):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, claim.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, claim.ErrClaimTerminal),
		errors.Is(err, claim.ErrStepNotPending),
		errors.Is(err, claim.ErrNoActiveStep),
		errors.Is(err, claim.ErrUnbalancedJournal),
		errors.Is(err, port.ErrVersionConflict):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "error", err)
	}
	c.JSON(status, Response{Success: false, Error: err.Error()})
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}
