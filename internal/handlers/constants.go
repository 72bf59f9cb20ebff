package handlers

// Common error message constants shared across handlers
const (
	ErrMsgInvalidRequestBody = "Invalid request body"
	ErrMsgUnauthorized       = "Unauthorized"
	ErrMsgReviewNotFound     = "Review not found"
	ErrMsgInternal           = "Internal server error"
)

// API path constants
const (
	APIBasePath   = "/api/v1"
	AdminBasePath = "/api/v1/admin"
)

// Audit action constants
const (
	AuditActionReportSubmit   = "report.submit"
	AuditActionReviewView     = "review.view"
	AuditActionReviewDecide   = "review.decide"
	AuditActionReceiptsList   = "receipts.list"
	AuditActionReceiptsExport = "receipts.export"
	AuditActionAuditList      = "audit.list"
)
