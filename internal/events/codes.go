package events

// Notice codes emitted by the checkout core. Codes suffixed _choice require a
// decision from the operator and render as modals; everything else is a toast.
const (
	CodeOutOfStock       = "out_of_stock"
	CodeQuantityRejected = "quantity_rejected"
	CodeScanChoice       = "scan_choice"
	CodeScanNotFound     = "scan_not_found"
	CodeProductDraft     = "product_draft"
	CodePaymentChoice    = "payment_choice"
	CodePaymentPending   = "payment_pending"
	CodePaymentVerified  = "payment_verified"
	CodePaymentFailed    = "payment_failed"
	CodePaymentTimeout   = "payment_timeout"
	CodePaymentCancelled = "payment_cancelled"
	CodeSaleCompleted    = "sale_completed"
	CodeSaleFailed       = "sale_failed"
	CodeSaleHeld         = "sale_held"
	CodeSaleRecalled     = "sale_recalled"
	CodeRecallBlocked    = "recall_blocked"
)
