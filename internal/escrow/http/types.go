package http

import "github.com/worklane/worklane-backend/internal/escrow/domain"

type createEscrowReq struct {
	ProjectID string `json:"project_id" binding:"required"`
	Amount    int64  `json:"amount" binding:"required"`
	Currency  string `json:"currency" binding:"required"`
}

type releaseFundsReq struct {
	Amount    int64  `json:"amount" binding:"required"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"` // falls back to X-Request-Id header
}

type refundReq struct {
	Reason string `json:"reason,omitempty"`
}

type resolveDisputeReq struct {
	Outcome string `json:"outcome" binding:"required"` // "release" or "refund"
}

type escrowResp struct {
	OK       bool           `json:"ok"`
	Escrow   *domain.Escrow `json:"escrow"`
	Replayed bool           `json:"replayed,omitempty"`
}
