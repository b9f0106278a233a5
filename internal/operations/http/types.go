package http

import "github.com/worklane/worklane-backend/internal/operations/domain"

type createOperationReq struct {
	Title          string `json:"title" binding:"required"`
	Description    string `json:"description,omitempty"`
	BudgetAmount   int64  `json:"budget_amount"`
	BudgetCurrency string `json:"budget_currency" binding:"required"`
}

type assignReq struct {
	ProviderID string `json:"provider_id" binding:"required"`
}

type operationResp struct {
	OK        bool              `json:"ok"`
	Operation *domain.Operation `json:"operation"`
}
