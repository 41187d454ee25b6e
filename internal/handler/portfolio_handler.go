package handler

import (
	"net/http"

	"github.com/hitoshi/fileteluss/internal/portfolio"
)

// PortfolioProvider はポートフォリオ表示内容を提供する。
type PortfolioProvider interface {
	View() portfolio.View
}

// PortfolioHandler はポートフォリオビューアのHTTPハンドラー。
type PortfolioHandler struct {
	provider PortfolioProvider
}

// NewPortfolioHandler はPortfolioHandlerを生成する。
func NewPortfolioHandler(provider PortfolioProvider) *PortfolioHandler {
	return &PortfolioHandler{provider: provider}
}

// GetPortfolio は埋め込みURLと表示内容を返す。
// GET /api/portfolio
func (h *PortfolioHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.provider.View())
}
