package api

import (
	"net/http"

	tournamentSvc "arena-ace/internal/service/tournament"
	walletSvc "arena-ace/internal/service/wallet"
	"arena-ace/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type depositBody struct {
	Amount decimal.Decimal `json:"amount"`
	UTR    string          `json:"utr" binding:"required"`
}

type withdrawalBody struct {
	Amount decimal.Decimal `json:"amount"`
	UPIID  string          `json:"upiId" binding:"required"`
}

type ensureProfileBody struct {
	Name  string `json:"name" binding:"required,max=64"`
	Email string `json:"email" binding:"omitempty,email"`
}

type updateProfileBody struct {
	Name string `json:"name" binding:"required"`
}

func (h *Handler) ListTournaments(c *gin.Context) {
	page, size, ok := parsePage(c)
	if !ok {
		return
	}
	result, err := h.services.Tournament.List(c.Request.Context(), tournamentSvc.ListFilter{
		Page:   page,
		Size:   size,
		Game:   c.Query("game"),
		Status: c.Query("status"),
		Public: true,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) GetTournament(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	t, err := h.services.Tournament.Get(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, t)
}

func (h *Handler) JoinTournament(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	entry, err := h.services.Tournament.Join(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMsg(c, entry, "joined tournament")
}

func (h *Handler) GetResult(c *gin.Context) {
	res, err := h.services.Result.Get(c.Request.Context(), c.Param("tournamentId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, res)
}

func (h *Handler) GetWallet(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	w, err := h.services.Wallet.GetWallet(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, w)
}

func (h *Handler) ListTransactions(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	page, size, ok := parsePage(c)
	if !ok {
		return
	}
	result, err := h.services.Wallet.ListTransactions(c.Request.Context(), userID, page, size)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) SubmitDeposit(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var body depositBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	req, err := h.services.Wallet.SubmitDeposit(c.Request.Context(), userID, body.Amount, body.UTR)
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMsg(c, req, "deposit request submitted")
}

func (h *Handler) ListMyDeposits(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	page, size, ok := parsePage(c)
	if !ok {
		return
	}
	result, err := h.services.Wallet.ListDeposits(c.Request.Context(), walletSvc.RequestFilter{
		Page:   page,
		Size:   size,
		Status: c.Query("status"),
		UserID: userID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) SubmitWithdrawal(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var body withdrawalBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	req, err := h.services.Wallet.SubmitWithdrawal(c.Request.Context(), userID, body.Amount, body.UPIID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMsg(c, req, "withdrawal request submitted")
}

func (h *Handler) ListMyWithdrawals(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	page, size, ok := parsePage(c)
	if !ok {
		return
	}
	result, err := h.services.Wallet.ListWithdrawals(c.Request.Context(), walletSvc.RequestFilter{
		Page:   page,
		Size:   size,
		Status: c.Query("status"),
		UserID: userID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) GetPaymentSettings(c *gin.Context) {
	settings, err := h.services.Settings.Current(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, settings)
}

func (h *Handler) ListNotifications(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	items, err := h.services.Notification.List(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"items": items})
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	if err := h.services.Notification.MarkRead(c.Request.Context(), c.Param("id"), userID); err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMsg(c, gin.H{}, "marked as read")
}

func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	if err := h.services.Notification.MarkAllRead(c.Request.Context(), userID); err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMsg(c, gin.H{}, "all marked as read")
}

func (h *Handler) DeleteNotification(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	if err := h.services.Notification.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMsg(c, gin.H{}, "notification deleted")
}

func (h *Handler) DeleteAllNotifications(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	if err := h.services.Notification.DeleteAll(c.Request.Context(), userID); err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMsg(c, gin.H{}, "notifications cleared")
}

func (h *Handler) GetProfile(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	u, err := h.services.User.GetProfile(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, u)
}

// EnsureProfile creates the caller's profile on first sign-in and returns the existing one afterwards.
func (h *Handler) EnsureProfile(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var body ensureProfileBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	u, err := h.services.User.EnsureProfile(c.Request.Context(), userID, body.Name, body.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, u)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var body updateProfileBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	u, err := h.services.User.UpdateName(c.Request.Context(), userID, body.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMsg(c, u, "profile updated")
}
