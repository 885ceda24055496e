package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"arena-ace/internal/middleware"
	"arena-ace/internal/model"
	"arena-ace/internal/service/advisory"
	resultSvc "arena-ace/internal/service/result"
	settingsSvc "arena-ace/internal/service/settings"
	tournamentSvc "arena-ace/internal/service/tournament"
	userSvc "arena-ace/internal/service/user"
	walletSvc "arena-ace/internal/service/wallet"
	"arena-ace/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/shopspring/decimal"
)

const maxImageBytes = 5 << 20

type adminLoginBody struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tournamentBody struct {
	Title        string            `json:"title" binding:"required,max=128"`
	Game         string            `json:"game" binding:"required,max=64"`
	Date         string            `json:"date"`
	Time         string            `json:"time"`
	EntryFee     decimal.Decimal   `json:"entryFee"`
	Slots        int               `json:"slots" binding:"required,min=1"`
	Prize        decimal.Decimal   `json:"prize"`
	Rules        []string          `json:"rules"`
	Status       string            `json:"status" binding:"omitempty,oneof=draft published live completed cancelled"`
	IsMega       bool              `json:"isMega"`
	RoomID       string            `json:"roomId" binding:"max=64"`
	RoomPassword string            `json:"roomPassword" binding:"max=64"`
	WinnerPrizes []decimal.Decimal `json:"winnerPrizes"`
}

func (b tournamentBody) toParams(id string) tournamentSvc.UpsertParams {
	return tournamentSvc.UpsertParams{
		ID:           id,
		Title:        b.Title,
		Game:         b.Game,
		Date:         b.Date,
		Time:         b.Time,
		EntryFee:     b.EntryFee,
		Slots:        b.Slots,
		Prize:        b.Prize,
		Rules:        b.Rules,
		Status:       b.Status,
		IsMega:       b.IsMega,
		RoomID:       b.RoomID,
		RoomPassword: b.RoomPassword,
		WinnerPrizes: b.WinnerPrizes,
	}
}

type tournamentStatusBody struct {
	Status string `json:"status" binding:"required"`
}

type scoreBody struct {
	UserID string `json:"userId" binding:"required"`
	Name   string `json:"name"`
	Points int64  `json:"points" binding:"min=0"`
}

type declareResultBody struct {
	Title   string      `json:"title"`
	IsMega  bool        `json:"isMega"`
	Results []scoreBody `json:"results" binding:"required,min=1,dive"`
}

func (b declareResultBody) toParams(tournamentID string) resultSvc.DeclareParams {
	scores := make([]resultSvc.PlayerScore, 0, len(b.Results))
	for _, r := range b.Results {
		scores = append(scores, resultSvc.PlayerScore{
			UserID: strings.TrimSpace(r.UserID),
			Name:   strings.TrimSpace(r.Name),
			Points: r.Points,
		})
	}
	return resultSvc.DeclareParams{
		TournamentID: tournamentID,
		Title:        b.Title,
		IsMega:       b.IsMega,
		Results:      scores,
	}
}

type setRoleBody struct {
	Role string `json:"role" binding:"required,oneof=user admin"`
}

type adjustWalletBody struct {
	Amount decimal.Decimal `json:"amount"`
	Type   string          `json:"type" binding:"required,oneof=credit debit"`
}

type sendNotificationBody struct {
	UserID  string `json:"userId" binding:"required"`
	Title   string `json:"title" binding:"required,max=128"`
	Message string `json:"message" binding:"required,max=1000"`
}

type resolveDepositBody struct {
	UserID string          `json:"userId" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
	Status string          `json:"status" binding:"required,oneof=approved rejected"`
}

type resolveWithdrawalBody struct {
	Status string `json:"status" binding:"required,oneof=approved rejected"`
}

type paymentSettingsBody struct {
	UPIID           string          `json:"upiId"`
	PayeeName       string          `json:"payeeName" binding:"max=128"`
	QRCodeURL       string          `json:"qrCodeUrl" binding:"omitempty,url"`
	MinDeposit      decimal.Decimal `json:"minDeposit"`
	MinWithdrawal   decimal.Decimal `json:"minWithdrawal"`
	ExpectedVersion *int            `json:"expectedVersion" binding:"omitempty,min=0"`
}

func (b paymentSettingsBody) toParams() settingsSvc.UpdateParams {
	return settingsSvc.UpdateParams{
		UPIID:           b.UPIID,
		PayeeName:       b.PayeeName,
		QRCodeURL:       b.QRCodeURL,
		MinDeposit:      b.MinDeposit,
		MinWithdrawal:   b.MinWithdrawal,
		ExpectedVersion: b.ExpectedVersion,
	}
}

func (h *Handler) AdminLogin(c *gin.Context) {
	var body adminLoginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := h.services.Admin.Login(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, resp)
}

func (h *Handler) AdminListTournaments(c *gin.Context) {
	page, size, ok := parsePage(c)
	if !ok {
		return
	}
	result, err := h.services.Tournament.List(c.Request.Context(), tournamentSvc.ListFilter{
		Page:   page,
		Size:   size,
		Game:   c.Query("game"),
		Status: c.Query("status"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) AdminGetTournament(c *gin.Context) {
	t, err := h.services.Tournament.AdminGet(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, t)
}

func (h *Handler) AdminCreateTournament(c *gin.Context) {
	h.upsertTournament(c, "")
}

func (h *Handler) AdminUpdateTournament(c *gin.Context) {
	h.upsertTournament(c, c.Param("id"))
}

func (h *Handler) upsertTournament(c *gin.Context, id string) {
	body, image, err := bindTournament(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	if image != nil {
		if closer, ok := image.Body.(interface{ Close() error }); ok {
			defer closer.Close()
		}
	}
	t, err := h.services.Tournament.CreateOrUpdate(c.Request.Context(), body.toParams(id), image)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, t)
}

// bindTournament accepts either a JSON body or a multipart form carrying the JSON in a
// "payload" field and an optional "image" file.
func bindTournament(c *gin.Context) (tournamentBody, *tournamentSvc.Image, error) {
	var body tournamentBody
	if c.ContentType() != binding.MIMEMultipartPOSTForm {
		err := c.ShouldBindJSON(&body)
		return body, nil, err
	}

	payload := c.PostForm("payload")
	if strings.TrimSpace(payload) == "" {
		return body, nil, fmt.Errorf("payload is required")
	}
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return body, nil, fmt.Errorf("invalid payload: %w", err)
	}
	if err := binding.Validator.ValidateStruct(&body); err != nil {
		return body, nil, err
	}

	fh, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return body, nil, nil
		}
		return body, nil, err
	}
	if fh.Size > maxImageBytes {
		return body, nil, fmt.Errorf("image must be at most %d bytes", maxImageBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return body, nil, err
	}
	return body, &tournamentSvc.Image{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        f,
	}, nil
}

func (h *Handler) AdminDeleteTournament(c *gin.Context) {
	if err := h.services.Tournament.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMsg(c, gin.H{}, "tournament deleted")
}

func (h *Handler) AdminSetTournamentStatus(c *gin.Context) {
	var body tournamentStatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	t, err := h.services.Tournament.SetStatus(c.Request.Context(), c.Param("id"), body.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, t)
}

func (h *Handler) AdminListEntries(c *gin.Context) {
	entries, err := h.services.Tournament.Entries(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"items": entries})
}

func (h *Handler) AdminDeclareResult(c *gin.Context) {
	var body declareResultBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.services.Result.Declare(c.Request.Context(), body.toParams(c.Param("id")), middleware.AdminID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMsg(c, res, "result declared")
}

func (h *Handler) AdminListUsers(c *gin.Context) {
	page, size, ok := parsePage(c)
	if !ok {
		return
	}
	result, err := h.services.User.AdminListUsers(c.Request.Context(), userSvc.AdminListUsersFilter{
		Page:    page,
		Size:    size,
		Role:    c.Query("role"),
		Keyword: c.Query("keyword"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) AdminSetRole(c *gin.Context) {
	var body setRoleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	u, err := h.services.User.SetRole(c.Request.Context(), middleware.AdminID(c), c.Param("id"), body.Role)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, u)
}

func (h *Handler) AdminAdjustWallet(c *gin.Context) {
	var body adjustWalletBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	record, err := h.services.Wallet.AdjustBalance(c.Request.Context(), c.Param("id"), body.Amount, body.Type, middleware.AdminID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, record)
}

func (h *Handler) AdminSendNotification(c *gin.Context) {
	var body sendNotificationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	item, err := h.services.Notification.Send(c.Request.Context(), body.UserID, body.Title, body.Message, middleware.AdminID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMsg(c, item, "notification sent")
}

func (h *Handler) AdminListDeposits(c *gin.Context) {
	page, size, ok := parsePage(c)
	if !ok {
		return
	}
	result, err := h.services.Wallet.ListDeposits(c.Request.Context(), walletSvc.RequestFilter{
		Page:   page,
		Size:   size,
		Status: c.Query("status"),
		UserID: c.Query("userId"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) AdminResolveDeposit(c *gin.Context) {
	var body resolveDepositBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	req, err := h.services.Wallet.ResolveDeposit(c.Request.Context(), c.Param("id"), body.UserID, body.Amount, body.Status, middleware.AdminID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMsg(c, req, "deposit "+req.Status)
}

// AdminDepositFollowUp drafts a reminder for a deposit that has waited too long.
func (h *Handler) AdminDepositFollowUp(c *gin.Context) {
	ctx := c.Request.Context()
	req, err := h.services.Wallet.GetDeposit(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if req.Status != model.RequestPending {
		response.Success(c, gin.H{"message": advisory.NoFollowUpNeeded})
		return
	}

	var name string
	if u, err := h.services.User.GetProfile(ctx, req.UserID); err == nil {
		name = u.Name
	}
	message := h.services.Advisory.FollowUpMessage(ctx, advisory.Request{
		RequestID:   req.ID,
		UserID:      req.UserID,
		UserName:    name,
		Amount:      req.Amount,
		UTR:         req.UTR,
		SubmittedAt: req.CreatedAt,
	})
	response.Success(c, gin.H{"message": message})
}

func (h *Handler) AdminListWithdrawals(c *gin.Context) {
	page, size, ok := parsePage(c)
	if !ok {
		return
	}
	result, err := h.services.Wallet.ListWithdrawals(c.Request.Context(), walletSvc.RequestFilter{
		Page:   page,
		Size:   size,
		Status: c.Query("status"),
		UserID: c.Query("userId"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) AdminResolveWithdrawal(c *gin.Context) {
	var body resolveWithdrawalBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	req, err := h.services.Wallet.ResolveWithdrawal(c.Request.Context(), c.Param("id"), body.Status, middleware.AdminID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMsg(c, req, "withdrawal "+req.Status)
}

func (h *Handler) AdminUpdatePaymentSettings(c *gin.Context) {
	var body paymentSettingsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	settings, err := h.services.Settings.Update(c.Request.Context(), body.toParams(), middleware.AdminID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, settings)
}
