package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"arena-ace/internal/config"
	"arena-ace/internal/middleware"
	"arena-ace/internal/service"
	"arena-ace/internal/ws"
	appErr "arena-ace/pkg/errors"
	"arena-ace/pkg/logger"
	"arena-ace/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Handler struct {
	services *service.Container
}

func RegisterRoutes(r *gin.Engine, services *service.Container) {
	handler := &Handler{services: services}

	var origins []string
	if config.GlobalConfig != nil {
		origins = config.GlobalConfig.Server.AllowedOrigins
	}
	wsHandler := ws.NewHandler(services.Redis, origins)

	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{"message": "pong"})
	})

	v1 := r.Group("/api/v1")
	v1.Use(middleware.AuthRequired())
	{
		v1.GET("/tournaments", handler.ListTournaments)
		v1.GET("/tournaments/:id", handler.GetTournament)
		v1.POST("/tournaments/:id/join", handler.JoinTournament)
		v1.GET("/results/:tournamentId", handler.GetResult)

		v1.GET("/wallet", handler.GetWallet)
		v1.GET("/wallet/transactions", handler.ListTransactions)
		v1.POST("/wallet/deposits", handler.SubmitDeposit)
		v1.GET("/wallet/deposits", handler.ListMyDeposits)
		v1.POST("/wallet/withdrawals", handler.SubmitWithdrawal)
		v1.GET("/wallet/withdrawals", handler.ListMyWithdrawals)
		v1.GET("/payment-settings", handler.GetPaymentSettings)

		v1.GET("/notifications", handler.ListNotifications)
		v1.PUT("/notifications/read-all", handler.MarkAllNotificationsRead)
		v1.PUT("/notifications/:id/read", handler.MarkNotificationRead)
		v1.DELETE("/notifications/:id", handler.DeleteNotification)
		v1.DELETE("/notifications", handler.DeleteAllNotifications)

		v1.GET("/user/profile", handler.GetProfile)
		v1.POST("/user/profile", handler.EnsureProfile)
		v1.PUT("/user/profile", handler.UpdateProfile)
	}

	adminGroup := r.Group("/admin")
	{
		adminGroup.POST("/auth/login", handler.AdminLogin)

		protected := adminGroup.Group("/")
		protected.Use(middleware.AdminAuthRequired(services.Admin))
		{
			protected.GET("/tournaments", handler.AdminListTournaments)
			protected.GET("/tournaments/:id", handler.AdminGetTournament)
			protected.POST("/tournaments", handler.AdminCreateTournament)
			protected.PUT("/tournaments/:id", handler.AdminUpdateTournament)
			protected.DELETE("/tournaments/:id", handler.AdminDeleteTournament)
			protected.PUT("/tournaments/:id/status", handler.AdminSetTournamentStatus)
			protected.GET("/tournaments/:id/entries", handler.AdminListEntries)
			protected.POST("/tournaments/:id/results", handler.AdminDeclareResult)

			protected.GET("/users", handler.AdminListUsers)
			protected.PUT("/users/:id/role", handler.AdminSetRole)
			protected.PUT("/users/:id/wallet", handler.AdminAdjustWallet)

			protected.POST("/notifications", handler.AdminSendNotification)

			protected.GET("/wallet-requests", handler.AdminListDeposits)
			protected.PUT("/wallet-requests/:id", handler.AdminResolveDeposit)
			protected.GET("/wallet-requests/:id/follow-up", handler.AdminDepositFollowUp)
			protected.GET("/withdrawal-requests", handler.AdminListWithdrawals)
			protected.PUT("/withdrawal-requests/:id", handler.AdminResolveWithdrawal)

			protected.GET("/payment-settings", handler.GetPaymentSettings)
			protected.PUT("/payment-settings", handler.AdminUpdatePaymentSettings)
		}
	}

	r.GET("/ws/notifications", wsHandler.HandleNotifications)
}

// writeError maps a service error to its HTTP status. Unclassified errors are logged and hidden.
func writeError(c *gin.Context, err error) {
	switch {
	case appErr.IsNotFound(err):
		if errors.Is(err, appErr.ErrAdminNotFound) {
			response.Error(c, http.StatusUnauthorized, appErr.ErrInvalidAdminPassword.Error())
			return
		}
		response.Error(c, http.StatusNotFound, err.Error())
	case appErr.IsValidation(err):
		response.Error(c, http.StatusBadRequest, err.Error())
	case appErr.IsBusinessRule(err):
		response.Error(c, http.StatusConflict, err.Error())
	case errors.Is(err, gorm.ErrDuplicatedKey):
		response.Error(c, http.StatusConflict, "resource already exists")
	case errors.Is(err, appErr.ErrUnauthorized), errors.Is(err, appErr.ErrInvalidAdminPassword):
		response.Error(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, appErr.ErrAdminDisabled):
		response.Error(c, http.StatusForbidden, err.Error())
	default:
		logger.Log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "internal server error")
	}
}

func parsePositiveIntQuery(c *gin.Context, key string, defaultVal int) (int, error) {
	val := c.Query(key)
	if val == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return parsed, nil
}

func parsePage(c *gin.Context) (int, int, bool) {
	page, err := parsePositiveIntQuery(c, "page", 1)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	size, err := parsePositiveIntQuery(c, "size", 20)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	return page, size, true
}

func getUserID(c *gin.Context) (string, bool) {
	id := middleware.UserID(c)
	if id == "" {
		response.Error(c, http.StatusUnauthorized, appErr.ErrUnauthorized.Error())
		return "", false
	}
	return id, true
}
