package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"EpochVault/internal/custody"
	"EpochVault/internal/model"
	"EpochVault/internal/payoff"
	"EpochVault/internal/recorder"
	"EpochVault/internal/vault"
)

// AccountHeader carries the calling account. The API trusts it, so it must only be reachable
// from the operator network.
const AccountHeader = "X-Vault-Account"

const defaultHistoryLimit = 50

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Server exposes the vault engine over HTTP.
type Server struct {
	Vault    *vault.Engine
	Payoffs  *payoff.Book // nil disables payoff reservation
	Recorder recorder.Recorder
	Logger   *zap.Logger
}

// NewServer creates a Server.
func NewServer(v *vault.Engine, book *payoff.Book, rec recorder.Recorder, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Server{Vault: v, Payoffs: book, Recorder: rec, Logger: logger}
}

// Router builds the gin engine. extra handlers are mounted as GET routes, e.g. "/metrics".
func (s *Server) Router(extra map[string]http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	for path, h := range extra {
		r.GET(path, gin.WrapH(h))
	}

	v1 := r.Group("/v1")
	v1.GET("/vault", s.HandleVault)
	v1.GET("/rolls", s.HandleRolls)
	v1.GET("/accounts/:account", s.HandleAccount)
	v1.GET("/accounts/:account/history", s.HandleHistory)

	user := v1.Group("", requireCaller)
	user.POST("/deposit", s.HandleDeposit)
	user.POST("/redeem", s.HandleRedeem)
	user.POST("/transfer", s.HandleTransfer)
	user.POST("/withdrawals", s.HandleInitiateWithdraw)
	user.POST("/withdrawals/complete", s.HandleCompleteWithdraw)
	user.POST("/rescue/deposit", s.HandleRescueDeposit)
	user.POST("/rescue/shares", s.HandleRescueShares)
	user.POST("/roll", s.HandleRoll)
	user.POST("/payoffs", s.HandleReservePayoff)

	admin := user.Group("/admin")
	admin.POST("/pause", s.HandlePause)
	admin.POST("/unpause", s.HandleUnpause)
	admin.POST("/kill", s.HandleKill)
	admin.POST("/max-deposit", s.HandleSetMaxDeposit)
	admin.POST("/roles", s.HandleRoles)
	admin.POST("/payoff-transfer", s.HandleTransferPayoff)
	return r
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.Logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.String("account", c.GetHeader(AccountHeader)))
	}
}

func requireCaller(c *gin.Context) {
	if c.GetHeader(AccountHeader) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
			Error: AccountHeader + " header is required",
			Code:  "MISSING_ACCOUNT",
		})
		return
	}
	c.Next()
}

func caller(c *gin.Context) model.Account {
	return model.Account(c.GetHeader(AccountHeader))
}

func limitParam(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultHistoryLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > 500 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be between 1 and 500", Code: "INVALID_LIMIT"})
		return 0, false
	}
	return n, true
}

func badRequest(c *gin.Context, code string, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: code})
}

// fail maps an engine error onto a status code.
func (s *Server) fail(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, vault.ErrUnauthorized):
		status, code = http.StatusForbidden, "UNAUTHORIZED"
	case errors.Is(err, vault.ErrAmountZero),
		errors.Is(err, vault.ErrExceedsAvailable),
		errors.Is(err, vault.ErrExceedsMaxDeposit),
		errors.Is(err, custody.ErrInsufficientBalance),
		errors.Is(err, custody.ErrInvalidAmount),
		errors.Is(err, payoff.ErrInvalidAmount):
		status, code = http.StatusBadRequest, "INVALID_AMOUNT"
	case errors.Is(err, vault.ErrPaused):
		status, code = http.StatusConflict, "PAUSED"
	case errors.Is(err, vault.ErrVaultDead),
		errors.Is(err, vault.ErrVaultNotDead),
		errors.Is(err, vault.ErrManuallyKilled),
		errors.Is(err, vault.ErrNothingToRescue):
		status, code = http.StatusConflict, "VAULT_STATE"
	case errors.Is(err, vault.ErrEpochFinished),
		errors.Is(err, vault.ErrEpochNotFinished),
		errors.Is(err, vault.ErrWithdrawNotInitiated),
		errors.Is(err, vault.ErrWithdrawTooEarly),
		errors.Is(err, vault.ErrExistingIncompleteWithdraw):
		status, code = http.StatusConflict, "EPOCH_STATE"
	}
	if status == http.StatusInternalServerError {
		s.Logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}
