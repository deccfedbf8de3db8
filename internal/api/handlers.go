package api

import (
	"net/http"
	"time"

	"cosmossdk.io/math"
	"github.com/gin-gonic/gin"

	"EpochVault/internal/model"
	"EpochVault/internal/units"
	"EpochVault/internal/vault"
)

// VaultResponse is the public view of the vault.
type VaultResponse struct {
	Ledger        model.Ledger `json:"ledger"`
	EpochID       int64        `json:"epoch_id"`
	EpochEnds     time.Time    `json:"epoch_ends"`
	EpochFinished bool         `json:"epoch_finished"`
	LastNAV       *math.Int    `json:"last_nav,omitempty"`
}

// AccountResponse bundles everything the vault tracks for one account.
type AccountResponse struct {
	Position   model.Position          `json:"position"`
	Deposit    model.DepositReceipt    `json:"deposit"`
	Withdrawal model.WithdrawalReceipt `json:"withdrawal"`
}

// AmountRequest carries a whole-unit decimal string, e.g. "250.5".
type AmountRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// SharesRequest carries a whole-unit share count.
type SharesRequest struct {
	Shares string `json:"shares" binding:"required"`
}

type depositRequest struct {
	Recipient model.Account `json:"recipient"`
	Amount    string        `json:"amount" binding:"required"`
}

type transferRequest struct {
	To     model.Account `json:"to" binding:"required"`
	Shares string        `json:"shares" binding:"required"`
}

type rolesRequest struct {
	Action  string        `json:"action" binding:"required,oneof=grant revoke"`
	Role    vault.Role    `json:"role" binding:"required"`
	Account model.Account `json:"account" binding:"required"`
}

type payoffTransferRequest struct {
	Recipient model.Account `json:"recipient" binding:"required"`
	Amount    string        `json:"amount" binding:"required"`
}

type reservePayoffRequest struct {
	Amount string     `json:"amount" binding:"required"`
	Expiry *time.Time `json:"expiry"` // defaults to the end of the current epoch
}

type payoutResponse struct {
	Amount math.Int `json:"amount"`
}

func bindAmount(c *gin.Context, raw string) (math.Int, bool) {
	v, err := units.Parse(raw)
	if err != nil {
		badRequest(c, "INVALID_AMOUNT", err)
		return math.Int{}, false
	}
	return v, true
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		badRequest(c, "INVALID_REQUEST", err)
		return false
	}
	return true
}

// HandleVault returns the ledger, the epoch clock and the last recorded NAV.
func (s *Server) HandleVault(c *gin.Context) {
	ep := s.Vault.Epoch()
	resp := VaultResponse{
		Ledger:        s.Vault.Ledger(),
		EpochID:       ep.ID(),
		EpochEnds:     ep.Current,
		EpochFinished: s.Vault.IsEpochFinished(),
	}
	if nav, ok := s.Vault.LastNAV(); ok {
		resp.LastNAV = &nav
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) HandleRolls(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	rolls, err := s.Recorder.RecentRolls(limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	if rolls == nil {
		rolls = []model.RollReport{}
	}
	c.JSON(http.StatusOK, rolls)
}

func (s *Server) HandleAccount(c *gin.Context) {
	acct := model.Account(c.Param("account"))
	c.JSON(http.StatusOK, AccountResponse{
		Position:   s.Vault.Position(acct),
		Deposit:    s.Vault.DepositReceipt(acct),
		Withdrawal: s.Vault.WithdrawalReceipt(acct),
	})
}

func (s *Server) HandleHistory(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	events, err := s.Recorder.AccountHistory(model.Account(c.Param("account")), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	if events == nil {
		events = []model.AccountEvent{}
	}
	c.JSON(http.StatusOK, events)
}

// HandleDeposit pays amount from the caller's custody balance. The recipient defaults to the caller.
func (s *Server) HandleDeposit(c *gin.Context) {
	var req depositRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, ok := bindAmount(c, req.Amount)
	if !ok {
		return
	}
	recipient := req.Recipient
	if recipient == "" {
		recipient = caller(c)
	}
	if err := s.Vault.Deposit(caller(c), recipient, amount); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Vault.DepositReceipt(recipient))
}

func (s *Server) HandleRedeem(c *gin.Context) {
	var req SharesRequest
	if !bindJSON(c, &req) {
		return
	}
	shares, ok := bindAmount(c, req.Shares)
	if !ok {
		return
	}
	if err := s.Vault.Redeem(caller(c), shares); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Vault.Position(caller(c)))
}

func (s *Server) HandleTransfer(c *gin.Context) {
	var req transferRequest
	if !bindJSON(c, &req) {
		return
	}
	shares, ok := bindAmount(c, req.Shares)
	if !ok {
		return
	}
	if err := s.Vault.Transfer(caller(c), req.To, shares); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Vault.Position(caller(c)))
}

func (s *Server) HandleInitiateWithdraw(c *gin.Context) {
	var req SharesRequest
	if !bindJSON(c, &req) {
		return
	}
	shares, ok := bindAmount(c, req.Shares)
	if !ok {
		return
	}
	if err := s.Vault.InitiateWithdraw(caller(c), shares); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, s.Vault.WithdrawalReceipt(caller(c)))
}

func (s *Server) HandleCompleteWithdraw(c *gin.Context) {
	s.payout(c, s.Vault.CompleteWithdraw)
}

func (s *Server) HandleRescueDeposit(c *gin.Context) {
	s.payout(c, s.Vault.RescueDeposit)
}

func (s *Server) HandleRescueShares(c *gin.Context) {
	s.payout(c, s.Vault.RescueShares)
}

func (s *Server) payout(c *gin.Context, op func(model.Account) (math.Int, error)) {
	amount, err := op(caller(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, payoutResponse{Amount: amount})
}

// HandleRoll rolls the epoch on behalf of a caller holding the roller role.
func (s *Server) HandleRoll(c *gin.Context) {
	report, err := s.Vault.RollEpoch(c.Request.Context(), caller(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// HandleReservePayoff books a payoff owed by the trading side against an expiry.
func (s *Server) HandleReservePayoff(c *gin.Context) {
	if s.Payoffs == nil {
		c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "payoff book not configured", Code: "NO_PAYOFF_BOOK"})
		return
	}
	if !s.Vault.HasRole(caller(c), vault.RoleTrader) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "caller lacks role trader", Code: "UNAUTHORIZED"})
		return
	}
	var req reservePayoffRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, ok := bindAmount(c, req.Amount)
	if !ok {
		return
	}
	expiry := s.Vault.Epoch().Current
	if req.Expiry != nil {
		expiry = *req.Expiry
	}
	if err := s.Payoffs.ReservePayoff(expiry, amount); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expiry": expiry.UTC(), "reserved": s.Payoffs.Reserved(expiry)})
}

func (s *Server) HandlePause(c *gin.Context) {
	s.adminOp(c, s.Vault.Pause)
}

func (s *Server) HandleUnpause(c *gin.Context) {
	s.adminOp(c, s.Vault.Unpause)
}

func (s *Server) HandleKill(c *gin.Context) {
	s.adminOp(c, s.Vault.KillVault)
}

func (s *Server) adminOp(c *gin.Context, op func(model.Account) error) {
	if err := op(caller(c)); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Vault.Ledger())
}

func (s *Server) HandleSetMaxDeposit(c *gin.Context) {
	var req AmountRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, ok := bindAmount(c, req.Amount)
	if !ok {
		return
	}
	s.adminOp(c, func(acct model.Account) error { return s.Vault.SetMaxDeposit(acct, amount) })
}

func (s *Server) HandleRoles(c *gin.Context) {
	var req rolesRequest
	if !bindJSON(c, &req) {
		return
	}
	op := s.Vault.Grant
	if req.Action == "revoke" {
		op = s.Vault.Revoke
	}
	if err := op(caller(c), req.Role, req.Account); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": req.Account, "role": req.Role, "granted": s.Vault.HasRole(req.Account, req.Role)})
}

func (s *Server) HandleTransferPayoff(c *gin.Context) {
	var req payoffTransferRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, ok := bindAmount(c, req.Amount)
	if !ok {
		return
	}
	s.adminOp(c, func(acct model.Account) error { return s.Vault.TransferPayoff(acct, req.Recipient, amount) })
}
