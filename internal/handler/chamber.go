package handler

import (
	"net/http"

	"github.com/cetra-finance/chamber/internal/middleware"
	"github.com/cetra-finance/chamber/internal/model"
	"github.com/cetra-finance/chamber/internal/pkg/apperrors"
	"github.com/cetra-finance/chamber/internal/service"
	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
)

type ChamberHandler struct {
	svc   *service.ChamberService
	farms *service.FarmRegistry
}

func NewChamberHandler(svc *service.ChamberService, farms *service.FarmRegistry) *ChamberHandler {
	return &ChamberHandler{svc: svc, farms: farms}
}

func pubkeyParam(c *gin.Context, name string) (solana.PublicKey, bool) {
	return parsePubkey(c, name, c.Param(name))
}

func parsePubkey(c *gin.Context, field, raw string) (solana.PublicKey, bool) {
	key, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("invalid " + field + ": " + err.Error()))
		return solana.PublicKey{}, false
	}
	return key, true
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return false
	}
	return true
}

func respond(c *gin.Context, status int, resp *model.StepResponse, err error) {
	if err != nil {
		middleware.AddLogContext(c, "error", err.Error())
		c.Error(err)
		return
	}
	middleware.AddLogContext(c, "chamber", resp.Chamber)
	middleware.AddLogContext(c, "unit_id", resp.UnitID)
	c.JSON(status, resp)
}

func (h *ChamberHandler) InitializeChamber(c *gin.Context) {
	var req model.InitializeChamberRequest
	if !bindJSON(c, &req) {
		return
	}
	farm, ok := parsePubkey(c, "leveraged_farm", req.LeveragedFarm)
	if !ok {
		return
	}
	// Any protocol without an adapter, known or not, is unsupported.
	protocol, err := model.ParseProtocolType(req.ProtocolType)
	if err != nil {
		c.Error(apperrors.UnsupportedProtocol())
		return
	}

	resp, err := h.svc.InitializeChamber(c.Request.Context(), farm, protocol)
	respond(c, http.StatusCreated, resp, err)
}

func (h *ChamberHandler) InitializeStrategy(c *gin.Context) {
	chamber, ok := pubkeyParam(c, "chamber")
	if !ok {
		return
	}
	resp, err := h.svc.InitializeChamberStrategy(c.Request.Context(), chamber)
	respond(c, http.StatusOK, resp, err)
}

func (h *ChamberHandler) InitializePosition(c *gin.Context) {
	chamber, ok := pubkeyParam(c, "chamber")
	if !ok {
		return
	}
	var req model.PositionRequest
	if !bindJSON(c, &req) {
		return
	}
	owner, ok := parsePubkey(c, "owner", req.Owner)
	if !ok {
		return
	}
	resp, err := h.svc.InitializeUserPosition(c.Request.Context(), chamber, owner, req.BaseAmount, req.QuoteAmount)
	respond(c, http.StatusOK, resp, err)
}

func (h *ChamberHandler) WithdrawPosition(c *gin.Context) {
	chamber, ok := pubkeyParam(c, "chamber")
	if !ok {
		return
	}
	owner, ok := pubkeyParam(c, "owner")
	if !ok {
		return
	}
	var req model.WithdrawRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.WithdrawUserPosition(c.Request.Context(), chamber, owner, req.BaseAmount, req.QuoteAmount)
	respond(c, http.StatusOK, resp, err)
}

func (h *ChamberHandler) Deposit(c *gin.Context) {
	chamber, ok := pubkeyParam(c, "chamber")
	if !ok {
		return
	}
	var req model.DepositChamberRequest
	if !bindJSON(c, &req) {
		return
	}
	owner, ok := parsePubkey(c, "owner", req.Owner)
	if !ok {
		return
	}
	resp, err := h.svc.DepositChamber(c.Request.Context(), chamber, owner, req.BaseAmount, req.QuoteAmount)
	respond(c, http.StatusOK, resp, err)
}

func (h *ChamberHandler) Settle(c *gin.Context) {
	chamber, ok := pubkeyParam(c, "chamber")
	if !ok {
		return
	}
	resp, err := h.svc.SettleChamberPosition(c.Request.Context(), chamber)
	respond(c, http.StatusOK, resp, err)
}

func (h *ChamberHandler) Stake(c *gin.Context) {
	chamber, ok := pubkeyParam(c, "chamber")
	if !ok {
		return
	}
	var req model.StakeRequest
	if !bindJSON(c, &req) {
		return
	}
	nonces := [model.LegCount]uint8{req.Nonce0, req.Nonce1}
	metaNonces := [model.LegCount]uint8{req.MetaNonce0, req.MetaNonce1}
	resp, err := h.svc.SettleChamberPosition2(c.Request.Context(), chamber, nonces, metaNonces)
	respond(c, http.StatusOK, resp, err)
}

func (h *ChamberHandler) GetChamber(c *gin.Context) {
	chamber, ok := pubkeyParam(c, "chamber")
	if !ok {
		return
	}
	view, err := h.svc.GetChamber(c.Request.Context(), chamber)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ChamberHandler) GetPosition(c *gin.Context) {
	chamber, ok := pubkeyParam(c, "chamber")
	if !ok {
		return
	}
	owner, ok := pubkeyParam(c, "owner")
	if !ok {
		return
	}
	pos, err := h.svc.GetPosition(c.Request.Context(), chamber, owner)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, pos)
}

func (h *ChamberHandler) ListFarms(c *gin.Context) {
	c.JSON(http.StatusOK, h.farms.List())
}

func (h *ChamberHandler) ListProtocols(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Protocols())
}
