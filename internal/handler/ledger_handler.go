package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mediare/family-trust-api/internal/dto"
	"github.com/mediare/family-trust-api/internal/models"
	"github.com/mediare/family-trust-api/internal/service"
	"github.com/mediare/family-trust-api/pkg/response"
)

type ledgerReader interface {
	Progress(ctx context.Context, principalID, childID string) (*dto.Progress, error)
	History(ctx context.Context, principalID, childID string) ([]models.PointDelta, error)
	Verify(ctx context.Context, principalID, childID string) (*dto.LedgerVerification, error)
}

type statementExporter interface {
	Statement(ctx context.Context, principalID, childID string, format dto.StatementFormat) (*dto.StatementResult, error)
	Open(token string) (*service.Download, error)
}

// LedgerHandler exposes child progress and the points ledger.
type LedgerHandler struct {
	ledger  ledgerReader
	exports statementExporter
}

// NewLedgerHandler constructs the handler.
func NewLedgerHandler(ledger ledgerReader, exports statementExporter) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, exports: exports}
}

// Progress godoc
// @Summary Child level and points
// @Tags Ledger
// @Produce json
// @Param childId path string true "Child ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /children/{childId}/progress [get]
func (h *LedgerHandler) Progress(c *gin.Context) {
	claims := principal(c)
	if claims == nil {
		return
	}
	res, err := h.ledger.Progress(c.Request.Context(), claims.UserID, c.Param("childId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// History godoc
// @Summary Child point deltas in sequence order
// @Tags Ledger
// @Produce json
// @Param childId path string true "Child ID"
// @Success 200 {object} response.Envelope
// @Router /children/{childId}/ledger [get]
func (h *LedgerHandler) History(c *gin.Context) {
	claims := principal(c)
	if claims == nil {
		return
	}
	items, err := h.ledger.History(c.Request.Context(), claims.UserID, c.Param("childId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Verify godoc
// @Summary Replay the ledger against the stored aggregate
// @Tags Ledger
// @Produce json
// @Param childId path string true "Child ID"
// @Success 200 {object} response.Envelope
// @Router /children/{childId}/ledger/verify [get]
func (h *LedgerHandler) Verify(c *gin.Context) {
	claims := principal(c)
	if claims == nil {
		return
	}
	res, err := h.ledger.Verify(c.Request.Context(), claims.UserID, c.Param("childId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Statement godoc
// @Summary Export a ledger statement
// @Tags Ledger
// @Produce json
// @Param childId path string true "Child ID"
// @Param format query string false "csv or pdf"
// @Success 201 {object} response.Envelope
// @Router /children/{childId}/ledger/statement [post]
func (h *LedgerHandler) Statement(c *gin.Context) {
	claims := principal(c)
	if claims == nil {
		return
	}
	format := dto.StatementFormat(strings.ToLower(c.DefaultQuery("format", string(dto.StatementCSV))))
	res, err := h.exports.Statement(c.Request.Context(), claims.UserID, c.Param("childId"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Download godoc
// @Summary Download an exported statement
// @Description The signed token is the credential; no bearer token is required
// @Tags Ledger
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *LedgerHandler) Download(c *gin.Context) {
	download, err := h.exports.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	c.DataFromReader(http.StatusOK, info.Size(), download.ContentType, download.File, nil)
}
