package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vidsift/internal/apperrors"
	"vidsift/internal/core"
)

// ScanHandler exposes the scan lifecycle and match results for review.
type ScanHandler struct {
	svc          *core.ScanService
	defaultRoots []string
}

// NewScanHandler builds the handler; defaultRoots back requests that name
// no roots of their own.
func NewScanHandler(svc *core.ScanService, defaultRoots []string) *ScanHandler {
	return &ScanHandler{svc: svc, defaultRoots: defaultRoots}
}

type scanRequest struct {
	Roots []string `json:"roots"`
}

// StartScan launches a background scan.
func (h *ScanHandler) StartScan(c *gin.Context) {
	var req scanRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid scan request body"})
			return
		}
	}

	roots := req.Roots
	if len(roots) == 0 {
		roots = h.defaultRoots
	}
	if len(roots) == 0 {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "no scan roots configured or supplied"})
		return
	}

	if err := h.svc.Start(roots); err != nil {
		Error(c, err)
		return
	}
	Accepted(c, h.svc.Status())
}

// ScanStatus reports live progress.
func (h *ScanHandler) ScanStatus(c *gin.Context) {
	OK(c, h.svc.Status())
}

// CancelScan stops the running scan.
func (h *ScanHandler) CancelScan(c *gin.Context) {
	h.svc.Cancel()
	OK(c, h.svc.Status())
}

// Groups returns the duplicate groups from the last completed scan.
func (h *ScanHandler) Groups(c *gin.Context) {
	results, ok := h.svc.Results()
	if !ok {
		Error(c, apperrors.NewNotFoundError("scan results"))
		return
	}
	OK(c, results.Groups)
}

// Unique returns the paths that matched nothing.
func (h *ScanHandler) Unique(c *gin.Context) {
	results, ok := h.svc.Results()
	if !ok {
		Error(c, apperrors.NewNotFoundError("scan results"))
		return
	}
	OK(c, results.Unique)
}

// Report returns the pipeline report of the last completed scan.
func (h *ScanHandler) Report(c *gin.Context) {
	results, ok := h.svc.Results()
	if !ok {
		Error(c, apperrors.NewNotFoundError("scan results"))
		return
	}
	OK(c, results.Report)
}

// PurgeCache drops the fingerprint cache.
func (h *ScanHandler) PurgeCache(c *gin.Context) {
	if err := h.svc.PurgeCache(); err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"purged": true})
}
