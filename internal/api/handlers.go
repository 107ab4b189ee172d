package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Riboost-Studio/restorank-print-bridge/internal/model"
	"github.com/Riboost-Studio/restorank-print-bridge/internal/observability"
	"github.com/Riboost-Studio/restorank-print-bridge/internal/utils"
)

const probeTimeout = 300 * time.Millisecond

// PrintService is the on-demand printing surface.
type PrintService interface {
	PrintBill(ctx context.Context, orderID string, payload []byte) string
	PrintOrder(ctx context.Context, orderID string, payload []byte) string
	TestPrint(ctx context.Context, ip string, port int) string
	Preview(orderID string, payload []byte) ([]byte, error)
}

// Renderer turns an encoded receipt into a PNG.
type Renderer interface {
	PNG(ctx context.Context, stream []byte) ([]byte, error)
}

// Poller is the polling loop as seen by the API.
type Poller interface {
	Status() observability.BridgeStatus
	Start(ctx context.Context) bool
	Wake()
}

// Printers exposes the printer configuration.
type Printers interface {
	Printers() []model.Printer
	SetAutoPrint(enabled bool)
}

// Handler represents the API handlers
type Handler struct {
	Service  PrintService
	Poller   Poller
	Printers Printers
	// Optional collaborators; nil disables the matching feature.
	Renderer Renderer
	Sync     func(ctx context.Context) bool
	Push     interface{ Connected() bool }

	Name    string
	Version string
	// Context the polling loop runs under when restarted from the API.
	PollCtx context.Context
}

// orderRequest carries an order as the UI holds it.
type orderRequest struct {
	OrderID string          `json:"orderId"`
	Order   json.RawMessage `json:"order" binding:"required"`
}

type testPrintRequest struct {
	IP   string `json:"ip" binding:"required"`
	Port int    `json:"port"`
}

type autoPrintRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type printerView struct {
	model.Printer
	Reachable *bool `json:"reachable,omitempty"`
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, observability.NewHealthStatus(h.Name, h.Version))
}

func (h *Handler) Status(c *gin.Context) {
	status := h.Poller.Status()
	if h.Push != nil {
		status.PushConnected = h.Push.Connected()
	}
	c.JSON(http.StatusOK, status)
}

// PrintBill prints a customer bill on every enabled printer.
func (h *Handler) PrintBill(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": h.Service.PrintBill(c.Request.Context(), req.OrderID, req.Order)})
}

// PrintOrder routes an order's items to the kitchen printers.
func (h *Handler) PrintOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": h.Service.PrintOrder(c.Request.Context(), req.OrderID, req.Order)})
}

func (h *Handler) TestPrint(c *gin.Context) {
	var req testPrintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": h.Service.TestPrint(c.Request.Context(), req.IP, req.Port)})
}

// PreviewBill renders the customer bill for an order as a PNG.
func (h *Handler) PreviewBill(c *gin.Context) {
	if h.Renderer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "preview unavailable: Chrome not found"})
		return
	}

	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stream, err := h.Service.Preview(req.OrderID, req.Order)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	png, err := h.Renderer.PNG(c.Request.Context(), stream)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// GetPrinters returns all printers. With ?probe=true each printer is checked
// for a listening port.
func (h *Handler) GetPrinters(c *gin.Context) {
	printers := h.Printers.Printers()
	views := make([]printerView, len(printers))
	for i, p := range printers {
		views[i] = printerView{Printer: p}
	}

	if c.Query("probe") == "true" {
		done := make(chan struct{}, len(views))
		for i := range views {
			go func(v *printerView) {
				ok := utils.Probe(v.IP, v.PortOrDefault(), probeTimeout)
				v.Reachable = &ok
				done <- struct{}{}
			}(&views[i])
		}
		for range views {
			<-done
		}
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) SyncPrinters(c *gin.Context) {
	if h.Sync == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "printer sync unavailable"})
		return
	}
	if !h.Sync(c.Request.Context()) {
		c.JSON(http.StatusConflict, gin.H{"error": "sync already running"})
		return
	}
	c.JSON(http.StatusOK, h.Printers.Printers())
}

// SetAutoPrint turns queue polling on or off. Turning it off lets the
// current cycle finish.
func (h *Handler) SetAutoPrint(c *gin.Context) {
	var req autoPrintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.Printers.SetAutoPrint(*req.Enabled)
	if *req.Enabled {
		ctx := h.PollCtx
		if ctx == nil {
			ctx = context.Background()
		}
		if !h.Poller.Start(ctx) {
			h.Poller.Wake()
		}
	}
	c.JSON(http.StatusOK, gin.H{"autoPrintEnabled": *req.Enabled})
}
