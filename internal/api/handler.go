package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"storefront-gateway/internal/models"
	"storefront-gateway/internal/service"
	"storefront-gateway/internal/session"
	"storefront-gateway/internal/upstream"
	"storefront-gateway/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler contains HTTP handlers
type Handler struct {
	carts    *service.CartService
	payments *service.PaymentService
	auth     *service.AuthService
	sessions *session.Store
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(carts *service.CartService, payments *service.PaymentService, auth *service.AuthService, sessions *session.Store) *Handler {
	return &Handler{
		carts:    carts,
		payments: payments,
		auth:     auth,
		sessions: sessions,
		logger:   util.NamedLogger("api"),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := router.Group("/api/auth")
	{
		auth.POST("/send-otp", h.sendOTP)
		auth.POST("/verify-otp", h.verifyOTP)
		auth.POST("/logout", RequireSession(h.sessions), h.logout)
	}

	cart := router.Group("/api/cart", RequireSession(h.sessions))
	{
		cart.GET("", h.getCart)
		cart.POST("/add", h.addToCart)
		cart.PUT("/items/:id", h.updateCartItem)
		cart.DELETE("/items/:id", h.removeCartItem)
		cart.DELETE("/clear", h.clearCart)
	}

	payments := router.Group("/api/payments", RequireSession(h.sessions))
	{
		payments.POST("/mobile", h.initiateMobilePayment)
		payments.GET("/status/:transaction_id", h.getPaymentStatus)
		payments.DELETE("/status/:transaction_id", h.cancelPaymentWatch)
		payments.GET("/history", h.getPaymentHistory)
	}

	admin := router.Group("/api/admin", RequireSession(h.sessions), RequireAdmin())
	{
		admin.GET("/payments", h.getRecentPayments)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type sendOTPRequest struct {
	Phone string `json:"phone" binding:"required"`
}

func (h *Handler) sendOTP(c *gin.Context) {
	var req sendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.auth.SendOTP(c.Request.Context(), req.Phone); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "OTP sent successfully"})
}

type verifyOTPRequest struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

func (h *Handler) verifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	sess, err := h.auth.VerifyOTP(c.Request.Context(), req.Phone, req.Code)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sess.ID,
		"user_id":    sess.UserID,
	})
}

func (h *Handler) logout(c *gin.Context) {
	id := c.GetString(ctxSessionIDKey)
	if err := h.auth.Logout(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

type cartResponse struct {
	Items       []models.CartItem `json:"items"`
	Subtotal    float64           `json:"subtotal"`
	DeliveryFee float64           `json:"delivery_fee"`
	Total       float64           `json:"total"`
	ItemCount   int               `json:"item_count"`
}

func newCartResponse(cart *models.Cart) cartResponse {
	totals := service.ComputeTotals(cart.Items)
	items := cart.Items
	if items == nil {
		items = []models.CartItem{}
	}
	return cartResponse{
		Items:       items,
		Subtotal:    totals.Subtotal,
		DeliveryFee: totals.DeliveryFee,
		Total:       totals.Total,
		ItemCount:   totals.ItemCount,
	}
}

func (h *Handler) getCart(c *gin.Context) {
	cart, err := h.carts.GetCart(c.Request.Context(), currentSession(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(cart))
}

type addToCartRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

func (h *Handler) addToCart(c *gin.Context) {
	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	cart, err := h.carts.AddItem(c.Request.Context(), currentSession(c), req.ProductID, req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(cart))
}

type updateCartItemRequest struct {
	// Pointer so an explicit zero survives binding; zero and negative
	// quantities remove the item.
	Quantity *int `json:"quantity" binding:"required"`
}

func (h *Handler) updateCartItem(c *gin.Context) {
	itemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
		return
	}

	var req updateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	cart, err := h.carts.UpdateQuantity(c.Request.Context(), currentSession(c), itemID, *req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(cart))
}

func (h *Handler) removeCartItem(c *gin.Context) {
	itemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
		return
	}

	cart, err := h.carts.RemoveItem(c.Request.Context(), currentSession(c), itemID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(cart))
}

func (h *Handler) clearCart(c *gin.Context) {
	cart, err := h.carts.Clear(c.Request.Context(), currentSession(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(cart))
}

func (h *Handler) initiateMobilePayment(c *gin.Context) {
	var req service.MobilePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	resp, err := h.payments.InitiateMobilePayment(c.Request.Context(), currentSession(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

func (h *Handler) getPaymentStatus(c *gin.Context) {
	rec, err := h.payments.GetPaymentStatus(c.Request.Context(), currentSession(c), c.Param("transaction_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) cancelPaymentWatch(c *gin.Context) {
	if !h.payments.CancelWatch(c.Param("transaction_id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No active watch for transaction"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Payment watch cancelled"})
}

func (h *Handler) getPaymentHistory(c *gin.Context) {
	recs, err := h.payments.PaymentHistory(c.Request.Context(), currentSession(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": recs})
}

func (h *Handler) getRecentPayments(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		limit = 50
	}

	recs, err := h.payments.RecentPayments(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": recs})
}

// respondError maps service and backend errors onto the response taxonomy:
// validation problems are 400s, a rejected token revokes the session, backend
// rejections keep their status, and transient faults ask the user to retry.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, upstream.ErrNoToken), errors.Is(err, upstream.ErrUnauthorized):
		if id := c.GetString(ctxSessionIDKey); id != "" {
			if revokeErr := h.sessions.Revoke(c.Request.Context(), id, "expired"); revokeErr != nil {
				h.logger.Warn("Failed to revoke session", zap.Error(revokeErr))
			}
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired. Please login again."})

	case errors.Is(err, service.ErrInvalidPhone),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrUnknownProvider),
		errors.Is(err, service.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, upstream.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})

	case upstream.IsTransient(err):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Network error. Please try again."})

	default:
		var apiErr *upstream.APIError
		if errors.As(err, &apiErr) {
			c.JSON(apiErr.Status, gin.H{"error": apiErr.Message})
			return
		}
		h.logger.Error("Unhandled error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong. Please try again."})
	}
}
