package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shualoalumin/dics-camp/internal/service"
	"github.com/shualoalumin/dics-camp/internal/toss"
	"github.com/shualoalumin/dics-camp/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	registrationService *service.RegistrationService
	paymentService      *service.PaymentService
	webhookService      *service.WebhookService
	sweeper             *service.Sweeper
}

// NewHandler creates a new HTTP handler
func NewHandler(
	registrationService *service.RegistrationService,
	paymentService *service.PaymentService,
	webhookService *service.WebhookService,
	sweeper *service.Sweeper,
) *Handler {
	return &Handler{
		registrationService: registrationService,
		paymentService:      paymentService,
		webhookService:      webhookService,
		sweeper:             sweeper,
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

	// The Toss checkout redirects the browser here with GET; server-side
	// integrations may POST the same parameters.
	router.GET("/confirm-payment", h.confirmPayment)
	router.POST("/confirm-payment", h.confirmPayment)

	router.POST("/webhook/toss", h.tossWebhook)

	router.POST("/internal/cleanup-expired", h.cleanupExpired)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/registrations", h.createRegistration)
		v1.GET("/payments/status", h.paymentStatus)
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

// createRegistration handles applicant form submission
func (h *Handler) createRegistration(c *gin.Context) {
	var req service.CreateRegistrationRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.registrationService.CreateRegistration(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrCampFull) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "No camp slots available",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to create registration",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// confirmPayment handles the redirect back from the Toss checkout. Every
// outcome is a 303 to the success or fail page.
func (h *Handler) confirmPayment(c *gin.Context) {
	paymentKey := c.Query("paymentKey")
	orderID := c.Query("orderId")
	amountStr := c.Query("amount")

	if paymentKey == "" || orderID == "" || amountStr == "" {
		c.Redirect(http.StatusSeeOther,
			h.paymentService.FailRedirect(orderID, "Required payment parameters are missing."))
		return
	}

	amount, err := strconv.ParseInt(amountStr, 10, 64)
	if err != nil {
		c.Redirect(http.StatusSeeOther,
			h.paymentService.FailRedirect(orderID, "Invalid payment amount."))
		return
	}

	redirectURL := h.paymentService.Confirm(c.Request.Context(), &service.ConfirmParams{
		PaymentKey: paymentKey,
		OrderID:    orderID,
		Amount:     amount,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})

	c.Redirect(http.StatusSeeOther, redirectURL)
}

// tossWebhook handles asynchronous settlement callbacks from Toss
func (h *Handler) tossWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "Failed to read request body")
		return
	}

	signature := c.GetHeader(toss.SignatureHeader)

	err = h.webhookService.HandleWebhook(c.Request.Context(), payload, signature,
		c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		if errors.Is(err, service.ErrInvalidSignature) {
			c.String(http.StatusBadRequest, "Invalid signature")
			return
		}
		c.String(http.StatusBadRequest, "Webhook error: %s", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// cleanupExpired runs the expiry sweeper once
func (h *Handler) cleanupExpired(c *gin.Context) {
	count, err := h.sweeper.Sweep(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Cleanup failed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"expiredCount": count})
}

// paymentStatus returns payment state for an order id and student email
func (h *Handler) paymentStatus(c *gin.Context) {
	orderID := c.Query("orderId")
	email := c.Query("email")

	if orderID == "" || email == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "orderId and email are required",
		})
		return
	}

	status, err := h.registrationService.GetPaymentStatus(c.Request.Context(), orderID, email)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Payment not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to look up payment",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, status)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
