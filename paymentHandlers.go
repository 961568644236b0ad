package main

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/homerly/rental_backend/models"
)

const (
	signatureHeader    = "Stripe-Signature"
	maxWebhookBodySize = 1 << 20
)

func checkoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		result, err := models.CreateCheckoutSession(c.Request.Context(), id)
		if err != nil {
			respondError(c, "checkoutHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// paymentWebhookHandler is called by the gateway without a session.
func paymentWebhookHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodySize))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := models.HandleGatewayWebhook(c.Request.Context(), payload, c.GetHeader(signatureHeader)); err != nil {
			respondError(c, "paymentWebhookHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

func paymentFilter(c *gin.Context) (models.PaymentFilter, bool) {
	var filter models.PaymentFilter
	var ok bool
	if filter.IsPaid, ok = boolQuery(c, "is_paid"); !ok {
		return filter, false
	}
	if filter.From, ok = timeQuery(c, "from"); !ok {
		return filter, false
	}
	if filter.To, ok = timeQuery(c, "to"); !ok {
		return filter, false
	}
	return filter, true
}

func listPaymentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, ok := pagination(c)
		if !ok {
			return
		}
		filter, ok := paymentFilter(c)
		if !ok {
			return
		}
		result, err := models.GetPaymentsByUser(c.Request.Context(), filter, page)
		if err != nil {
			respondError(c, "listPaymentsHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func getPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		payment, err := models.GetPayment(c.Request.Context(), id)
		if err != nil {
			respondError(c, "getPaymentHandler", err)
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}

func propertyPaymentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		page, ok := pagination(c)
		if !ok {
			return
		}
		filter, ok := paymentFilter(c)
		if !ok {
			return
		}
		result, err := models.GetPaymentsByProperty(c.Request.Context(), id, filter, page)
		if err != nil {
			respondError(c, "propertyPaymentsHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func invoicePaymentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		payments, err := models.GetPaymentsByInvoice(c.Request.Context(), id)
		if err != nil {
			respondError(c, "invoicePaymentsHandler", err)
			return
		}
		paid, err := models.IsInvoicePaid(c.Request.Context(), id)
		if err != nil {
			respondError(c, "invoicePaymentsHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": payments, "is_paid": paid})
	}
}
