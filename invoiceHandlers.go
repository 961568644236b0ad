package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/homerly/rental_backend/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type invoiceStatusRequest struct {
	Status      models.InvoiceStatus `json:"status" binding:"required"`
	PaymentDate *time.Time           `json:"payment_date"`
}

func invoiceFilter(c *gin.Context) (models.InvoiceFilter, bool) {
	var filter models.InvoiceFilter
	var ok bool
	if v := c.Query("status"); v != "" {
		status := models.InvoiceStatus(v)
		filter.Status = &status
	}
	if filter.PeriodFrom, ok = timeQuery(c, "from"); !ok {
		return filter, false
	}
	if filter.PeriodTo, ok = timeQuery(c, "to"); !ok {
		return filter, false
	}
	return filter, true
}

func createInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewInvoice
		if !bindJSON(c, &input) {
			return
		}
		invoice, err := models.CreateInvoice(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createInvoiceHandler", err)
			return
		}
		c.JSON(http.StatusCreated, invoice)
	}
}

// listInvoicesHandler serves ?scope=owner (default) or ?scope=tenant.
func listInvoicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, ok := pagination(c)
		if !ok {
			return
		}
		filter, ok := invoiceFilter(c)
		if !ok {
			return
		}
		switch c.DefaultQuery("scope", "owner") {
		case "owner":
			result, err := models.GetInvoicesByOwner(c.Request.Context(), filter, page)
			if err != nil {
				respondError(c, "listInvoicesHandler", err)
				return
			}
			c.JSON(http.StatusOK, result)
		case "tenant":
			result, err := models.GetInvoicesByTenant(c.Request.Context(), filter, page)
			if err != nil {
				respondError(c, "listInvoicesHandler", err)
				return
			}
			c.JSON(http.StatusOK, result)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "scope must be owner or tenant"})
		}
	}
}

func tenancyInvoicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		page, ok := pagination(c)
		if !ok {
			return
		}
		filter, ok := invoiceFilter(c)
		if !ok {
			return
		}
		result, err := models.GetInvoicesByTenancy(c.Request.Context(), id, filter, page)
		if err != nil {
			respondError(c, "tenancyInvoicesHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func getInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		invoice, err := models.GetInvoice(c.Request.Context(), id)
		if err != nil {
			respondError(c, "getInvoiceHandler", err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func updateInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.InvoiceUpdate
		if !bindJSON(c, &input) {
			return
		}
		invoice, err := models.UpdateInvoice(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, "updateInvoiceHandler", err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func deleteInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		invoice, err := models.DeleteInvoice(c.Request.Context(), id)
		if err != nil {
			respondError(c, "deleteInvoiceHandler", err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func sendInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		invoice, err := models.SendInvoice(c.Request.Context(), id)
		if err != nil {
			respondError(c, "sendInvoiceHandler", err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func invoiceStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req invoiceStatusRequest
		if !bindJSON(c, &req) {
			return
		}
		invoice, err := models.UpdateInvoiceStatus(c.Request.Context(), id, req.Status, req.PaymentDate)
		if err != nil {
			respondError(c, "invoiceStatusHandler", err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func payInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		invoice, err := models.PayInvoice(c.Request.Context(), id)
		if err != nil {
			respondError(c, "payInvoiceHandler", err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func exportInvoicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, ok := invoiceFilter(c)
		if !ok {
			return
		}
		data, err := models.ExportInvoices(c.Request.Context(), filter)
		if err != nil {
			respondError(c, "exportInvoicesHandler", err)
			return
		}
		fileName := fmt.Sprintf("invoices-%s.xlsx", time.Now().UTC().Format("20060102"))
		c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
		c.Data(http.StatusOK, xlsxContentType, data)
	}
}

func revenueHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		from, ok := timeQuery(c, "from")
		if !ok {
			return
		}
		to, ok := timeQuery(c, "to")
		if !ok {
			return
		}
		summary, err := models.GetOwnerRevenue(c.Request.Context(), from, to)
		if err != nil {
			respondError(c, "revenueHandler", err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}
