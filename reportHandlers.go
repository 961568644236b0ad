package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/homerly/rental_backend/models"
)

type reportPriorityRequest struct {
	Priority models.ReportPriority `json:"priority" binding:"required"`
}

func reportFilter(c *gin.Context) models.PropertyReportFilter {
	var filter models.PropertyReportFilter
	if v := c.Query("priority"); v != "" {
		p := models.ReportPriority(v)
		filter.Priority = &p
	}
	return filter
}

func createReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPropertyReport
		if !bindJSON(c, &input) {
			return
		}
		report, err := models.CreatePropertyReport(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createReportHandler", err)
			return
		}
		c.JSON(http.StatusCreated, report)
	}
}

// listReportsHandler serves ?scope=tenant (default) or ?scope=owner.
func listReportsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, ok := pagination(c)
		if !ok {
			return
		}
		filter := reportFilter(c)
		switch c.DefaultQuery("scope", "tenant") {
		case "tenant":
			result, err := models.GetPropertyReportsByTenant(c.Request.Context(), filter, page)
			if err != nil {
				respondError(c, "listReportsHandler", err)
				return
			}
			c.JSON(http.StatusOK, result)
		case "owner":
			result, err := models.GetPropertyReportsByOwner(c.Request.Context(), filter, page)
			if err != nil {
				respondError(c, "listReportsHandler", err)
				return
			}
			c.JSON(http.StatusOK, result)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "scope must be owner or tenant"})
		}
	}
}

func getReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		report, err := models.GetPropertyReport(c.Request.Context(), id)
		if err != nil {
			respondError(c, "getReportHandler", err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func updateReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.PropertyReportUpdate
		if !bindJSON(c, &input) {
			return
		}
		report, err := models.UpdatePropertyReport(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, "updateReportHandler", err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func reportPriorityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req reportPriorityRequest
		if !bindJSON(c, &req) {
			return
		}
		report, err := models.UpdatePropertyReportPriority(c.Request.Context(), id, req.Priority)
		if err != nil {
			respondError(c, "reportPriorityHandler", err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func deleteReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		report, err := models.DeletePropertyReport(c.Request.Context(), id)
		if err != nil {
			respondError(c, "deleteReportHandler", err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func propertyReportsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		page, ok := pagination(c)
		if !ok {
			return
		}
		result, err := models.GetPropertyReportsByProperty(c.Request.Context(), id, reportFilter(c), page)
		if err != nil {
			respondError(c, "propertyReportsHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func tenancyReportsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		page, ok := pagination(c)
		if !ok {
			return
		}
		result, err := models.GetPropertyReportsByTenancy(c.Request.Context(), id, reportFilter(c), page)
		if err != nil {
			respondError(c, "tenancyReportsHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
