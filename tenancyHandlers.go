package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/homerly/rental_backend/models"
)

type tenancyStatusRequest struct {
	Status models.TenancyStatus `json:"status" binding:"required"`
}

func createTenancyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewTenancy
		if !bindJSON(c, &input) {
			return
		}
		tenancy, err := models.CreateTenancy(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createTenancyHandler", err)
			return
		}
		c.JSON(http.StatusCreated, tenancy)
	}
}

func listTenanciesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, ok := pagination(c)
		if !ok {
			return
		}
		var filter models.TenancyFilter
		if filter.PropertyId, ok = uuidQuery(c, "property_id"); !ok {
			return
		}
		if filter.TenantId, ok = uuidQuery(c, "tenant_id"); !ok {
			return
		}
		if filter.OwnerId, ok = uuidQuery(c, "owner_id"); !ok {
			return
		}
		if filter.IsTenantConfirmed, ok = boolQuery(c, "is_tenant_confirmed"); !ok {
			return
		}
		if filter.StartDateFrom, ok = timeQuery(c, "start_from"); !ok {
			return
		}
		if filter.StartDateTo, ok = timeQuery(c, "start_to"); !ok {
			return
		}
		if v := c.Query("status"); v != "" {
			status := models.TenancyStatus(v)
			filter.Status = &status
		}
		result, err := models.GetTenancies(c.Request.Context(), filter, page)
		if err != nil {
			respondError(c, "listTenanciesHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func getTenancyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		tenancy, err := models.GetTenancy(c.Request.Context(), id)
		if err != nil {
			respondError(c, "getTenancyHandler", err)
			return
		}
		c.JSON(http.StatusOK, tenancy)
	}
}

func updateTenancyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.TenancyUpdate
		if !bindJSON(c, &input) {
			return
		}
		tenancy, err := models.UpdateTenancy(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, "updateTenancyHandler", err)
			return
		}
		c.JSON(http.StatusOK, tenancy)
	}
}

func deleteTenancyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		tenancy, err := models.DeleteTenancy(c.Request.Context(), id)
		if err != nil {
			respondError(c, "deleteTenancyHandler", err)
			return
		}
		c.JSON(http.StatusOK, tenancy)
	}
}

func tenancyStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req tenancyStatusRequest
		if !bindJSON(c, &req) {
			return
		}
		tenancy, err := models.UpdateTenancyStatus(c.Request.Context(), id, req.Status)
		if err != nil {
			respondError(c, "tenancyStatusHandler", err)
			return
		}
		c.JSON(http.StatusOK, tenancy)
	}
}

func confirmTenancyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		tenancy, err := models.ConfirmTenancy(c.Request.Context(), id)
		if err != nil {
			respondError(c, "confirmTenancyHandler", err)
			return
		}
		c.JSON(http.StatusOK, tenancy)
	}
}

func cancelTenancyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		tenancy, err := models.CancelTenancy(c.Request.Context(), id)
		if err != nil {
			respondError(c, "cancelTenancyHandler", err)
			return
		}
		c.JSON(http.StatusOK, tenancy)
	}
}
