package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/homerly/rental_backend/models"
)

func createPropertyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewProperty
		if !bindJSON(c, &input) {
			return
		}
		property, err := models.CreateProperty(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createPropertyHandler", err)
			return
		}
		c.JSON(http.StatusCreated, property)
	}
}

func listPropertiesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, ok := pagination(c)
		if !ok {
			return
		}
		ownerId, ok := uuidQuery(c, "owner_id")
		if !ok {
			return
		}
		filter := models.PropertyFilter{OwnerId: ownerId, Search: c.Query("search")}
		if v := c.Query("status"); v != "" {
			status := models.PropertyStatus(v)
			filter.Status = &status
		}
		if filter.MinRent, ok = decimalQuery(c, "min_rent"); !ok {
			return
		}
		if filter.MaxRent, ok = decimalQuery(c, "max_rent"); !ok {
			return
		}
		if filter.MinArea, ok = decimalQuery(c, "min_area"); !ok {
			return
		}
		if filter.MaxArea, ok = decimalQuery(c, "max_area"); !ok {
			return
		}
		result, err := models.GetProperties(c.Request.Context(), filter, page)
		if err != nil {
			respondError(c, "listPropertiesHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func getPropertyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		property, err := models.GetProperty(c.Request.Context(), id)
		if err != nil {
			respondError(c, "getPropertyHandler", err)
			return
		}
		c.JSON(http.StatusOK, property)
	}
}

func updatePropertyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.NewProperty
		if !bindJSON(c, &input) {
			return
		}
		property, err := models.UpdateProperty(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, "updatePropertyHandler", err)
			return
		}
		c.JSON(http.StatusOK, property)
	}
}

func deletePropertyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		property, err := models.DeleteProperty(c.Request.Context(), id)
		if err != nil {
			respondError(c, "deletePropertyHandler", err)
			return
		}
		c.JSON(http.StatusOK, property)
	}
}

func activeTenancyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		tenancy, err := models.GetActiveTenancyByProperty(c.Request.Context(), id)
		if err != nil {
			respondError(c, "activeTenancyHandler", err)
			return
		}
		c.JSON(http.StatusOK, tenancy)
	}
}
