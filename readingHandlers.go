package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/homerly/rental_backend/models"
)

func readingFilter(c *gin.Context) (models.UtilityReadingFilter, bool) {
	var filter models.UtilityReadingFilter
	var ok bool
	if filter.IsCharged, ok = boolQuery(c, "is_charged"); !ok {
		return filter, false
	}
	if filter.FromDate, ok = timeQuery(c, "from"); !ok {
		return filter, false
	}
	if filter.ToDate, ok = timeQuery(c, "to"); !ok {
		return filter, false
	}
	return filter, true
}

func createReadingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUtilityReading
		if !bindJSON(c, &input) {
			return
		}
		reading, err := models.CreateUtilityReading(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createReadingHandler", err)
			return
		}
		c.JSON(http.StatusCreated, reading)
	}
}

func getReadingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		reading, err := models.GetUtilityReading(c.Request.Context(), id)
		if err != nil {
			respondError(c, "getReadingHandler", err)
			return
		}
		c.JSON(http.StatusOK, reading)
	}
}

func updateReadingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.UtilityReadingUpdate
		if !bindJSON(c, &input) {
			return
		}
		reading, err := models.UpdateUtilityReading(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, "updateReadingHandler", err)
			return
		}
		c.JSON(http.StatusOK, reading)
	}
}

func deleteReadingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		reading, err := models.DeleteUtilityReading(c.Request.Context(), id)
		if err != nil {
			respondError(c, "deleteReadingHandler", err)
			return
		}
		c.JSON(http.StatusOK, reading)
	}
}

func chargeReadingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		reading, err := models.MarkUtilityReadingCharged(c.Request.Context(), id)
		if err != nil {
			respondError(c, "chargeReadingHandler", err)
			return
		}
		c.JSON(http.StatusOK, reading)
	}
}

func tenancyReadingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		page, ok := pagination(c)
		if !ok {
			return
		}
		filter, ok := readingFilter(c)
		if !ok {
			return
		}
		result, err := models.GetUtilityReadingsByTenancy(c.Request.Context(), id, filter, page)
		if err != nil {
			respondError(c, "tenancyReadingsHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func propertyReadingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		page, ok := pagination(c)
		if !ok {
			return
		}
		filter, ok := readingFilter(c)
		if !ok {
			return
		}
		result, err := models.GetUtilityReadingsByProperty(c.Request.Context(), id, filter, page)
		if err != nil {
			respondError(c, "propertyReadingsHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func latestReadingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		reading, err := models.GetLatestUtilityReading(c.Request.Context(), id)
		if err != nil {
			respondError(c, "latestReadingHandler", err)
			return
		}
		c.JSON(http.StatusOK, reading)
	}
}
