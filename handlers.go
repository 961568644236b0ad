package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/homerly/rental_backend/config"
	"github.com/homerly/rental_backend/repository"
	"github.com/homerly/rental_backend/utils"
	"github.com/shopspring/decimal"
)

// respondError maps a service error to its status code. Internal causes are
// logged and replaced by a generic message.
func respondError(c *gin.Context, funcName string, err error) {
	kind := utils.KindOf(err)
	if kind == utils.KindInternal {
		config.LogError(config.GetLogger().WithContext(c.Request.Context()), "server", funcName, c.Request.Method+" "+c.FullPath(), nil, err)
	}
	c.JSON(utils.HTTPStatus(kind), gin.H{"error": utils.PublicMessage(err)})
}

func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(verrs)})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return false
	}
	return true
}

func idParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func pagination(c *gin.Context) (repository.Pagination, bool) {
	var page repository.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pagination"})
		return page, false
	}
	return page, true
}

func uuidQuery(c *gin.Context, key string) (*uuid.UUID, bool) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return nil, true
	}
	id, err := uuid.Parse(v)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return nil, false
	}
	return &id, true
}

// timeQuery accepts RFC3339 or YYYY-MM-DD.
func timeQuery(c *gin.Context, key string) (*time.Time, bool) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, true
		}
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
	return nil, false
}

func boolQuery(c *gin.Context, key string) (*bool, bool) {
	switch strings.ToLower(strings.TrimSpace(c.Query(key))) {
	case "":
		return nil, true
	case "true", "1":
		return utils.NewTrue(), true
	case "false", "0":
		return utils.NewFalse(), true
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
	return nil, false
}

func decimalQuery(c *gin.Context, key string) (*decimal.Decimal, bool) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return nil, true
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return nil, false
	}
	return &d, true
}
