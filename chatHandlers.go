package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/homerly/rental_backend/models"
)

func sendChatMessageHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewChatMessage
		if !bindJSON(c, &input) {
			return
		}
		msg, err := models.SendChatMessage(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "sendChatMessageHandler", err)
			return
		}
		c.JSON(http.StatusCreated, msg)
	}
}

// chatHistoryHandler serves the thread with ?with=<account id>. Non-admins
// may omit it to read their thread with the default admin.
func chatHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		with, ok := uuidQuery(c, "with")
		if !ok {
			return
		}
		page, ok := pagination(c)
		if !ok {
			return
		}
		result, err := models.GetChatHistory(c.Request.Context(), with, page)
		if err != nil {
			respondError(c, "chatHistoryHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func recentChatMessagesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		with, ok := uuidQuery(c, "with")
		if !ok {
			return
		}
		count := 0
		if v := c.Query("count"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid count"})
				return
			}
			count = n
		}
		messages, err := models.GetRecentMessages(c.Request.Context(), with, count)
		if err != nil {
			respondError(c, "recentChatMessagesHandler", err)
			return
		}
		c.JSON(http.StatusOK, messages)
	}
}

func markChatReadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		with, ok := uuidQuery(c, "with")
		if !ok {
			return
		}
		n, err := models.MarkMessagesAsRead(c.Request.Context(), with)
		if err != nil {
			respondError(c, "markChatReadHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"marked": n})
	}
}

func chatAdminHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := models.GetAdminId(c.Request.Context())
		if err != nil {
			respondError(c, "chatAdminHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"admin_id": id})
	}
}

func adminConversationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversations, err := models.GetAdminConversations(c.Request.Context())
		if err != nil {
			respondError(c, "adminConversationsHandler", err)
			return
		}
		c.JSON(http.StatusOK, conversations)
	}
}
