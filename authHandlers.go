package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/homerly/rental_backend/models"
	"github.com/homerly/rental_backend/utils"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func registerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewAccount
		if !bindJSON(c, &input) {
			return
		}
		account, err := models.RegisterAccount(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "registerHandler", err)
			return
		}
		c.JSON(http.StatusCreated, account)
	}
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if !bindJSON(c, &req) {
			return
		}
		info, err := models.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondError(c, "loginHandler", err)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := utils.GetTokenFromContext(c.Request.Context())
		claims, _, err := utils.ParseJwtClaims(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if err := utils.RevokeToken(claims); err != nil {
			respondError(c, "logoutHandler", utils.InternalError("failed to revoke token", err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func meHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, _ := utils.GetUserIdFromContext(c.Request.Context())
		account, err := models.GetAccount(c.Request.Context(), userId)
		if err != nil {
			respondError(c, "meHandler", err)
			return
		}
		c.JSON(http.StatusOK, account)
	}
}

func approveOwnerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		account, err := models.ApproveOwner(c.Request.Context(), id)
		if err != nil {
			respondError(c, "approveOwnerHandler", err)
			return
		}
		c.JSON(http.StatusOK, account)
	}
}

type accountRoleRequest struct {
	Role models.AccountRole `json:"role" binding:"required"`
}

func listAccountsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, ok := pagination(c)
		if !ok {
			return
		}
		filter := models.AccountFilter{Search: c.Query("search")}
		if v := c.Query("role"); v != "" {
			role := models.AccountRole(v)
			filter.Role = &role
		}
		if filter.IsDeleted, ok = boolQuery(c, "is_deleted"); !ok {
			return
		}
		if filter.IsOwnerApproved, ok = boolQuery(c, "is_owner_approved"); !ok {
			return
		}
		if filter.CreatedFrom, ok = timeQuery(c, "created_from"); !ok {
			return
		}
		if filter.CreatedTo, ok = timeQuery(c, "created_to"); !ok {
			return
		}
		result, err := models.GetAccounts(c.Request.Context(), filter, page)
		if err != nil {
			respondError(c, "listAccountsHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func getAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		account, err := models.ViewAccount(c.Request.Context(), id)
		if err != nil {
			respondError(c, "getAccountHandler", err)
			return
		}
		c.JSON(http.StatusOK, account)
	}
}

func updateAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.AccountUpdate
		if !bindJSON(c, &input) {
			return
		}
		account, err := models.UpdateAccount(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, "updateAccountHandler", err)
			return
		}
		c.JSON(http.StatusOK, account)
	}
}

func deleteAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		account, err := models.DeleteAccount(c.Request.Context(), id)
		if err != nil {
			respondError(c, "deleteAccountHandler", err)
			return
		}
		c.JSON(http.StatusOK, account)
	}
}

func restoreAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		account, err := models.RestoreAccount(c.Request.Context(), id)
		if err != nil {
			respondError(c, "restoreAccountHandler", err)
			return
		}
		c.JSON(http.StatusOK, account)
	}
}

func accountRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req accountRoleRequest
		if !bindJSON(c, &req) {
			return
		}
		account, err := models.ChangeAccountRole(c.Request.Context(), id, req.Role)
		if err != nil {
			respondError(c, "accountRoleHandler", err)
			return
		}
		c.JSON(http.StatusOK, account)
	}
}
