package main

import (
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/homerly/rental_backend/models"
	"github.com/homerly/rental_backend/utils"
)

const uploadField = "file"

// readUpload reads the multipart file field, rejecting anything over the upload limit.
func readUpload(c *gin.Context) (string, []byte, bool) {
	fh, err := c.FormFile(uploadField)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return "", nil, false
	}
	if fh.Size > utils.MaxUploadSizeBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit"})
		return "", nil, false
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file could not be read"})
		return "", nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, utils.MaxUploadSizeBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file could not be read"})
		return "", nil, false
	}
	return filepath.Base(fh.Filename), data, true
}

func propertyImageHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		fileName, data, ok := readUpload(c)
		if !ok {
			return
		}
		property, err := models.SetPropertyImage(c.Request.Context(), id, fileName, data)
		if err != nil {
			respondError(c, "propertyImageHandler", err)
			return
		}
		c.JSON(http.StatusOK, property)
	}
}

func tenancyContractHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		fileName, data, ok := readUpload(c)
		if !ok {
			return
		}
		tenancy, err := models.SetTenancyContract(c.Request.Context(), id, fileName, data)
		if err != nil {
			respondError(c, "tenancyContractHandler", err)
			return
		}
		c.JSON(http.StatusOK, tenancy)
	}
}
