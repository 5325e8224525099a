// Package handlers implements the user dashboard API surface.
package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// Pagination bounds for list endpoints.
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// pagination reads page and page_size query parameters with sane bounds.
func pagination(c *gin.Context) (page, pageSize int) {
	page = 1
	if raw := strings.TrimSpace(c.Query("page")); raw != "" {
		if parsed, errParse := strconv.Atoi(raw); errParse == nil && parsed > 0 {
			page = parsed
		}
	}
	pageSize = defaultPageSize
	if raw := strings.TrimSpace(c.Query("page_size")); raw != "" {
		if parsed, errParse := strconv.Atoi(raw); errParse == nil && parsed > 0 {
			pageSize = parsed
		}
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// contextWithoutCancel detaches background work from the request lifetime so
// it survives the response being written.
func contextWithoutCancel(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}
