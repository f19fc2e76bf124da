package server

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kyleking/gen-console/internal/account"
	"github.com/kyleking/gen-console/internal/errors"
	"github.com/kyleking/gen-console/internal/schema"
	"github.com/kyleking/gen-console/internal/storage"
)

// respondError writes {"message"} with a status derived from the error type
func (h *handlers) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch errors.GetType(err) {
	case errors.ErrTypeValidation:
		status = http.StatusBadRequest
	case errors.ErrTypeNotFound:
		status = http.StatusNotFound
	case errors.ErrTypeConflict:
		status = http.StatusConflict
	case errors.ErrTypeBusy:
		status = http.StatusTooManyRequests
	case errors.ErrTypeClosed:
		status = http.StatusServiceUnavailable
	}

	message := err.Error()

	var typed *errors.Error
	if stderrors.As(err, &typed) {
		message = typed.Message
		if typed.Field != "" {
			message = typed.Field + " " + typed.Message
		}
	}

	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("handler failed")
	}

	c.AbortWithStatusJSON(status, gin.H{"message": message})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": message})
}

// listTables serves GET /gen/tables?dbUrl=
func (h *handlers) listTables(c *gin.Context) {
	dbURL := strings.TrimSpace(c.Query("dbUrl"))
	if dbURL == "" {
		badRequest(c, "dbUrl is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.introspectTO)
	defer cancel()

	inspector, err := h.open(ctx, dbURL)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer inspector.Close()

	tables, err := inspector.Tables(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}

	ignore := h.cfg.IgnoreFields
	if ignore == nil {
		ignore = []string{}
	}

	if tables == nil {
		tables = []schema.SchemaTable{}
	}

	c.JSON(http.StatusOK, schema.TablesResponse{Tables: tables, IgnoreFields: ignore})
}

// generate serves POST /gen/tables
func (h *handlers) generate(c *gin.Context) {
	var req schema.GenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	if h.generator == nil {
		h.respondError(c, errors.New(errors.ErrTypeConfig, "code generation is not configured"))
		return
	}

	res, err := h.generator.Generate(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *handlers) store(c *gin.Context) (storage.Repository, bool) {
	if h.accounts == nil {
		h.respondError(c, errors.New(errors.ErrTypeConfig, "account store is not configured"))
		return nil, false
	}

	return h.accounts, true
}

// listAccounts serves GET /user-center?limit=&offset=
func (h *handlers) listAccounts(c *gin.Context) {
	repo, ok := h.store(c)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(storage.DefaultListLimit)))
	if err != nil || limit < 0 {
		badRequest(c, "limit must be a non-negative integer")
		return
	}

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		badRequest(c, "offset must be a non-negative integer")
		return
	}

	if limit == 0 {
		limit = storage.DefaultListLimit
	}

	records, err := repo.ListAccounts(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	stats, err := repo.GetStats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, account.Page{Items: records, Total: stats.TotalAccounts, Limit: limit, Offset: offset})
}

// getAccount serves GET /user-center/:id
func (h *handlers) getAccount(c *gin.Context) {
	repo, ok := h.store(c)
	if !ok {
		return
	}

	rec, err := repo.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

// createAccount serves POST /user-center
func (h *handlers) createAccount(c *gin.Context) {
	repo, ok := h.store(c)
	if !ok {
		return
	}

	var form account.Form
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	form.ID = ""

	rec, err := repo.CreateAccount(c.Request.Context(), form)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rec)
}

// updateAccount serves PUT /user-center; the id travels in the body
func (h *handlers) updateAccount(c *gin.Context) {
	repo, ok := h.store(c)
	if !ok {
		return
	}

	var form account.Form
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	rec, err := repo.UpdateAccount(c.Request.Context(), form)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

// deleteAccount serves DELETE /user-center/:id
func (h *handlers) deleteAccount(c *gin.Context) {
	repo, ok := h.store(c)
	if !ok {
		return
	}

	if err := repo.DeleteAccount(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
