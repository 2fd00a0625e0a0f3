package handlers

import (
	"errors"
	"net/http"

	"marketplace/internal/errs"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// respondError maps the error taxonomy onto HTTP statuses. Validation and
// state errors carry their reason to the caller; consistency violations are
// flagged retryable.
func respondError(c *gin.Context, err error) {
	var validationErr *errs.ValidationError
	var transitionErr *errs.InvalidTransitionError
	var stateErr *errs.InvalidStateError
	var dependencyErr *errs.DependencyError
	var consistencyErr *errs.ConsistencyViolation

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusConflict, gin.H{"error": transitionErr.Error()})
	case errors.As(err, &stateErr):
		c.JSON(http.StatusConflict, gin.H{"error": stateErr.Error()})
	case errors.As(err, &consistencyErr):
		c.JSON(http.StatusConflict, gin.H{"error": consistencyErr.Error(), "retryable": true})
	case errors.As(err, &dependencyErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": dependencyErr.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
