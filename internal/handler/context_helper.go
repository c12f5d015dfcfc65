package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-ledger-api/internal/middleware"
	"github.com/noah-isme/sma-ledger-api/internal/models"
	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
	"github.com/noah-isme/sma-ledger-api/pkg/response"
)

// actorFromContext builds the caller identity from the JWT claims. It writes a
// 401 and reports false when the request carries no claims.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return models.ActorFromClaims(claims), true
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return false
	}
	return true
}

func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		size = 20
	}
	return page, size
}

func respondCached(c *gin.Context, data interface{}, pagination *models.Pagination, hit bool) {
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, data, pagination, middleware.ExtractMeta(c))
}
