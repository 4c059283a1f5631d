package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/juan-barragan/oraccio/internal/dto"
	appErrors "github.com/juan-barragan/oraccio/pkg/errors"
	"github.com/juan-barragan/oraccio/pkg/response"
)

type tokenIssuer interface {
	IssueToken(req dto.TokenRequest) (*dto.TokenResponse, error)
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service tokenIssuer
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc tokenIssuer) *AuthHandler {
	return &AuthHandler{service: svc}
}

// Token godoc
// @Summary Issue an access token
// @Description Exchange the operator key for a short-lived JWT
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body dto.TokenRequest true "Token request"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/token [post]
func (h *AuthHandler) Token(c *gin.Context) {
	var req dto.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid token payload"))
		return
	}
	res, err := h.service.IssueToken(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
