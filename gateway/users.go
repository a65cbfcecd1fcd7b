package gateway

import (
	"net/http"

	"github.com/example/articleshop/pkg/apperror"
	"github.com/example/articleshop/pkg/models"
	"github.com/gin-gonic/gin"
)

type registerUserRequest struct {
	Email string `json:"email"`
}

func (g *Gateway) registerUser(c *gin.Context) {
	var req registerUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.fail(c, apperror.ValidationFailed("", "invalid request body"))
		return
	}

	user, err := g.services.Identity.RegisterUser(c.Request.Context(), models.NewUser{
		ExternalSubjectID: c.GetString(subjectKey),
		Email:             req.Email,
	})
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (g *Gateway) getMe(c *gin.Context) {
	user, ok := g.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, user)
}
