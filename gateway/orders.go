package gateway

import (
	"net/http"

	"github.com/example/articleshop/pkg/apperror"
	"github.com/example/articleshop/pkg/models"
	"github.com/example/articleshop/pkg/payment"
	"github.com/gin-gonic/gin"
)

type createOrderRequest struct {
	Items []models.ItemInput `json:"items"`
}

func (g *Gateway) createPaymentSheet(c *gin.Context) {
	var req payment.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		g.fail(c, apperror.ValidationFailed("", "invalid request body"))
		return
	}

	setup, err := g.services.Payments.CreatePaymentSetup(c.Request.Context(), req)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, setup)
}

// currentUser maps the authenticated subject to the stored user.
func (g *Gateway) currentUser(c *gin.Context) (*models.User, bool) {
	user, err := g.services.Identity.FindBySubject(c.Request.Context(), c.GetString(subjectKey))
	if err != nil {
		g.fail(c, err)
		return nil, false
	}
	return user, true
}

func (g *Gateway) listMyOrders(c *gin.Context) {
	user, ok := g.currentUser(c)
	if !ok {
		return
	}

	orders, err := g.services.Orders.ListOrdersForUser(c.Request.Context(), user.ID, requestAuthority(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (g *Gateway) listAllOrders(c *gin.Context) {
	orders, err := g.services.Orders.ListAllOrders(c.Request.Context(), requestAuthority(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (g *Gateway) getOrder(c *gin.Context) {
	order, err := g.services.Orders.GetOrder(c.Request.Context(), c.Param("id"), requestAuthority(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (g *Gateway) createOrder(c *gin.Context) {
	user, ok := g.currentUser(c)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.fail(c, apperror.ValidationFailed("items", "Missing or invalid items"))
		return
	}

	order, err := g.services.Orders.CreateOrder(c.Request.Context(), user.ID, req.Items)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (g *Gateway) updateOrder(c *gin.Context) {
	var patch models.OrderPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		g.fail(c, apperror.ValidationFailed("", "invalid request body"))
		return
	}

	order, err := g.services.Orders.UpdateOrder(c.Request.Context(), c.Param("id"), patch, requestAuthority(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
