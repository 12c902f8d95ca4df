package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"mise/internal/core/id"
	"mise/internal/domain/reservations"
	"mise/internal/infrastructure/http/v1/dto"
)

// ReservationHandler handles HTTP requests for stock reservations.
type ReservationHandler struct {
	*BaseHandler
	service *reservations.Service
}

// NewReservationHandler creates a new reservation handler.
func NewReservationHandler(base *BaseHandler, service *reservations.Service) *ReservationHandler {
	return &ReservationHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Reserve handles POST /reservations
func (h *ReservationHandler) Reserve(c *gin.Context) {
	var req dto.ReserveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	branchID, ok := h.ParseID(c, "branchId", req.BranchID)
	if !ok {
		return
	}
	ingredientID, ok := h.ParseID(c, "ingredientId", req.IngredientID)
	if !ok {
		return
	}

	parseOptional := func(field string, v *string) (*id.ID, bool) {
		if v == nil || *v == "" {
			return nil, true
		}
		parsed, ok := h.ParseID(c, field, *v)
		if !ok {
			return nil, false
		}
		return &parsed, true
	}

	orderID, ok := parseOptional("orderId", req.OrderID)
	if !ok {
		return
	}
	cartID, ok := parseOptional("cartId", req.CartID)
	if !ok {
		return
	}
	guestID, ok := parseOptional("guestId", req.GuestID)
	if !ok {
		return
	}

	reservationID, err := h.service.Reserve(c.Request.Context(), reservations.ReserveRequest{
		GroupID:      req.GroupID,
		BranchID:     branchID,
		IngredientID: ingredientID,
		Quantity:     req.Quantity,
		Unit:         req.Unit,
		TTL:          time.Duration(req.TTLSeconds) * time.Second,
		OrderID:      orderID,
		CartID:       cartID,
		GuestID:      guestID,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, reservationID)
}

// CommitGroup handles POST /reservations/groups/:groupId/commit
func (h *ReservationHandler) CommitGroup(c *gin.Context) {
	committed, err := h.service.CommitGroup(c.Request.Context(), c.Param("groupId"))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.CountResponse{Count: committed})
}

// ReleaseGroup handles POST /reservations/groups/:groupId/release
func (h *ReservationHandler) ReleaseGroup(c *gin.Context) {
	released, err := h.service.ReleaseGroup(c.Request.Context(), c.Param("groupId"))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.CountResponse{Count: released})
}

// Release handles DELETE /reservations/:reservationId
func (h *ReservationHandler) Release(c *gin.Context) {
	reservationID, ok := h.ParseID(c, "reservationId", c.Param("reservationId"))
	if !ok {
		return
	}

	if err := h.service.Release(c.Request.Context(), reservationID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// RegisterRoutes registers reservation routes.
func (h *ReservationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Reserve)
	rg.POST("/groups/:groupId/commit", h.CommitGroup)
	rg.POST("/groups/:groupId/release", h.ReleaseGroup)
	rg.DELETE("/:reservationId", h.Release)
}
