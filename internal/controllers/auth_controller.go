package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bus_tracker/internal/auth"
	"bus_tracker/internal/gateway"
	"bus_tracker/internal/middleware"
)

func (h *Handler) LoginUser(c *gin.Context) {
	var body struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, role, err := h.Auth.Login(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			logrus.WithField("email", body.Email).Info("Login rejected")
		}
		respondError(c, err)
		return
	}

	token, err := middleware.GenerateToken(user.ID, role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  user,
		"role":  role.String(),
	})
}

// Me describes the signed-in account. Drivers also get their profile and,
// when assigned, their bus.
func (h *Handler) Me(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := h.Users.GetUser(ctx, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	role := middleware.RoleOf(c)
	resp := gin.H{"user": user, "role": role.String()}

	none := func() gin.H { return nil }
	extra := auth.Match(role, auth.Cases[gin.H]{
		Driver: func() gin.H {
			driver, bus, err := h.GW.DriverBus(ctx, user.ID)
			switch {
			case err == nil:
				return gin.H{"driver": driver, "bus": bus}
			case errors.Is(err, gateway.ErrNoAssignedBus):
				return gin.H{"driver": driver}
			}
			return nil
		},
		Admin:     none,
		Passenger: none,
		Guest:     none,
	})
	for k, v := range extra {
		resp[k] = v
	}

	c.JSON(http.StatusOK, resp)
}
