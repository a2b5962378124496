package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/imamnura/warung-enin-sub000/internal/core"
	"github.com/imamnura/warung-enin-sub000/internal/repository"
	"github.com/imamnura/warung-enin-sub000/internal/utils"
)

const tokenTTL = 24 * time.Hour

type AuthHandler struct {
	store repository.Store
}

func NewAuthHandler(store repository.Store) *AuthHandler {
	return &AuthHandler{store: store}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "username and password are required"})
		return
	}

	ctx := c.Request.Context()
	user, err := h.store.UserByUsername(ctx, req.Username)
	if err != nil {
		if core.IsNotFound(err) {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid credentials"})
			return
		}
		respondError(c, err)
		return
	}
	if !user.IsActive || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid credentials"})
		return
	}

	token, expiresAt, err := utils.GenerateToken(user.ID, user.Username, user.Role, tokenTTL)
	if err != nil {
		respondError(c, err)
		return
	}
	_ = h.store.TouchUserLogin(ctx, user.ID, time.Now())

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"token":      token,
			"expires_at": expiresAt,
			"user": gin.H{
				"id":       user.ID,
				"username": user.Username,
				"role":     user.Role,
			},
		},
	})
}
