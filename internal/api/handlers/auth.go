package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/pdv-manager/internal/auth"
	"github.com/yourusername/pdv-manager/internal/kvstore"
	"github.com/yourusername/pdv-manager/internal/models"
)

// usersSlot is where the host UI keeps its operator records
const usersSlot = "users"

// AuthHandler authenticates operators against the users slot
type AuthHandler struct {
	store      kvstore.Store
	jwtManager *auth.JWTManager
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(store kvstore.Store, jwtManager *auth.JWTManager) *AuthHandler {
	return &AuthHandler{
		store:      store,
		jwtManager: jwtManager,
	}
}

// Login handles operator login
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	user, err := h.findUser(c.Request.Context(), req.Username)
	if err != nil {
		log.Printf("[Auth] Failed to load users: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load users"})
		return
	}
	if user == nil || !user.Active {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if err := auth.VerifyPassword(req.Password, user.PasswordHash); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := h.jwtManager.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		log.Printf("[Auth] Failed to generate token for %s: %v", user.Username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{
		AccessToken: token,
		User:        user.Sanitized(),
	})
}

// GetCurrentUser returns the operator behind the presented token
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	username, exists := c.Get("username")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	user, err := h.findUser(c.Request.Context(), username.(string))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load users"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User no longer exists"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user.Sanitized()})
}

// findUser looks a username up in the users slot. A missing slot means no
// operators exist yet, which reads as unknown user, not as an error.
func (h *AuthHandler) findUser(ctx context.Context, username string) (*models.User, error) {
	value, ok, err := h.store.Get(ctx, usersSlot)
	if err != nil {
		return nil, fmt.Errorf("failed to read users slot: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var users []models.User
	if err := json.Unmarshal(value, &users); err != nil {
		return nil, fmt.Errorf("failed to parse users slot: %w", err)
	}

	for i := range users {
		if strings.EqualFold(users[i].Username, username) {
			return &users[i], nil
		}
	}

	return nil, nil
}
