package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/slotter-org/tutor-backend/internal/services"
)

type AuthHandler struct {
  authService     services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
  return &AuthHandler{authService: authService}
}

func (ah *AuthHandler) ResendConfirmation(c *gin.Context) {
  var req struct {
    Email   string  `json:"email"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
    return
  }
  if err := ah.authService.ResendConfirmation(c.Request.Context(), req.Email); err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"message": "Confirmation email sent. Please check your inbox."})
}
