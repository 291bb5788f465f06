package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/slotter-org/tutor-backend/internal/errordata"
  "github.com/slotter-org/tutor-backend/internal/normalization"
  "github.com/slotter-org/tutor-backend/internal/requestdata"
  "github.com/slotter-org/tutor-backend/internal/services"
)

type ChatHandler struct {
  chatService         services.ChatService
  moderationService   services.ModerationService
}

func NewChatHandler(chatService services.ChatService, moderationService services.ModerationService) *ChatHandler {
  return &ChatHandler{chatService: chatService, moderationService: moderationService}
}

type chatBody struct {
  Message       interface{}   `json:"message"`
  MaxTokens     *int          `json:"maxTokens"`
  Temperature   *float64      `json:"temperature"`
}

// bindChat decodes the body. A message that is not a string counts as missing.
func bindChat(c *gin.Context) (services.ChatRequest, bool) {
  var body chatBody
  if err := c.ShouldBindJSON(&body); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
    return services.ChatRequest{}, false
  }
  msg, _ := body.Message.(string)
  return services.ChatRequest{
    Message:     msg,
    MaxTokens:   body.MaxTokens,
    Temperature: body.Temperature,
  }, true
}

// GPT serves POST /api/gpt for signed-in users.
func (ch *ChatHandler) GPT(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil {
    c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
    return
  }
  req, ok := bindChat(c)
  if !ok {
    return
  }
  userID := rd.UserID
  res, err := ch.chatService.Reply(c.Request.Context(), services.ModerationSourceAuthenticated, &userID, req)
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, res)
}

// PublicGPT serves POST /api/public/gpt without authentication.
func (ch *ChatHandler) PublicGPT(c *gin.Context) {
  req, ok := bindChat(c)
  if !ok {
    return
  }
  res, err := ch.chatService.Reply(c.Request.Context(), services.ModerationSourcePublic, nil, req)
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, res)
}

func (ch *ChatHandler) TestModeration(c *gin.Context) {
  var req struct {
    Text  interface{}   `json:"text"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
    return
  }
  text, _ := req.Text.(string)
  text = normalization.ParseInputString(text)
  if text == "" {
    c.JSON(http.StatusBadRequest, gin.H{"error": "Text is required"})
    return
  }
  if normalization.RuneLength(text) > services.MaxMessageLength {
    c.JSON(http.StatusBadRequest, gin.H{"error": "Text is too long (max 4000 characters)"})
    return
  }
  verdict, err := ch.moderationService.Inspect(c.Request.Context(), text)
  if err != nil {
    respondError(c, errordata.Wrap(http.StatusInternalServerError, "Moderation check failed", err))
    return
  }
  c.JSON(http.StatusOK, verdict)
}
