package handlers

import (
    "net/http"

    "github.com/gin-gonic/gin"
    "github.com/google/uuid"

    "github.com/slotter-org/tutor-backend/internal/services"
)

type ConversationHandler struct {
    conversationService services.ConversationService
}

func NewConversationHandler(conversationService services.ConversationService) *ConversationHandler {
    return &ConversationHandler{conversationService: conversationService}
}

func conversationID(c *gin.Context) (uuid.UUID, bool) {
    id, err := uuid.Parse(c.Param("id"))
    if err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation id"})
        return uuid.Nil, false
    }
    return id, true
}

func (ch *ConversationHandler) ListConversations(c *gin.Context) {
    convs, err := ch.conversationService.List(c.Request.Context())
    if err != nil {
        respondError(c, err)
        return
    }
    c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

func (ch *ConversationHandler) CreateConversation(c *gin.Context) {
    var req struct {
        Title string `json:"title"`
    }
    if c.Request.ContentLength != 0 {
        if err := c.ShouldBindJSON(&req); err != nil {
            c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
            return
        }
    }
    conv, err := ch.conversationService.Create(c.Request.Context(), req.Title)
    if err != nil {
        respondError(c, err)
        return
    }
    c.JSON(http.StatusCreated, gin.H{"conversation": conv})
}

func (ch *ConversationHandler) GetConversation(c *gin.Context) {
    id, ok := conversationID(c)
    if !ok {
        return
    }
    conv, err := ch.conversationService.Get(c.Request.Context(), id)
    if err != nil {
        respondError(c, err)
        return
    }
    c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

func (ch *ConversationHandler) UpdateConversation(c *gin.Context) {
    id, ok := conversationID(c)
    if !ok {
        return
    }
    var req struct {
        Title string `json:"title"`
    }
    if err := c.ShouldBindJSON(&req); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
        return
    }
    conv, err := ch.conversationService.Rename(c.Request.Context(), id, req.Title)
    if err != nil {
        respondError(c, err)
        return
    }
    c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

func (ch *ConversationHandler) DeleteConversation(c *gin.Context) {
    id, ok := conversationID(c)
    if !ok {
        return
    }
    if err := ch.conversationService.Delete(c.Request.Context(), id); err != nil {
        respondError(c, err)
        return
    }
    c.JSON(http.StatusOK, gin.H{"message": "Conversation deleted"})
}

func (ch *ConversationHandler) ListMessages(c *gin.Context) {
    id, ok := conversationID(c)
    if !ok {
        return
    }
    msgs, err := ch.conversationService.ListMessages(c.Request.Context(), id)
    if err != nil {
        respondError(c, err)
        return
    }
    c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (ch *ConversationHandler) CreateMessage(c *gin.Context) {
    id, ok := conversationID(c)
    if !ok {
        return
    }
    var req struct {
        Role    string `json:"role"`
        Content string `json:"content"`
    }
    if err := c.ShouldBindJSON(&req); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
        return
    }
    msg, err := ch.conversationService.AddMessage(c.Request.Context(), id, req.Role, req.Content)
    if err != nil {
        respondError(c, err)
        return
    }
    c.JSON(http.StatusCreated, gin.H{"message": msg})
}
