package handlers

import (
  "github.com/gin-gonic/gin"

  "github.com/slotter-org/tutor-backend/internal/errordata"
)

// respondError writes err with the status the service attached to it; untyped errors are 500.
func respondError(c *gin.Context, err error) {
  _ = c.Error(err)
  c.JSON(errordata.StatusOf(err), errordata.Body(err))
}
