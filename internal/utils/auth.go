package utils

import (
  "fmt"
  "net/mail"
  "strings"

  "github.com/slotter-org/tutor-backend/internal/normalization"
)

// ExtractBearerToken returns the token from an "Authorization: Bearer <token>" header value.
func ExtractBearerToken(authHeader string) string {
  if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
    return strings.TrimSpace(authHeader[7:])
  }
  return ""
}

func ValidateEmail(email string) (string, error) {
  email = normalization.ParseInputString(email)
  if email == "" {
    return "", fmt.Errorf("an email is required.")
  }
  addr, err := mail.ParseAddress(email)
  if err != nil || addr.Address != email {
    return "", fmt.Errorf("email is not a valid address: '%s'", email)
  }
  return strings.ToLower(addr.Address), nil
}
