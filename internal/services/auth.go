package services

import (
  "bytes"
  "context"
  "encoding/json"
  "fmt"
  "io"
  "net/http"
  "strings"
  "time"

  "github.com/golang-jwt/jwt/v5"
  "github.com/google/uuid"

  "github.com/slotter-org/tutor-backend/internal/errordata"
  "github.com/slotter-org/tutor-backend/internal/logger"
  "github.com/slotter-org/tutor-backend/internal/normalization"
  "github.com/slotter-org/tutor-backend/internal/requestdata"
  "github.com/slotter-org/tutor-backend/internal/types"
  "github.com/slotter-org/tutor-backend/internal/utils"
)

// IdentityClaims is the claim set the identity provider signs into access tokens.
type IdentityClaims struct {
  jwt.RegisteredClaims
  Email       string      `json:"email,omitempty"`
  Role        string      `json:"role,omitempty"`
  SessionID   string      `json:"session_id,omitempty"`
}

type AuthService interface {
  VerifyToken(tokenString string) (*types.Identity, *IdentityClaims, error)
  SetContextFromToken(ctx context.Context, tokenString, clientIP string) (context.Context, error)
  ResendConfirmation(ctx context.Context, email string) error
}

type AuthOptions struct {
  IdentityURL     string
  AnonKey         string
  JWTSecret       string
  JWTAudience     string
}

type authService struct {
  log           *logger.Logger
  client        *http.Client
  identityURL   string
  anonKey       string
  jwtSecretKey  string
  audience      string
}

func NewAuthService(log *logger.Logger, opts AuthOptions) AuthService {
  serviceLog := log.With("service", "AuthService")
  if opts.JWTSecret == "" {
    serviceLog.Warn("IDENTITY_JWT_SECRET not set; every bearer token will be rejected")
  }
  if opts.IdentityURL == "" {
    serviceLog.Warn("IDENTITY_URL not set; resend-confirmation is unavailable")
  }
  return &authService{
    log:          serviceLog,
    client:       &http.Client{Timeout: 15 * time.Second},
    identityURL:  strings.TrimRight(opts.IdentityURL, "/"),
    anonKey:      opts.AnonKey,
    jwtSecretKey: opts.JWTSecret,
    audience:     opts.JWTAudience,
  }
}

//----------------------------------------------------------------------------------------------------------------------
// VerifyToken, SetContextFromToken
//----------------------------------------------------------------------------------------------------------------------

func (as *authService) VerifyToken(tokenString string) (*types.Identity, *IdentityClaims, error) {
  if tokenString == "" {
    return nil, nil, errordata.Unauthorized("Missing bearer token")
  }
  if as.jwtSecretKey == "" {
    return nil, nil, errordata.Unauthorized("Authentication is not configured")
  }
  parserOpts := []jwt.ParserOption{
    jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
    jwt.WithExpirationRequired(),
  }
  if as.audience != "" {
    parserOpts = append(parserOpts, jwt.WithAudience(as.audience))
  }
  parsedToken, err := jwt.ParseWithClaims(tokenString, &IdentityClaims{}, func(token *jwt.Token) (interface{}, error) {
    return []byte(as.jwtSecretKey), nil
  }, parserOpts...)
  if err != nil {
    return nil, nil, errordata.Wrap(http.StatusUnauthorized, "Invalid or expired token", err)
  }
  claims, ok := parsedToken.Claims.(*IdentityClaims)
  if !ok || !parsedToken.Valid {
    return nil, nil, errordata.Unauthorized("Invalid or expired token")
  }
  userID, err := uuid.Parse(claims.Subject)
  if err != nil {
    return nil, nil, errordata.Wrap(http.StatusUnauthorized, "Invalid user ID in token", err)
  }
  return &types.Identity{
    ID:        userID,
    Email:     claims.Email,
    Role:      claims.Role,
    SessionID: claims.SessionID,
  }, claims, nil
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString, clientIP string) (context.Context, error) {
  identity, claims, err := as.VerifyToken(tokenString)
  if err != nil {
    return ctx, err
  }
  claimsJSON, err := json.Marshal(claims)
  if err != nil {
    return ctx, fmt.Errorf("failed to encode token claims: %w", err)
  }
  rd := &requestdata.RequestData{
    TokenString: tokenString,
    ClaimsJSON:  string(claimsJSON),
    UserID:      identity.ID,
    Email:       identity.Email,
    Role:        identity.Role,
    SessionID:   identity.SessionID,
    ClientIP:    clientIP,
  }
  return requestdata.WithRequestData(ctx, rd), nil
}

//----------------------------------------------------------------------------------------------------------------------
// ResendConfirmation
//----------------------------------------------------------------------------------------------------------------------

type identityErrorBody struct {
  Msg               string    `json:"msg"`
  Message           string    `json:"message"`
  ErrorDescription  string    `json:"error_description"`
  Error             string    `json:"error"`
}

func (b identityErrorBody) text() string {
  for _, s := range []string{b.Msg, b.Message, b.ErrorDescription, b.Error} {
    if s != "" {
      return s
    }
  }
  return ""
}

func (as *authService) ResendConfirmation(ctx context.Context, email string) error {
  normalized, err := utils.ValidateEmail(email)
  if err != nil {
    return errordata.BadRequest("A valid email is required")
  }
  if as.identityURL == "" {
    return errordata.New(http.StatusInternalServerError, "Identity provider is not configured")
  }
  payload, err := json.Marshal(map[string]string{"type": "signup", "email": normalized})
  if err != nil {
    return fmt.Errorf("failed to encode resend payload: %w", err)
  }
  req, err := http.NewRequestWithContext(ctx, http.MethodPost, as.identityURL+"/auth/v1/resend", bytes.NewReader(payload))
  if err != nil {
    as.log.Warn("failed to build resend request", "error", err)
    return err
  }
  req.Header.Set("Content-Type", "application/json")
  if as.anonKey != "" {
    req.Header.Set("apikey", as.anonKey)
    req.Header.Set("Authorization", "Bearer "+as.anonKey)
  }
  resp, err := as.client.Do(req)
  if err != nil {
    as.log.Warn("failed to call identity provider", "error", err)
    return errordata.Wrap(http.StatusInternalServerError, "Failed to resend confirmation email", err)
  }
  defer resp.Body.Close()

  if resp.StatusCode < 200 || resp.StatusCode > 299 {
    bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
    as.log.Warn("identity provider responded with non-2xx", "statusCode", resp.StatusCode, "body", normalization.TruncateRunes(string(bodyBytes), 500))
    var body identityErrorBody
    msg := "Failed to resend confirmation email"
    if json.Unmarshal(bodyBytes, &body) == nil && body.text() != "" {
      msg = body.text()
    }
    return errordata.BadRequest(msg)
  }
  as.log.Info("Confirmation email resent")
  return nil
}
