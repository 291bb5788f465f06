package errordata

import (
  "errors"
  "fmt"
  "net/http"
)

// Error carries the HTTP status a service wants its failure surfaced with.
type Error struct {
  Status      int
  Message     string
  Details     string
  Fields      map[string]interface{}
  Err         error
}

func (e *Error) Error() string {
  if e.Err != nil {
    return fmt.Sprintf("%s: %v", e.Message, e.Err)
  }
  return e.Message
}

func (e *Error) Unwrap() error {
  return e.Err
}

func New(status int, msg string) *Error {
  return &Error{Status: status, Message: msg}
}

func Wrap(status int, msg string, err error) *Error {
  e := &Error{Status: status, Message: msg, Err: err}
  if err != nil {
    e.Details = err.Error()
  }
  return e
}

// Conceal keeps err in the chain for logs but leaves it out of the response body.
func Conceal(status int, msg string, err error) *Error {
  return &Error{Status: status, Message: msg, Err: err}
}

// WithField attaches an extra top-level key to the JSON error body.
func (e *Error) WithField(key string, val interface{}) *Error {
  if e.Fields == nil {
    e.Fields = make(map[string]interface{})
  }
  e.Fields[key] = val
  return e
}

func BadRequest(msg string) *Error    { return New(http.StatusBadRequest, msg) }
func Unauthorized(msg string) *Error  { return New(http.StatusUnauthorized, msg) }
func Forbidden(msg string) *Error     { return New(http.StatusForbidden, msg) }
func NotFound(msg string) *Error      { return New(http.StatusNotFound, msg) }

// As unwraps err into an *Error if one is present in the chain.
func As(err error) (*Error, bool) {
  var ed *Error
  if errors.As(err, &ed) {
    return ed, true
  }
  return nil, false
}

// StatusOf reports the HTTP status for err; untyped errors are 500.
func StatusOf(err error) int {
  if ed, ok := As(err); ok && ed.Status != 0 {
    return ed.Status
  }
  return http.StatusInternalServerError
}

// Body renders the JSON error body for err.
func Body(err error) map[string]interface{} {
  ed, ok := As(err)
  if !ok {
    return map[string]interface{}{"error": err.Error()}
  }
  body := map[string]interface{}{"error": ed.Message}
  if ed.Details != "" {
    body["details"] = ed.Details
  }
  for k, v := range ed.Fields {
    body[k] = v
  }
  return body
}
