package handlers

import (
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/nclhealth/cluster-cache-backend/internal/types"
)

type APIError struct {
  Message string `json:"message"`
  Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
  Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
  msg := "unknown error"
  if err != nil {
    msg = err.Error()
  }
  c.JSON(status, ErrorEnvelope{
    Error: APIError{
      Message: msg,
      Code:    code,
    },
  })
}

func RespondOK(c *gin.Context, payload any) {
  c.JSON(http.StatusOK, payload)
}

// RespondServiceError maps the core error taxonomy onto HTTP statuses.
// Ambiguous writes never reach here: the mutation guard resolves them before
// returning, so callers only ever see a clean success or failure.
func RespondServiceError(c *gin.Context, code string, err error) {
  switch {
  case types.IsValidation(err):
    RespondError(c, http.StatusUnprocessableEntity, code, err)
  case types.IsNotFound(err):
    RespondError(c, http.StatusNotFound, code, err)
  case types.IsConflict(err):
    RespondError(c, http.StatusConflict, code, err)
  default:
    RespondError(c, http.StatusInternalServerError, code, err)
  }
}
