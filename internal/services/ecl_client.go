package services

import (
  "bytes"
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "io"
  "net"
  "net/http"
  "strings"
  "time"

  "github.com/nclhealth/cluster-cache-backend/internal/logger"
  "github.com/nclhealth/cluster-cache-backend/internal/types"
  "github.com/nclhealth/cluster-cache-backend/internal/utils"
)

const (
  // ECLFullLimit is the result cap of the primary evaluation endpoint.
  ECLFullLimit = 50000
  // ECLFallbackLimit is the cap of the degraded endpoint used when the
  // primary path is unavailable.
  ECLFallbackLimit = 10000
)

// ECLService resolves an ECL expression into a concrete code set against the
// terminology server. An empty result is valid; evaluator rejections come
// back as ValidationError.
type ECLService interface {
  Evaluate(ctx context.Context, expression string) ([]types.CodeRef, error)
}

type eclClient struct {
  log        *logger.Logger
  baseURL    string
  httpClient *http.Client
}

func NewECLClient(log *logger.Logger) (ECLService, error) {
  baseURL := utils.GetEnv("ECL_SERVER_URL", "", log)
  if baseURL == "" {
    return nil, fmt.Errorf("missing ECL_SERVER_URL")
  }

  timeoutSec := utils.GetEnvAsInt("ECL_TIMEOUT_SECONDS", 60, log)
  if timeoutSec <= 0 {
    timeoutSec = 60
  }

  return &eclClient{
    log:        log.With("service", "ECLClient"),
    baseURL:    strings.TrimRight(baseURL, "/"),
    httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
  }, nil
}

type eclHTTPError struct {
  StatusCode int
  Body       string
}

func (e *eclHTTPError) Error() string {
  return fmt.Sprintf("ecl server http %d: %s", e.StatusCode, e.Body)
}

type eclEvaluateRequest struct {
  Expression string `json:"expression"`
  Limit      int    `json:"limit"`
}

type eclEvaluateResponse struct {
  Codes []types.CodeRef `json:"codes"`
  Error *struct {
    Message string `json:"message"`
  } `json:"error,omitempty"`
}

// Evaluate tries the full-cap endpoint first and falls back to the degraded
// endpoint with the lower ceiling when the primary path is unavailable.
// Expression rejections do not trigger the fallback; a bad expression is bad
// on both paths.
func (ec *eclClient) Evaluate(ctx context.Context, expression string) ([]types.CodeRef, error) {
  codes, err := ec.post(ctx, "/ecl/evaluate", expression, ECLFullLimit)
  if err == nil {
    return codes, nil
  }
  if types.IsValidation(err) {
    return nil, err
  }

  ec.log.Warn("Primary ECL endpoint unavailable, trying degraded endpoint", "error", err)
  codes, fallbackErr := ec.post(ctx, "/ecl/test-evaluate", expression, ECLFallbackLimit)
  if fallbackErr != nil {
    return nil, fmt.Errorf("ecl evaluation failed on both endpoints: %w", err)
  }
  return codes, nil
}

func (ec *eclClient) post(ctx context.Context, path, expression string, limit int) ([]types.CodeRef, error) {
  payload, err := json.Marshal(eclEvaluateRequest{Expression: expression, Limit: limit})
  if err != nil {
    return nil, err
  }

  req, err := http.NewRequestWithContext(ctx, http.MethodPost, ec.baseURL+path, bytes.NewReader(payload))
  if err != nil {
    return nil, err
  }
  req.Header.Set("Content-Type", "application/json")

  resp, err := ec.httpClient.Do(req)
  if err != nil {
    var netErr net.Error
    if errors.As(err, &netErr) && netErr.Timeout() {
      return nil, fmt.Errorf("ecl server timeout: %w", err)
    }
    return nil, err
  }
  defer resp.Body.Close()

  body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
  if err != nil {
    return nil, err
  }

  if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusNotFound {
    var parsed eclEvaluateResponse
    msg := strings.TrimSpace(string(body))
    if jsonErr := json.Unmarshal(body, &parsed); jsonErr == nil && parsed.Error != nil {
      msg = parsed.Error.Message
    }
    return nil, &types.ValidationError{Message: fmt.Sprintf("ECL Error: %s", msg)}
  }
  if resp.StatusCode != http.StatusOK {
    return nil, &eclHTTPError{StatusCode: resp.StatusCode, Body: truncateBody(body)}
  }

  var parsed eclEvaluateResponse
  if err := json.Unmarshal(body, &parsed); err != nil {
    return nil, fmt.Errorf("decode ecl response: %w", err)
  }
  if parsed.Error != nil {
    return nil, &types.ValidationError{Message: fmt.Sprintf("ECL Error: %s", parsed.Error.Message)}
  }
  if len(parsed.Codes) > limit {
    return nil, &types.ValidationError{Message: fmt.Sprintf("ECL result exceeds the %d code limit", limit)}
  }
  return parsed.Codes, nil
}

func truncateBody(body []byte) string {
  s := string(body)
  if len(s) > 512 {
    return s[:512]
  }
  return s
}
