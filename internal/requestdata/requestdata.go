package requestdata

import (
  "context"
)

var requestDataKey = struct{}{}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
  return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
  val := ctx.Value(requestDataKey)
  if rd, ok := val.(*RequestData); ok {
    return rd
  }
  return nil
}

// RequestData carries per-request attribution. Actor is the uppercased email
// of the acting user and lands in created_by / updated_by / changed_by.
type RequestData struct {
  Actor string
}

// Actor returns the actor recorded on the context, or fallback when absent.
func Actor(ctx context.Context, fallback string) string {
  rd := GetRequestData(ctx)
  if rd == nil || rd.Actor == "" {
    return fallback
  }
  return rd.Actor
}
