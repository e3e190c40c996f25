package utils

import (
  "testing"
  "time"
)

func TestNormalizeWhitespace(t *testing.T) {
  cases := []struct {
    in   string
    want string
  }{
    {"", ""},
    {"   ", ""},
    {"a b", "a b"},
    {"  a   b  ", "a b"},
    {"a\n\tb\r\nc", "a b c"},
    {"<< 195967001\n  |Asthma|", "<< 195967001 |Asthma|"},
  }
  for _, tc := range cases {
    if got := NormalizeWhitespace(tc.in); got != tc.want {
      t.Fatalf("NormalizeWhitespace(%q) = %q, want %q", tc.in, got, tc.want)
    }
  }
}

func TestNormalizeClusterID(t *testing.T) {
  cases := []struct {
    in   string
    want string
  }{
    {"ast_cod", "AST_COD"},
    {"  Ast_Cod  ", "AST_COD"},
    {"AST_COD", "AST_COD"},
    {"", ""},
  }
  for _, tc := range cases {
    if got := NormalizeClusterID(tc.in); got != tc.want {
      t.Fatalf("NormalizeClusterID(%q) = %q, want %q", tc.in, got, tc.want)
    }
  }
}

func TestFormatTimeAgo(t *testing.T) {
  now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

  if got := FormatTimeAgo(nil, now); got != "Unknown" {
    t.Fatalf("nil time: got %q", got)
  }

  cases := []struct {
    age  time.Duration
    want string
  }{
    {30 * time.Second, "Just now"},
    {time.Minute, "1 minute ago"},
    {5 * time.Minute, "5 minutes ago"},
    {time.Hour, "1 hour ago"},
    {3 * time.Hour, "3 hours ago"},
    {24 * time.Hour, "1 day ago"},
    {29 * 24 * time.Hour, "29 days ago"},
  }
  for _, tc := range cases {
    at := now.Add(-tc.age)
    if got := FormatTimeAgo(&at, now); got != tc.want {
      t.Fatalf("age %v: got %q, want %q", tc.age, got, tc.want)
    }
  }
}

func TestFormatNumber(t *testing.T) {
  cases := []struct {
    in   int64
    want string
  }{
    {0, "0"},
    {999, "999"},
    {1000, "1,000"},
    {50000, "50,000"},
    {1234567, "1,234,567"},
    {-1234, "-1,234"},
  }
  for _, tc := range cases {
    if got := FormatNumber(tc.in); got != tc.want {
      t.Fatalf("FormatNumber(%d) = %q, want %q", tc.in, got, tc.want)
    }
  }
}
