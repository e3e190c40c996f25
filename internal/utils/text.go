package utils

import (
  "fmt"
  "regexp"
  "strings"
  "time"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeWhitespace collapses runs of whitespace to single spaces and trims
// the ends. Field comparisons during mutation reconciliation go through this so
// that line breaks introduced by the transport never count as a difference.
func NormalizeWhitespace(text string) string {
  return whitespaceRe.ReplaceAllString(strings.TrimSpace(text), " ")
}

// NormalizeClusterID canonicalizes a cluster id: trimmed, uppercase.
func NormalizeClusterID(id string) string {
  return strings.ToUpper(strings.TrimSpace(id))
}

// NormalizeActor uppercases an actor email for attribution columns.
func NormalizeActor(actor string) string {
  return strings.ToUpper(strings.TrimSpace(actor))
}

// FormatTimeAgo renders a timestamp as "2 hours ago" style text.
func FormatTimeAgo(t *time.Time, now time.Time) string {
  if t == nil || t.IsZero() {
    return "Unknown"
  }
  diff := now.Sub(*t)
  if diff < 0 {
    diff = 0
  }
  days := int(diff.Hours() / 24)
  if days > 0 {
    return fmt.Sprintf("%d day%s ago", days, plural(days))
  }
  hours := int(diff.Hours())
  if hours > 0 {
    return fmt.Sprintf("%d hour%s ago", hours, plural(hours))
  }
  minutes := int(diff.Minutes())
  if minutes > 0 {
    return fmt.Sprintf("%d minute%s ago", minutes, plural(minutes))
  }
  return "Just now"
}

func plural(n int) string {
  if n == 1 {
    return ""
  }
  return "s"
}

// FormatNumber formats an integer with comma thousands separators.
func FormatNumber(n int64) string {
  s := fmt.Sprintf("%d", n)
  neg := false
  if strings.HasPrefix(s, "-") {
    neg = true
    s = s[1:]
  }
  var parts []string
  for len(s) > 3 {
    parts = append([]string{s[len(s)-3:]}, parts...)
    s = s[:len(s)-3]
  }
  parts = append([]string{s}, parts...)
  out := strings.Join(parts, ",")
  if neg {
    out = "-" + out
  }
  return out
}
