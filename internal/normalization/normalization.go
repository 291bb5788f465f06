package normalization

import (
  "html"
  "strings"
  "unicode/utf8"

  "github.com/microcosm-cc/bluemonday"
)

// strict removes every element; script and style bodies are dropped with their tags.
var strict = bluemonday.StrictPolicy()

// maxStripPasses bounds how many layers of entity encoding StripMarkup peels off.
const maxStripPasses = 8

func ParseInputString(s string) string {
  return strings.TrimSpace(s)
}

// StripMarkup removes script blocks and HTML tags and returns plain text with entities
// decoded, so "3 < 5 && x" reaches the model intact. Entity-encoded markup such as
// "&lt;script&gt;" is decoded before sanitizing and the pass repeats until the text is
// stable, so decoding can never produce a live tag. Input still changing after
// maxStripPasses is returned in its escaped form.
func StripMarkup(s string) string {
  if s == "" {
    return ""
  }
  cur := s
  for i := 0; i < maxStripPasses; i++ {
    next := html.UnescapeString(strict.Sanitize(html.UnescapeString(cur)))
    if next == cur {
      return strings.TrimSpace(next)
    }
    cur = next
  }
  return strings.TrimSpace(strict.Sanitize(cur))
}

func RuneLength(s string) int {
  return utf8.RuneCountInString(s)
}

// TruncateRunes cuts s to at most n characters without splitting a rune.
func TruncateRunes(s string, n int) string {
  if n <= 0 {
    return ""
  }
  if utf8.RuneCountInString(s) <= n {
    return s
  }
  runes := []rune(s)
  return string(runes[:n])
}
