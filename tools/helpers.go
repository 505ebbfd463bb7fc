package tools

import (
	"encoding/json"
	"regexp"
	"strings"

	protoschema "github.com/viant/mcp-protocol/schema"

	"github.com/graphgate/graphgate/mcp"
)

// Recipients accepts either a JSON array of addresses or one
// comma-separated string.
type Recipients []string

func (r *Recipients) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*r = trimNonEmpty(list)
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*r = trimNonEmpty(strings.Split(single, ","))
	return nil
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}

// normalizeTop clamps a requested result count to [1, maxTop], defaulting
// when unset.
func (s *Service) normalizeTop(top int) int {
	if top <= 0 {
		return s.cfg.Search.DefaultTop
	}
	if top > s.cfg.Search.MaxTop {
		return s.cfg.Search.MaxTop
	}
	return top
}

func (s *Service) maxChars(requested int) int {
	if requested <= 0 {
		return s.cfg.Output.DefaultMaxChars
	}
	return requested
}

func (s *Service) includeFull(explicit *bool) bool {
	if explicit != nil {
		return *explicit
	}
	return s.cfg.Output.DefaultIncludeFull
}

// confirmGate returns the confirmation prompt when a write needs an
// explicit confirm=true, or nil to proceed.
func (s *Service) confirmGate(action string, confirmed bool, preview map[string]interface{}) *protoschema.CallToolResult {
	confirmation := s.guard.Confirm(action, confirmed, preview)
	if confirmation == nil {
		return nil
	}
	return mcp.Ok(action+" requires explicit confirmation. Re-run with confirm=true.", map[string]interface{}{
		"requires_confirmation": true,
		"action":                confirmation.Action,
		"preview":               confirmation.Preview,
	})
}

func escapeHTML(input string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(input)
}

var (
	scriptBlockPattern = regexp.MustCompile(`(?is)<script.*?</script>`)
	iframeBlockPattern = regexp.MustCompile(`(?is)<iframe.*?</iframe>`)
	objectBlockPattern = regexp.MustCompile(`(?is)<object.*?</object>`)
	formBlockPattern   = regexp.MustCompile(`(?is)<form.*?</form>`)
	embedTagPattern    = regexp.MustCompile(`(?is)<embed.*?>`)
	linkTagPattern     = regexp.MustCompile(`(?is)<link.*?>`)
	metaTagPattern     = regexp.MustCompile(`(?is)<meta.*?>`)
	eventAttrPattern   = regexp.MustCompile(`(?i)\son\w+\s*=\s*("[^"]*"|'[^']*'|[^\s>]+)`)
	jsURLPattern       = regexp.MustCompile(`(?i)javascript\s*:`)
)

// sanitizeEmailHTML strips active content from caller-supplied HTML while
// keeping formatting tags.
func sanitizeEmailHTML(html string) string {
	out := scriptBlockPattern.ReplaceAllString(html, "")
	out = iframeBlockPattern.ReplaceAllString(out, "")
	out = objectBlockPattern.ReplaceAllString(out, "")
	out = embedTagPattern.ReplaceAllString(out, "")
	out = linkTagPattern.ReplaceAllString(out, "")
	out = metaTagPattern.ReplaceAllString(out, "")
	out = formBlockPattern.ReplaceAllString(out, "")
	out = eventAttrPattern.ReplaceAllString(out, "")
	out = jsURLPattern.ReplaceAllString(out, "blocked:")
	return out
}

func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
