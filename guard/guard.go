// Package guard evaluates write-action policy before a mutating tool runs:
// recipient domain allowlisting, the generic confirmation gate, and
// redaction of sensitive values from audit payloads.
package guard

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/graphgate/graphgate/config"
)

// Decision is the outcome of a per-recipient mail policy check.
type Decision struct {
	Allowed bool
	Reason  string
	// RequiresApproval reports that policy mandates draft-only mode even
	// for allowed recipients.
	RequiresApproval bool
}

// Confirmation is a non-error gate: the caller must resubmit the same
// invocation with confirm=true to perform the previewed effect.
type Confirmation struct {
	Action  string
	Preview map[string]interface{}
}

type Engine struct {
	allowDomains         []string
	requireDraftApproval bool
	requireConfirm       bool
	redact               bool
}

func New(cfg *config.Config) *Engine {
	domains := make([]string, 0, len(cfg.Guardrails.Email.AllowDomains))
	for _, d := range cfg.Guardrails.Email.AllowDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			domains = append(domains, d)
		}
	}
	return &Engine{
		allowDomains:         domains,
		requireDraftApproval: *cfg.Guardrails.Email.RequireDraftApproval,
		requireConfirm:       *cfg.Safety.RequireConfirmForWrites,
		redact:               *cfg.Guardrails.Email.StripSensitiveFromLogs,
	}
}

// CheckEmailAllowed matches the recipient's domain against the allowlist.
// Wildcard entries of the form *.suffix match the bare suffix and any
// subdomain of it.
func (e *Engine) CheckEmailAllowed(recipient string) Decision {
	at := strings.LastIndex(recipient, "@")
	if at < 0 || at == len(recipient)-1 {
		return Decision{Allowed: false, Reason: "Invalid email address"}
	}
	domain := strings.ToLower(recipient[at+1:])
	for _, pattern := range e.allowDomains {
		if strings.HasPrefix(pattern, "*.") {
			suffix := pattern[1:] // ".gov.ae"
			if domain == pattern[2:] || strings.HasSuffix(domain, suffix) {
				return Decision{Allowed: true, RequiresApproval: e.requireDraftApproval}
			}
			continue
		}
		if domain == pattern {
			return Decision{Allowed: true, RequiresApproval: e.requireDraftApproval}
		}
	}
	return Decision{Allowed: false, Reason: fmt.Sprintf("Domain @%s is not in allowlist", domain)}
}

// Confirm returns nil when the action may proceed: either the global
// confirmation policy is off, or the caller explicitly confirmed.
func (e *Engine) Confirm(action string, confirmed bool, preview map[string]interface{}) *Confirmation {
	if !e.requireConfirm || confirmed {
		return nil
	}
	return &Confirmation{Action: action, Preview: preview}
}

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`)
	cardPattern  = regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`)
)

// Sanitize replaces email-, phone-, and card-shaped substrings with fixed
// redaction tokens before content enters the audit trail.
func (e *Engine) Sanitize(content string) string {
	if !e.redact {
		return content
	}
	content = emailPattern.ReplaceAllString(content, "[EMAIL_REDACTED]")
	content = phonePattern.ReplaceAllString(content, "[PHONE_REDACTED]")
	content = cardPattern.ReplaceAllString(content, "[CARD_REDACTED]")
	return content
}
