package tools

import (
	"context"
	"strings"

	"github.com/viant/mcp-protocol/schema"

	"github.com/graphgate/graphgate/audit"
	"github.com/graphgate/graphgate/errcode"
	"github.com/graphgate/graphgate/graph"
	"github.com/graphgate/graphgate/mcp"
)

type composeInput struct {
	Mode           string                   `json:"mode" jsonschema:"enum=draft,enum=send,enum=reply,enum=reply_all"`
	To             Recipients               `json:"to,omitempty"`
	Cc             Recipients               `json:"cc,omitempty"`
	Subject        string                   `json:"subject,omitempty"`
	BodyHTML       string                   `json:"body_html"`
	MessageID      string                   `json:"message_id,omitempty"`
	Confirm        bool                     `json:"confirm,omitempty"`
	Attachments    []graph.InlineAttachment `json:"attachments,omitempty"`
	AttachmentRefs []graph.AttachmentRef    `json:"attachment_refs,omitempty"`
}

func (c *composeInput) Validate() error {
	switch c.Mode {
	case "draft", "send", "reply", "reply_all":
	default:
		return errcode.New(errcode.Validation, "mode must be draft, send, reply, or reply_all")
	}
	if strings.TrimSpace(c.BodyHTML) == "" {
		return errcode.New(errcode.Validation, "body_html is required")
	}
	if c.Mode == "reply" || c.Mode == "reply_all" {
		if strings.TrimSpace(c.MessageID) == "" {
			return errcode.New(errcode.Validation, "message_id is required for reply modes")
		}
		return nil
	}
	if len(c.To) == 0 {
		return errcode.New(errcode.Validation, "to is required for draft and send modes")
	}
	if strings.TrimSpace(c.Subject) == "" {
		return errcode.New(errcode.Validation, "subject is required for draft and send modes")
	}
	return nil
}

const composeDesc = "Compose email: create a draft, send immediately, or reply to a message. " +
	"Recipients are checked against the domain allowlist. Sending requires confirm=true."

func (s *Service) registerCompose(registry *mcp.Registry) {
	mcp.RegisterTool[composeInput](registry, "compose_email", composeDesc, func(ctx context.Context, in *composeInput) *schema.CallToolResult {
		if err := s.requireLogin(ctx); err != nil {
			return mcp.FailErr(err)
		}
		bodyHTML := sanitizeEmailHTML(in.BodyHTML)
		switch in.Mode {
		case "reply", "reply_all":
			return s.composeReply(ctx, in, bodyHTML)
		default:
			return s.composeMessage(ctx, in, bodyHTML)
		}
	})
}

func (s *Service) composeReply(ctx context.Context, in *composeInput, bodyHTML string) *schema.CallToolResult {
	replyAll := in.Mode == "reply_all"
	if in.Confirm {
		if err := s.mail.Reply(ctx, in.MessageID, bodyHTML, replyAll); err != nil {
			return mcp.FailErr(err)
		}
		s.auditLog(audit.Entry{
			Action: "compose_email_" + in.Mode + "_send",
			User:   s.currentUser(ctx),
			Status: audit.StatusSuccess,
			Details: map[string]interface{}{
				"source_message_id": in.MessageID,
			},
		})
		summary := "Reply sent."
		if replyAll {
			summary = "Reply-all sent."
		}
		return mcp.Ok(summary, map[string]interface{}{
			"success":    true,
			"message_id": in.MessageID,
			"mode":       "send",
		})
	}
	draftID, err := s.mail.CreateReplyDraft(ctx, in.MessageID, bodyHTML, replyAll)
	if err != nil {
		return mcp.FailErr(err)
	}
	s.auditLog(audit.Entry{
		Action: "compose_email_" + in.Mode + "_draft",
		User:   s.currentUser(ctx),
		Status: audit.StatusSuccess,
		Details: map[string]interface{}{
			"draft_id":          draftID,
			"source_message_id": in.MessageID,
		},
	})
	kind := "Reply"
	if replyAll {
		kind = "Reply-all"
	}
	return mcp.Ok(kind+" draft created. Set confirm=true to send immediately.", map[string]interface{}{
		"id":                draftID,
		"source_message_id": in.MessageID,
		"is_draft":          true,
		"mode":              "draft",
	})
}

func (s *Service) composeMessage(ctx context.Context, in *composeInput, bodyHTML string) *schema.CallToolResult {
	to := []string(in.To)
	cc := []string(in.Cc)
	needsApproval := false
	for _, recipient := range append(append([]string{}, to...), cc...) {
		decision := s.guard.CheckEmailAllowed(recipient)
		if !decision.Allowed {
			s.auditLog(audit.Entry{
				Action: "compose_email_" + in.Mode,
				User:   s.currentUser(ctx),
				Status: audit.StatusBlocked,
				Error:  decision.Reason,
				Details: map[string]interface{}{
					"recipient": s.guard.Sanitize(recipient),
				},
			})
			return mcp.Fail(errcode.Forbidden, "Recipient not allowed: "+decision.Reason, nil)
		}
		if decision.RequiresApproval {
			needsApproval = true
		}
	}
	attachments, attachmentBytes, err := s.mail.BuildAttachments(ctx, in.Attachments, in.AttachmentRefs)
	if err != nil {
		return mcp.FailErr(err)
	}
	message := graph.BuildMessage(in.Subject, bodyHTML, to, cc, attachments)

	if in.Mode == "send" {
		preview := map[string]interface{}{
			"to":               to,
			"subject":          in.Subject,
			"attachment_count": len(attachments),
			"attachment_bytes": attachmentBytes,
		}
		if gate := s.confirmGate("compose_email (send)", in.Confirm, preview); gate != nil {
			return gate
		}
		// Allowlisted domains can still be flagged draft-approval-only;
		// that flag gates sends even when global confirmation is off.
		if needsApproval && !in.Confirm {
			return mcp.Ok("compose_email (send) requires explicit confirmation. Re-run with confirm=true.", map[string]interface{}{
				"requires_confirmation": true,
				"action":                "compose_email (send)",
				"preview":               preview,
			})
		}
		if err := s.mail.Send(ctx, message); err != nil {
			return mcp.FailErr(err)
		}
		s.auditLog(audit.Entry{
			Action: "compose_email_send",
			User:   s.currentUser(ctx),
			Status: audit.StatusSuccess,
			Details: map[string]interface{}{
				"subject":          s.guard.Sanitize(in.Subject),
				"recipient_count":  len(to) + len(cc),
				"attachment_count": len(attachments),
			},
		})
		return mcp.Ok("Email sent.", map[string]interface{}{
			"success":          true,
			"mode":             "send",
			"subject":          in.Subject,
			"recipient_count":  len(to) + len(cc),
			"attachment_count": len(attachments),
		})
	}

	draftID, err := s.mail.CreateDraft(ctx, message)
	if err != nil {
		return mcp.FailErr(err)
	}
	s.auditLog(audit.Entry{
		Action: "compose_email_draft",
		User:   s.currentUser(ctx),
		Status: audit.StatusSuccess,
		Details: map[string]interface{}{
			"draft_id":         draftID,
			"subject":          s.guard.Sanitize(in.Subject),
			"recipient_count":  len(to) + len(cc),
			"attachment_count": len(attachments),
		},
	})
	return mcp.Ok("Draft created.", map[string]interface{}{
		"id":               draftID,
		"is_draft":         true,
		"mode":             "draft",
		"subject":          in.Subject,
		"recipient_count":  len(to) + len(cc),
		"attachment_count": len(attachments),
	})
}
