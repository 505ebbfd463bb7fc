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

type respondInput struct {
	EventID  string `json:"event_id"`
	Action   string `json:"action" jsonschema:"enum=accept,enum=decline,enum=tentativelyAccept,enum=cancel,enum=reply_all_draft"`
	Comment  string `json:"comment,omitempty"`
	BodyHTML string `json:"body_html,omitempty"`
	Confirm  bool   `json:"confirm,omitempty"`
}

func (r *respondInput) Validate() error {
	if strings.TrimSpace(r.EventID) == "" {
		return errcode.New(errcode.Validation, "event_id is required")
	}
	switch r.Action {
	case "accept", "decline", "tentativelyAccept", "cancel", "reply_all_draft":
		return nil
	}
	return errcode.New(errcode.Validation, "action must be accept, decline, tentativelyAccept, cancel, or reply_all_draft")
}

const respondDesc = "Respond to a meeting: accept, decline, tentativelyAccept, cancel (organizer only), " +
	"or reply_all_draft to draft an email reply to all attendees of the invite."

func (s *Service) registerRespond(registry *mcp.Registry) {
	mcp.RegisterTool[respondInput](registry, "respond_to_meeting", respondDesc, func(ctx context.Context, in *respondInput) *schema.CallToolResult {
		if err := s.requireLogin(ctx); err != nil {
			return mcp.FailErr(err)
		}
		switch in.Action {
		case "reply_all_draft":
			return s.respondReplyAllDraft(ctx, in)
		case "cancel":
			if gate := s.confirmGate("respond_to_meeting (cancel)", in.Confirm, map[string]interface{}{
				"event_id": in.EventID,
			}); gate != nil {
				return gate
			}
			if err := s.calendar.Cancel(ctx, in.EventID, in.Comment); err != nil {
				return mcp.FailErr(err)
			}
			s.auditLog(audit.Entry{
				Action: "respond_to_meeting_cancel",
				User:   s.currentUser(ctx),
				Status: audit.StatusSuccess,
				Details: map[string]interface{}{
					"event_id":    in.EventID,
					"has_comment": in.Comment != "",
				},
			})
			return mcp.Ok("Meeting cancelled.", map[string]interface{}{
				"success":  true,
				"event_id": in.EventID,
				"action":   "cancel",
			})
		default:
			if gate := s.confirmGate("respond_to_meeting", in.Confirm, map[string]interface{}{
				"event_id": in.EventID,
				"action":   in.Action,
			}); gate != nil {
				return gate
			}
			if err := s.calendar.Respond(ctx, in.EventID, in.Action, in.Comment, true); err != nil {
				return mcp.FailErr(err)
			}
			s.auditLog(audit.Entry{
				Action: "respond_to_meeting",
				User:   s.currentUser(ctx),
				Status: audit.StatusSuccess,
				Details: map[string]interface{}{
					"event_id": in.EventID,
					"action":   in.Action,
				},
			})
			return mcp.Ok("Meeting response sent: "+in.Action+".", map[string]interface{}{
				"success":  true,
				"event_id": in.EventID,
				"action":   in.Action,
			})
		}
	})
}

// respondReplyAllDraft locates the invite message for the event by searching
// mail for its subject and organizer, then drafts a reply-all on it.
func (s *Service) respondReplyAllDraft(ctx context.Context, in *respondInput) *schema.CallToolResult {
	event, err := s.calendar.Get(ctx, in.EventID)
	if err != nil {
		return mcp.FailErr(err)
	}
	picked := graph.PickEvent(event, false)
	subject, _ := picked["subject"].(string)
	organizer, _ := picked["organizer"].(map[string]interface{})
	organizerAddress := ""
	if organizer != nil {
		organizerAddress, _ = organizer["address"].(string)
	}
	query := strings.TrimSpace(subject + " " + organizerAddress)
	if query == "" {
		return mcp.Fail(errcode.NotFound, "could not derive query", nil)
	}
	messages, err := s.mail.Search(ctx, query, 30)
	if err != nil {
		return mcp.FailErr(err)
	}
	if len(messages) == 0 {
		return mcp.Fail(errcode.NotFound, "could not find meeting invite message for reply-all", nil)
	}
	inviteID, _ := messages[0]["id"].(string)
	draftID, err := s.mail.CreateReplyDraft(ctx, inviteID, sanitizeEmailHTML(in.BodyHTML), true)
	if err != nil {
		return mcp.FailErr(err)
	}
	s.auditLog(audit.Entry{
		Action: "respond_to_meeting_reply_all_draft",
		User:   s.currentUser(ctx),
		Status: audit.StatusSuccess,
		Details: map[string]interface{}{
			"event_id": in.EventID,
			"draft_id": draftID,
		},
	})
	return mcp.Ok("Reply-all draft created for meeting attendees.", map[string]interface{}{
		"id":                draftID,
		"source_message_id": inviteID,
		"is_draft":          true,
	})
}
