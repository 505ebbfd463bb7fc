package tools

import (
	"context"
	"strings"

	"github.com/viant/mcp-protocol/schema"

	"github.com/graphgate/graphgate/errcode"
	"github.com/graphgate/graphgate/graph"
	"github.com/graphgate/graphgate/mcp"
)

type getEmailInput struct {
	MessageID   string `json:"message_id"`
	IncludeFull *bool  `json:"include_full,omitempty"`
}

func (g *getEmailInput) Validate() error {
	if strings.TrimSpace(g.MessageID) == "" {
		return errcode.New(errcode.Validation, "message_id is required")
	}
	return nil
}

type getEventInput struct {
	EventID     string `json:"event_id"`
	IncludeFull *bool  `json:"include_full,omitempty"`
}

func (g *getEventInput) Validate() error {
	if strings.TrimSpace(g.EventID) == "" {
		return errcode.New(errcode.Validation, "event_id is required")
	}
	return nil
}

func (s *Service) registerGet(registry *mcp.Registry) {
	mcp.RegisterTool[getEmailInput](registry, "get_email",
		"Fetch one email by id with its cleaned body text.",
		func(ctx context.Context, in *getEmailInput) *schema.CallToolResult {
			if err := s.requireLogin(ctx); err != nil {
				return mcp.FailErr(err)
			}
			message, err := s.mail.Get(ctx, in.MessageID)
			if err != nil {
				return mcp.FailErr(err)
			}
			return mcp.Ok("Message retrieved.", s.mail.PickMessage(message, s.includeFull(in.IncludeFull)))
		})

	mcp.RegisterTool[getEventInput](registry, "get_event",
		"Fetch one calendar event by id with attendees and meeting details.",
		func(ctx context.Context, in *getEventInput) *schema.CallToolResult {
			if err := s.requireLogin(ctx); err != nil {
				return mcp.FailErr(err)
			}
			event, err := s.calendar.Get(ctx, in.EventID)
			if err != nil {
				return mcp.FailErr(err)
			}
			return mcp.Ok("Event retrieved.", graph.PickEvent(event, s.includeFull(in.IncludeFull)))
		})
}
