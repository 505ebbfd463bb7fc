package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/viant/mcp-protocol/schema"

	"github.com/graphgate/graphgate/errcode"
	"github.com/graphgate/graphgate/graph"
	"github.com/graphgate/graphgate/mcp"
)

type prepareInput struct {
	EventID  string `json:"event_id,omitempty"`
	Subject  string `json:"subject,omitempty"`
	MaxChars int    `json:"max_chars,omitempty"`
}

func (p *prepareInput) Validate() error {
	if strings.TrimSpace(p.EventID) == "" && strings.TrimSpace(p.Subject) == "" {
		return errcode.New(errcode.Validation, "provide event_id or subject")
	}
	return nil
}

const prepareDesc = "Build a meeting briefing: looks up the event, then gathers related documents " +
	"and emails by the meeting subject and attendees. Give event_id for a specific meeting, " +
	"or just a subject to search by topic."

func (s *Service) registerPrepare(registry *mcp.Registry) {
	mcp.RegisterTool[prepareInput](registry, "prepare_meeting", prepareDesc, func(ctx context.Context, in *prepareInput) *schema.CallToolResult {
		if err := s.requireLogin(ctx); err != nil {
			return mcp.FailErr(err)
		}
		subject := strings.TrimSpace(in.Subject)
		var meeting map[string]interface{}
		var attendeeNames []string
		if in.EventID != "" {
			event, err := s.calendar.Get(ctx, in.EventID)
			if err != nil {
				return mcp.FailErr(err)
			}
			meeting = graph.PickEvent(event, true)
			if picked, _ := meeting["subject"].(string); picked != "" {
				subject = picked
			}
			if organizer, _ := meeting["organizer"].(map[string]interface{}); organizer != nil {
				if name, _ := organizer["name"].(string); name != "" {
					attendeeNames = append(attendeeNames, name)
				}
			}
			if attendees, _ := meeting["attendees"].([]map[string]interface{}); attendees != nil {
				for _, attendee := range attendees {
					if name, _ := attendee["name"].(string); name != "" {
						attendeeNames = append(attendeeNames, name)
					}
				}
			}
		}
		if subject == "" {
			return mcp.Fail(errcode.NotFound, "meeting has no subject to search by", nil)
		}

		searchQuery := subject
		names := attendeeNames
		if len(names) > 5 {
			names = names[:5]
		}
		if len(names) > 0 {
			searchQuery += " " + strings.Join(names, " ")
		}

		var (
			provider  string
			briefing  string
			citations []graph.Citation
		)
		results, err := s.retrieval.Retrieve(ctx, graph.RetrievalOptions{QueryString: searchQuery, MaxResults: 10})
		if err == nil && len(results) > 0 {
			provider = "copilot-retrieval"
			formatted, cites := graph.FormatResults(results)
			citations = cites
			briefing = fmt.Sprintf("Meeting Briefing: %q\n\nRelated Documents:\n%s", subject, formatted)
		} else {
			if err != nil {
				s.logger.Warn("retrieval unavailable for briefing, using keyword search", "error", err)
			}
			provider = "graph-search"
			hits, searchErr := s.client.SearchQuery(ctx, []string{"driveItem", "message"}, subject, 10, nil)
			if searchErr != nil {
				return mcp.FailErr(searchErr)
			}
			if len(hits) == 0 {
				briefing = "No related content found for meeting: " + subject
			} else {
				var lines []string
				for i, hit := range hits {
					title := ""
					if hit.Resource != nil {
						title, _ = hit.Resource["name"].(string)
						if title == "" {
							title, _ = hit.Resource["subject"].(string)
						}
					}
					if title == "" {
						title = "Untitled"
					}
					lines = append(lines, fmt.Sprintf("[%d] %s: %s", i+1, title, hit.Summary))
				}
				briefing = fmt.Sprintf("Meeting Briefing: %q\n\nRelated Content:\n%s", subject, strings.Join(lines, "\n"))
			}
		}

		briefing, truncated := graph.CompactText(briefing, s.maxChars(in.MaxChars), s.cfg.Output.HardMaxChars)
		structured := map[string]interface{}{
			"provider":        provider,
			"meeting_subject": subject,
			"briefing":        briefing,
			"truncated":       truncated,
			"citations":       citations,
		}
		if meeting != nil {
			structured["meeting"] = meeting
			structured["attendees"] = attendeeNames
		}
		return mcp.Ok(briefing, structured)
	})
}
