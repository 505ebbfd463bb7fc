package tools

import (
	"context"
	"strings"
	"time"

	"github.com/viant/mcp-protocol/schema"

	"github.com/graphgate/graphgate/audit"
	"github.com/graphgate/graphgate/errcode"
	"github.com/graphgate/graphgate/graph"
	"github.com/graphgate/graphgate/mcp"
)

const (
	slotStep           = 30 * time.Minute
	defaultDurationMin = 60
	maxDurationMin     = 480
)

type scheduleInput struct {
	Subject         string     `json:"subject"`
	Start           string     `json:"start,omitempty"`
	End             string     `json:"end,omitempty"`
	PreferredStart  string     `json:"preferred_start,omitempty"`
	PreferredEnd    string     `json:"preferred_end,omitempty"`
	DurationMinutes int        `json:"duration_minutes,omitempty"`
	Timezone        string     `json:"timezone,omitempty"`
	Attendees       Recipients `json:"attendees,omitempty"`
	Location        string     `json:"location,omitempty"`
	Agenda          string     `json:"agenda,omitempty"`
	BodyHTML        string     `json:"body_html,omitempty"`
	TeamsMeeting    bool       `json:"teams_meeting,omitempty"`
	Confirm         bool       `json:"confirm,omitempty"`
}

func (s *scheduleInput) Validate() error {
	if strings.TrimSpace(s.Subject) == "" {
		return errcode.New(errcode.Validation, "subject is required")
	}
	explicit := s.Start != "" && s.End != ""
	window := s.PreferredStart != "" && s.PreferredEnd != ""
	if !explicit && !window {
		return errcode.New(errcode.Validation, "provide start+end or preferred_start+preferred_end")
	}
	if s.DurationMinutes < 0 || s.DurationMinutes > maxDurationMin {
		return errcode.New(errcode.Validation, "duration_minutes must be between 1 and %d", maxDurationMin)
	}
	return nil
}

const scheduleDesc = "Schedule a meeting. Give explicit start and end, or a preferred window " +
	"(preferred_start/preferred_end + duration_minutes) to auto-pick the first free slot. " +
	"Set teams_meeting=true for an online meeting. Requires confirm=true to create."

func (s *Service) registerSchedule(registry *mcp.Registry) {
	mcp.RegisterTool[scheduleInput](registry, "schedule_meeting", scheduleDesc, func(ctx context.Context, in *scheduleInput) *schema.CallToolResult {
		if err := s.requireLogin(ctx); err != nil {
			return mcp.FailErr(err)
		}
		duration := time.Duration(in.DurationMinutes) * time.Minute
		if duration == 0 {
			duration = defaultDurationMin * time.Minute
		}
		start, end := in.Start, in.End
		if start == "" || end == "" {
			slotStart, slotEnd, found, err := s.findFreeSlot(ctx, in.PreferredStart, in.PreferredEnd, in.Timezone, duration)
			if err != nil {
				return mcp.FailErr(err)
			}
			if !found {
				return mcp.Ok("No free slot found in the preferred window.", map[string]interface{}{
					"success":          false,
					"preferred_start":  in.PreferredStart,
					"preferred_end":    in.PreferredEnd,
					"duration_minutes": int(duration.Minutes()),
					"suggestion":       "Try a wider time window or shorter duration.",
				})
			}
			start, end = slotStart, slotEnd
		}

		preview := map[string]interface{}{
			"subject":          in.Subject,
			"start":            start,
			"end":              end,
			"attendees":        []string(in.Attendees),
			"teams_meeting":    in.TeamsMeeting,
			"agenda":           in.Agenda,
			"duration_minutes": int(duration.Minutes()),
		}
		if gate := s.confirmGate("schedule_meeting", in.Confirm, preview); gate != nil {
			return gate
		}

		bodyHTML := sanitizeEmailHTML(in.BodyHTML)
		if bodyHTML == "" && in.Agenda != "" {
			bodyHTML = "<p>" + strings.ReplaceAll(escapeHTML(in.Agenda), "\n", "<br/>") + "</p>"
		}
		created, err := s.createEvent(ctx, graph.EventSpec{
			Subject:       in.Subject,
			Start:         start,
			End:           end,
			TimeZone:      s.calendar.ResolveTimezone(in.Timezone),
			Location:      in.Location,
			Attendees:     in.Attendees,
			BodyHTML:      bodyHTML,
			OnlineMeeting: in.TeamsMeeting,
		})
		if err != nil {
			return mcp.FailErr(err)
		}
		s.auditLog(audit.Entry{
			Action: "schedule_meeting",
			User:   s.currentUser(ctx),
			Status: audit.StatusSuccess,
			Details: map[string]interface{}{
				"subject":        s.guard.Sanitize(in.Subject),
				"attendee_count": len(in.Attendees),
				"start":          start,
				"teams_meeting":  in.TeamsMeeting,
				"has_agenda":     in.Agenda != "",
			},
		})
		return mcp.Ok("Meeting scheduled.", created)
	})
}

var scheduleItemLayouts = []string{"2006-01-02T15:04:05.9999999", "2006-01-02T15:04:05"}

func parseScheduleTime(value string) (time.Time, bool) {
	for _, layout := range scheduleItemLayouts {
		if parsed, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// findFreeSlot scans the preferred window in 30-minute steps for the first
// gap of the requested duration in the user's own calendar. The returned
// bounds are naive local datetimes in the requested timezone.
func (s *Service) findFreeSlot(ctx context.Context, preferredStart, preferredEnd, tz string, duration time.Duration) (string, string, bool, error) {
	windowStart, ok := parseScheduleTime(s.calendar.LocalToUTC(preferredStart, tz))
	if !ok {
		return "", "", false, errcode.New(errcode.Validation, "preferred_start must be an ISO 8601 datetime")
	}
	windowEnd, ok := parseScheduleTime(s.calendar.LocalToUTC(preferredEnd, tz))
	if !ok {
		return "", "", false, errcode.New(errcode.Validation, "preferred_end must be an ISO 8601 datetime")
	}
	if !windowEnd.After(windowStart) {
		return "", "", false, errcode.New(errcode.Validation, "preferred_end must be after preferred_start")
	}
	schedules, err := s.freeBusy(ctx, []string{s.currentUser(ctx)}, windowStart, windowEnd)
	if err != nil {
		return "", "", false, err
	}
	var busy [][2]time.Time
	for _, schedule := range schedules {
		for _, item := range schedule.ScheduleItems {
			bs, okStart := parseScheduleTime(item.Start.DateTime)
			be, okEnd := parseScheduleTime(item.End.DateTime)
			if okStart && okEnd {
				busy = append(busy, [2]time.Time{bs, be})
			}
		}
	}
	for cursor := windowStart; !cursor.Add(duration).After(windowEnd); cursor = cursor.Add(slotStep) {
		slotEnd := cursor.Add(duration)
		overlaps := false
		for _, block := range busy {
			if cursor.Before(block[1]) && block[0].Before(slotEnd) {
				overlaps = true
				break
			}
		}
		if !overlaps {
			return s.utcToLocal(cursor, tz), s.utcToLocal(slotEnd, tz), true, nil
		}
	}
	return "", "", false, nil
}

func (s *Service) utcToLocal(instant time.Time, tz string) string {
	if tz == "" {
		tz = s.cfg.Calendar.DefaultTimezone
	}
	location, err := time.LoadLocation(tz)
	if err != nil {
		location = time.UTC
	}
	return instant.In(location).Format("2006-01-02T15:04:05")
}

// doFreeBusy queries the user's availability at the slot granularity.
func (s *Service) doFreeBusy(ctx context.Context, schedules []string, start, end time.Time) ([]graph.ScheduleInfo, error) {
	return s.calendar.FreeBusy(ctx, schedules, start, end, slotStep)
}
