package graph

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"time"
)

// ianaToWindows maps common IANA timezone identifiers to the Windows names
// Graph expects in the outlook.timezone Prefer header.
var ianaToWindows = map[string]string{
	"Pacific/Honolulu":    "Hawaiian Standard Time",
	"America/Anchorage":   "Alaskan Standard Time",
	"America/Los_Angeles": "Pacific Standard Time",
	"America/Denver":      "Mountain Standard Time",
	"America/Chicago":     "Central Standard Time",
	"America/New_York":    "Eastern Standard Time",
	"America/Sao_Paulo":   "E. South America Standard Time",
	"Atlantic/Reykjavik":  "Greenwich Standard Time",
	"Europe/London":       "GMT Standard Time",
	"Europe/Paris":        "Romance Standard Time",
	"Europe/Berlin":       "W. Europe Standard Time",
	"Europe/Helsinki":     "FLE Standard Time",
	"Europe/Moscow":       "Russian Standard Time",
	"Europe/Istanbul":     "Turkey Standard Time",
	"Asia/Dubai":          "Arabian Standard Time",
	"Asia/Karachi":        "Pakistan Standard Time",
	"Asia/Kolkata":        "India Standard Time",
	"Asia/Dhaka":          "Bangladesh Standard Time",
	"Asia/Bangkok":        "SE Asia Standard Time",
	"Asia/Shanghai":       "China Standard Time",
	"Asia/Tokyo":          "Tokyo Standard Time",
	"Australia/Sydney":    "AUS Eastern Standard Time",
	"Pacific/Auckland":    "New Zealand Standard Time",
	"UTC":                 "UTC",
}

const calendarViewSelect = "id,subject,start,end,location,organizer,attendees,isOnlineMeeting,onlineMeeting,webLink,bodyPreview"

const eventSelect = "id,subject,start,end,location,organizer,attendees,isOnlineMeeting,onlineMeeting,webLink,bodyPreview,responseStatus"

type CalendarService struct {
	client    *Client
	defaultTZ string
}

func NewCalendarService(client *Client, defaultTZ string) *CalendarService {
	return &CalendarService{client: client, defaultTZ: defaultTZ}
}

// ResolveTimezone maps an IANA identifier to the Windows timezone name used
// in Prefer headers, passing unknown names through untouched.
func (s *CalendarService) ResolveTimezone(tz string) string {
	if tz == "" {
		tz = s.defaultTZ
	}
	if windows, ok := ianaToWindows[tz]; ok {
		return windows
	}
	return tz
}

var hasOffsetPattern = regexp.MustCompile(`[Zz+]|\d-\d{2}:\d{2}$`)

var naiveLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}

// LocalToUTC converts a naive local datetime to the equivalent UTC instant
// for APIs that interpret query bounds as UTC. Datetimes that already carry
// an offset pass through unchanged.
func (s *CalendarService) LocalToUTC(datetime, tz string) string {
	if hasOffsetPattern.MatchString(datetime) {
		return datetime
	}
	if tz == "" {
		tz = s.defaultTZ
	}
	location, err := time.LoadLocation(tz)
	if err != nil {
		return datetime
	}
	for _, layout := range naiveLayouts {
		local, err := time.ParseInLocation(layout, datetime, location)
		if err != nil {
			continue
		}
		return local.UTC().Format("2006-01-02T15:04:05")
	}
	return datetime
}

func pickAttendees(raw interface{}) []map[string]interface{} {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		attendee, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, map[string]interface{}{
			"name":     nested(attendee, "emailAddress", "name"),
			"email":    nested(attendee, "emailAddress", "address"),
			"type":     attendee["type"],
			"response": nested(attendee, "status", "response"),
		})
	}
	return out
}

// PickEvent projects a raw Graph event to the gateway's compact shape.
func PickEvent(event map[string]interface{}, includeFull bool) map[string]interface{} {
	attendees, _ := event["attendees"].([]interface{})
	isOnline := event["isOnlineMeeting"] == true || event["onlineMeeting"] != nil
	minimal := map[string]interface{}{
		"id":                event["id"],
		"subject":           event["subject"],
		"start":             nested(event, "start", "dateTime"),
		"end":               nested(event, "end", "dateTime"),
		"organizer":         nested(event, "organizer", "emailAddress"),
		"attendee_count":    len(attendees),
		"location":          nested(event, "location", "displayName"),
		"is_online_meeting": isOnline,
		"web_link":          event["webLink"],
		"teams_join_url":    nested(event, "onlineMeeting", "joinUrl"),
	}
	if !includeFull {
		return minimal
	}
	minimal["attendees"] = pickAttendees(event["attendees"])
	minimal["response_status"] = event["responseStatus"]
	minimal["online_meeting"] = event["onlineMeeting"]
	minimal["body_preview"] = event["bodyPreview"]
	return minimal
}

// View fetches events in a range through the calendarView API, which expands
// recurring series. Naive bounds are converted to UTC; the Prefer header
// still asks for event times in the local timezone for display.
func (s *CalendarService) View(ctx context.Context, startDateTime, endDateTime string, top int, timezone string) ([]map[string]interface{}, error) {
	values := url.Values{}
	values.Set("startDateTime", s.LocalToUTC(startDateTime, timezone))
	values.Set("endDateTime", s.LocalToUTC(endDateTime, timezone))
	values.Set("$select", calendarViewSelect)
	values.Set("$top", strconv.Itoa(top))
	values.Set("$orderby", "start/dateTime")
	headers := map[string]string{
		"Prefer": fmt.Sprintf("outlook.timezone=%q", s.ResolveTimezone(timezone)),
	}
	out := &listValue{}
	if err := s.client.get(ctx, "/me/calendarView", values, headers, out); err != nil {
		return nil, err
	}
	events := make([]map[string]interface{}, 0, len(out.Value))
	for _, event := range out.Value {
		events = append(events, PickEvent(event, true))
	}
	return events, nil
}

func (s *CalendarService) Get(ctx context.Context, eventID string) (map[string]interface{}, error) {
	values := url.Values{}
	values.Set("$select", eventSelect)
	headers := map[string]string{
		"Prefer": fmt.Sprintf("outlook.timezone=%q", s.ResolveTimezone("")),
	}
	out := map[string]interface{}{}
	if err := s.client.get(ctx, "/me/events/"+pathEscape(eventID), values, headers, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Respond accepts, declines, or tentatively accepts an invitation.
func (s *CalendarService) Respond(ctx context.Context, eventID, action, comment string, sendResponse bool) error {
	body := map[string]interface{}{"sendResponse": sendResponse}
	if comment != "" {
		body["comment"] = comment
	}
	return s.client.post(ctx, "/me/events/"+pathEscape(eventID)+"/"+action, body, nil)
}

// Cancel cancels an event the user organizes, notifying attendees.
func (s *CalendarService) Cancel(ctx context.Context, eventID, comment string) error {
	body := map[string]interface{}{}
	if comment != "" {
		body["comment"] = comment
	}
	return s.client.post(ctx, "/me/events/"+pathEscape(eventID)+"/cancel", body, nil)
}

// DateTimeZone is Graph's dateTime/timeZone pair.
type DateTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// ScheduleItem is one busy block on a schedule.
type ScheduleItem struct {
	Start DateTimeZone `json:"start"`
	End   DateTimeZone `json:"end"`
}

// ScheduleInfo is one mailbox's availability from getSchedule. The
// availability view is a digit string, one slot per interval, where "0"
// means free.
type ScheduleInfo struct {
	ScheduleID       string         `json:"scheduleId"`
	AvailabilityView string         `json:"availabilityView"`
	ScheduleItems    []ScheduleItem `json:"scheduleItems"`
}

// FreeBusy queries availability for the given mailboxes between start and
// end, in UTC, at the given slot interval.
func (s *CalendarService) FreeBusy(ctx context.Context, schedules []string, start, end time.Time, interval time.Duration) ([]ScheduleInfo, error) {
	body := map[string]interface{}{
		"schedules": schedules,
		"startTime": map[string]interface{}{
			"dateTime": start.UTC().Format("2006-01-02T15:04:05"),
			"timeZone": "UTC",
		},
		"endTime": map[string]interface{}{
			"dateTime": end.UTC().Format("2006-01-02T15:04:05"),
			"timeZone": "UTC",
		},
		"availabilityViewInterval": int(interval.Minutes()),
	}
	out := &struct {
		Value []ScheduleInfo `json:"value"`
	}{}
	if err := s.client.post(ctx, "/me/calendar/getSchedule", body, out); err != nil {
		return nil, err
	}
	return out.Value, nil
}
