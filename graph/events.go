package graph

import (
	"context"
	"fmt"

	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
)

// ClientProvider yields an authenticated Graph SDK client.
type ClientProvider interface {
	GraphClient(ctx context.Context) (*msgraphsdk.GraphServiceClient, error)
}

// EventSpec describes a meeting to create. Start and End are naive local
// datetimes interpreted in TimeZone.
type EventSpec struct {
	Subject       string
	Start         string
	End           string
	TimeZone      string
	Location      string
	Attendees     []string
	BodyHTML      string
	OnlineMeeting bool
}

type EventsService struct {
	provider ClientProvider
}

func NewEventsService(provider ClientProvider) *EventsService {
	return &EventsService{provider: provider}
}

// Create posts a new event through the Graph SDK and returns its projected
// form.
func (s *EventsService) Create(ctx context.Context, spec EventSpec) (map[string]interface{}, error) {
	client, err := s.provider.GraphClient(ctx)
	if err != nil {
		return nil, err
	}
	event := models.NewEvent()
	event.SetSubject(ptr(spec.Subject))
	tz := spec.TimeZone
	if tz == "" {
		tz = "UTC"
	}
	start := models.NewDateTimeTimeZone()
	start.SetDateTime(ptr(spec.Start))
	start.SetTimeZone(ptr(tz))
	event.SetStart(start)
	end := models.NewDateTimeTimeZone()
	end.SetDateTime(ptr(spec.End))
	end.SetTimeZone(ptr(tz))
	event.SetEnd(end)
	if spec.Location != "" {
		location := models.NewLocation()
		location.SetDisplayName(ptr(spec.Location))
		event.SetLocation(location)
	}
	if len(spec.Attendees) > 0 {
		var attendees []models.Attendeeable
		for _, address := range spec.Attendees {
			email := models.NewEmailAddress()
			email.SetAddress(ptr(address))
			attendee := models.NewAttendee()
			attendee.SetEmailAddress(email)
			attendeeType := models.REQUIRED_ATTENDEETYPE
			attendee.SetTypeEscaped(&attendeeType)
			attendees = append(attendees, attendee)
		}
		event.SetAttendees(attendees)
	}
	if spec.BodyHTML != "" {
		body := models.NewItemBody()
		body.SetContentType(ptr(models.HTML_BODYTYPE))
		body.SetContent(ptr(spec.BodyHTML))
		event.SetBody(body)
	}
	if spec.OnlineMeeting {
		event.SetIsOnlineMeeting(ptr(true))
		provider := models.TEAMSFORBUSINESS_ONLINEMEETINGPROVIDERTYPE
		event.SetOnlineMeetingProvider(&provider)
	}
	created, err := client.Me().Events().Post(ctx, event, nil)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	out := map[string]interface{}{
		"id":                ptrVal(created.GetId()),
		"subject":           ptrVal(created.GetSubject()),
		"start":             dateTimeOf(created.GetStart()),
		"end":               dateTimeOf(created.GetEnd()),
		"location":          locationName(created.GetLocation()),
		"is_online_meeting": created.GetIsOnlineMeeting() != nil && *created.GetIsOnlineMeeting(),
		"web_link":          ptrVal(created.GetWebLink()),
	}
	if online := created.GetOnlineMeeting(); online != nil {
		out["teams_join_url"] = ptrVal(online.GetJoinUrl())
	}
	return out, nil
}

func ptr[T any](v T) *T { return &v }

func ptrVal(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func dateTimeOf(dt models.DateTimeTimeZoneable) string {
	if dt == nil || dt.GetDateTime() == nil {
		return ""
	}
	return *dt.GetDateTime()
}

func locationName(location models.Locationable) string {
	if location == nil || location.GetDisplayName() == nil {
		return ""
	}
	return *location.GetDisplayName()
}
