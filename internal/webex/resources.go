package webex

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kalambet/ucportal/internal/envelope"
)

// Person is a Webex user. Emails must hold at least one address on create.
type Person struct {
	ID          string    `json:"id,omitempty"`
	Emails      []string  `json:"emails"`
	DisplayName string    `json:"displayName,omitempty"`
	FirstName   string    `json:"firstName,omitempty"`
	LastName    string    `json:"lastName,omitempty"`
	OrgID       string    `json:"orgId,omitempty"`
	Status      string    `json:"status,omitempty"`
	Created     time.Time `json:"created,omitzero"`
}

// Meeting is a scheduled Webex meeting. Start and End are ISO 8601.
type Meeting struct {
	ID            string `json:"id,omitempty"`
	Title         string `json:"title"`
	Start         string `json:"start"`
	End           string `json:"end"`
	Timezone      string `json:"timezone,omitempty"`
	State         string `json:"state,omitempty"`
	MeetingNumber string `json:"meetingNumber,omitempty"`
	WebLink       string `json:"webLink,omitempty"`
	HostEmail     string `json:"hostEmail,omitempty"`
	Password      string `json:"password,omitempty"`
}

// Room is a Webex space the token owner belongs to.
type Room struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Type         string    `json:"type"`
	LastActivity time.Time `json:"lastActivity,omitzero"`
}

// Message is a post to a room, or a direct message when ToPersonEmail is set.
type Message struct {
	ID            string    `json:"id,omitempty"`
	RoomID        string    `json:"roomId,omitempty"`
	ToPersonEmail string    `json:"toPersonEmail,omitempty"`
	Text          string    `json:"text,omitempty"`
	Markdown      string    `json:"markdown,omitempty"`
	Created       time.Time `json:"created,omitzero"`
}

// PeopleQuery filters the people listing.
type PeopleQuery struct {
	Email       string
	DisplayName string
	Max         int
}

// MeetingQuery filters the meetings listing. From and To are ISO 8601.
type MeetingQuery struct {
	From string
	To   string
	Max  int
}

// Me returns the owner of the token.
func (c *Client) Me(ctx context.Context) (Person, error) {
	var p Person
	_, err := c.do(ctx, http.MethodGet, "/people/me", nil, &p)
	return p, err
}

// ListPeople lists people in the organization, following pagination.
func (c *Client) ListPeople(ctx context.Context, q PeopleQuery) ([]Person, error) {
	v := url.Values{}
	if q.Email != "" {
		v.Set("email", q.Email)
	}
	if q.DisplayName != "" {
		v.Set("displayName", q.DisplayName)
	}
	if q.Max > 0 {
		v.Set("max", strconv.Itoa(q.Max))
	}
	return listAll[Person](ctx, c, "/people", v, q.Max)
}

// GetPerson returns the person with id.
func (c *Client) GetPerson(ctx context.Context, id string) (Person, error) {
	var p Person
	_, err := c.do(ctx, http.MethodGet, "/people/"+url.PathEscape(id), nil, &p)
	return p, err
}

// CreatePerson adds a user to the organization. At least one email is required.
func (c *Client) CreatePerson(ctx context.Context, p Person) (Person, error) {
	if len(p.Emails) == 0 {
		return Person{}, envelope.Invalid("webex create person: email is required")
	}
	var out Person
	_, err := c.do(ctx, http.MethodPost, "/people", p, &out)
	return out, err
}

// DeletePerson removes the person with id from the organization.
func (c *Client) DeletePerson(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/people/"+url.PathEscape(id), nil, nil)
	return err
}

// ListMeetings lists scheduled meetings of the token owner.
func (c *Client) ListMeetings(ctx context.Context, q MeetingQuery) ([]Meeting, error) {
	v := url.Values{}
	if q.From != "" {
		v.Set("from", q.From)
	}
	if q.To != "" {
		v.Set("to", q.To)
	}
	if q.Max > 0 {
		v.Set("max", strconv.Itoa(q.Max))
	}
	return listAll[Meeting](ctx, c, "/meetings", v, q.Max)
}

// CreateMeeting schedules a meeting. Title, Start and End are required.
func (c *Client) CreateMeeting(ctx context.Context, m Meeting) (Meeting, error) {
	if m.Title == "" || m.Start == "" || m.End == "" {
		return Meeting{}, envelope.Invalid("webex create meeting: title, start and end are required")
	}
	var out Meeting
	_, err := c.do(ctx, http.MethodPost, "/meetings", m, &out)
	return out, err
}

// GetMeeting returns the meeting with id.
func (c *Client) GetMeeting(ctx context.Context, id string) (Meeting, error) {
	var m Meeting
	_, err := c.do(ctx, http.MethodGet, "/meetings/"+url.PathEscape(id), nil, &m)
	return m, err
}

// DeleteMeeting cancels the meeting with id.
func (c *Client) DeleteMeeting(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/meetings/"+url.PathEscape(id), nil, nil)
	return err
}

// ListRooms lists the spaces the token owner belongs to.
func (c *Client) ListRooms(ctx context.Context, max int) ([]Room, error) {
	v := url.Values{}
	if max > 0 {
		v.Set("max", strconv.Itoa(max))
	}
	return listAll[Room](ctx, c, "/rooms", v, max)
}

// SendMessage posts to a room or directly to a person by email.
func (c *Client) SendMessage(ctx context.Context, m Message) (Message, error) {
	if m.RoomID == "" && m.ToPersonEmail == "" {
		return Message{}, envelope.Invalid("webex send message: roomId or toPersonEmail is required")
	}
	if m.Text == "" && m.Markdown == "" {
		return Message{}, envelope.Invalid("webex send message: text is required")
	}
	var out Message
	_, err := c.do(ctx, http.MethodPost, "/messages", m, &out)
	return out, err
}
