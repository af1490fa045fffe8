package lacrm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/meridianmedia/bookingsync/internal/pkg/booking"
)

const defaultAPIBaseURL = "https://api.lessannoyingcrm.com/v2/"

// ErrNoAPIKey means no CRM credential is configured. A configuration
// error, not a transient one: callers short-circuit instead of retrying.
var ErrNoAPIKey = errors.New("lacrm API key is not configured")

// APIError is a structured rejection from the CRM (HTTP 400 envelope)
type APIError struct {
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lacrm rejected request: code=%s description=%s", e.Code, e.Description)
}

// absenceMarkers identify "the resource is already gone" rejections. The
// API has no structured not-found code, so the description text is the
// only signal available.
var absenceMarkers = []string{
	"does not exist",
	"not found",
	"no event",
	"already been deleted",
}

// Client issues authenticated CRM operations. No retries happen here;
// retry, if any, is the caller's responsibility via the next trigger
// cycle.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	// apiKey is read per call so settings changes apply without restart
	apiKey func() string
}

// NewClient creates a CRM client. keyFn supplies the current API key.
func NewClient(keyFn func() string) *Client {
	return &Client{
		BaseURL: defaultAPIBaseURL,
		HTTPClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		apiKey: keyFn,
	}
}

type envelope struct {
	Function   string      `json:"Function"`
	Parameters interface{} `json:"Parameters"`
}

// call posts one {Function, Parameters} envelope and returns the raw
// response body on success.
func (c *Client) call(ctx context.Context, function string, params interface{}) (json.RawMessage, error) {
	key := strings.TrimSpace(c.apiKey())
	if key == "" {
		return nil, ErrNoAPIKey
	}

	payload, err := json.Marshal(envelope{Function: function, Parameters: params})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lacrm %s call failed: %w", function, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode == http.StatusBadRequest {
		var apiErr struct {
			ErrorCode        string `json:"ErrorCode"`
			ErrorDescription string `json:"ErrorDescription"`
		}
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.ErrorCode != "" {
			return nil, &APIError{Code: apiErr.ErrorCode, Description: apiErr.ErrorDescription}
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Errorf("[LACRM] %s failed: status=%d body=%s", function, resp.StatusCode, string(body))
		return nil, fmt.Errorf("lacrm %s failed: status=%d body=%s", function, resp.StatusCode, string(body))
	}

	return body, nil
}

type emailEntry struct {
	Email string `json:"Email"`
	Type  string `json:"Type"`
}

type phoneEntry struct {
	Phone string `json:"Phone"`
	Type  string `json:"Type"`
}

type addressEntry struct {
	Street  string `json:"Street"`
	City    string `json:"City"`
	State   string `json:"State"`
	Zip     string `json:"Zip"`
	Country string `json:"Country"`
	Type    string `json:"Type"`
}

// contactFields builds the mutable contact fields from a booking payload
func contactFields(p *booking.Payload) map[string]interface{} {
	fields := map[string]interface{}{
		"FirstName": p.CustomerFirstName,
		"LastName":  p.CustomerLastName,
		"Email":     []emailEntry{{Email: strings.TrimSpace(p.CustomerEmail), Type: "Work"}},
	}
	if strings.TrimSpace(p.CustomerPhone) != "" {
		fields["Phone"] = []phoneEntry{{Phone: p.CustomerPhone, Type: "Work"}}
	}
	if p.Address1 != "" || p.City != "" || p.State != "" || p.Postcode != "" || p.Country != "" {
		street := p.Address1
		if p.Address2 != "" {
			street += "\n" + p.Address2
		}
		fields["Address"] = []addressEntry{{
			Street:  street,
			City:    p.City,
			State:   p.State,
			Zip:     p.Postcode,
			Country: p.Country,
			Type:    "Home",
		}}
	}
	return fields
}

// FindOrCreateContact resolves the CRM contact for a booking's customer.
// The contact search may return near-matches; only an exact
// case-insensitive email match counts as found. On a hit the mutable
// fields are updated; on a miss a new contact is created under the
// account's default owner.
func (c *Client) FindOrCreateContact(ctx context.Context, p *booking.Payload) (string, error) {
	email := strings.TrimSpace(p.CustomerEmail)
	if email == "" {
		return "", errors.New("customer email is required")
	}

	body, err := c.call(ctx, "GetContacts", map[string]interface{}{"SearchTerm": email})
	if err != nil {
		return "", err
	}

	var search struct {
		Results []struct {
			ContactID string       `json:"ContactId"`
			Email     []emailEntry `json:"Email"`
		} `json:"Results"`
	}
	if err := json.Unmarshal(body, &search); err != nil {
		return "", fmt.Errorf("lacrm GetContacts returned malformed response: %w", err)
	}

	for _, candidate := range search.Results {
		for _, entry := range candidate.Email {
			if strings.EqualFold(strings.TrimSpace(entry.Email), email) && candidate.ContactID != "" {
				params := contactFields(p)
				params["ContactId"] = candidate.ContactID
				if _, err := c.call(ctx, "EditContact", params); err != nil {
					// The contact exists; a failed field refresh is not
					// worth failing the whole sync over.
					log.Errorf("[LACRM] EditContact failed for %s: %v", candidate.ContactID, err)
				}
				return candidate.ContactID, nil
			}
		}
	}

	owner, err := c.defaultUserID(ctx)
	if err != nil {
		return "", err
	}

	params := contactFields(p)
	params["IsCompany"] = false
	if owner != "" {
		params["AssignedTo"] = owner
	}

	body, err = c.call(ctx, "CreateContact", params)
	if err != nil {
		return "", err
	}
	var created struct {
		ContactID string `json:"ContactId"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.ContactID == "" {
		return "", fmt.Errorf("lacrm CreateContact returned no contact id (body=%s)", string(body))
	}
	return created.ContactID, nil
}

// defaultUserID resolves the account's default contact owner
func (c *Client) defaultUserID(ctx context.Context) (string, error) {
	body, err := c.call(ctx, "GetUser", map[string]interface{}{})
	if err != nil {
		return "", err
	}
	var user struct {
		UserID string `json:"UserId"`
	}
	if err := json.Unmarshal(body, &user); err != nil {
		return "", fmt.Errorf("lacrm GetUser returned malformed response: %w", err)
	}
	return user.UserID, nil
}

// CreateEvent creates a calendar event with the contact as attendee.
// Contact, name, start and end are all required; a missing one is a local
// validation failure and no network call is issued.
func (c *Client) CreateEvent(ctx context.Context, contactID, name, start, end, description string) (string, error) {
	if strings.TrimSpace(contactID) == "" || strings.TrimSpace(name) == "" ||
		strings.TrimSpace(start) == "" || strings.TrimSpace(end) == "" {
		return "", errors.New("contact id, name, start and end are required to create an event")
	}

	body, err := c.call(ctx, "CreateEvent", map[string]interface{}{
		"Name":        name,
		"StartDate":   start,
		"EndDate":     end,
		"IsAllDay":    false,
		"Location":    "",
		"Description": description,
		"Attendees": []map[string]interface{}{
			{"IsUser": false, "AttendeeId": contactID, "AttendanceStatus": "Attending"},
		},
	})
	if err != nil {
		return "", err
	}

	var created struct {
		EventID string `json:"EventId"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.EventID == "" {
		return "", fmt.Errorf("lacrm CreateEvent returned no event id (body=%s)", string(body))
	}
	return created.EventID, nil
}

// DeleteEvent deletes a calendar event. An "already does not exist"
// rejection counts as success: a previous partial failure may have
// deleted it remotely while failing to update the local mapping.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	if strings.TrimSpace(eventID) == "" {
		return errors.New("event id is required to delete an event")
	}

	_, err := c.call(ctx, "DeleteEvent", map[string]interface{}{"EventId": eventID})
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && isAbsenceError(apiErr) {
		log.Infof("[LACRM] Event %s already gone remotely, treating delete as success", eventID)
		return nil
	}
	return err
}

func isAbsenceError(err *APIError) bool {
	desc := strings.ToLower(err.Description)
	for _, marker := range absenceMarkers {
		if strings.Contains(desc, marker) {
			return true
		}
	}
	return false
}

// CreateNote attaches a free-text note to a contact
func (c *Client) CreateNote(ctx context.Context, contactID, text string) error {
	if strings.TrimSpace(contactID) == "" {
		return errors.New("contact id is required to create a note")
	}
	_, err := c.call(ctx, "CreateNote", map[string]interface{}{
		"ContactId": contactID,
		"Note":      text,
	})
	return err
}
