package portal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Timestamp decodes the portal's time encodings: epoch milliseconds as a
// JSON number, ISO 8601 strings, or the HTTP date format the backend falls
// back to for some columns.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123,
	"2006-01-02",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}

	if data[0] != '"' {
		ms, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("invalid timestamp %s: %w", data, err)
		}
		t.Time = time.UnixMilli(int64(ms)).UTC()
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Action is a permission verb.
type Action string

// Actions the portal checks.
const (
	ActionView    Action = "View"
	ActionCreate  Action = "Create"
	ActionEdit    Action = "Edit"
	ActionArchive Action = "Archive"
	ActionInvoke  Action = "Invoke"
	ActionAll     Action = "*"
)

// Permission pairs an action with the resource it applies to.
type Permission struct {
	Action   Action `json:"action"`
	Resource string `json:"resource"`
	ID       int    `json:"id,omitempty"`
}

// Role is a named set of study permissions.
type Role struct {
	Name        string       `json:"name"`
	Permissions []Permission `json:"permissions,omitempty"`
	ID          int          `json:"id,omitempty"`
}

// AppRef is an application as embedded in other entities.
type AppRef struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

// AccessGroup grants app-wide permissions to its accounts.
type AccessGroup struct {
	Name        string       `json:"name"`
	App         AppRef       `json:"app"`
	Permissions []Permission `json:"permissions,omitempty"`
	ID          int          `json:"id,omitempty"`
}

// StudyMembership is an account's role on one study.
type StudyMembership struct {
	ExpiresOn Timestamp `json:"expiresOn"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	ID        int       `json:"id"`
}

// Account is a researcher or coordinator login.
type Account struct {
	CreatedOn    Timestamp         `json:"createdOn"`
	LastLogin    Timestamp         `json:"lastLogin"`
	FirstName    string            `json:"firstName"`
	LastName     string            `json:"lastName"`
	Email        string            `json:"email"`
	PhoneNumber  string            `json:"phoneNumber,omitempty"`
	AccessGroups []AccessGroup     `json:"accessGroups,omitempty"`
	Studies      []StudyMembership `json:"studies,omitempty"`
	ID           int               `json:"id,omitempty"`
	IsConfirmed  bool              `json:"isConfirmed"`
}

// FullName returns "First Last".
func (a Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Study is a research study. DittiID is the prefix every participant id
// enrolled in the study carries.
type Study struct {
	Name               string `json:"name"`
	Acronym            string `json:"acronym"`
	DittiID            string `json:"dittiId"`
	Email              string `json:"email"`
	ConsentInformation string `json:"consentInformation,omitempty"`
	DataSummary        string `json:"dataSummary,omitempty"`
	Roles              []Role `json:"roles,omitempty"`
	ID                 int    `json:"id,omitempty"`
	DefaultExpiryDelta int    `json:"defaultExpiryDelta"`
	IsQI               bool   `json:"isQi"`
}

// ValidateDittiID reports whether id can be enrolled in the study.
func (s Study) ValidateDittiID(id string) error {
	if !strings.HasPrefix(id, s.DittiID) {
		return fmt.Errorf("ditti id %q must start with study prefix %q", id, s.DittiID)
	}
	suffix := strings.TrimPrefix(id, s.DittiID)
	if suffix == "" {
		return fmt.Errorf("ditti id %q has nothing after the study prefix", id)
	}
	for _, r := range suffix {
		if (r < '0' || r > '9') && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return fmt.Errorf("ditti id %q contains invalid character %q", id, r)
		}
	}
	return nil
}

// AboutSleepTemplate is rich text shown to participants in the app.
type AboutSleepTemplate struct {
	Name string `json:"name"`
	Text string `json:"text"`
	ID   int    `json:"id,omitempty"`
}

// DataProcessingTask is a backend job that pulls wearable data.
type DataProcessingTask struct {
	CreatedOn   Timestamp `json:"createdOn"`
	UpdatedOn   Timestamp `json:"updatedOn"`
	CompletedOn Timestamp `json:"completedOn"`
	Status      string    `json:"status"`
	Error       string    `json:"errorCode,omitempty"`
	ID          int       `json:"id"`
	BilledMs    int64     `json:"billedMs"`
}

// Done reports whether the task has finished, successfully or not.
func (t DataProcessingTask) Done() bool {
	switch strings.ToLower(t.Status) {
	case "completed", "complete", "failed", "failed_to_start", "cancelled":
		return true
	}
	return false
}

// Participant is an enrolled study subject.
type Participant struct {
	ExpTime       Timestamp `json:"exp_time"`
	CreatedAt     Timestamp `json:"createdAt"`
	DittiID       string    `json:"user_permission_id"`
	TeamEmail     string    `json:"team_email"`
	Information   string    `json:"information,omitempty"`
	TapPermission bool      `json:"tap_permission"`
}

// Expired reports whether the participant's enrollment ended before now.
func (p Participant) Expired(now time.Time) bool {
	return !p.ExpTime.IsZero() && p.ExpTime.Before(now)
}

// Enrollment is the body of a participant creation request.
type Enrollment struct {
	ExpTime              time.Time `json:"exp_time"`
	DittiID              string    `json:"user_permission_id"`
	TeamEmail            string    `json:"team_email"`
	Information          string    `json:"information,omitempty"`
	StudyID              int       `json:"-"`
	AboutSleepTemplateID int       `json:"about_sleep_template,omitempty"`
	TapPermission        bool      `json:"tap_permission"`
}

// Tap is one tap recorded by the participant app.
type Tap struct {
	Time     Timestamp `json:"time"`
	DittiID  string    `json:"dittiId"`
	Timezone string    `json:"timezone"`
}

// AudioTap is a tap made while an audio track was playing.
type AudioTap struct {
	Time           Timestamp `json:"time"`
	DittiID        string    `json:"dittiId"`
	Timezone       string    `json:"timezone"`
	Action         string    `json:"action"`
	AudioFileTitle string    `json:"audioFileTitle"`
}
