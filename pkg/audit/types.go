package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Action identifies what an audit entry records
type Action string

const (
	// Authentication actions
	ActionLogin          Action = "login"
	ActionLoginFailed    Action = "login_failed"
	ActionLogout         Action = "logout"
	ActionPasswordChange Action = "password_change"

	// User management actions
	ActionUserCreate Action = "user_create"
	ActionUserUpdate Action = "user_update"
	ActionUserDelete Action = "user_delete"

	// Role management actions
	ActionRoleCreate Action = "role_create"
	ActionRoleUpdate Action = "role_update"
	ActionRoleDelete Action = "role_delete"
	ActionRoleChange Action = "role_change"

	// Content actions reported by the content surface
	ActionContentCreate Action = "content_create"
	ActionContentUpdate Action = "content_update"
	ActionContentDelete Action = "content_delete"
)

// customPrefix marks free-form actions reported by collaborators
const customPrefix = "custom:"

var customText = regexp.MustCompile(`^[a-z0-9_.-]{1,64}$`)

var knownActions = map[Action]struct{}{
	ActionLogin:          {},
	ActionLoginFailed:    {},
	ActionLogout:         {},
	ActionPasswordChange: {},
	ActionUserCreate:     {},
	ActionUserUpdate:     {},
	ActionUserDelete:     {},
	ActionRoleCreate:     {},
	ActionRoleUpdate:     {},
	ActionRoleDelete:     {},
	ActionRoleChange:     {},
	ActionContentCreate:  {},
	ActionContentUpdate:  {},
	ActionContentDelete:  {},
}

// ParseAction accepts a known action or a custom:<text> action
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := knownActions[a]; ok {
		return a, nil
	}
	if text, ok := strings.CutPrefix(s, customPrefix); ok {
		return CustomAction(text)
	}
	return "", fmt.Errorf("unknown audit action %q", s)
}

// CustomAction builds a custom:<text> action
func CustomAction(text string) (Action, error) {
	if !customText.MatchString(text) {
		return "", fmt.Errorf("custom action %q must match %s", text, customText.String())
	}
	return Action(customPrefix + text), nil
}

// Valid reports whether a is a known or well-formed custom action
func (a Action) Valid() bool {
	_, err := ParseAction(string(a))
	return err == nil
}

// IsCustom reports whether a is a custom:<text> action
func (a Action) IsCustom() bool {
	return strings.HasPrefix(string(a), customPrefix)
}

// Reportable reports whether callers may record a directly: content and
// custom actions. Authentication, user and role actions are written only by
// the operations they describe.
func (a Action) Reportable() bool {
	switch a {
	case ActionContentCreate, ActionContentUpdate, ActionContentDelete:
		return true
	}
	return a.IsCustom() && a.Valid()
}

// Kind collapses custom actions to "custom". Used as a metric label.
func (a Action) Kind() string {
	if a.IsCustom() {
		return "custom"
	}
	return string(a)
}

// Details is the free-text detail of an entry. It decodes from a JSON string,
// or from any other JSON value, which is kept as its compact encoding.
type Details string

// UnmarshalJSON accepts a string, null, or a structured value
func (d *Details) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*d = Details(text)
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return fmt.Errorf("invalid details: %w", err)
	}
	*d = Details(buf.String())
	return nil
}

// DetailsOf renders fields as compact JSON text, empty for no fields
func DetailsOf(fields map[string]interface{}) Details {
	if len(fields) == 0 {
		return ""
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return Details(fmt.Sprint(fields))
	}
	return Details(raw)
}

// Entry is one record of the admin_logs collection
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	UserEmail string    `json:"userEmail"`
	UserRole  string    `json:"userRole"`
	Action    Action    `json:"action"`
	Details   Details   `json:"details,omitempty"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
}

// Actor describes who performed an action
type Actor struct {
	UserID string
	Name   string
	Email  string
	Role   string
}

// Request describes where an action came from
type Request struct {
	IPAddress string
	UserAgent string
}

// NewEntry assembles an entry. Id and timestamp are assigned by Logger.Append.
func NewEntry(actor Actor, action Action, details Details, req Request) Entry {
	return Entry{
		UserID:    actor.UserID,
		UserName:  actor.Name,
		UserEmail: actor.Email,
		UserRole:  actor.Role,
		Action:    action,
		Details:   details,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	}
}
