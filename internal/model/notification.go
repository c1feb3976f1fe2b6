package model

import (
	"time"
)

const (
	DefaultNotificationTitle = "New Notification"
	DefaultNotificationIcon  = "/icons/icon-192x192.png"
	RootDeepLinkPath         = "/"
)

// NotificationSource tags where a NotificationEvent came from
type NotificationSource string

const (
	SourceForegroundPush NotificationSource = "foreground-push"
	SourceChangeFeed     NotificationSource = "change-feed"
	SourceNative         NotificationSource = "native"
)

// DeepLink is a structured in-app navigation target
type DeepLink struct {
	Path      string `json:"deepLinkPath,omitempty"`
	ProjectID string `json:"projectId,omitempty"`
	TaskID    string `json:"taskId,omitempty"`
	MeetingID string `json:"meetingId,omitempty"`
	TargetTab string `json:"targetTab,omitempty"`
}

// IsRoot reports whether the link points nowhere beyond the application root
func (d DeepLink) IsRoot() bool {
	return d.Path == "" || d.Path == RootDeepLinkPath
}

// Data flattens the deep link into the string map carried by push payloads
func (d DeepLink) Data() map[string]string {
	data := map[string]string{"deepLinkPath": d.Path}
	if d.ProjectID != "" {
		data["projectId"] = d.ProjectID
	}
	if d.TaskID != "" {
		data["taskId"] = d.TaskID
	}
	if d.MeetingID != "" {
		data["meetingId"] = d.MeetingID
	}
	if d.TargetTab != "" {
		data["targetTab"] = d.TargetTab
	}
	return data
}

// DeepLinkFromData reads a deep link back out of a push data map
func DeepLinkFromData(data map[string]string) DeepLink {
	return DeepLink{
		Path:      data["deepLinkPath"],
		ProjectID: data["projectId"],
		TaskID:    data["taskId"],
		MeetingID: data["meetingId"],
		TargetTab: data["targetTab"],
	}
}

// NotificationEvent is the normalized shape every notification source produces
type NotificationEvent struct {
	ID          string             `json:"id"`
	UserID      string             `json:"user_id,omitempty"`
	Title       string             `json:"title"`
	Body        string             `json:"body"`
	Icon        string             `json:"icon,omitempty"`
	DeepLink    *DeepLink          `json:"deep_link,omitempty"`
	ExternalURL string             `json:"external_url,omitempty"`
	Source      NotificationSource `json:"source"`
}

// Notification represents the notifications table
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	DeepLink  DeepLink  `json:"deep_link"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Event converts a stored notification into a change-feed event
func (n *Notification) Event() NotificationEvent {
	link := n.DeepLink
	return NotificationEvent{
		ID:       n.ID,
		UserID:   n.UserID,
		Title:    n.Title,
		Body:     n.Body,
		DeepLink: &link,
		Source:   SourceChangeFeed,
	}
}
