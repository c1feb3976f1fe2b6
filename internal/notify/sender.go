package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/tenant-branding-service/internal/model"
	"github.com/teresa-solution/tenant-branding-service/internal/monitoring"
)

// DefaultPushURL is used when no delivery endpoint is configured
const DefaultPushURL = "https://sendpushnotification-jl3d2uhdra-uc.a.run.app"

// SendRequest is the body posted to the delivery endpoint
type SendRequest struct {
	RecipientID  string `json:"recipientId"`
	Title        string `json:"title"`
	Body         string `json:"body"`
	DeepLinkPath string `json:"deepLinkPath"`
	ProjectID    string `json:"projectId,omitempty"`
	TaskID       string `json:"taskId,omitempty"`
	MeetingID    string `json:"meetingId,omitempty"`
	TargetTab    string `json:"targetTab,omitempty"`
	Icon         string `json:"icon"`
}

func (r SendRequest) withDefaults() SendRequest {
	if r.DeepLinkPath == "" {
		r.DeepLinkPath = model.RootDeepLinkPath
	}
	if r.Icon == "" {
		r.Icon = model.DefaultNotificationIcon
	}
	return r
}

// Sender posts notifications to the remote delivery endpoint
type Sender struct {
	url        string
	httpClient *http.Client
	wg         sync.WaitGroup
}

func NewSender(url string, timeout time.Duration) *Sender {
	if url == "" {
		url = DefaultPushURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Sender{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send delivers req in the background. Failures are logged and counted,
// never returned.
func (s *Sender) Send(ctx context.Context, req SendRequest) {
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.deliver(ctx, req); err != nil {
			monitoring.NotificationsDelivered.WithLabelValues("push", "failed").Inc()
			log.Error().Err(err).Str("recipient_id", req.RecipientID).Msg("Failed to send push notification")
			return
		}
		monitoring.NotificationsDelivered.WithLabelValues("push", "success").Inc()
	}()
}

func (s *Sender) deliver(ctx context.Context, req SendRequest) error {
	jsonData, err := json.Marshal(req.withDefaults())
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Close waits for in-flight sends
func (s *Sender) Close() {
	s.wg.Wait()
}
