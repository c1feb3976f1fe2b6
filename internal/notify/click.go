package notify

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/tenant-branding-service/internal/model"
)

// Navigator moves the application in response to a notification click
type Navigator interface {
	Focus() error
	Navigate(link model.DeepLink) error
	OpenExternal(url string) error
}

// ClickRouter routes notification clicks either to an external URL or into
// the application, never both.
type ClickRouter struct {
	nav Navigator
}

func NewClickRouter(nav Navigator) *ClickRouter {
	return &ClickRouter{nav: nav}
}

func (r *ClickRouter) Handle(data map[string]string) {
	if target := data["url"]; IsExternalURL(target) {
		if err := r.nav.OpenExternal(target); err != nil {
			log.Warn().Err(err).Str("url", target).Msg("Failed to open external link")
		}
		return
	}

	if err := r.nav.Focus(); err != nil {
		log.Warn().Err(err).Msg("Failed to focus application")
	}
	link := model.DeepLinkFromData(data)
	if link.IsRoot() {
		return
	}
	if err := r.nav.Navigate(link); err != nil {
		log.Warn().Err(err).Str("path", link.Path).Msg("Failed to navigate to deep link")
	}
}

type navigateCommand struct {
	Action   string          `json:"action"`
	DeepLink *model.DeepLink `json:"deepLink,omitempty"`
	URL      string          `json:"url,omitempty"`
}

// BusNavigator sends navigation commands to one device
type BusNavigator struct {
	bus      Bus
	deviceID string
}

func NewBusNavigator(bus Bus, deviceID string) *BusNavigator {
	return &BusNavigator{bus: bus, deviceID: deviceID}
}

func (n *BusNavigator) Focus() error {
	return n.send(navigateCommand{Action: "focus"})
}

func (n *BusNavigator) Navigate(link model.DeepLink) error {
	return n.send(navigateCommand{Action: "navigate", DeepLink: &link})
}

func (n *BusNavigator) OpenExternal(url string) error {
	return n.send(navigateCommand{Action: "open-external", URL: url})
}

func (n *BusNavigator) send(cmd navigateCommand) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return n.bus.Publish(navigateSubject(n.deviceID), payload)
}
