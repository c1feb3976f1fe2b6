package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/tenant-branding-service/internal/store"
)

// TokenSource yields the delivery token of the current device. An empty
// token means none is available.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenStore adds a token to a user's token set
type TokenStore interface {
	AddPushToken(ctx context.Context, userID, token string) (bool, error)
}

// TokenRegistrar subscribes a device to push for a user
type TokenRegistrar struct {
	permission *Permission
	tokens     TokenSource
	store      TokenStore
}

func NewTokenRegistrar(permission *Permission, tokens TokenSource, store TokenStore) *TokenRegistrar {
	return &TokenRegistrar{permission: permission, tokens: tokens, store: store}
}

// Register requests permission, fetches the device token and saves it for
// userID. It returns the token, or "" when permission was not granted or no
// token is available.
func (r *TokenRegistrar) Register(ctx context.Context, userID string) (string, error) {
	state, err := r.permission.Request(ctx)
	if err != nil {
		return "", fmt.Errorf("request permission: %w", err)
	}
	if state != PermissionGranted {
		log.Info().Str("user_id", userID).Str("permission", string(state)).Msg("Push registration skipped")
		return "", nil
	}

	token, err := r.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("get delivery token: %w", err)
	}
	if token == "" || userID == "" {
		return token, nil
	}

	if _, err := r.Save(ctx, userID, token); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Error().Str("user_id", userID).Msg("Push token not saved, user does not exist")
			return token, nil
		}
		return "", err
	}
	return token, nil
}

// Save adds token to userID's token set. Saving a known token is a no-op.
func (r *TokenRegistrar) Save(ctx context.Context, userID, token string) (bool, error) {
	added, err := r.store.AddPushToken(ctx, userID, token)
	if err != nil {
		return false, err
	}
	log.Info().Str("user_id", userID).Bool("added", added).Msg("Push token saved")
	return added, nil
}

// BusTokenSource asks a desktop device for its delivery token
type BusTokenSource struct {
	bus      Bus
	deviceID string
}

func NewBusTokenSource(bus Bus, deviceID string) *BusTokenSource {
	return &BusTokenSource{bus: bus, deviceID: deviceID}
}

func (s *BusTokenSource) Token(ctx context.Context) (string, error) {
	resp, err := s.bus.Request(ctx, desktopSubject(s.deviceID, "token"), nil)
	if err != nil {
		return "", err
	}
	var answer struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp, &answer); err != nil {
		return "", fmt.Errorf("decode token answer: %w", err)
	}
	return answer.Token, nil
}
