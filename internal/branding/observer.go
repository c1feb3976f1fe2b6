package branding

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/tenant-branding-service/internal/model"
)

// BrandingResolver is satisfied by *Resolver
type BrandingResolver interface {
	Resolve(ctx context.Context, tenantID string) model.BrandingRecord
}

// State is what an Observer exposes to its consumers
type State struct {
	BrandName string `json:"brand_name"`
	LogoURL   string `json:"logo_url"`
	IsLoading bool   `json:"is_loading"`
}

func readyState(rec model.BrandingRecord) State {
	return State{BrandName: rec.BrandName, LogoURL: rec.LogoURL}
}

// Observer keeps the branding of the caller's current tenant up to date.
//
// Every change of tenant starts a resolution tagged with a new generation.
// A resolution only lands if its generation is still the latest one issued,
// so a slow lookup for an old tenant can never overwrite a newer result.
type Observer struct {
	resolver BrandingResolver

	mu       sync.Mutex
	known    bool
	tenantID string
	gen      uint64
	state    State
	subs     map[int]chan State
	nextSub  int

	inflight sync.WaitGroup
}

// NewObserver returns an Observer in the idle state with default branding
func NewObserver(resolver BrandingResolver) *Observer {
	return &Observer{
		resolver: resolver,
		state:    readyState(model.DefaultBranding()),
		subs:     make(map[int]chan State),
	}
}

// SetTenant points the observer at tenantID ("" for no tenant). Setting the
// current tenant again is a no-op. The resolution runs in the background;
// the previous branding stays visible with IsLoading set until it lands.
func (o *Observer) SetTenant(ctx context.Context, tenantID string) {
	o.mu.Lock()
	if o.known && o.tenantID == tenantID {
		o.mu.Unlock()
		return
	}
	o.known = true
	o.tenantID = tenantID
	o.gen++
	gen := o.gen
	o.state.IsLoading = true
	o.publishLocked()
	o.mu.Unlock()

	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()
		rec := o.resolver.Resolve(ctx, tenantID)
		o.complete(gen, tenantID, rec)
	}()
}

func (o *Observer) complete(gen uint64, tenantID string, rec model.BrandingRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.gen {
		log.Debug().
			Str("tenant_id", tenantID).
			Uint64("generation", gen).
			Uint64("latest", o.gen).
			Msg("Discarding stale branding resolution")
		return
	}
	o.state = readyState(rec)
	o.publishLocked()
}

// State returns the current branding snapshot
func (o *Observer) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// TenantID returns the tenant the observer is currently bound to
func (o *Observer) TenantID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tenantID
}

// Subscribe returns a channel that always holds the most recent state.
// Intermediate states may be skipped by slow readers. cancel closes the channel.
func (o *Observer) Subscribe() (<-chan State, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextSub
	o.nextSub++
	ch := make(chan State, 1)
	ch <- o.state
	o.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// publishLocked replaces whatever each subscriber has not read yet with the
// current state. Callers hold o.mu, which makes the send non-blocking.
func (o *Observer) publishLocked() {
	for _, ch := range o.subs {
		select {
		case <-ch:
		default:
		}
		ch <- o.state
	}
}

// Wait blocks until every resolution started so far has finished
func (o *Observer) Wait() {
	o.inflight.Wait()
}
