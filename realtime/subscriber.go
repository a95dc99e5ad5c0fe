package realtime

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/teamforge/authedge/core"
)

// maxEventSize is the maximum allowed size for a single hub event (64KB)
const maxEventSize = 64 * 1024

// State describes where the subscriber is in its connection lifecycle.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "idle"
	}
}

// Message is one event delivered by the hub.
type Message struct {
	Event string
	Data  []byte
}

// RenewFunc attempts a silent credential renewal and returns the re-minted
// realtime authorization. An empty token with a nil error means the issuer
// did not re-mint one; the subscriber keeps its current token.
type RenewFunc func(ctx context.Context) (string, error)

// Config configures a Subscriber.
type Config struct {
	HubURL string
	Topics []string
	// Token is the current realtime authorization, sent as a cookie on the
	// subscription request.
	Token string
	// Renew is called after every stream error before reconnecting. When
	// nil, every stream error is treated as an expired session.
	Renew RenewFunc
	// OnMessage receives hub events while the stream is open.
	OnMessage func(Message)
	// OnExpired fires exactly once, when renewal after a stream error fails.
	OnExpired func()
	Client    *http.Client
	Log       *slog.Logger
}

// Subscriber maintains a standing server-push subscription against the hub.
// Its lifecycle is Connecting -> Open -> (message* | error). A stream error
// tears the channel down and triggers a renewal; success reconnects against
// the same topic set, failure invokes the expired callback and stops.
type Subscriber struct {
	hubURL    string
	topics    []string
	token     string
	renew     RenewFunc
	onMessage func(Message)
	onExpired func()
	client    *http.Client
	log       *slog.Logger

	state atomic.Int32
}

// NewSubscriber creates a subscriber for the given topic set.
func NewSubscriber(cfg Config) *Subscriber {
	client := cfg.Client
	if client == nil {
		// No client timeout: the subscription is a long-lived stream.
		client = &http.Client{}
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	renew := cfg.Renew
	if renew == nil {
		// Without a renewal path every stream error is terminal.
		renew = func(context.Context) (string, error) {
			return "", core.ErrUnauthorized
		}
	}
	return &Subscriber{
		hubURL:    cfg.HubURL,
		topics:    cfg.Topics,
		token:     cfg.Token,
		renew:     renew,
		onMessage: cfg.OnMessage,
		onExpired: cfg.OnExpired,
		client:    client,
		log:       log,
	}
}

// State returns the subscriber's current lifecycle state.
func (s *Subscriber) State() State {
	return State(s.state.Load())
}

func (s *Subscriber) setState(state State) {
	s.state.Store(int32(state))
}

// Run connects and streams until the context is cancelled or renewal fails.
// Reconnects are unbounded; the only pacing is the renewal round-trip.
// Cancellation closes the subscription immediately without the expired
// callback; no delivery is guaranteed afterwards.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		s.setState(StateConnecting)

		err := s.stream(ctx)
		if ctx.Err() != nil {
			s.setState(StateClosed)
			return ctx.Err()
		}
		s.log.Debug("realtime stream interrupted", "error", err)

		// Renew before reconnecting: an expired realtime authorization is
		// the usual reason the hub dropped us.
		token, rerr := s.renew(ctx)
		if rerr != nil {
			s.setState(StateClosed)
			if s.onExpired != nil {
				s.onExpired()
			}
			return rerr
		}
		if token != "" {
			s.token = token
		}
	}
}

func (s *Subscriber) stream(ctx context.Context) error {
	u, err := url.Parse(s.hubURL)
	if err != nil {
		return fmt.Errorf("invalid hub URL: %w", err)
	}
	q := u.Query()
	for _, topic := range s.topics {
		q.Add("topic", topic)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build subscription request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if s.token != "" {
		req.AddCookie(&http.Cookie{Name: core.CookieRealtime, Value: s.token})
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return core.MapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: hub rejected subscription with status %d", core.ErrUnauthorized, resp.StatusCode)
	}

	s.setState(StateOpen)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 4096), maxEventSize)

	event := ""
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) > 0 && s.onMessage != nil {
				s.onMessage(Message{
					Event: event,
					Data:  []byte(strings.Join(data, "\n")),
				})
			}
			event = ""
			data = nil
		case strings.HasPrefix(line, "event:"):
			event = fieldValue(line, "event:")
		case strings.HasPrefix(line, "data:"):
			data = append(data, fieldValue(line, "data:"))
		case strings.HasPrefix(line, ":"):
			// keepalive comment
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read failed: %w", err)
	}

	// The remote ending the stream is an error transition too.
	return fmt.Errorf("hub closed the stream")
}

// fieldValue strips the field name and the single optional space after the
// colon. Any further whitespace belongs to the payload.
func fieldValue(line, field string) string {
	return strings.TrimPrefix(strings.TrimPrefix(line, field), " ")
}
