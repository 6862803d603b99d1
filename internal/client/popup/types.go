package popup

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrPopupBlocked is returned by an Opener when the environment refused
	// to open the window.
	ErrPopupBlocked = errors.New("popup blocked")
	// ErrMalformedMessage means a message from the trusted origin could not
	// be understood.
	ErrMalformedMessage = errors.New("malformed handshake message")
)

// Reasons attached to non-success outcomes produced by the driver itself.
const (
	ReasonPopupBlocked = "popup-blocked"
	ReasonPopupClosed  = "popup-closed"
	ReasonTimedOut     = "timed-out"
)

type Kind int

const (
	Success Kind = iota + 1
	Rejected
	Cancelled
	TimedOut
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Rejected:
		return "rejected"
	case Cancelled:
		return "cancelled"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Outcome is the single result of a handshake. User and Token are set only
// for Success; RequiresEmail, EmailUnverified and ProfileURL only for Rejected.
type Outcome struct {
	Kind     Kind
	Provider string

	User  json.RawMessage
	Token string

	Reason          string
	RequiresEmail   bool
	EmailUnverified bool
	ProfileURL      string
}

// Size is the popup viewport in CSS pixels.
type Size struct {
	Width  int
	Height int
}

// DefaultSize is the fixed viewport used for provider sign-in pages.
var DefaultSize = Size{Width: 500, Height: 600}

// Window is an opened popup.
type Window interface {
	Closed() bool
	Close() error
}

// Opener opens popups. It returns ErrPopupBlocked (possibly wrapped) when
// the window could not be created.
type Opener interface {
	Open(ctx context.Context, url string, size Size) (Window, error)
}

// Message is one cross-window message. Origin is whatever the transport
// reported as the sender's origin and Nonce is the handshake address the
// sender posted to; neither is trusted until compared.
type Message struct {
	Origin string
	Nonce  string
	Data   []byte
}

// Filter decides whether a subscriber wants a message. A nil Filter accepts
// everything.
type Filter func(Message) bool

// MessageSource delivers messages to subscribers until they unsubscribe.
// Messages rejected by accept never reach the subscriber's buffer.
type MessageSource interface {
	Subscribe(buffer int, accept Filter) (<-chan Message, func())
}
