package popup

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"sync/atomic"
)

const backendOrigin = "https://market.example.edu"

type fakeWindow struct {
	closed      atomic.Bool
	closeCalled atomic.Int32
}

func (w *fakeWindow) Closed() bool { return w.closed.Load() }

func (w *fakeWindow) Close() error {
	w.closeCalled.Add(1)
	w.closed.Store(true)
	return nil
}

// fakeOpener hands out one window and runs onOpen right after opening with
// the nonce the driver put in the popup URL.
type fakeOpener struct {
	mu     sync.Mutex
	err    error
	win    *fakeWindow
	onOpen func(w *fakeWindow, nonce string)
	urls   []string
	sizes  []Size
}

func (o *fakeOpener) Open(_ context.Context, target string, size Size) (Window, error) {
	o.mu.Lock()
	o.urls = append(o.urls, target)
	o.sizes = append(o.sizes, size)
	o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	if o.win == nil {
		o.win = &fakeWindow{}
	}
	if o.onOpen != nil {
		o.onOpen(o.win, nonceOf(target))
	}
	return o.win, nil
}

// lastNonce is the nonce of the most recently opened popup, or "".
func (o *fakeOpener) lastNonce() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.urls) == 0 {
		return ""
	}
	return nonceOf(o.urls[len(o.urls)-1])
}

func testURL(provider, state, nonce string) (string, error) {
	q := url.Values{"state": {state}, "reply": {nonce}}
	return backendOrigin + "/auth/" + provider + "?" + q.Encode(), nil
}

func nonceOf(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	return u.Query().Get("reply")
}

func msg(origin, nonce string, v any) Message {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return Message{Origin: origin, Nonce: nonce, Data: b}
}
