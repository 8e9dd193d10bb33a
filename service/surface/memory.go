package surface

import (
	"sync"
)

// Memory is an in-process Surface that records overlay activity. It is used
// by tests and by hosts that drive the wallet pages themselves.
type Memory struct {
	mu       sync.Mutex
	attached []Overlay
	history  []string
	onAttach func(Overlay)
}

type memoryOverlay struct {
	url string
}

func (o *memoryOverlay) URL() string { return o.url }

// NewMemory creates an empty in-memory surface.
func NewMemory() *Memory {
	return &Memory{}
}

// OnAttach registers a callback run (in its own goroutine) each time an
// overlay is attached, letting tests play the remote page's part.
func (m *Memory) OnAttach(fn func(Overlay)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAttach = fn
}

func (m *Memory) CreateOverlay(url string) (Overlay, error) {
	return &memoryOverlay{url: url}, nil
}

func (m *Memory) Attach(o Overlay) error {
	m.mu.Lock()
	m.attached = append(m.attached, o)
	m.history = append(m.history, "attach "+o.URL())
	fn := m.onAttach
	m.mu.Unlock()

	if fn != nil {
		go fn(o)
	}
	return nil
}

func (m *Memory) Detach(o Overlay) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.attached {
		if a == o {
			m.attached = append(m.attached[:i], m.attached[i+1:]...)
			m.history = append(m.history, "detach "+o.URL())
			return nil
		}
	}
	return nil
}

// Attached returns the URLs of overlays currently attached.
func (m *Memory) Attached() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	urls := make([]string, len(m.attached))
	for i, o := range m.attached {
		urls[i] = o.URL()
	}
	return urls
}

// History returns every attach and detach in order.
func (m *Memory) History() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.history...)
}

// LocalChannel is an in-process MessageChannel.
type LocalChannel struct {
	mu   sync.Mutex
	subs map[string][]*localSub
}

type localSub struct {
	ch     *LocalChannel
	event  string
	match  func(Message) bool
	handle func(Message)
	once   sync.Once
}

// NewLocalChannel creates an empty in-process message channel.
func NewLocalChannel() *LocalChannel {
	return &LocalChannel{subs: make(map[string][]*localSub)}
}

func (c *LocalChannel) SubscribeOnce(event string, match func(Message) bool, handle func(Message)) (Subscription, error) {
	s := &localSub{ch: c, event: event, match: match, handle: handle}
	c.mu.Lock()
	c.subs[event] = append(c.subs[event], s)
	c.mu.Unlock()
	return s, nil
}

// Post delivers msg to the subscribers of event. It returns the number of
// handlers that fired.
func (c *LocalChannel) Post(event string, msg Message) int {
	c.mu.Lock()
	var fired []*localSub
	kept := c.subs[event][:0]
	for _, s := range c.subs[event] {
		if s.match == nil || s.match(msg) {
			fired = append(fired, s)
			continue
		}
		kept = append(kept, s)
	}
	c.subs[event] = kept
	c.mu.Unlock()

	for _, s := range fired {
		s.once.Do(func() { s.handle(msg) })
	}
	return len(fired)
}

// Subscribers returns the number of active subscriptions on event.
func (c *LocalChannel) Subscribers(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs[event])
}

func (s *localSub) Cancel() {
	s.once.Do(func() {})
	s.ch.mu.Lock()
	defer s.ch.mu.Unlock()
	subs := s.ch.subs[s.event]
	for i, other := range subs {
		if other == s {
			s.ch.subs[s.event] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}
