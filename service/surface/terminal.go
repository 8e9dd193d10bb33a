package surface

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Terminal is a Surface for command line hosts. Attaching an overlay prints
// its URL so the user can open it in a browser; detaching prints a notice.
type Terminal struct {
	mu       sync.Mutex
	out      io.Writer
	logger   *slog.Logger
	attached map[*terminalOverlay]struct{}
}

type terminalOverlay struct {
	url string
}

func (o *terminalOverlay) URL() string { return o.url }

// NewTerminal creates a terminal surface writing to out.
func NewTerminal(out io.Writer, logger *slog.Logger) *Terminal {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Terminal{
		out:      out,
		logger:   logger,
		attached: make(map[*terminalOverlay]struct{}),
	}
}

func (t *Terminal) CreateOverlay(url string) (Overlay, error) {
	if url == "" {
		return nil, fmt.Errorf("overlay url is required")
	}
	return &terminalOverlay{url: url}, nil
}

func (t *Terminal) Attach(o Overlay) error {
	ov, ok := o.(*terminalOverlay)
	if !ok {
		return fmt.Errorf("overlay %T was not created by this surface", o)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.attached[ov]; ok {
		return nil
	}
	t.attached[ov] = struct{}{}

	fmt.Fprintf(t.out, "→ Open this page to continue:\n  %s\n", ov.url)
	t.logger.Debug("overlay attached", "url", ov.url)
	return nil
}

func (t *Terminal) Detach(o Overlay) error {
	ov, ok := o.(*terminalOverlay)
	if !ok {
		return fmt.Errorf("overlay %T was not created by this surface", o)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.attached[ov]; !ok {
		return nil
	}
	delete(t.attached, ov)

	fmt.Fprintf(t.out, "✓ Done with %s\n", ov.url)
	t.logger.Debug("overlay detached", "url", ov.url)
	return nil
}
