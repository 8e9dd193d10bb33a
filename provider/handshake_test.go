package provider

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brojonat/custodian/service/config"
	"github.com/brojonat/custodian/service/surface"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_Approved(t *testing.T) {
	h := newHarness(t)
	h.approveSignIn("addr1")

	accounts, err := h.provider.Connect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"addr1", "addr2"}, accounts)
	assert.True(t, h.provider.IsConnected())
	assert.Equal(t, 1, h.wallet.accountCallCount())

	history := h.surface.History()
	require.Len(t, history, 2)
	assert.Contains(t, history[0], "attach "+h.server.URL+"/authn?")
	assert.Contains(t, history[0], "l6n=https%3A%2F%2Fdapp.example.com")
	assert.Contains(t, history[0], "challenge=")
	assert.Contains(t, history[1], "detach "+h.server.URL+"/authn?")
	assert.Empty(t, h.surface.Attached())
	assert.NotEqual(t, surface.EventMessage, h.signInEvent())
	assert.Equal(t, 0, h.channel.Subscribers(h.signInEvent()))

	n, err := testutil.GatherAndCount(h.registry, "provider_handshakes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestConnect_ReusesSession(t *testing.T) {
	h := newHarness(t)
	h.approveSignIn("addr1")

	_, err := h.provider.Connect(context.Background())
	require.NoError(t, err)
	_, err = h.provider.Connect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, h.attachCount("/authn?"))
	assert.Equal(t, 2, h.wallet.accountCallCount())
}

func TestConnect_Canceled(t *testing.T) {
	h := newHarness(t)
	h.onSignIn(surface.Message{Origin: h.server.URL, Type: surface.TypeChallengeCancel})

	_, err := h.provider.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, err == ErrHandshakeCanceled)

	assert.False(t, h.provider.IsConnected())
	assert.Empty(t, h.surface.Attached())
	assert.Equal(t, 0, h.channel.Subscribers(h.signInEvent()))
	assert.Equal(t, 0, h.wallet.accountCallCount())
}

func TestConnect_MissingCode(t *testing.T) {
	h := newHarness(t)
	h.onSignIn(surface.Message{Origin: h.server.URL, Type: surface.TypeChallengeResponse, Addr: "addr1"})

	_, err := h.provider.Connect(context.Background())
	assert.ErrorIs(t, err, ErrMalformedChallenge)
	assert.False(t, h.provider.IsConnected())
}

func TestHandshake_IgnoresForeignMessages(t *testing.T) {
	h := newHarness(t)

	var ignored atomic.Int32
	h.surface.OnAttach(func(o surface.Overlay) {
		event := surface.ReplyEvent(o.URL())
		ignored.Add(int32(1 - h.channel.Post(event, surface.Message{
			Origin: "https://evil.example.com",
			Type:   surface.TypeChallengeResponse,
			Code:   "stolen",
			Addr:   "evil",
		})))
		ignored.Add(int32(1 - h.channel.Post(event, surface.Message{
			Origin: h.server.URL,
			Type:   "SOMETHING::ELSE",
		})))
		ignored.Add(int32(1 - h.channel.Post(surface.EventMessage, surface.Message{
			Origin: h.server.URL,
			Type:   surface.TypeChallengeResponse,
			Code:   "unaddressed",
			Addr:   "other",
		})))
		h.channel.Post(event, surface.Message{
			Origin: h.server.URL + "/",
			Type:   surface.TypeChallengeResponse,
			Code:   "code-1",
			Addr:   "addr1",
		})
	})

	accounts, err := h.provider.Accounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"addr1"}, accounts)
	assert.Equal(t, int32(3), ignored.Load())
}

func TestHandshake_ReplyReachesOnlyItsProvider(t *testing.T) {
	h := newHarness(t)
	h.onSignIn(surface.Message{
		Origin: h.server.URL,
		Type:   surface.TypeChallengeResponse,
		Code:   "code-of-a",
		Addr:   "addrA",
	})

	// Another provider shares the message channel and waits on its own page,
	// which never replies.
	otherSurface := surface.NewMemory()
	shown := make(chan struct{}, 1)
	otherSurface.OnAttach(func(surface.Overlay) { shown <- struct{}{} })
	other, err := New(Options{
		Network:  string(config.Localnet),
		Server:   h.server.URL,
		Surface:  otherSurface,
		Messages: h.channel,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	otherErr := make(chan error, 1)
	go func() { otherErr <- other.ensureConnected(ctx) }()

	select {
	case <-shown:
	case <-time.After(time.Second):
		t.Fatal("sign-in page was not shown")
	}

	require.NoError(t, h.provider.ensureConnected(context.Background()))
	code, accounts := h.provider.session.snapshot()
	assert.Equal(t, "code-of-a", code)
	assert.Equal(t, []string{"addrA"}, accounts)

	assert.False(t, other.IsConnected())
	cancel()
	assert.ErrorIs(t, <-otherErr, context.Canceled)
	assert.False(t, other.IsConnected())
	otherCode, otherAccounts := other.session.snapshot()
	assert.Empty(t, otherCode)
	assert.Empty(t, otherAccounts)
}

func TestHandshake_ContextCanceled(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := h.provider.Connect(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.False(t, h.provider.IsConnected())
	assert.Empty(t, h.surface.Attached())
	assert.Equal(t, 0, h.channel.Subscribers(h.signInEvent()))
}

func TestHandshake_SingleTransition(t *testing.T) {
	c := newChallenge()
	c.resolve(surface.Message{Type: surface.TypeChallengeCancel})
	c.resolve(surface.Message{Type: surface.TypeChallengeResponse, Code: "late"})

	assert.Equal(t, int32(stateCanceled), c.state.Load())
	m := <-c.outcome
	assert.Equal(t, surface.TypeChallengeCancel, m.Type)
	assert.Empty(t, c.outcome)
}

func TestHandshake_NoSurface(t *testing.T) {
	p, err := New(Options{Network: "devnet"})
	require.NoError(t, err)

	_, err = p.Connect(context.Background())
	assert.True(t, err == ErrNoSurface)
}

func TestHandshake_NoServer(t *testing.T) {
	t.Setenv("CUSTODIAN_SERVER_URL", "")
	p, err := New(Options{
		Network:  "localnet",
		Surface:  surface.NewMemory(),
		Messages: surface.NewLocalChannel(),
	})
	require.NoError(t, err)

	_, err = p.Connect(context.Background())
	assert.ErrorIs(t, err, ErrNoServer)
}

func TestEnsureConnected_SingleHandshake(t *testing.T) {
	h := newHarness(t)

	release := make(chan struct{})
	h.surface.OnAttach(func(o surface.Overlay) {
		<-release
		h.channel.Post(surface.ReplyEvent(o.URL()), surface.Message{
			Origin: h.server.URL,
			Type:   surface.TypeChallengeResponse,
			Code:   "code-1",
			Addr:   "addr1",
		})
	})

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = h.provider.ensureConnected(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool {
		return h.attachCount("/authn?") == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, h.channel.Subscribers(h.signInEvent()))
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, h.attachCount("/authn?"))
	assert.True(t, h.provider.IsConnected())
}
