package v1

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storefront-cart/internal/domain"
	"storefront-cart/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventsHandler_StreamsPublishedEvents(t *testing.T) {
	broker := notify.NewBroker()
	h := NewEventsHandler(broker, 0)
	srv := httptest.NewServer(http.HandlerFunc(h.Stream))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	reader := bufio.NewReader(resp.Body)

	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)
	require.Eventually(t, func() bool { return broker.Len() == 1 }, time.Second, 5*time.Millisecond)

	broker.Publish(domain.Event{Kind: domain.EventCartMerged, Message: "Cart fully synced"})

	var frame []string
	for len(frame) < 2 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		frame = append(frame, line)
	}
	assert.Equal(t, "event: cart.merged", frame[0])
	assert.True(t, strings.HasPrefix(frame[1], "data: "))
	assert.Contains(t, frame[1], `"message":"Cart fully synced"`)

	cancel()
	assert.Eventually(t, func() bool { return broker.Len() == 0 }, time.Second, 5*time.Millisecond)
}
