package stream

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"stakeledger/core/types"
	"stakeledger/native/staking"
)

func TestHubFiltersAndDrops(t *testing.T) {
	hub := NewHub(1, nil)
	ch, cancel := hub.Subscribe(Filter{Types: map[string]struct{}{staking.EventTypeRewardsClaimed: {}}})
	defer cancel()

	hub.Emit(staking.WrapEvent(&types.Event{Type: staking.EventTypePoolFunded}))
	hub.Emit(staking.WrapEvent(&types.Event{Type: staking.EventTypeRewardsClaimed, Attributes: map[string]string{"amount": "1"}}))
	hub.Emit(staking.WrapEvent(&types.Event{Type: staking.EventTypeRewardsClaimed, Attributes: map[string]string{"amount": "2"}}))

	msg := <-ch
	require.Equal(t, "1", msg.Attributes["amount"])
	select {
	case extra := <-ch:
		t.Fatalf("expected overflow to be dropped, got %v", extra)
	default:
	}

	cancel()
	cancel()
	require.Equal(t, 0, hub.Subscribers())
}

func TestHubStreamsOverWebsocket(t *testing.T) {
	hub := NewHub(8, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?account=stake1alice"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Emit(staking.WrapEvent(&types.Event{Type: staking.EventTypeStakeCreated, Attributes: map[string]string{"account": "stake1bob"}}))
	hub.Emit(staking.WrapEvent(&types.Event{Type: staking.EventTypeStakeCreated, Attributes: map[string]string{"account": "stake1alice", "recordId": "4"}}))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	require.Equal(t, staking.EventTypeStakeCreated, msg.Type)
	require.Equal(t, "4", msg.Attributes["recordId"])
}
