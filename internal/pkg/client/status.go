package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/api"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/gorilla/websocket"
)

// HookToStatus subscribes to status pushes of the audio job. The returned
// func closes the connection, the channel is closed after that
func (c *Client) HookToStatus(ctx context.Context, audioID string) (<-chan api.AudioStatus, func(), error) {
	wsURL := "ws" + strings.TrimPrefix(c.statusURL, "http") + "/subscribe"
	goapp.Log.Info().Str("url", wsURL).Str("ID", audioID).Msg("connect")
	conn, err := goapp.InvokeWithBackoff(ctx, func() (*websocket.Conn, bool, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		return conn, ctx.Err() == nil && goapp.IsRetryableErr(err), err
	}, c.backoff())
	if err != nil {
		return nil, nil, fmt.Errorf("can't dial to status URL: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(audioID)); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("can't subscribe: %w", err)
	}

	res := make(chan api.AudioStatus, 2)
	closeCtx, cf := context.WithCancel(ctx)
	readDone := make(chan struct{})
	go func() {
		defer close(res)
		defer close(readDone)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				goapp.Log.Debug().Err(err).Msg("socket read")
				return
			}
			var st api.AudioStatus
			if err := json.Unmarshal(message, &st); err != nil {
				goapp.Log.Error().Err(err).Msg("can't unmarshal status data")
				return
			}
			select {
			case res <- st:
			case <-closeCtx.Done():
				return
			}
		}
	}()
	go func() {
		<-closeCtx.Done()
		err := conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		if err != nil {
			goapp.Log.Debug().Err(err).Msg("socket close write")
		}
		select {
		case <-readDone:
		case <-time.After(2 * time.Second):
		}
		if err := conn.Close(); err != nil {
			goapp.Log.Debug().Err(err).Msg("socket close")
		}
	}()
	return res, cf, nil
}
