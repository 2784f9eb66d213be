package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Хаб биржи говорит по SignalR JSON: кадры разделены 0x1e.
const recordSeparator = 0x1e

const reconnectPause = time.Second

type hubFrame struct {
	Type      int               `json:"type"`
	Target    string            `json:"target"`
	Arguments []json.RawMessage `json:"arguments"`
}

type activityPayload struct {
	CharacterID int64 `json:"CharacterId"`
}

// StreamActivity подписывается на хаб и отдаёт id персонажей, по которым
// что-то произошло. Канал закрывается по ctx или после исчерпания попыток
// переподключения. onState, если не nil, получает смену статуса соединения.
func (c *Client) StreamActivity(ctx context.Context, url string, onState func(connected bool)) <-chan int64 {
	if onState == nil {
		onState = func(bool) {}
	}
	ch := make(chan int64, 64)
	dialer := &websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	go func() {
		defer close(ch)
		retry := 0
		for {
			header := http.Header{}
			header.Set("User-Agent", c.ua)
			if id := c.Identity(); id != "" {
				header.Set("Cookie", IdentityCookie+"="+id)
			}

			conn, _, err := dialer.DialContext(ctx, url, header)
			if err != nil {
				retry++
				if retry > 8 || ctx.Err() != nil {
					c.log.Warn("activity stream gave up", zap.Error(err))
					return
				}
				if !sleepCtx(ctx, time.Duration(300*retry)*time.Millisecond) {
					return
				}
				continue
			}
			retry = 0
			c.log.Info("activity stream connected", zap.String("url", url))
			onState(true)

			c.readHub(ctx, conn, ch)
			onState(false)

			if !sleepCtx(ctx, reconnectPause) {
				return
			}
		}
	}()
	return ch
}

// sleepCtx false, если ctx отменили раньше, чем прошло d.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Client) readHub(ctx context.Context, conn *websocket.Conn, out chan<- int64) {
	defer conn.Close()

	handshake := append([]byte(`{"protocol":"json","version":1}`), recordSeparator)
	if err := conn.WriteMessage(websocket.TextMessage, handshake); err != nil {
		return
	}

	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		t := time.NewTicker(15 * time.Second)
		defer t.Stop()
		ping := append([]byte(`{"type":6}`), recordSeparator)
		for {
			select {
			case <-stopPing:
				return
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-t.C:
				_ = conn.WriteMessage(websocket.TextMessage, ping)
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		for _, raw := range bytes.Split(msg, []byte{recordSeparator}) {
			for _, id := range parseHubFrame(raw) {
				select {
				case out <- id:
				case <-ctx.Done():
					return
				default:
					// подписчик не успевает, следующий тик всё равно обновит состояние
				}
			}
		}
	}
}

func parseHubFrame(raw []byte) []int64 {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var f hubFrame
	if err := sonic.Unmarshal(raw, &f); err != nil || f.Type != 1 {
		return nil
	}
	var ids []int64
	for _, arg := range f.Arguments {
		var p activityPayload
		if err := sonic.Unmarshal(arg, &p); err == nil && p.CharacterID != 0 {
			ids = append(ids, p.CharacterID)
		}
	}
	return ids
}
