package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"grail_maker/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(Config{BaseURL: srv.URL, Identity: "secret"}, zaptest.NewLogger(t))
	return c, srv
}

func TestFetchPosition(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chara/user/42" {
			t.Errorf("path = %s", r.URL.Path)
		}
		ck, err := r.Cookie(IdentityCookie)
		if err != nil || ck.Value != "secret" {
			t.Errorf("identity cookie missing: %v", err)
		}
		_, _ = w.Write([]byte(`{"State":0,"Value":{"Amount":3,"Total":5,
			"Bids":[{"Id":7,"Price":10.5,"Amount":2,"Type":0}],
			"Asks":[{"Id":8,"Price":12,"Amount":2,"Type":0}]}}`))
	})

	p, err := c.FetchPosition(context.Background(), 42)
	if err != nil {
		t.Fatalf("FetchPosition: %v", err)
	}
	if p.Amount != 3 || p.TotalHolding != 5 {
		t.Errorf("amount/total = %d/%d, want 3/5", p.Amount, p.TotalHolding)
	}
	if len(p.Bids) != 1 || p.Bids[0].ID != 7 || !p.Bids[0].Price.Equal(decimal.RequireFromString("10.5")) {
		t.Errorf("bids = %v", p.Bids)
	}
	if len(p.Asks) != 1 || p.Asks[0].Side != models.SideAsk {
		t.Errorf("asks = %v", p.Asks)
	}
}

func TestFetchPositionSchemaMismatch(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"State":0,"Value":{"Bids":[]}}`))
	})

	_, err := c.FetchPosition(context.Background(), 1)
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("err = %v, want ErrSchemaMismatch", err)
	}
	if IsRetriable(err) {
		t.Error("schema mismatch must not be retriable")
	}
}

func TestFetchInstrumentInfoVariants(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantKind string
	}{
		{
			name:     "market",
			body:     `{"State":0,"Value":{"Id":1,"Name":"A","Current":12.3,"Total":1000,"Rate":0.25,"Price":10,"LastOrder":"2020-05-01T10:00:00","LastDeal":"2020-05-01T10:00:01+08:00","Sacrifices":3}}`,
			wantKind: "market",
		},
		{
			name:     "offering",
			body:     `{"State":0,"Value":{"Id":9,"Name":"B","Total":5000.5,"Users":12,"Begin":"2020-05-01T10:00:00","End":"2020-05-02T10:00:00"}}`,
			wantKind: "offering",
		},
		{
			name:     "unknown",
			body:     `{"State":0,"Value":{"Id":3,"Name":"C"}}`,
			wantKind: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/api/chara/initial/9" {
					_, _ = w.Write([]byte(`{"State":0,"Value":{"Amount":150}}`))
					return
				}
				_, _ = w.Write([]byte(tt.body))
			})

			info, err := c.FetchInstrumentInfo(context.Background(), 1)
			if err != nil {
				t.Fatalf("FetchInstrumentInfo: %v", err)
			}
			switch v := info.(type) {
			case models.MarketInfo:
				if tt.wantKind != "market" {
					t.Fatalf("got market, want %q", tt.wantKind)
				}
				if !v.Rate.Equal(decimal.RequireFromString("0.25")) || v.GlobalHolding != 1000 || v.Sacrifices != 3 {
					t.Errorf("market info = %+v", v)
				}
			case models.OfferingInfo:
				if tt.wantKind != "offering" {
					t.Fatalf("got offering, want %q", tt.wantKind)
				}
				if v.Users != 12 || !v.MyBacked.Equal(decimal.NewFromInt(150)) {
					t.Errorf("offering info = %+v", v)
				}
			case nil:
				if tt.wantKind != "" {
					t.Fatalf("got nil, want %q", tt.wantKind)
				}
			}
		})
	}
}

func TestMutationRejectedIsNotError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/chara/ask/5/2.5/3" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"State":1,"Message":"insufficient"}`))
	})

	ok, err := c.CreateOrder(context.Background(), 5, models.SideAsk, decimal.RequireFromString("2.50"), 3)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if ok {
		t.Error("expected rejected mutation")
	}
}

func TestCancelOrder(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chara/bid/cancel/77" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"State":0,"Value":"ok"}`))
	})

	ok, err := c.CancelOrder(context.Background(), models.Order{ID: 77, Side: models.SideBid})
	if err != nil || !ok {
		t.Fatalf("CancelOrder = %v, %v", ok, err)
	}

	ok, err = c.CancelOrder(context.Background(), models.Order{Side: models.SideBid})
	if err != nil || ok {
		t.Errorf("cancel without id = %v, %v, want false, nil", ok, err)
	}
}

func TestUnauthenticated(t *testing.T) {
	t.Run("empty identity", func(t *testing.T) {
		c := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, nil)
		_, err := c.FetchDepth(context.Background(), 1)
		if !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("err = %v, want ErrUnauthenticated", err)
		}
		if !IsFatal(err) {
			t.Error("unauthenticated should be fatal")
		}
	})

	t.Run("http 401", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		_, err := c.FetchDepth(context.Background(), 1)
		if !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("err = %v, want ErrUnauthenticated", err)
		}
	})
}

func TestTransportError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.FetchCharts(context.Background(), 1)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *TransportError", err)
	}
	if !IsRetriable(err) || IsFatal(err) {
		t.Error("transport error should be retriable and not fatal")
	}
}

func TestIdentityRefresh(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: IdentityCookie, Value: "rotated"})
		_, _ = w.Write([]byte(`{"State":0,"Value":{"Bids":[],"Asks":[]}}`))
	})

	var got string
	c.OnIdentityRefresh(func(id string) { got = id })

	if _, err := c.FetchDepth(context.Background(), 1); err != nil {
		t.Fatalf("FetchDepth: %v", err)
	}
	if got != "rotated" || c.Identity() != "rotated" {
		t.Errorf("identity = %q, callback got %q", c.Identity(), got)
	}
}

func TestParseHubFrame(t *testing.T) {
	ids := parseHubFrame([]byte(`{"type":1,"target":"ReceiveMessage","arguments":[{"CharacterId":12},{"CharacterId":0}]}`))
	if len(ids) != 1 || ids[0] != 12 {
		t.Errorf("ids = %v, want [12]", ids)
	}
	if ids := parseHubFrame([]byte(`{"type":6}`)); len(ids) != 0 {
		t.Errorf("ping frame produced ids %v", ids)
	}
}
