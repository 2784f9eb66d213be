package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"grail_maker/internal/models"
)

const (
	// IdentityCookie кука сессии, которую выдаёт биржа после логина.
	IdentityCookie = ".AspNetCore.Identity.Application"

	defaultBaseURL   = "https://tinygrail.com"
	defaultUserAgent = "grail_maker/1.0"
	// chartsSince все графики берём с начала торгов.
	chartsSince = "2019-08-08"
)

type Config struct {
	BaseURL   string
	Identity  string
	UserAgent string
	Timeout   time.Duration
}

// Client HTTP-клиент биржи. Безопасен для конкурентного использования
// несколькими сессиями.
type Client struct {
	http    *http.Client
	baseURL string
	ua      string
	log     *zap.Logger

	mu                sync.RWMutex
	identity          string
	onIdentityRefresh []func(string)
}

var _ Gateway = (*Client)(nil)

func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		http:     &http.Client{Timeout: cfg.Timeout},
		baseURL:  cfg.BaseURL,
		ua:       cfg.UserAgent,
		log:      log,
		identity: cfg.Identity,
	}
}

func (c *Client) Identity() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// OnIdentityRefresh вызывается, когда биржа выдала новую куку.
func (c *Client) OnIdentityRefresh(f func(identity string)) {
	c.mu.Lock()
	c.onIdentityRefresh = append(c.onIdentityRefresh, f)
	c.mu.Unlock()
}

func (c *Client) captureIdentity(resp *http.Response) {
	for _, ck := range resp.Cookies() {
		if ck.Name != IdentityCookie || ck.Value == "" {
			continue
		}
		c.mu.Lock()
		if ck.Value == c.identity {
			c.mu.Unlock()
			return
		}
		c.identity = ck.Value
		callbacks := append([]func(string){}, c.onIdentityRefresh...)
		c.mu.Unlock()

		for _, f := range callbacks {
			f(ck.Value)
		}
		return
	}
}

func (c *Client) call(ctx context.Context, op, method, path string) (envelope, error) {
	identity := c.Identity()
	if identity == "" {
		return envelope{}, errors.Wrap(ErrUnauthenticated, op)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return envelope{}, errors.Wrapf(err, "%s: build request", op)
	}
	req.AddCookie(&http.Cookie{Name: IdentityCookie, Value: identity})
	req.Header.Set("User-Agent", c.ua)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return envelope{}, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.captureIdentity(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope{}, &TransportError{Op: op, Err: err}
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return envelope{}, errors.Wrapf(ErrUnauthenticated, "%s: http %d", op, resp.StatusCode)
	case resp.StatusCode/100 != 2:
		return envelope{}, &TransportError{Op: op, Err: fmt.Errorf("http %d: %s", resp.StatusCode, string(body))}
	}

	var env envelope
	if err := sonic.Unmarshal(body, &env); err != nil {
		return envelope{}, errors.Wrapf(ErrSchemaMismatch, "%s: %v", op, err)
	}
	return env, nil
}

// get читает Value в out. State != 0 на чтении тоже считаем несовпадением схемы.
func (c *Client) get(ctx context.Context, op, path string, out any) error {
	env, err := c.call(ctx, op, http.MethodGet, path)
	if err != nil {
		return err
	}
	if env.State != 0 {
		return errors.Wrapf(ErrSchemaMismatch, "%s: state=%d msg=%s", op, env.State, env.Message)
	}
	if err := sonic.Unmarshal(env.Value, out); err != nil {
		return errors.Wrapf(ErrSchemaMismatch, "%s: %v", op, err)
	}
	return nil
}

// mutate возвращает false, если биржа не подтвердила операцию.
func (c *Client) mutate(ctx context.Context, op, path string) (bool, error) {
	env, err := c.call(ctx, op, http.MethodPost, path)
	if err != nil {
		return false, err
	}
	if env.State != 0 {
		c.log.Warn("mutation not confirmed",
			zap.String("op", op),
			zap.Int("state", env.State),
			zap.String("message", env.Message),
		)
		return false, nil
	}
	return true, nil
}

func (c *Client) FetchPosition(ctx context.Context, instrument int64) (models.Position, error) {
	var p userCharacterPayload
	if err := c.get(ctx, "fetch position", fmt.Sprintf("/api/chara/user/%d", instrument), &p); err != nil {
		return models.Position{}, err
	}
	return p.toPosition()
}

// FetchInstrumentInfo возвращает nil без ошибки, если не удалось понять,
// ICO это или рынок.
func (c *Client) FetchInstrumentInfo(ctx context.Context, instrument int64) (models.InstrumentInfo, error) {
	var p characterPayload
	if err := c.get(ctx, "fetch instrument info", fmt.Sprintf("/api/chara/%d", instrument), &p); err != nil {
		return nil, err
	}
	switch {
	case p.isMarket():
		info, err := p.toMarket()
		if err != nil {
			return nil, err
		}
		return info, nil
	case p.isOffering():
		myBacked, err := c.fetchMyBacked(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		info, err := p.toOffering(myBacked)
		if err != nil {
			return nil, err
		}
		return info, nil
	default:
		c.log.Warn("instrument variant unknown", zap.Int64("instrument", instrument))
		return nil, nil
	}
}

// fetchMyBacked сколько аккаунт вложил в ICO. Не участвовал значит ноль.
func (c *Client) fetchMyBacked(ctx context.Context, offeringID int64) (decimal.Decimal, error) {
	env, err := c.call(ctx, "fetch my backed", http.MethodGet, fmt.Sprintf("/api/chara/initial/%d", offeringID))
	if err != nil {
		return decimal.Zero, err
	}
	if env.State != 0 || len(env.Value) == 0 || string(env.Value) == "null" {
		return decimal.Zero, nil
	}
	var p initialPayload
	if err := sonic.Unmarshal(env.Value, &p); err != nil {
		return decimal.Zero, errors.Wrapf(ErrSchemaMismatch, "fetch my backed: %v", err)
	}
	return p.Amount, nil
}

func (c *Client) FetchCharts(ctx context.Context, instrument int64) ([]models.ChartPoint, error) {
	var raw []chartPayload
	if err := c.get(ctx, "fetch charts", fmt.Sprintf("/api/chara/charts/%d/%s", instrument, chartsSince), &raw); err != nil {
		return nil, err
	}
	points := make([]models.ChartPoint, 0, len(raw))
	for _, r := range raw {
		p, err := r.toPoint()
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

func (c *Client) FetchDepth(ctx context.Context, instrument int64) (models.Depth, error) {
	var p depthPayload
	if err := c.get(ctx, "fetch depth", fmt.Sprintf("/api/chara/depth/%d", instrument), &p); err != nil {
		return models.Depth{}, err
	}
	return models.Depth{
		Bids: toLadder(models.SideBid, p.Bids),
		Asks: toLadder(models.SideAsk, p.Asks),
	}, nil
}

func (c *Client) CreateOrder(ctx context.Context, instrument int64, side models.Side, price decimal.Decimal, amount int64) (bool, error) {
	path := fmt.Sprintf("/api/chara/%s/%d/%s/%d", side, instrument, price.String(), amount)
	return c.mutate(ctx, "create "+string(side), path)
}

func (c *Client) CancelOrder(ctx context.Context, order models.Order) (bool, error) {
	if order.ID == 0 {
		c.log.Warn("cancel without remote id", zap.Stringer("order", order))
		return false, nil
	}
	path := fmt.Sprintf("/api/chara/%s/cancel/%d", order.Side, order.ID)
	return c.mutate(ctx, "cancel "+string(order.Side), path)
}
