package marketview

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"grail_maker/internal/gateway/gatewaytest"
	"grail_maker/internal/models"
)

const instrument = 7

type clock struct{ t time.Time }

func (c *clock) now() time.Time           { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newView(t *testing.T, fake *gatewaytest.Fake) (*MarketView, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	v, err := New(context.Background(), fake, instrument, WithClock(clk.now), WithThrottle(2*time.Second))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v, clk
}

func marketFake() *gatewaytest.Fake {
	fake := gatewaytest.New()
	fake.SetInfo(instrument, models.MarketInfo{Name: "A", Current: dec("12.345"), Rate: dec("0.25")})
	fake.SetPosition(instrument, models.Position{Amount: 10, TotalHolding: 10})
	fake.SetCharts(instrument, []models.ChartPoint{{Begin: dec("10")}, {Begin: dec("11")}})
	return fake
}

func TestNewForcesAllCategories(t *testing.T) {
	fake := marketFake()
	newView(t, fake)

	for _, name := range []string{"position", "info", "charts", "depth"} {
		if got := fake.Count(name); got != 1 {
			t.Errorf("%s fetched %d times, want 1", name, got)
		}
	}
}

func TestRespectSuppressesWithinWindow(t *testing.T) {
	fake := marketFake()
	v, clk := newView(t, fake)
	ctx := context.Background()

	clk.advance(time.Second)
	if err := v.Refresh(ctx, CategoryPosition, Respect()); err != nil {
		t.Fatal(err)
	}
	if got := fake.Count("position"); got != 1 {
		t.Errorf("position fetched %d times inside window, want 1", got)
	}

	clk.advance(time.Second)
	if err := v.Refresh(ctx, CategoryPosition, Respect()); err != nil {
		t.Fatal(err)
	}
	if got := fake.Count("position"); got != 2 {
		t.Errorf("position fetched %d times after window, want 2", got)
	}
}

func TestUpdateTwiceWithinWindow(t *testing.T) {
	fake := marketFake()
	v, clk := newView(t, fake)
	ctx := context.Background()
	categories := []string{"position", "info", "charts", "depth"}

	check := func(want int) {
		t.Helper()
		for _, name := range categories {
			if got := fake.Count(name); got != want {
				t.Errorf("%s fetched %d times, want %d", name, got, want)
			}
		}
	}

	clk.advance(2 * time.Second)
	if err := v.Update(ctx); err != nil {
		t.Fatal(err)
	}
	check(2)

	clk.advance(500 * time.Millisecond)
	if err := v.Update(ctx); err != nil {
		t.Fatal(err)
	}
	check(2)

	clk.advance(1500 * time.Millisecond)
	if err := v.Update(ctx); err != nil {
		t.Fatal(err)
	}
	check(3)
}

func TestForceResetsWindow(t *testing.T) {
	fake := marketFake()
	v, clk := newView(t, fake)
	ctx := context.Background()

	clk.advance(1500 * time.Millisecond)
	if err := v.Refresh(ctx, CategoryPosition, Force()); err != nil {
		t.Fatal(err)
	}
	if got := fake.Count("position"); got != 2 {
		t.Fatalf("forced refresh did not fetch: %d", got)
	}
	want := clk.t.Add(2 * time.Second)
	if !v.NextAllowed(CategoryPosition).Equal(want) {
		t.Errorf("next allowed = %v, want %v", v.NextAllowed(CategoryPosition), want)
	}

	// 2.5s от New, но только 1s от форса.
	clk.advance(time.Second)
	if err := v.Refresh(ctx, CategoryPosition, Respect()); err != nil {
		t.Fatal(err)
	}
	if got := fake.Count("position"); got != 2 {
		t.Errorf("respect refresh fetched inside reset window: %d", got)
	}
}

func TestCategoriesThrottleIndependently(t *testing.T) {
	fake := marketFake()
	v, clk := newView(t, fake)
	ctx := context.Background()

	clk.advance(time.Second)
	if err := v.Refresh(ctx, CategoryInfo, Force()); err != nil {
		t.Fatal(err)
	}
	clk.advance(1500 * time.Millisecond)
	if err := v.Update(ctx); err != nil {
		t.Fatal(err)
	}

	if got := fake.Count("position"); got != 2 {
		t.Errorf("position = %d, want 2", got)
	}
	if got := fake.Count("info"); got != 2 {
		t.Errorf("info = %d, want 2 (still throttled after force)", got)
	}
	if got := fake.Count("depth"); got != 2 {
		t.Errorf("depth = %d, want 2", got)
	}
}

func TestOnPhaseResolution(t *testing.T) {
	m := OnPhase(PhaseAfter)
	if m.At(PhaseBefore).IsForce() {
		t.Error("on_after must respect before the batch")
	}
	if !m.At(PhaseAfter).IsForce() {
		t.Error("on_after must force after the batch")
	}
	if !Force().At(PhaseBefore).IsForce() || Respect().At(PhaseAfter).IsForce() {
		t.Error("force/respect must not change with phase")
	}
}

func TestFundamental(t *testing.T) {
	v, _ := newView(t, marketFake())

	f, err := v.Fundamental(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !f.Equal(dec("2.5")) {
		t.Errorf("fundamental = %s, want 2.5", f)
	}
	r, err := v.FundamentalRounded(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r.StringFixed(2) != "2.50" {
		t.Errorf("rounded = %s, want 2.50", r.StringFixed(2))
	}
}

func TestPrices(t *testing.T) {
	v, _ := newView(t, marketFake())

	p, err := v.CurrentPriceRounded()
	if err != nil || !p.Equal(dec("12.35")) {
		t.Errorf("current rounded = %s, %v", p, err)
	}
	ip, err := v.InitialPrice()
	if err != nil || !ip.Equal(dec("10")) {
		t.Errorf("initial = %s, %v", ip, err)
	}
	if !v.IsOnMarket() || v.IsOffering() || v.Name() != "A" {
		t.Errorf("variant flags wrong: market=%v offering=%v", v.IsOnMarket(), v.IsOffering())
	}
}

func TestUnknownInfoVariant(t *testing.T) {
	fake := gatewaytest.New()
	v, _ := newView(t, fake)

	if v.IsOnMarket() || v.IsOffering() {
		t.Error("unknown variant reported as known")
	}
	if _, err := v.CurrentPrice(); !errors.Is(err, ErrInfoUnavailable) {
		t.Errorf("CurrentPrice err = %v, want ErrInfoUnavailable", err)
	}
	if _, err := v.Fundamental(context.Background()); !errors.Is(err, ErrInfoUnavailable) {
		t.Errorf("Fundamental err = %v, want ErrInfoUnavailable", err)
	}
	if _, err := v.InitialPrice(); !errors.Is(err, ErrNoCharts) {
		t.Errorf("InitialPrice err = %v, want ErrNoCharts", err)
	}
}

func TestRefreshErrorKeepsSnapshot(t *testing.T) {
	fake := marketFake()
	v, clk := newView(t, fake)
	boom := errors.New("boom")
	fake.Err["position"] = boom

	clk.advance(3 * time.Second)
	if err := v.Refresh(context.Background(), CategoryPosition, Respect()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if v.Amount() != 10 {
		t.Errorf("amount = %d, snapshot lost", v.Amount())
	}
	// Неудачная попытка не сдвигает таймер.
	if !v.NextAllowed(CategoryPosition).Before(clk.t) {
		t.Error("failed refresh moved the throttle")
	}
}

func TestMutations(t *testing.T) {
	fake := marketFake()
	v, _ := newView(t, fake)
	ctx := context.Background()

	ok, err := v.CreateBid(ctx, models.NewBid(dec("9"), 2))
	if err != nil || !ok {
		t.Fatalf("CreateBid = %v, %v", ok, err)
	}
	if len(v.Bids()) != 0 {
		t.Error("cache changed without refresh")
	}

	ok, err = v.CreateAsk(ctx, models.NewAsk(dec("15"), 3), WithForcedRefresh())
	if err != nil || !ok {
		t.Fatalf("CreateAsk = %v, %v", ok, err)
	}
	if len(v.Bids()) != 1 || len(v.Asks()) != 1 || v.Amount() != 7 {
		t.Fatalf("after forced refresh bids=%v asks=%v amount=%d", v.Bids(), v.Asks(), v.Amount())
	}

	ok, err = v.CancelAsk(ctx, v.Asks()[0], WithForcedRefresh())
	if err != nil || !ok {
		t.Fatalf("CancelAsk = %v, %v", ok, err)
	}
	if len(v.Asks()) != 0 || v.Amount() != 10 {
		t.Errorf("after cancel asks=%v amount=%d", v.Asks(), v.Amount())
	}
}

func TestRejectedMutationIsNoop(t *testing.T) {
	fake := marketFake()
	fake.Reject = func(gatewaytest.Call) bool { return true }
	v, _ := newView(t, fake)

	ok, err := v.CreateBid(context.Background(), models.NewBid(dec("9"), 2), WithForcedRefresh())
	if err != nil {
		t.Fatalf("rejection surfaced as error: %v", err)
	}
	if ok {
		t.Error("rejected mutation reported as applied")
	}
	if len(fake.Position(instrument).Bids) != 0 {
		t.Error("rejected order reached the book")
	}
}
