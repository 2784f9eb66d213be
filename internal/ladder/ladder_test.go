package ladder

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"grail_maker/internal/gateway/gatewaytest"
	"grail_maker/internal/marketview"
	"grail_maker/internal/models"
)

const instrument = 3

func bid(price string, amount int64) models.Order {
	return models.NewBid(decimal.RequireFromString(price), amount)
}

func ask(price string, amount int64) models.Order {
	return models.NewAsk(decimal.RequireFromString(price), amount)
}

func opString(op Op) string { return op.Kind.String() + " " + op.Order.String() }

func TestPlan(t *testing.T) {
	tests := []struct {
		name    string
		side    models.Side
		current models.Ladder
		desired models.Ladder
		want    []string
	}{
		{
			name:    "identical ladders",
			side:    models.SideBid,
			current: models.Ladder{bid("10", 5), bid("8", 3)},
			desired: models.Ladder{bid("8", 3), bid("10", 5)},
			want:    nil,
		},
		{
			name:    "bid replaces lower level",
			side:    models.SideBid,
			current: models.Ladder{bid("10", 5), bid("8", 3)},
			desired: models.Ladder{bid("10", 5), bid("9", 2)},
			want:    []string{"create bid(9 x 2)", "cancel bid(8 x 3)"},
		},
		{
			name:    "ask creates after cancels",
			side:    models.SideAsk,
			current: models.Ladder{ask("5", 4)},
			desired: models.Ladder{ask("4", 4), ask("6", 1)},
			want:    []string{"cancel ask(5 x 4)", "create ask(6 x 1)", "create ask(4 x 4)"},
		},
		{
			name:    "amount change is cancel and create",
			side:    models.SideBid,
			current: models.Ladder{bid("10", 5)},
			desired: models.Ladder{bid("10", 6)},
			want:    []string{"cancel bid(10 x 5)", "create bid(10 x 6)"},
		},
		{
			name:    "empty desired cancels all",
			side:    models.SideAsk,
			current: models.Ladder{ask("7", 1), ask("6", 1)},
			desired: nil,
			want:    []string{"cancel ask(6 x 1)", "cancel ask(7 x 1)"},
		},
		{
			name:    "empty current creates all",
			side:    models.SideBid,
			current: nil,
			desired: models.Ladder{bid("1", 1), bid("2", 1)},
			want:    []string{"create bid(2 x 1)", "create bid(1 x 1)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops := Plan(tt.side, tt.current, tt.desired)
			var got []string
			for _, op := range ops {
				got = append(got, opString(op))
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ops = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("op %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestPlanLeavesInputsUntouched(t *testing.T) {
	current := models.Ladder{bid("8", 3), bid("10", 5)}
	Plan(models.SideBid, current, models.Ladder{bid("9", 1)})
	if !current[0].Price.Equal(decimal.NewFromInt(8)) {
		t.Errorf("current ladder reordered: %v", current)
	}
}

func newReconciler(t *testing.T, fake *gatewaytest.Fake) (*Reconciler, *marketview.MarketView) {
	t.Helper()
	v, err := marketview.New(context.Background(), fake, instrument)
	if err != nil {
		t.Fatalf("marketview.New: %v", err)
	}
	return NewReconciler(v, zaptest.NewLogger(t)), v
}

func TestEnsureIdempotent(t *testing.T) {
	fake := gatewaytest.New()
	fake.SetPosition(instrument, models.Position{
		Bids: models.Ladder{bid("10", 5), bid("8", 3)},
		Asks: models.Ladder{ask("12", 1)},
	})
	r, _ := newReconciler(t, fake)
	ctx := context.Background()

	if _, err := r.Ensure(ctx, models.SideBid, models.Ladder{bid("8", 3), bid("10", 5)}, marketview.Force()); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Ensure(ctx, models.SideAsk, models.Ladder{ask("12", 1)}, marketview.Force()); err != nil {
		t.Fatal(err)
	}
	if calls := fake.Calls(); len(calls) != 0 {
		t.Errorf("matching ladders issued calls: %v", calls)
	}
}

func TestEnsureBidMinimal(t *testing.T) {
	fake := gatewaytest.New()
	fake.SetPosition(instrument, models.Position{Bids: models.Ladder{bid("10", 5), bid("8", 3)}})
	r, v := newReconciler(t, fake)

	res, err := r.Ensure(context.Background(), models.SideBid, models.Ladder{bid("10", 5), bid("9", 2)}, marketview.Force())
	if err != nil {
		t.Fatal(err)
	}
	if res.Created != 1 || res.Canceled != 1 {
		t.Errorf("result = %+v", res)
	}

	calls := fake.Calls()
	if len(calls) != 2 {
		t.Fatalf("calls = %v", calls)
	}
	var created, canceled models.Order
	for _, c := range calls {
		switch c.Op {
		case gatewaytest.OpCreate:
			created = c.Order
		case gatewaytest.OpCancel:
			canceled = c.Order
		}
	}
	if !created.Equal(bid("9", 2)) || !canceled.Equal(bid("8", 3)) {
		t.Errorf("created %v, canceled %v", created, canceled)
	}
	if !v.Bids().Equal(models.SideBid, models.Ladder{bid("10", 5), bid("9", 2)}) {
		t.Errorf("view after forced refresh = %v", v.Bids())
	}
}

func TestEnsureAskDeferral(t *testing.T) {
	fake := gatewaytest.New()
	fake.SetPosition(instrument, models.Position{Asks: models.Ladder{ask("5", 4)}, Amount: 1, TotalHolding: 5})
	r, _ := newReconciler(t, fake)

	if _, err := r.Ensure(context.Background(), models.SideAsk, models.Ladder{ask("4", 4), ask("6", 1)}, marketview.Force()); err != nil {
		t.Fatal(err)
	}

	calls := fake.Calls()
	want := []struct {
		op    gatewaytest.Op
		order models.Order
	}{
		{gatewaytest.OpCancel, ask("5", 4)},
		{gatewaytest.OpCreate, ask("6", 1)},
		{gatewaytest.OpCreate, ask("4", 4)},
	}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v", calls)
	}
	for i, w := range want {
		if calls[i].Op != w.op || !calls[i].Order.Equal(w.order) {
			t.Errorf("call %d = %s %v, want %s %v", i, calls[i].Op, calls[i].Order, w.op, w.order)
		}
	}
	if p := fake.Position(instrument); p.Amount != 0 {
		t.Errorf("remaining amount = %d, want 0", p.Amount)
	}
}

func TestEnsureRejectedIsSkipped(t *testing.T) {
	fake := gatewaytest.New()
	fake.SetPosition(instrument, models.Position{Bids: models.Ladder{bid("3", 1)}})
	fake.Reject = func(c gatewaytest.Call) bool { return c.Op == gatewaytest.OpCancel }
	r, v := newReconciler(t, fake)

	res, err := r.Ensure(context.Background(), models.SideBid, models.Ladder{bid("4", 1)}, marketview.Force())
	if err != nil {
		t.Fatalf("rejection surfaced: %v", err)
	}
	if res.Rejected != 1 || res.Created != 1 {
		t.Errorf("result = %+v", res)
	}
	if len(v.Bids()) != 2 {
		t.Errorf("bids = %v, want stale and new", v.Bids())
	}
}

func TestEnsureTransportErrorAborts(t *testing.T) {
	fake := gatewaytest.New()
	fake.SetPosition(instrument, models.Position{Bids: models.Ladder{bid("3", 1), bid("2", 1)}})
	r, _ := newReconciler(t, fake)
	boom := errors.New("down")
	fake.Err["cancel"] = boom

	if _, err := r.Ensure(context.Background(), models.SideBid, nil, marketview.Force()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if n := fake.Count("cancel"); n != 1 {
		t.Errorf("cancel attempted %d times after failure, want 1", n)
	}
}

func TestEnsureRefreshPhases(t *testing.T) {
	fake := gatewaytest.New()
	r, _ := newReconciler(t, fake)
	ctx := context.Background()
	base := fake.Count("position")

	// Respect внутри окна троттлинга, after не форсируется.
	if _, err := r.Ensure(ctx, models.SideBid, nil, marketview.OnPhase(marketview.PhaseAfter).At(marketview.PhaseBefore)); err != nil {
		t.Fatal(err)
	}
	if got := fake.Count("position") - base; got != 0 {
		t.Errorf("respect fetched %d times", got)
	}

	if _, err := r.Ensure(ctx, models.SideBid, nil, marketview.OnPhase(marketview.PhaseAfter)); err != nil {
		t.Fatal(err)
	}
	if got := fake.Count("position") - base; got != 1 {
		t.Errorf("on_after fetched %d times, want 1", got)
	}

	if _, err := r.Ensure(ctx, models.SideBid, nil, marketview.Force()); err != nil {
		t.Fatal(err)
	}
	if got := fake.Count("position") - base; got != 3 {
		t.Errorf("force fetched %d times total, want 3", got)
	}
}
