package tracker

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"expenses/internal/core"
	"expenses/internal/log"
)

type fakeGateway struct {
	mu      sync.Mutex
	items   []core.Expense
	nextID  int
	listErr error
	saveErr error
	delErr  error
	calls   []string
}

func (f *fakeGateway) List(ctx context.Context) ([]core.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "list")
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]core.Expense(nil), f.items...), nil
}

func (f *fakeGateway) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "create")
	if f.saveErr != nil {
		return core.Expense{}, f.saveErr
	}
	f.nextID++
	e.ID = core.ExpenseID(strconv.Itoa(f.nextID))
	f.items = append(f.items, e)
	return e, nil
}

func (f *fakeGateway) Update(ctx context.Context, id core.ExpenseID, e core.Expense) (core.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "update")
	if f.saveErr != nil {
		return core.Expense{}, f.saveErr
	}
	for i := range f.items {
		if f.items[i].ID == id {
			e.ID = id
			f.items[i] = e
			return e, nil
		}
	}
	return core.Expense{}, errors.New("404")
}

func (f *fakeGateway) Delete(ctx context.Context, id core.ExpenseID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "delete")
	if f.delErr != nil {
		return f.delErr
	}
	for i := range f.items {
		if f.items[i].ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return errors.New("404")
}

type fakeNotifier struct {
	ops []string
	err error
}

func (n *fakeNotifier) ExpenseChanged(ctx context.Context, op string, e core.Expense, user string) error {
	n.ops = append(n.ops, op+":"+string(e.ID)+":"+user)
	return n.err
}

// blockingNotifier holds every notification until release is closed.
type blockingNotifier struct {
	entered chan struct{}
	release chan struct{}
}

func (n *blockingNotifier) ExpenseChanged(ctx context.Context, op string, e core.Expense, user string) error {
	n.entered <- struct{}{}
	<-n.release
	return nil
}

func seeded() *fakeGateway {
	return &fakeGateway{
		nextID: 3,
		items: []core.Expense{
			{ID: "1", Title: "Groceries", Amount: decimal.RequireFromString("250.40"), Category: "Food"},
			{ID: "2", Title: "Metro", Amount: decimal.RequireFromString("40"), Category: "Travel"},
			{ID: "3", Title: "Dinner", Amount: decimal.RequireFromString("99.60"), Category: "Food"},
		},
	}
}

func loggedIn(t *testing.T, gw Gateway, opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{WithLogger(log.Discard())}, opts...)
	c := New(gw, opts...)
	if !c.Login(context.Background(), "nagesh", "nagesh") {
		t.Fatalf("login failed")
	}
	c.View() // drain login toast
	return c
}

func lastToast(t *testing.T, v View) Toast {
	t.Helper()
	if len(v.Toasts) == 0 {
		t.Fatalf("expected a toast")
	}
	return v.Toasts[len(v.Toasts)-1]
}

func TestLoginAcceptsExactlyOnePair(t *testing.T) {
	bad := []struct{ user, pass string }{
		{"", ""},
		{"nagesh", ""},
		{"", "nagesh"},
		{"Nagesh", "nagesh"},
		{"nagesh", "nagesh "},
		{"admin", "admin"},
	}
	for _, tc := range bad {
		c := New(seeded(), WithLogger(log.Discard()))
		if c.Login(context.Background(), tc.user, tc.pass) {
			t.Fatalf("login %q/%q should fail", tc.user, tc.pass)
		}
		if c.LoggedIn() {
			t.Fatalf("state must stay LoggedOut")
		}
		v := c.View()
		if tt := lastToast(t, v); tt.Level != LevelError || tt.Message != MsgInvalidCredentials {
			t.Fatalf("unexpected toast %+v", tt)
		}
		if len(v.Rows) != 0 {
			t.Fatalf("logged-out view must not expose rows")
		}
	}

	gw := seeded()
	c := New(gw, WithLogger(log.Discard()))
	if !c.Login(context.Background(), "nagesh", "nagesh") {
		t.Fatalf("expected login to succeed")
	}
	v := c.View()
	if !v.LoggedIn() || v.User != "nagesh" {
		t.Fatalf("expected logged in view, got %+v", v.State)
	}
	if tt := v.Toasts[0]; tt.Level != LevelSuccess || tt.Message != MsgLoginOK {
		t.Fatalf("unexpected toast %+v", tt)
	}
	if len(v.Rows) != 3 {
		t.Fatalf("login should load the list, got %d rows", len(v.Rows))
	}
	if len(c.View().Toasts) != 0 {
		t.Fatalf("toasts must be drained")
	}
}

func TestCustomCredentials(t *testing.T) {
	c := New(seeded(), WithLogger(log.Discard()), WithCredentials(Credentials{Username: "a", Password: "b"}))
	if c.Login(context.Background(), "nagesh", "nagesh") {
		t.Fatalf("default pair must be rejected when overridden")
	}
	if !c.Login(context.Background(), "a", "b") {
		t.Fatalf("custom pair rejected")
	}
}

func TestLogoutIsUnconditional(t *testing.T) {
	c := loggedIn(t, seeded())
	_ = c.SetFilter("Food")
	_ = c.BeginEdit("1")
	c.Logout()
	v := c.View()
	if v.LoggedIn() {
		t.Fatalf("expected LoggedOut")
	}
	if tt := lastToast(t, v); tt.Level != LevelInfo || tt.Message != MsgLoggedOut {
		t.Fatalf("unexpected toast %+v", tt)
	}
	if v.Draft.Editing() || v.Filter != core.AllCategories || len(c.Records()) != 0 {
		t.Fatalf("logout must clear state: %+v", v)
	}

	// Logging out twice is fine.
	c.Logout()
	if c.LoggedIn() {
		t.Fatalf("expected LoggedOut")
	}
}

func TestOperationsRequireLogin(t *testing.T) {
	c := New(seeded(), WithLogger(log.Discard()))
	ctx := context.Background()
	checks := map[string]error{
		"refresh": c.Refresh(ctx),
		"filter":  c.SetFilter("Food"),
		"edit":    c.BeginEdit("1"),
		"cancel":  c.CancelEdit(),
		"submit":  c.Submit(ctx, core.Draft{Title: "x", Amount: "1", Category: "c"}),
		"delete":  c.Delete(ctx, "1"),
	}
	for name, err := range checks {
		if !errors.Is(err, ErrNotLoggedIn) {
			t.Fatalf("%s: expected ErrNotLoggedIn, got %v", name, err)
		}
	}
}

func TestTotalIgnoresFilter(t *testing.T) {
	c := loggedIn(t, seeded())
	want := decimal.RequireFromString("390")

	if err := c.SetFilter("Travel"); err != nil {
		t.Fatalf("filter: %v", err)
	}
	v := c.View()
	if len(v.Rows) != 1 || v.Rows[0].Expense.Category != "Travel" {
		t.Fatalf("unexpected filtered rows %+v", v.Rows)
	}
	if !v.Summary.Total.Equal(want) || v.Summary.Count != 3 {
		t.Fatalf("total=%s count=%d, want %s/3", v.Summary.Total, v.Summary.Count, want)
	}

	_ = c.SetFilter(core.AllCategories)
	v = c.View()
	if len(v.Rows) != 3 || !v.Summary.Total.Equal(want) {
		t.Fatalf("All should show everything")
	}
	for i, r := range v.Rows {
		if r.Index != i+1 {
			t.Fatalf("row %d index=%d", i, r.Index)
		}
	}
}

func TestFilterExactMatchAndFallback(t *testing.T) {
	c := loggedIn(t, seeded())
	_ = c.SetFilter("Food")
	v := c.View()
	if len(v.Rows) != 2 {
		t.Fatalf("expected 2 Food rows, got %d", len(v.Rows))
	}
	for _, r := range v.Rows {
		if r.Expense.Category != "Food" {
			t.Fatalf("unexpected category %q", r.Expense.Category)
		}
	}
	want := []string{"All", "Food", "Travel"}
	if len(v.Categories) != len(want) {
		t.Fatalf("categories=%v", v.Categories)
	}
	for i := range want {
		if v.Categories[i] != want[i] {
			t.Fatalf("categories=%v want %v", v.Categories, want)
		}
	}

	_ = c.SetFilter("food")
	if v := c.View(); v.Filter != core.AllCategories || len(v.Rows) != 3 {
		t.Fatalf("unknown label should fall back to All, got %q", v.Filter)
	}
}

func TestFilterResetsWhenCategoryDisappears(t *testing.T) {
	gw := seeded()
	c := loggedIn(t, gw)
	_ = c.SetFilter("Travel")
	if err := c.Delete(context.Background(), "2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if v := c.View(); v.Filter != core.AllCategories || len(v.Rows) != 2 {
		t.Fatalf("expected fallback to All, got %q with %d rows", v.Filter, len(v.Rows))
	}
}

func TestSubmitCreatesWithoutID(t *testing.T) {
	gw := seeded()
	n := &fakeNotifier{}
	c := loggedIn(t, gw, WithNotifier(n))
	before := len(c.Records())

	err := c.Submit(context.Background(), core.Draft{Title: "Cinema", Amount: "300", Category: "Leisure"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	v := c.View()
	if v.Summary.Count != before+1 {
		t.Fatalf("expected %d records, got %d", before+1, v.Summary.Count)
	}
	if tt := lastToast(t, v); tt.Level != LevelSuccess || tt.Message != MsgAdded {
		t.Fatalf("unexpected toast %+v", tt)
	}
	if v.Draft != (core.Draft{}) {
		t.Fatalf("draft should be cleared, got %+v", v.Draft)
	}
	if len(v.Chart.Slices) != 3 {
		t.Fatalf("chart should have one wedge per category, got %d", len(v.Chart.Slices))
	}
	if len(n.ops) != 1 || n.ops[0] != "create:4:nagesh" {
		t.Fatalf("unexpected notifications %v", n.ops)
	}
	if last := gw.calls[len(gw.calls)-1]; last != "list" {
		t.Fatalf("mutation must be followed by a refresh, last call %q", last)
	}
}

func TestSubmitUpdatesWithID(t *testing.T) {
	gw := seeded()
	c := loggedIn(t, gw)
	before := len(c.Records())

	if err := c.BeginEdit("2"); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	d := c.View().Draft
	if d.EditingID != "2" || d.Title != "Metro" || d.Amount != "40" || d.Category != "Travel" {
		t.Fatalf("draft not loaded: %+v", d)
	}

	d.Amount = "45.5"
	if err := c.Submit(context.Background(), d); err != nil {
		t.Fatalf("submit: %v", err)
	}
	v := c.View()
	if v.Summary.Count != before {
		t.Fatalf("update must keep count %d, got %d", before, v.Summary.Count)
	}
	if tt := lastToast(t, v); tt.Message != MsgUpdated {
		t.Fatalf("unexpected toast %+v", tt)
	}
	if !v.Summary.Total.Equal(decimal.RequireFromString("395.5")) {
		t.Fatalf("total=%s", v.Summary.Total)
	}
	if v.Draft.Editing() {
		t.Fatalf("draft should be cleared after update")
	}

	if err := c.BeginEdit("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSubmitFailureKeepsDraft(t *testing.T) {
	gw := seeded()
	gw.saveErr = errors.New("boom")
	c := loggedIn(t, gw)

	d := core.Draft{Title: "Cinema", Amount: "300", Category: "Leisure"}
	if err := c.Submit(context.Background(), d); err == nil {
		t.Fatalf("expected error")
	}
	v := c.View()
	if v.Draft != d {
		t.Fatalf("draft should be kept, got %+v", v.Draft)
	}
	if tt := lastToast(t, v); tt.Level != LevelError || tt.Message != MsgSaveFailed {
		t.Fatalf("unexpected toast %+v", tt)
	}

	invalid := core.Draft{Title: "", Amount: "x", Category: ""}
	if err := c.Submit(context.Background(), invalid); err == nil {
		t.Fatalf("expected validation error")
	}
	if tt := lastToast(t, c.View()); tt.Message != MsgSaveFailed {
		t.Fatalf("unexpected toast %+v", tt)
	}
}

func TestDeleteRemovesExactlyOne(t *testing.T) {
	gw := seeded()
	n := &fakeNotifier{err: errors.New("broker down")}
	c := loggedIn(t, gw, WithNotifier(n))
	before := c.View().Summary.Count

	if err := c.Delete(context.Background(), "1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	v := c.View()
	if v.Summary.Count != before-1 {
		t.Fatalf("expected %d, got %d", before-1, v.Summary.Count)
	}
	for _, r := range v.Rows {
		if r.Expense.ID == "1" {
			t.Fatalf("expense 1 still present")
		}
	}
	if tt := lastToast(t, v); tt.Level != LevelInfo || tt.Message != MsgDeleted {
		t.Fatalf("unexpected toast %+v", tt)
	}
	// A failing notifier never fails the action.
	if len(n.ops) != 1 || n.ops[0] != "delete:1:nagesh" {
		t.Fatalf("unexpected notifications %v", n.ops)
	}

	gw.delErr = errors.New("boom")
	if err := c.Delete(context.Background(), "2"); err == nil {
		t.Fatalf("expected error")
	}
	v = c.View()
	if v.Summary.Count != before-1 {
		t.Fatalf("failed delete must not change the list")
	}
	if tt := lastToast(t, v); tt.Level != LevelError || tt.Message != MsgDeleteFailed {
		t.Fatalf("unexpected toast %+v", tt)
	}
}

func TestRefreshFailureKeepsList(t *testing.T) {
	gw := seeded()
	c := loggedIn(t, gw)
	gw.listErr = errors.New("offline")

	if err := c.Refresh(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	v := c.View()
	if v.Summary.Count != 3 {
		t.Fatalf("previous list should be kept, got %d", v.Summary.Count)
	}
	if tt := lastToast(t, v); tt.Level != LevelError || tt.Message != MsgLoadFailed {
		t.Fatalf("unexpected toast %+v", tt)
	}
}

func TestChartWedgesMatchDistinctCategories(t *testing.T) {
	c := loggedIn(t, seeded())
	_ = c.SetFilter("Travel")
	v := c.View()
	// The chart ignores the filter.
	if len(v.Chart.Slices) != len(v.Categories)-1 {
		t.Fatalf("wedges=%d categories=%d", len(v.Chart.Slices), len(v.Categories)-1)
	}
	if v.Chart.Slices[0].Label != "Food" || v.Chart.Slices[0].Value != 350 {
		t.Fatalf("unexpected first wedge %+v", v.Chart.Slices[0])
	}
}

func TestConcurrentUse(t *testing.T) {
	c := loggedIn(t, seeded())
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = c.Submit(context.Background(), core.Draft{Title: "t", Amount: strconv.Itoa(i), Category: "c"})
			_ = c.View()
		}(i)
	}
	wg.Wait()
	if got := len(c.Records()); got != 13 {
		t.Fatalf("expected 13 records, got %d", got)
	}
}

func TestChartKeepsPendingToasts(t *testing.T) {
	c := loggedIn(t, seeded())
	_ = c.Delete(context.Background(), "2")

	if p := c.Chart(); len(p.Slices) != 1 || p.Slices[0].Label != "Food" {
		t.Fatalf("unexpected chart %+v", p.Slices)
	}
	if got := lastToast(t, c.View()); got.Message != MsgDeleted {
		t.Fatalf("toast = %q, want %q", got.Message, MsgDeleted)
	}
}

func TestSlowNotifierDoesNotHoldSession(t *testing.T) {
	n := &blockingNotifier{entered: make(chan struct{}, 1), release: make(chan struct{})}
	c := loggedIn(t, seeded(), WithNotifier(n))

	submitted := make(chan error, 1)
	go func() {
		submitted <- c.Submit(context.Background(), core.Draft{Title: "Cinema", Amount: "300", Category: "Leisure"})
	}()
	select {
	case <-n.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("notifier was never called")
	}

	viewed := make(chan View, 1)
	go func() { viewed <- c.View() }()
	select {
	case v := <-viewed:
		if v.Summary.Count != 4 {
			t.Fatalf("expected the refreshed list while notifying, got %d records", v.Summary.Count)
		}
	case <-time.After(time.Second):
		t.Fatal("View blocked while the notifier was running")
	}

	close(n.release)
	if err := <-submitted; err != nil {
		t.Fatalf("submit: %v", err)
	}
}
