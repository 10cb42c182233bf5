// Package tracker holds the per-user view state of the expense tracker: login
// state, the last fetched expense list, the active filter, the form draft and
// the pending notifications.
package tracker

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"

	"expenses/internal/chart"
	"expenses/internal/core"
	"expenses/internal/log"
)

type State int

const (
	LoggedOut State = iota
	LoggedIn
)

func (s State) String() string {
	if s == LoggedIn {
		return "logged_in"
	}
	return "logged_out"
}

var (
	ErrNotLoggedIn = errors.New("not logged in")
	ErrNotFound    = errors.New("expense not found")
)

// Gateway is the remote collection the controller reads and writes.
type Gateway interface {
	List(ctx context.Context) ([]core.Expense, error)
	Create(ctx context.Context, e core.Expense) (core.Expense, error)
	Update(ctx context.Context, id core.ExpenseID, e core.Expense) (core.Expense, error)
	Delete(ctx context.Context, id core.ExpenseID) error
}

// ChangeNotifier is told about every successful mutation.
type ChangeNotifier interface {
	ExpenseChanged(ctx context.Context, op string, e core.Expense, user string) error
}

// Credentials is the single accepted login pair.
type Credentials struct {
	Username string
	Password string
}

// DefaultCredentials is the hardcoded login.
var DefaultCredentials = Credentials{Username: "nagesh", Password: "nagesh"}

// Match compares both fields exactly, in constant time.
func (c Credentials) Match(username, password string) bool {
	u := subtle.ConstantTimeCompare([]byte(c.Username), []byte(username))
	p := subtle.ConstantTimeCompare([]byte(c.Password), []byte(password))
	return u&p == 1
}

type Controller struct {
	mu       sync.Mutex
	gw       Gateway
	creds    Credentials
	notifier ChangeNotifier
	logger   *log.Logger

	state   State
	user    string
	records []core.Expense
	filter  string
	draft   core.Draft
	toasts  []Toast
}

type Option func(*Controller)

func WithCredentials(c Credentials) Option {
	return func(ctl *Controller) { ctl.creds = c }
}

func WithNotifier(n ChangeNotifier) Option {
	return func(ctl *Controller) { ctl.notifier = n }
}

func WithLogger(l *log.Logger) Option {
	return func(ctl *Controller) {
		if l != nil {
			ctl.logger = l.WithComponent(log.ComponentTracker)
		}
	}
}

// New returns a logged-out controller.
func New(gw Gateway, opts ...Option) *Controller {
	c := &Controller{
		gw:     gw,
		creds:  DefaultCredentials,
		logger: log.New(log.DefaultConfig()).WithComponent(log.ComponentTracker),
		filter: core.AllCategories,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) LoggedIn() bool {
	return c.State() == LoggedIn
}

// Login moves to LoggedIn only on an exact credential match, then loads the list.
func (c *Controller) Login(ctx context.Context, username, password string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.creds.Match(username, password) {
		c.logger.WarnContext(ctx, "Login rejected", log.FieldOperation, log.OpLogin)
		c.notify(LevelError, MsgInvalidCredentials)
		return false
	}
	c.state = LoggedIn
	c.user = username
	c.logger.InfoContext(ctx, "Login accepted", log.FieldOperation, log.OpLogin, log.FieldUser, username)
	c.notify(LevelSuccess, MsgLoginOK)
	c.refresh(ctx)
	return true
}

// Logout is unconditional and forgets everything loaded for the user.
func (c *Controller) Logout() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = LoggedOut
	c.user = ""
	c.records = nil
	c.filter = core.AllCategories
	c.draft = core.Draft{}
	c.notify(LevelInfo, MsgLoggedOut)
}

// Refresh replaces the record list with the authoritative one.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != LoggedIn {
		return ErrNotLoggedIn
	}
	return c.refresh(ctx)
}

func (c *Controller) refresh(ctx context.Context) error {
	items, err := c.gw.List(ctx)
	if err != nil {
		log.LogError(ctx, "Failed to load expenses", err, log.ComponentTracker, log.OpList, nil)
		c.notify(LevelError, MsgLoadFailed)
		return err
	}
	c.records = items
	if !core.HasCategory(c.records, c.filter) {
		c.filter = core.AllCategories
	}
	return nil
}

// SetFilter selects a category. Labels not present fall back to "All".
func (c *Controller) SetFilter(label string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != LoggedIn {
		return ErrNotLoggedIn
	}
	if !core.HasCategory(c.records, label) {
		label = core.AllCategories
	}
	c.filter = label
	return nil
}

// BeginEdit loads an expense from the current list into the draft.
func (c *Controller) BeginEdit(id core.ExpenseID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != LoggedIn {
		return ErrNotLoggedIn
	}
	for _, e := range c.records {
		if e.ID == id {
			c.draft = core.DraftFrom(e)
			return nil
		}
	}
	return ErrNotFound
}

func (c *Controller) CancelEdit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != LoggedIn {
		return ErrNotLoggedIn
	}
	c.draft = core.Draft{}
	return nil
}

// change is a successful mutation waiting to be announced. It is handed to the
// notifier after the controller lock is released.
type change struct {
	op   string
	e    core.Expense
	user string
}

// Submit creates or updates depending on whether the draft carries an id.
// On failure the draft is kept so the form can be corrected.
func (c *Controller) Submit(ctx context.Context, d core.Draft) error {
	ch, err := c.submit(ctx, d)
	c.publish(ctx, ch)
	return err
}

func (c *Controller) submit(ctx context.Context, d core.Draft) (*change, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != LoggedIn {
		return nil, ErrNotLoggedIn
	}
	c.draft = d

	e, err := d.Expense()
	if err != nil {
		c.notify(LevelError, MsgSaveFailed)
		return nil, err
	}

	op, msg := log.OpCreate, MsgAdded
	if d.Editing() {
		op, msg = log.OpUpdate, MsgUpdated
		e, err = c.gw.Update(ctx, d.EditingID, e)
	} else {
		e, err = c.gw.Create(ctx, e)
	}
	if err != nil {
		log.LogError(ctx, "Failed to save expense", err, log.ComponentTracker, op,
			log.NewFields().WithExpense(string(d.EditingID), d.Title, d.Amount, d.Category))
		c.notify(LevelError, MsgSaveFailed)
		return nil, err
	}

	c.logger.InfoContext(ctx, "Expense saved",
		log.NewFields().WithOperation(op).WithExpense(string(e.ID), e.Title, e.Amount.String(), e.Category).ToSlice()...)
	c.notify(LevelSuccess, msg)
	c.draft = core.Draft{}
	c.refresh(ctx)
	return &change{op: op, e: e, user: c.user}, nil
}

// Delete removes one expense and reloads the list.
func (c *Controller) Delete(ctx context.Context, id core.ExpenseID) error {
	ch, err := c.remove(ctx, id)
	c.publish(ctx, ch)
	return err
}

func (c *Controller) remove(ctx context.Context, id core.ExpenseID) (*change, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != LoggedIn {
		return nil, ErrNotLoggedIn
	}
	if err := c.gw.Delete(ctx, id); err != nil {
		log.LogError(ctx, "Failed to delete expense", err, log.ComponentTracker, log.OpDelete,
			log.NewFields().WithExpense(string(id), "", "", ""))
		c.notify(LevelError, MsgDeleteFailed)
		return nil, err
	}

	removed := core.Expense{ID: id}
	for _, e := range c.records {
		if e.ID == id {
			removed = e
			break
		}
	}
	c.logger.InfoContext(ctx, "Expense deleted", log.FieldOperation, log.OpDelete, log.FieldExpenseID, string(id))
	c.notify(LevelInfo, MsgDeleted)
	c.draft = core.Draft{}
	c.refresh(ctx)
	return &change{op: log.OpDelete, e: removed, user: c.user}, nil
}

// Records returns a copy of the full list, ignoring the filter.
func (c *Controller) Records() []core.Expense {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Expense, len(c.records))
	copy(out, c.records)
	return out
}

// Chart lays out the per-category totals of the full list. Unlike View it
// leaves pending toasts alone.
func (c *Controller) Chart() chart.Pie {
	c.mu.Lock()
	defer c.mu.Unlock()
	return chart.Layout(core.ByCategory(c.records), chart.DefaultWidth, chart.DefaultHeight)
}

// View snapshots everything a page needs and drains pending toasts.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		State:  c.state,
		User:   c.user,
		Filter: c.filter,
		Draft:  c.draft,
		Toasts: c.toasts,
	}
	c.toasts = nil
	if c.state != LoggedIn {
		return v
	}

	v.Categories = core.Categories(c.records)
	v.Summary = core.Summarize(c.records)
	for i, e := range core.Filter(c.records, c.filter) {
		v.Rows = append(v.Rows, Row{Index: i + 1, Expense: e})
	}
	v.Chart = chart.Layout(v.Summary.ByCategory, chart.DefaultWidth, chart.DefaultHeight)
	return v
}

func (c *Controller) notify(level Level, msg string) {
	c.toasts = append(c.toasts, Toast{Level: level, Message: msg})
}

// publish must be called without c.mu held.
func (c *Controller) publish(ctx context.Context, ch *change) {
	if ch == nil || c.notifier == nil {
		return
	}
	if err := c.notifier.ExpenseChanged(ctx, ch.op, ch.e, ch.user); err != nil {
		c.logger.WarnContext(ctx, "Change notification failed",
			log.NewFields().WithOperation(ch.op).WithError(err).ToSlice()...)
	}
}
