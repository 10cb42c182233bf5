package tracker

import (
	"expenses/internal/chart"
	"expenses/internal/core"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

// Toast is a one-shot user notification.
type Toast struct {
	Level   Level
	Message string
}

const (
	MsgLoginOK            = "Login successful!"
	MsgInvalidCredentials = "Invalid credentials!"
	MsgLoggedOut          = "Logged out successfully!"
	MsgLoadFailed         = "Failed to load expenses!"
	MsgAdded              = "Expense added successfully!"
	MsgUpdated            = "Expense updated successfully!"
	MsgSaveFailed         = "Something went wrong while saving!"
	MsgDeleted            = "Expense deleted!"
	MsgDeleteFailed       = "Failed to delete expense!"
)

// Row is a visible table line. Index is the 1-based position in the
// filtered list, not the expense id.
type Row struct {
	Index   int
	Expense core.Expense
}

type View struct {
	State      State
	User       string
	Filter     string
	Categories []string
	Rows       []Row
	Summary    core.Summary
	Draft      core.Draft
	Chart      chart.Pie
	Toasts     []Toast
}

func (v View) LoggedIn() bool {
	return v.State == LoggedIn
}
