package state

import (
	"time"

	"github.com/cheminotify/agent/internal/layout"
)

const (
	refLogin = layout.RefLogin
	refMain  = layout.RefMain
)

// UI pacing. The Java client repaints slowly and drops input that arrives
// while it is busy.
const (
	focusSettle   = 100 * time.Millisecond
	keystrokePace = 100 * time.Millisecond

	// INITIAL
	cleanupSettle = 1 * time.Second
	launchWait    = 3 * time.Second

	// LOGIN
	usernameFieldSettle = 1 * time.Second
	usernameSelectAll   = 500 * time.Millisecond
	usernameDelete      = 700 * time.Millisecond
	afterUsername       = 300 * time.Millisecond
	passwordFieldSettle = 100 * time.Millisecond
	passwordSelectAll   = 300 * time.Millisecond
	passwordDelete      = 300 * time.Millisecond
	beforeLoginClick    = 500 * time.Millisecond
	loginWait           = 5 * time.Second
	afterLoginScan      = 2 * time.Second

	// CONSULTATION, INSCRIPTION
	tabSwitchWait     = 500 * time.Millisecond
	inscriptionSettle = 1 * time.Second

	// SELECTION_COURSE, SCHEDULE
	selectionTabWait = 1 * time.Second
	hoverDuration    = 100 * time.Millisecond
	hoverSettle      = 100 * time.Millisecond

	// EXIT
	exitGrace   = 4 * time.Second
	quitterWait = 1 * time.Second
	closeWait   = 1 * time.Second
)

// Popup detection windows.
const (
	inscriptionPopupTimeout = 1 * time.Second
	coursePopupTimeout      = 1500 * time.Millisecond
)

// Notification text.
const (
	availableSubject = "Course available"
	detectedLayout   = "January 02, 2006 at 03:04 PM"
)

// Popup text that means the course has no seat left.
var courseFullMarkers = []string{"complets", "annulations"}
