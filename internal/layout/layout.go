// Package layout records the fixed geometry of the ChemiNot client: the
// reference window sizes logical points were measured against, the logical
// points themselves, the colours that signal UI state and window titles.
package layout

import (
	"sort"
	"strings"

	"github.com/cheminotify/agent/internal/coords"
	"github.com/cheminotify/agent/internal/pixel"
)

// Reference windows.
const (
	RefLogin coords.RefID = "LOGIN"
	RefMain  coords.RefID = "LE_CHEMINOT"
)

// RefSizes are the client sizes the tables below were measured at.
var RefSizes = map[coords.RefID]coords.Size{
	RefLogin: {W: 364, H: 321},
	RefMain:  {W: 608, H: 468},
}

// Window titles.
const (
	LoginTitle = "Bienvenue sur ChemiNot"
	MainTitle  = "Le ChemiNot"
)

// Leftover windows matching UnwantedTitles are closed before launch unless
// they also match ExemptTitles. Both are compared lowercase.
var (
	UnwantedTitles = []string{"cheminot", "à propos de ", "attention"}
	ExemptTitles   = []string{"visual studio code", "vs code"}
)

// Login window fields (RefLogin).
var (
	UsernameField = coords.Point{X: 180, Y: 19}
	PasswordField = coords.Point{X: 184, Y: 47}
	LoginButton   = coords.Point{X: 314, Y: 45}
)

// Main window tabs (RefMain).
var (
	TabConsultation       = coords.Point{X: 60, Y: 6}
	TabInscriptionSession = coords.Point{X: 230, Y: 6}
	TabSelectionCours     = coords.Point{X: 63, Y: 27}
	TabHoraire            = coords.Point{X: 167, Y: 27}
	TabQuitter            = coords.Point{X: 549, Y: 5}
)

// GroupCoursePixel is black when the tracked course has an open group and
// grey (C0C0C0) when every group is full.
var GroupCoursePixel = coords.Point{X: 348, Y: 67}

// Palettes.
var (
	TabActive         = []pixel.Color{pixel.MustHex("ffffff"), pixel.MustHex("eeeeee")}
	CourseAvailable   = []pixel.Color{pixel.MustHex("000000")}
	CourseUnavailable = []pixel.Color{pixel.MustHex("c0c0c0")}
)

// courses maps a course code to its button on the course selection tab (RefMain).
var courses = map[string]coords.Point{
	"MAT145": {X: 40, Y: 95}, "ING150": {X: 40, Y: 136}, "ATE100": {X: 40, Y: 193}, "ATE150": {X: 40, Y: 221},
	"LOG100": {X: 40, Y: 263}, "CHM131": {X: 40, Y: 304}, "PRE013": {X: 40, Y: 332},

	"ATE075": {X: 135, Y: 397}, "ATE085": {X: 209, Y: 397}, "INF111": {X: 281, Y: 397},
	"MAT144": {X: 135, Y: 410}, "PHY144": {X: 214, Y: 410}, "LRC105": {X: 278, Y: 410},

	"MAT210": {X: 120, Y: 178}, "LOG121": {X: 120, Y: 248},

	"MAT265": {X: 197, Y: 121}, "PHY332": {X: 197, Y: 150}, "ING160": {X: 197, Y: 166},
	"LOG210": {X: 197, Y: 249}, "LOG240": {X: 197, Y: 305},

	"MAT472": {X: 270, Y: 107}, "PHY335": {X: 270, Y: 136}, "LOG320": {X: 270, Y: 193}, "GTI350": {X: 270, Y: 221},
	"COM410": {X: 270, Y: 263}, "LOG410": {X: 270, Y: 304}, "LOG515": {X: 270, Y: 318}, "LOG510": {X: 270, Y: 333},
	"PEP110": {X: 270, Y: 347},

	"MAT350": {X: 350, Y: 94}, "GTI650": {X: 350, Y: 136}, "LOG675": {X: 350, Y: 222}, "LOG430": {X: 350, Y: 249},

	// elective block
	"GIA602": {X: 430, Y: 127}, "GPE450": {X: 430, Y: 141}, "GPO602": {X: 430, Y: 153}, "ENT201": {X: 430, Y: 169},
	"ENT202": {X: 430, Y: 184}, "ENT601": {X: 430, Y: 197}, "ING500": {X: 430, Y: 210}, "LRC110": {X: 430, Y: 224},
	"ETH610": {X: 430, Y: 241},

	"GTI755": {X: 430, Y: 136}, "GTI750": {X: 430, Y: 165}, "LOG660": {X: 430, Y: 193}, "GTI611": {X: 430, Y: 278},
	"GIA400": {X: 430, Y: 347},

	"LOG450": {X: 505, Y: 96}, "LOG460": {X: 505, Y: 110}, "LOG530": {X: 505, Y: 124}, "LOG550": {X: 505, Y: 138},
	"LOG635": {X: 505, Y: 151}, "LOG645": {X: 505, Y: 166}, "LOG680": {X: 505, Y: 178}, "LOG710": {X: 505, Y: 193},
	"LOG721": {X: 505, Y: 205}, "LOG725": {X: 505, Y: 224}, "LOG736": {X: 505, Y: 235}, "LOG750": {X: 505, Y: 249},
	"LOG780": {X: 505, Y: 263}, "LOG619": {X: 505, Y: 292}, "TIN503": {X: 505, Y: 319}, "GTI320": {X: 505, Y: 347},

	"GTI525": {X: 580, Y: 108}, "GTI700": {X: 580, Y: 137}, "GTI719": {X: 580, Y: 152}, "GTI720": {X: 580, Y: 165},
	"GTI771": {X: 580, Y: 179}, "GTI723": {X: 580, Y: 195}, "GTI745": {X: 580, Y: 207}, "GTI780": {X: 580, Y: 221},
	"ELE543": {X: 580, Y: 236}, "ELE641": {X: 580, Y: 250}, "ELE674": {X: 580, Y: 265}, "LOG791": {X: 580, Y: 290},
	"LOG795": {X: 580, Y: 306},
}

// CoursePoint returns the button of a course code, case-insensitively.
func CoursePoint(code string) (coords.Point, bool) {
	p, ok := courses[strings.ToUpper(strings.TrimSpace(code))]
	return p, ok
}

// CourseCodes lists every known course code in order.
func CourseCodes() []string {
	out := make([]string, 0, len(courses))
	for c := range courses {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
