package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/cheminotify/agent/internal/config"
	"github.com/cheminotify/agent/internal/coords"
	apperrors "github.com/cheminotify/agent/internal/errors"
	"github.com/cheminotify/agent/internal/history"
	"github.com/cheminotify/agent/internal/layout"
	"github.com/cheminotify/agent/internal/popup"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func newClassifyCmd(cfgPath *string) *cobra.Command {
	var title, text string

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a popup title and text against the rule table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rulesPath := ""
			if *cfgPath != "" {
				cfg, err := config.Load(*cfgPath)
				if err != nil {
					return err
				}
				rulesPath = cfg.PopupRulesPath
			}
			rules, err := popup.LoadRulesFile(rulesPath)
			if err != nil {
				return err
			}

			c := popup.NewClassifier(rules)
			outcome, action := c.Classify(title, text)
			name := "-"
			if r, ok := c.Match(title, text); ok {
				name = r.Name
			}
			fmt.Fprintf(cmd.OutOrStdout(), "outcome=%s action=%s rule=%s\n", outcome, action, name)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "popup window title")
	cmd.Flags().StringVar(&text, "text", "", "popup body text (as OCR would read it)")
	return cmd
}

func newHistoryCmd(cfgPath *string) *cobra.Command {
	var limit int
	var sessions bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent audit log entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if cfg.HistoryPath == "" {
				return apperrors.New(apperrors.ConfigMissing, "history is disabled").
					WithMetadata("key", strings.ToUpper(config.KeyHistoryPath))
			}
			store, err := history.Open(cfg.HistoryPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			t := table.New().
				Border(lipgloss.NormalBorder()).
				StyleFunc(func(row, _ int) lipgloss.Style {
					if row == table.HeaderRow {
						return headerStyle
					}
					return cellStyle
				})

			if sessions {
				list, err := store.Sessions(cmd.Context(), limit)
				if err != nil {
					return err
				}
				t.Headers("SESSION", "COURSE", "STARTED", "ENDED", "REASON", "ITERATIONS")
				for _, s := range list {
					t.Row(s.ID, s.Course, stamp(s.StartedAt), stamp(s.EndedAt), s.Reason, strconv.Itoa(s.Iterations))
				}
			} else {
				entries, err := store.Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
				t.Headers("TIME", "KIND", "SESSION", "SUMMARY")
				for _, e := range entries {
					t.Row(stamp(e.Time), string(e.Kind), e.SessionID, e.Summary)
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of rows")
	cmd.Flags().BoolVar(&sessions, "sessions", false, "list sessions instead of events")
	return cmd
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func newCoordsCmd() *cobra.Command {
	var ref, course, day, slot string
	var x, y, w, h int

	cmd := &cobra.Command{
		Use:   "coords",
		Short: "Map a logical point to a window of the given client size",
		Long: "Scales a point measured on a reference window to a window whose client\n" +
			"area is --w x --h. The point is --x/--y, a --course button, or a\n" +
			"--day/--slot cell of the schedule grid.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := coords.Point{X: x, Y: y}
			switch {
			case course != "":
				cp, ok := layout.CoursePoint(course)
				if !ok {
					return apperrors.Newf(apperrors.InvalidArgument, "unknown course %q (known: %s)",
						course, strings.Join(layout.CourseCodes(), ", "))
				}
				p = cp
			case day != "":
				sp, err := schedulePoint(day, slot)
				if err != nil {
					return err
				}
				p = sp
			}

			rid := coords.RefID(strings.ToUpper(ref))
			m := coords.NewMapper(layout.RefSizes)
			refSize, _ := m.RefSize(rid)
			actual := coords.Size{W: w, H: h}
			if w <= 0 || h <= 0 {
				actual = refSize
			}

			out := m.ToPhysical(p, rid, actual)
			fmt.Fprintf(cmd.OutOrStdout(), "%s on %s %s -> %s on %s\n", p, rid, refSize, out, actual)
			return nil
		},
	}
	cmd.Flags().StringVar(&ref, "ref", string(layout.RefMain), "reference window (LOGIN or LE_CHEMINOT)")
	cmd.Flags().IntVar(&x, "x", 0, "logical x")
	cmd.Flags().IntVar(&y, "y", 0, "logical y")
	cmd.Flags().IntVar(&w, "w", 0, "actual client width (defaults to the reference width)")
	cmd.Flags().IntVar(&h, "h", 0, "actual client height (defaults to the reference height)")
	cmd.Flags().StringVar(&course, "course", "", "use the button of this course code")
	cmd.Flags().StringVar(&day, "day", "", "use a schedule cell: weekday name")
	cmd.Flags().StringVar(&slot, "slot", "AM", "schedule slot: AM, PM or EV")
	return cmd
}

func schedulePoint(day, slot string) (coords.Point, error) {
	var wd time.Weekday = -1
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), day) || strings.EqualFold(d.String()[:3], day) {
			wd = d
			break
		}
	}
	var sl layout.Slot = -1
	for _, s := range []layout.Slot{layout.Morning, layout.Afternoon, layout.Evening} {
		if strings.EqualFold(s.String(), slot) {
			sl = s
		}
	}

	p, ok := layout.SchedulePoint(wd, sl)
	if !ok {
		return coords.Point{}, apperrors.Newf(apperrors.InvalidArgument, "no schedule cell for %s %s", day, slot)
	}
	return p, nil
}
