package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"openhistoria/internal/apperr"
	"openhistoria/internal/timeline"
	"openhistoria/internal/turn"
)

const playHelp = `Type an order for your nation, or one of:
  /advance [years]   let time pass (default 1)
  /timeline          list snapshots
  /rewind <id>       restore a snapshot
  /branch <id>       restore a snapshot and branch from it
  /world             show turn, provinces and relations
  /save <name>       save the game
  /help              show this help
  /quit              leave (the autosave keeps your place)
`

func playCmd() *cobra.Command {
	var resume bool
	var loadID string
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play interactively in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, resume, loadID)
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", false, "Continue from the autosave")
	cmd.Flags().StringVar(&loadID, "load", "", "Load a saved game by id")
	return cmd
}

func runPlay(cmd *cobra.Command, resume bool, loadID string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := newApp(ctx, appOptions{Resume: resume, LoadID: loadID, Storage: true})
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	out := cmd.OutOrStdout()
	state := a.coordinator.World().State()
	fmt.Fprintf(out, "%s, %d. %d nations, %d provinces.\n", a.coordinator.Settings().Scenario, state.Turn, len(state.Nations), len(state.Provinces))
	fmt.Fprint(out, playHelp)
	return repl(ctx, a, cmd.InOrStdin(), out)
}

func repl(ctx context.Context, a *app, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprintf(out, "\n[%d] > ", a.coordinator.World().Turn())
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			playTurn(ctx, a, out, line)
			if ctx.Err() != nil {
				return nil
			}
			continue
		}

		name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
		name = strings.ToLower(name)
		arg = strings.TrimSpace(arg)
		switch name {
		case "quit", "exit", "q":
			return nil
		case "help", "?":
			fmt.Fprint(out, playHelp)
		case "advance":
			years := 1
			if arg != "" {
				n, err := strconv.Atoi(arg)
				if err != nil {
					fmt.Fprintf(out, "not a number: %s\n", arg)
					continue
				}
				years = n
			}
			year, err := a.coordinator.AdvanceTime(years)
			if err != nil {
				fmt.Fprintln(out, apperr.Narrative(err))
				continue
			}
			fmt.Fprintf(out, "The year is now %d.\n", year)
		case "timeline":
			printTimeline(out, a)
		case "rewind", "branch":
			if arg == "" {
				fmt.Fprintf(out, "usage: /%s <snapshot id>\n", name)
				continue
			}
			restore := a.coordinator.Rewind
			if name == "branch" {
				restore = a.coordinator.Branch
			}
			if err := restore(arg); err != nil {
				fmt.Fprintf(out, "%s failed: %v\n", name, err)
				continue
			}
			fmt.Fprintf(out, "Restored to %d.\n", a.coordinator.World().Turn())
		case "world":
			printWorld(out, a)
		case "save":
			if arg == "" {
				fmt.Fprintln(out, "usage: /save <name>")
				continue
			}
			summary, err := a.save(ctx, uuid.NewString(), arg)
			if err != nil {
				fmt.Fprintf(out, "save failed: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "Saved %q as %s.\n", summary.Name, summary.ID)
		default:
			fmt.Fprintf(out, "unknown command /%s (try /help)\n", name)
		}
	}
}

func playTurn(ctx context.Context, a *app, out io.Writer, command string) {
	fmt.Fprintln(out, "The chroniclers deliberate...")
	res, err := a.coordinator.Submit(ctx, command)
	if err != nil {
		if errors.Is(err, turn.ErrBusy) {
			fmt.Fprintln(out, err)
			return
		}
		fmt.Fprintln(out, res.Message)
		return
	}
	fmt.Fprintln(out, res.Message)
	for _, applied := range res.Applied {
		fmt.Fprintf(out, "  * %s\n", applied.Log.Text)
	}
	if n := len(res.Ignored); n > 0 {
		fmt.Fprintf(out, "  (%d update(s) could not be applied)\n", n)
	}
	if res.SnapshotID != "" {
		fmt.Fprintf(out, "  [snapshot %s]\n", res.SnapshotID)
	}
}

// printTimeline draws the snapshot tree. Snapshots whose parent has been
// evicted are shown as roots.
func printTimeline(out io.Writer, a *app) {
	tl := a.coordinator.Timeline()
	snapshots := tl.List()
	if len(snapshots) == 0 {
		fmt.Fprintln(out, "No snapshots yet.")
		return
	}
	current := tl.Current()
	var walk func(s timeline.Snapshot, depth int)
	walk = func(s timeline.Snapshot, depth int) {
		marker := " "
		if s.ID == current {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %s%s  %d  %s\n", marker, strings.Repeat("  ", depth), s.ID, s.TurnYear, s.Description)
		for _, child := range tl.Children(s.ID) {
			walk(child, depth+1)
		}
	}
	for _, s := range snapshots {
		if _, ok := tl.Get(s.ParentID); s.ParentID == "" || !ok {
			walk(s, 0)
		}
	}
}

func printWorld(out io.Writer, a *app) {
	ws := a.coordinator.World()
	fmt.Fprintf(out, "Year %d\n", ws.Turn())
	fmt.Fprintln(out, turn.ProvinceSummary(ws.OwnershipSummary()))
	for _, r := range ws.Relations() {
		fmt.Fprintf(out, "  %s - %s: %s\n", r.NationA, r.NationB, r.Type)
	}
}
