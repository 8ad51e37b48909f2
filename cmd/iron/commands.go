package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BaptisteLac/Zeus-sub000/internal/program"
	"github.com/BaptisteLac/Zeus-sub000/internal/progression"
	"github.com/BaptisteLac/Zeus-sub000/internal/state"
	"github.com/BaptisteLac/Zeus-sub000/internal/syncclient"
	"github.com/BaptisteLac/Zeus-sub000/internal/tracker"
)

var errUsage = errors.New("wrong arguments, see iron -h")

type commands struct {
	app *app
	in  io.Reader
	out io.Writer
}

func (c *commands) run(ctx context.Context, name string, args []string) error {
	switch name {
	case "register":
		return c.register(ctx, args)
	case "login":
		return c.login(ctx, args)
	case "logout":
		return c.app.client.Logout(ctx)
	case "status":
		return c.status(ctx)
	case "session":
		return c.session(args)
	case "resume":
		return c.resume()
	case "discard":
		return c.discard()
	case "rest":
		return c.rest(args)
	case "sync":
		return c.sync(ctx)
	case "reset":
		return c.reset(args)
	default:
		return fmt.Errorf("unknown command %q: %w", name, errUsage)
	}
}

func (c *commands) register(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	if err := c.app.client.Register(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "account %s created, run: iron login %s <password>\n", args[0], args[0])
	return nil
}

func (c *commands) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	if err := c.app.client.Login(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "logged in, changes are now synced")
	return nil
}

func (c *commands) status(ctx context.Context) error {
	st := c.app.tracker.State()

	authenticated, err := c.app.durable.IsAuthenticated(ctx)
	if err != nil {
		return err
	}
	syncState := "offline (not logged in)"
	if authenticated {
		syncState = "on"
		if c.app.loaded.RemoteErr != nil {
			syncState = "on, backend unreachable"
		}
	}
	fmt.Fprintf(c.out, "week %d, block %d, sync %s\n", st.Week, st.Block, syncState)

	if pending := c.app.tracker.PendingRecovery(); pending != nil {
		fmt.Fprintf(c.out, "session %s was interrupted (saved %s): run iron resume or iron discard\n",
			pending.Session, pending.SavedAt.Local().Format(time.DateTime))
	}

	if err := c.printRest(); err != nil {
		return err
	}

	session, recs := c.app.tracker.Recommendations()
	label := "next session"
	if st.InProgress != nil {
		label = "session in progress"
	}
	fmt.Fprintf(c.out, "%s: %s\n", label, session)
	c.printRecommendations(recs, st.InProgress)
	return nil
}

func (c *commands) session(args []string) error {
	if len(args) > 1 {
		return errUsage
	}
	if c.app.tracker.PendingRecovery() != nil {
		return fmt.Errorf("%w: run iron resume or iron discard", tracker.ErrRecoveryNotDecided)
	}

	st := c.app.tracker.State()
	if st.InProgress == nil {
		session := st.CurrentSession
		if len(args) == 1 {
			var err error
			if session, err = program.ParseSession(args[0]); err != nil {
				return err
			}
		}
		if err := c.app.tracker.Start(session); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "session %s started\n", session)
	} else {
		if len(args) == 1 && !strings.EqualFold(args[0], string(st.InProgress.Session)) {
			return fmt.Errorf("%w: %s", tracker.ErrSessionInProgress, st.InProgress.Session)
		}
		fmt.Fprintf(c.out, "session %s continued\n", st.InProgress.Session)
	}

	return c.sessionLoop()
}

const sessionHelp = `  set <exercise> <charge> <reps,reps,...> [rir]   record what was done
  done <exercise>                                 validate the recorded input
  edit <exercise> <charge> <reps,reps,...> [rir]  correct the last entry
  rest <exercise>                                 start the rest timer
  list                                            show the recommendations
  finish                                          close the session
  quit                                            leave, the session stays in progress
`

func (c *commands) sessionLoop() error {
	c.printSession()
	fmt.Fprint(c.out, sessionHelp)

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			break
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		done, err := c.sessionCommand(fields[0], fields[1:])
		if err != nil {
			fmt.Fprintf(c.out, "error: %s\n", err)
		}
		if done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	c.app.controller.Flush()
	fmt.Fprintln(c.out, "\nsession kept in progress, run iron session to continue")
	return nil
}

func (c *commands) sessionCommand(name string, args []string) (bool, error) {
	switch name {
	case "set", "edit":
		if len(args) < 1 {
			return false, errUsage
		}
		input, err := parseInput(args[1:])
		if err != nil {
			return false, err
		}
		if name == "set" {
			return false, c.app.tracker.SetInput(args[0], input)
		}
		entry, err := c.app.tracker.EditLastEntry(args[0], input)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "%s corrected: %s\n", args[0], formatEntry(entry))
		return false, nil
	case "done":
		if len(args) != 1 {
			return false, errUsage
		}
		entry, err := c.app.tracker.CompleteExercise(args[0])
		if err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "%s saved: %s\n", args[0], formatEntry(entry))
		return false, nil
	case "rest":
		return false, c.rest(args)
	case "list":
		c.printSession()
		return false, nil
	case "finish":
		next, err := c.app.tracker.Finish()
		if err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "session finished, next is %s\n", next)
		return true, nil
	case "quit", "exit":
		c.app.controller.Flush()
		fmt.Fprintln(c.out, "session kept in progress, run iron session to continue")
		return true, nil
	case "help":
		fmt.Fprint(c.out, sessionHelp)
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %q", name)
	}
}

func (c *commands) resume() error {
	snap, err := c.app.tracker.Resume()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "session %s resumed with %d exercises done\n", snap.Session, len(snap.Completed))
	return c.sessionLoop()
}

func (c *commands) discard() error {
	if err := c.app.tracker.Discard(); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "interrupted session discarded")
	return nil
}

func (c *commands) rest(args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	rest, err := c.app.tracker.StartRest(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "rest %s until %s\n",
		rest.EndsAt.Sub(rest.StartedAt), rest.EndsAt.Local().Format(time.TimeOnly))
	return nil
}

func (c *commands) sync(ctx context.Context) error {
	authenticated, err := c.app.durable.IsAuthenticated(ctx)
	if err != nil {
		return err
	}
	if !authenticated {
		return syncclient.ErrNotAuthenticated
	}
	if err := c.app.durable.Save(ctx, c.app.tracker.State()); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "synced")
	return nil
}

func (c *commands) reset(args []string) error {
	if len(args) > 1 {
		return errUsage
	}
	exerciseID := ""
	if len(args) == 1 {
		exerciseID = args[0]
	} else {
		fmt.Fprint(c.out, "clear the history of every exercise? [y/N] ")
		answer, _ := bufio.NewReader(c.in).ReadString('\n')
		if !strings.EqualFold(strings.TrimSpace(answer), "y") {
			fmt.Fprintln(c.out, "nothing changed")
			return nil
		}
	}
	if err := c.app.tracker.ResetHistory(exerciseID); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "history cleared")
	return nil
}

func (c *commands) printSession() {
	st := c.app.tracker.State()
	_, recs := c.app.tracker.Recommendations()
	c.printRecommendations(recs, st.InProgress)
}

func (c *commands) printRest() error {
	rest, found, err := c.app.rest.Current()
	if err != nil || !found {
		return err
	}
	if left := rest.Remaining(c.app.clock.Now()); left > 0 {
		fmt.Fprintf(c.out, "resting after %s: %s left\n", rest.ExerciseID, left.Round(time.Second))
	}
	return nil
}

func (c *commands) printRecommendations(recs []progression.ExerciseRecommendation, inProgress *state.ActiveSessionSnapshot) {
	for _, rec := range recs {
		mark := " "
		if inProgress != nil && inProgress.IsCompleted(rec.Spec.ID) {
			mark = "x"
		}
		fmt.Fprintf(c.out, " [%s] %-20s %s sets x %s reps, RIR %s, rest %s\n",
			mark, rec.Spec.ID, rec.Spec.Sets, rec.Spec.Reps, rec.Spec.TargetRIR, rec.Spec.Rest())

		switch {
		case rec.Recommendation != nil:
			fmt.Fprintf(c.out, "       %s\n", rec.Recommendation.Message)
		default:
			fmt.Fprintf(c.out, "       start at %gkg\n", rec.Spec.StartCharge)
		}
		if rec.LastEntry != nil {
			fmt.Fprintf(c.out, "       last: %s\n", formatEntry(*rec.LastEntry))
		}
		if inProgress != nil {
			if input, ok := inProgress.Inputs[rec.Spec.ID]; ok && !inProgress.IsCompleted(rec.Spec.ID) {
				fmt.Fprintf(c.out, "       recorded: %gkg %s RIR %d\n", input.Charge, formatSets(input.Sets), input.RIR)
			}
		}
	}
}

func formatEntry(e state.WorkoutEntry) string {
	return fmt.Sprintf("%gkg %s (%d reps) RIR %d on %s",
		e.Charge, formatSets(e.Sets), e.TotalReps, e.RIR, e.Date.Local().Format(time.DateOnly))
}

func formatSets(sets []int) string {
	parts := make([]string, len(sets))
	for i, reps := range sets {
		parts[i] = fmt.Sprint(reps)
	}
	return strings.Join(parts, ",")
}
