package cli

import (
	"alcyxob/workout-chat/internal/chat"
	"alcyxob/workout-chat/internal/domain"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const chatHelp = `Commands:
  /ref workout N          refer the next message to draft N
  /ref exercise N M       refer the next message to exercise M of draft N
  /unref                  clear the reference
  /drafts                 show the current drafts
  /approve                save the drafts
  /redo                   discard the drafts
  /quit                   leave`

func newChatCmd(opts *options) *cobra.Command {
	var profile domain.TrainingProfile
	var historyLimit int
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive workout chat in a unit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireToken(); err != nil {
				return err
			}
			if opts.cfg.UnitID == "" {
				return errors.New("no unit selected: pass --unit or set CLIENT_UNIT_ID")
			}

			cfg := chat.SessionConfig{
				UnitID:       opts.cfg.UnitID,
				HistoryLimit: historyLimit,
				CallTimeout:  opts.cfg.Timeout,
			}
			if profile.Goal != "" || profile.Level != "" || profile.DaysPerWeek > 0 {
				p := profile
				cfg.Profile = &p
			}
			session := chat.NewSession(opts.client(), cfg, opts.logger)
			if err := session.Reload(cmd.Context()); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Workout chat · %d saved workout(s)", len(session.Persisted()))))
			fmt.Fprintln(out, hintStyle.Render(chatHelp))
			return newREPL(session, out, opts.logger).run(cmd.Context(), cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVar(&opts.unitID, "unit", "", "Unit ID to chat in (overrides client.unit_id)")
	cmd.Flags().IntVar(&historyLimit, "history", 20, "Transcript entries sent with each message")
	cmd.Flags().StringVar(&profile.Goal, "goal", "", "Training goal, e.g. hypertrophy")
	cmd.Flags().StringVar(&profile.Level, "level", "", "Training level, e.g. beginner")
	cmd.Flags().IntVar(&profile.DaysPerWeek, "days", 0, "Training days per week")
	return cmd
}

// repl drives a session from line input and prints what changed.
type repl struct {
	session  *chat.Session
	out      io.Writer
	logger   *zap.Logger
	rendered int
}

func newREPL(session *chat.Session, out io.Writer, logger *zap.Logger) *repl {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &repl{session: session, out: out, logger: logger}
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	r.prompt()
	for scanner.Scan() {
		quit, err := r.handle(ctx, scanner.Text())
		if err != nil {
			fmt.Fprintln(r.out, errorStyle.Render(err.Error()))
		}
		if quit {
			return nil
		}
		r.prompt()
	}
	return scanner.Err()
}

func (r *repl) prompt() {
	if ref := r.session.Reference(); ref != nil {
		fmt.Fprintln(r.out, renderReference(ref))
	}
	fmt.Fprint(r.out, userStyle.Render("> "))
}

// handle processes one input line. It reports whether the user asked to quit.
func (r *repl) handle(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		if err := r.session.Send(ctx, line); err != nil {
			r.logger.Debug("Turn failed", zap.Error(err))
		}
		r.flush()
		r.showDrafts()
		return false, nil
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(r.out, hintStyle.Render(chatHelp))
	case "/drafts":
		r.showDrafts()
	case "/unref":
		r.session.ClearReference()
	case "/ref":
		return false, r.reference(fields[1:])
	case "/approve":
		if !r.session.CanApprove() {
			return false, errors.New("nothing to approve yet")
		}
		if _, err := r.session.Approve(ctx); err != nil {
			r.logger.Debug("Approval failed", zap.Error(err))
		}
		r.flush()
	case "/redo":
		if err := r.session.Redo(); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, hintStyle.Render("Drafts discarded."))
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", fields[0])
	}
	return false, nil
}

func (r *repl) reference(args []string) error {
	usage := errors.New("usage: /ref workout N | /ref exercise N M")
	if len(args) < 2 {
		return usage
	}
	draft, err := strconv.Atoi(args[1])
	if err != nil {
		return usage
	}
	switch args[0] {
	case "workout":
		return r.session.SetReference(domain.ReferenceWorkout, draft-1, 0)
	case "exercise":
		if len(args) < 3 {
			return usage
		}
		exercise, err := strconv.Atoi(args[2])
		if err != nil {
			return usage
		}
		return r.session.SetReference(domain.ReferenceExercise, draft-1, exercise-1)
	}
	return usage
}

// flush prints the transcript entries added since the last call.
func (r *repl) flush() {
	msgs := r.session.Messages()
	if r.rendered > len(msgs) {
		r.rendered = 0
	}
	for _, m := range msgs[r.rendered:] {
		if m.Role == chat.RoleUser {
			continue // already on screen as typed
		}
		fmt.Fprintln(r.out, renderMessage(m))
	}
	r.rendered = len(msgs)
}

func (r *repl) showDrafts() {
	if s := renderDrafts(r.session.Drafts(), r.session.Reference()); s != "" {
		fmt.Fprint(r.out, s)
	}
	if r.session.CanApprove() {
		fmt.Fprintln(r.out, hintStyle.Render("/approve to save these workouts"))
	}
	if n, ok := r.session.Remaining(); ok {
		fmt.Fprintln(r.out, hintStyle.Render(fmt.Sprintf("%d message(s) left today", n)))
	}
}
