package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavelanni/pathway/internal/commit"
	"github.com/pavelanni/pathway/internal/engine"
	appI18n "github.com/pavelanni/pathway/internal/i18n"
	"github.com/pavelanni/pathway/internal/narration"
	"github.com/pavelanni/pathway/internal/reminder"
	"github.com/pavelanni/pathway/internal/store"
)

func playCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play SESSION",
		Short: "Run a session in the terminal, writing narration to audio files",
		Args:  cobra.ExactArgs(1),
		RunE:  runPlay,
	}
	f := cmd.Flags()
	f.String("db", "pathway.db", "SQLite database path")
	f.StringP("user", "u", "", "Username to run the session as (required)")
	f.StringP("audio-out", "o", "narration.wav", "File generated narration is written to")
	f.String("static-out", "", "File pre-recorded narration is copied to (empty discards it)")
	f.Bool("realtime", false, "Pace audio writes to playback speed")
	f.String("audio-base-url", "", "Base URL of pre-recorded narration files")
	f.Duration("static-timeout", narration.DefaultStaticTimeout, "How long a pre-recorded file may take to become playable")
	f.StringP("lang", "l", "en", "UI language (en, ru)")
	addTTSFlags(cmd)
	addLogFlags(cmd)

	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runPlay(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return fmt.Errorf("invalid session number %q", args[0])
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	ctx := appI18n.ForLang(commandContext(cmd), lang)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	user, err := lookupUser(db, v.GetString("user"))
	if err != nil {
		return err
	}
	us := db.ForUser(user.ID)
	profile, err := us.FetchUserProfile(ctx)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	audioOut, err := os.Create(v.GetString("audio-out"))
	if err != nil {
		return fmt.Errorf("create audio output: %w", err)
	}
	defer audioOut.Close()

	var staticSink io.Writer = io.Discard
	if path := v.GetString("static-out"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create static output: %w", err)
		}
		defer f.Close()
		staticSink = f
	}

	cfg := narration.Config{
		BaseURL:       v.GetString("audio-base-url"),
		StaticTimeout: v.GetDuration("static-timeout"),
		Static:        &narration.HTTPSource{Sink: staticSink},
		NewGraph: func() (narration.Graph, error) {
			return narration.NewWriterGraph(audioOut, v.GetBool("realtime")), nil
		},
		Prefs:   us,
		OnEvent: narrationEvent(cmd.ErrOrStderr()),
	}
	client, err := speechClient(ctx, v)
	if err != nil {
		return err
	}
	if client != nil {
		cfg.Synth = client
	}
	narrator := narration.New(ctx, cfg)

	run, err := engine.Mount(ctx, engine.Deps{
		Templates:   db,
		Checkpoints: us,
		Remote:      db,
		Local:       db,
		Narrator:    narrator,
		Reminders:   reminder.New(us, time.Now),
	}, profile, n)
	if err != nil {
		return err
	}
	defer run.Close()

	p := &player{run: run, narrator: narrator, out: cmd.OutOrStdout()}
	return p.loop(ctx, cmd.InOrStdin())
}

func narrationEvent(w io.Writer) func(narration.Event) {
	return func(ev narration.Event) {
		slog.Debug("narration", "epoch", ev.Epoch, "step", ev.StepID, "state", ev.State, "tier", ev.Tier)
		if ev.Quota {
			fmt.Fprintln(w, "narration quota reached; type \"mute\" to silence narration")
		}
	}
}

const playHelp = `commands:
  mood N                 select the starting mood (1-5)
  answer KEY VALUE       answer a question of the current step
  act KIND [VALUE [TARGET]|INDEX]
                         interact with the current exercise
  next | back | restart  navigate
  finish [MOOD]          complete the session from the summary
  mute | unmute          toggle narration
  exit                   save progress and quit
`

type player struct {
	run      *engine.Run
	narrator *narration.Controller
	out      io.Writer
}

func (p *player) loop(ctx context.Context, in io.Reader) error {
	p.show()
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(p.out, "> ")
		if !sc.Scan() {
			break
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		done, err := p.exec(ctx, fields)
		if err != nil {
			fmt.Fprintln(p.out, "error:", err)
			continue
		}
		if done {
			return nil
		}
		p.show()
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read commands: %w", err)
	}
	// End of input saves like an exit.
	_, err := p.exec(ctx, []string{"exit"})
	return err
}

func (p *player) exec(ctx context.Context, fields []string) (bool, error) {
	arg := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}
	switch fields[0] {
	case "help", "?":
		fmt.Fprint(p.out, playHelp)
	case "mood":
		mood, err := strconv.Atoi(arg(1))
		if err != nil {
			return false, errors.New("mood must be a number")
		}
		return false, p.run.SelectMood(ctx, mood)
	case "answer":
		if len(fields) < 3 {
			return false, errors.New("usage: answer KEY VALUE")
		}
		return false, p.run.Answer(fields[1], parseValue(strings.Join(fields[2:], " ")))
	case "act":
		a := engine.Action{Kind: arg(1), Value: arg(2), Target: arg(3)}
		if i, err := strconv.Atoi(arg(2)); err == nil {
			a.Index = i
		}
		return false, p.run.Interact(a)
	case "next", "n":
		return false, p.run.Continue(ctx)
	case "back", "b":
		return false, p.run.Back(ctx)
	case "restart":
		return false, p.run.Restart()
	case "mute", "unmute":
		return false, p.narrator.SetMuted(ctx, fields[0] == "mute")
	case "finish":
		mood := 0
		if s := arg(1); s != "" {
			m, err := strconv.Atoi(s)
			if err != nil {
				return false, errors.New("mood must be a number")
			}
			mood = m
		}
		out, err := p.run.Finish(ctx, mood)
		if err != nil {
			return false, p.saveError(ctx, err)
		}
		fmt.Fprintf(p.out, "session completed (%s)\n", out)
		return true, nil
	case "exit", "quit":
		out, err := p.run.Exit(ctx)
		if err != nil {
			return false, p.saveError(ctx, err)
		}
		fmt.Fprintf(p.out, "progress saved (%s)\n", out)
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q, type help", fields[0])
	}
	return false, nil
}

func (p *player) saveError(ctx context.Context, err error) error {
	if errors.Is(err, commit.ErrLocalSaveFailed) {
		return fmt.Errorf("%s (%w)", appI18n.T(ctx, "SaveFailed"), err)
	}
	return err
}

func parseValue(s string) any {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	return s
}

func (p *player) show() {
	v := p.run.View()
	fmt.Fprintf(p.out, "\n[%s] session %d: %s\n", v.Phase, v.SessionNumber, v.Title)
	if v.Step != nil {
		fmt.Fprintf(p.out, "step %d/%d %s (%s)\n", v.Index+1, v.Total, v.Step.Title, v.Step.Type)
		if v.Step.Content != "" {
			fmt.Fprintln(p.out, v.Step.Content)
		}
		for _, q := range v.Step.Questions {
			fmt.Fprintf(p.out, "  %s: %s", q.ID, q.Text)
			if a, ok := v.Inputs[q.ID]; ok {
				fmt.Fprintf(p.out, " = %v", a)
			}
			fmt.Fprintln(p.out)
		}
		if v.Interaction != nil {
			fmt.Fprintf(p.out, "  exercise: %v\n", v.Interaction)
		}
	}
	fmt.Fprintf(p.out, "continue: %t  back: %t\n", v.CanContinue, v.CanGoBack)
}
