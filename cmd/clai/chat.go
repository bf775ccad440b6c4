package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"clai/internal/action"
	"clai/internal/compose"
	"clai/internal/config"
	"clai/internal/dispatch"
	"clai/internal/embedding"
	"clai/internal/index"
	"clai/internal/logging"
	"clai/internal/procs"
	"clai/internal/provider"
)

// ui bundles terminal styling. Markdown from the model goes through glamour;
// status and error lines are lipgloss-colored plain text.
type ui struct {
	renderer *glamour.TermRenderer
	prompt   lipgloss.Style
	errText  lipgloss.Style
	status   lipgloss.Style
	note     lipgloss.Style
}

func newUI() *ui {
	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	return &ui{
		renderer: renderer,
		prompt:   lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true),
		errText:  lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		status:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		note:     lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	}
}

func (u *ui) markdown(text string) string {
	if u.renderer != nil {
		if out, err := u.renderer.Render(text); err == nil {
			return out
		}
	}
	return text + "\n"
}

func (u *ui) errorf(format string, args ...any) {
	fmt.Println(u.errText.Render(fmt.Sprintf(format, args...)))
}

func (u *ui) statusf(format string, args ...any) {
	fmt.Println(u.status.Render(fmt.Sprintf(format, args...)))
}

func (u *ui) notef(format string, args ...any) {
	fmt.Println(u.note.Render(fmt.Sprintf(format, args...)))
}

// chatSession wires every component the interactive loop touches.
type chatSession struct {
	cfg        *config.Config
	idx        *index.Index
	composer   *compose.Composer
	history    *compose.History
	registry   *procs.Registry
	session    *dispatch.Session
	dispatcher *dispatch.Dispatcher
	client     provider.Client
	ui         *ui
}

func runChat(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, err := filepath.Abs(workspace)
	if err != nil {
		return fmt.Errorf("failed to resolve workspace: %w", err)
	}

	engine, err := embedding.NewEngine(cfg.Embedding)
	if err != nil {
		return err
	}
	idx, err := index.New(engine, cfg.Index)
	if err != nil {
		return err
	}
	defer idx.Close()

	sess, err := dispatch.NewSession(root)
	if err != nil {
		return err
	}
	registry := procs.NewRegistry(procs.Config{
		Retention:      cfg.ProcessRetention(),
		MaxOutputLines: cfg.Process.MaxOutputLines,
		KillGrace:      cfg.KillGrace(),
	})
	defer registry.Shutdown()

	client, err := provider.NewGenAIClient(cfg.Model)
	if err != nil {
		return err
	}

	s := &chatSession{
		cfg:        cfg,
		idx:        idx,
		composer:   compose.New(idx, cfg.Context),
		history:    compose.NewHistory(),
		registry:   registry,
		session:    sess,
		dispatcher: dispatch.New(sess, idx, registry),
		client:     client,
		ui:         newUI(),
	}

	// Keep the index fresh while the loop runs. Watch failures degrade to a
	// manual \scan workflow.
	if watcher, werr := index.NewWatcher(idx, root, cfg.WatchDebounce()); werr == nil {
		if werr = watcher.Start(ctx); werr == nil {
			defer watcher.Stop()
		} else {
			logging.Get(logging.CategoryMain).Warnw("file watcher unavailable", "error", werr)
		}
	} else {
		logging.Get(logging.CategoryMain).Warnw("file watcher unavailable", "error", werr)
	}

	s.ui.statusf("clai ready in %s (%d files tracked). \\help lists commands.", root, idx.Len())
	return s.loop(ctx)
}

func (s *chatSession) loop(ctx context.Context) error {
	reader := bufio.NewReader(os.Stdin)
	for {
		if ctx.Err() != nil {
			return nil
		}
		s.drainNotifications()

		fmt.Print(s.ui.prompt.Render("clai> ") + " ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Println()
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, `\`) {
			if quit := s.runMini(ctx, line); quit {
				return nil
			}
			continue
		}

		s.runTurn(ctx, line)
	}
}

// drainNotifications prints pending process completions and appends them to
// history so the model sees them next turn.
func (s *chatSession) drainNotifications() {
	for {
		select {
		case n := <-s.registry.Notifications():
			msg := fmt.Sprintf("process [%s] %s with exit code %d", n.CID, n.State, n.ExitCode)
			if n.Output != "" {
				msg += "\n" + n.Output
			}
			s.ui.notef("%s", msg)
			s.history.Append(compose.RoleUser, "[system] "+msg)
		default:
			return
		}
	}
}

func (s *chatSession) runTurn(ctx context.Context, line string) {
	blocks, err := s.composer.Build(ctx, line, s.history)
	if err != nil {
		s.ui.errorf("context build failed: %v", err)
		return
	}
	turns := s.history.Last(s.cfg.Context.HistoryTurns)

	text, err := s.client.Generate(ctx, provider.SystemPrompt, blocks, turns, line)
	if err != nil {
		s.ui.errorf("model request failed: %v", err)
		return
	}
	s.history.Append(compose.RoleUser, line)
	s.history.Append(compose.RoleAssistant, text)

	if !action.HasPayload(text) {
		fmt.Print(s.ui.markdown(text))
		return
	}

	if prose := strings.TrimSpace(action.StripPayload(text)); prose != "" {
		fmt.Print(s.ui.markdown(prose))
	}

	req, err := action.Parse(text)
	if err != nil {
		// Recoverable: tell the model what was wrong and keep going.
		s.ui.errorf("action rejected: %v", err)
		s.history.Append(compose.RoleUser,
			fmt.Sprintf("[system] your action payload was rejected: %v. Emit exactly one valid JSON action.", err))
		return
	}

	res := s.dispatcher.Dispatch(ctx, req)
	if res.OK {
		fmt.Println(res.Output)
		s.history.Append(compose.RoleUser, "[system] action succeeded: "+res.Summary)
	} else {
		s.ui.errorf("%s", res.Output)
		s.history.Append(compose.RoleUser, "[system] action failed: "+res.Output)
	}
}
