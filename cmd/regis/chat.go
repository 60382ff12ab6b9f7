package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/providers"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/sdk"
)

const (
	defaultLogLines = 20
	maxLineSize     = 1 << 20
)

const chatHelp = `Starts an interactive chat. Replies stream to the terminal as they arrive.
Ctrl-C cancels the reply in progress; Ctrl-D exits.

Commands:
  /clear             clear both conversations
  /model [id]        show or select a model (its prefix picks the provider)
  /provider [id]     show or switch the active provider
  /improve <text>    rewrite a prompt through the backend
  /logs [n]          show the most recent log records
  /health            probe the backend
  /help              show this help
  /quit              exit`

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat",
	Long:  chatHelp,
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	a, err := setupApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	r := &repl{
		client:      a.client,
		in:          os.Stdin,
		out:         os.Stdout,
		interactive: isTerminal(os.Stdin),
		onInterrupt: notifyInterrupt,
	}
	return r.run(cmd.Context())
}

// repl reads user lines and streams replies.
type repl struct {
	client      *sdk.Client
	in          io.Reader
	out         io.Writer
	interactive bool

	// onInterrupt arranges for cancel to run on Ctrl-C and returns a function
	// that stops listening.
	onInterrupt func(cancel context.CancelFunc) (stop func())
}

func notifyInterrupt(cancel context.CancelFunc) func() {
	sigs := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigs, os.Interrupt)
	go func() {
		select {
		case <-sigs:
			cancel()
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

func (r *repl) run(ctx context.Context) error {
	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	if r.interactive {
		fmt.Fprintln(r.out, dimStyle.Render("Type a message, /help for commands, Ctrl-D to exit."))
	}
	for {
		if r.interactive {
			fmt.Fprint(r.out, promptStyle.Render(string(r.client.Provider())+" › "))
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := r.command(ctx, line); quit {
				return nil
			}
			continue
		}
		r.send(ctx, line)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (r *repl) send(ctx context.Context, message string) {
	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if r.onInterrupt != nil {
		stop := r.onInterrupt(cancel)
		defer stop()
	}

	err := r.client.SendMessageStream(turnCtx, message, providers.Callbacks{
		OnToken: func(token string) {
			fmt.Fprint(r.out, token)
		},
	})
	fmt.Fprintln(r.out)
	if err != nil {
		fmt.Fprintln(r.out, errorStyle.Render("error: "+err.Error()))
	}
}

// command runs a slash command and reports whether the loop should end.
func (r *repl) command(ctx context.Context, line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(r.out, chatHelp)
	case "/clear":
		r.client.ClearChatHistory(ctx)
		fmt.Fprintln(r.out, successStyle.Render("history cleared"))
	case "/model":
		if arg != "" {
			r.client.SetModel(arg)
		}
		fmt.Fprintf(r.out, "%s %s\n", labelStyle.Render("model"), r.client.Model())
		fmt.Fprintf(r.out, "%s %s\n", labelStyle.Render("provider"), r.client.Provider())
	case "/provider":
		r.provider(ctx, arg)
	case "/improve":
		if arg == "" {
			fmt.Fprintln(r.out, warningStyle.Render("usage: /improve <text>"))
			break
		}
		fmt.Fprintln(r.out, r.client.ImprovePrompt(ctx, arg))
	case "/logs":
		r.logs(arg)
	case "/health":
		printHealth(r.out, r.client.HealthCheck(ctx))
	default:
		fmt.Fprintln(r.out, warningStyle.Render("unknown command "+name+", try /help"))
	}
	return false
}

func (r *repl) provider(ctx context.Context, arg string) {
	if arg == "" {
		available := make([]string, 0, 2)
		for _, id := range r.client.AvailableProviders() {
			available = append(available, string(id))
		}
		fmt.Fprintf(r.out, "%s %s\n", labelStyle.Render("active"), r.client.Provider())
		fmt.Fprintf(r.out, "%s %s\n", labelStyle.Render("available"), strings.Join(available, ", "))
		return
	}
	id, err := providers.ParseProviderID(arg)
	if err == nil {
		err = r.client.SetProvider(ctx, id)
	}
	if err != nil {
		fmt.Fprintln(r.out, errorStyle.Render(err.Error()))
		return
	}
	fmt.Fprintln(r.out, successStyle.Render("switched to "+string(id)+", history cleared"))
}

func (r *repl) logs(arg string) {
	n := defaultLogLines
	if arg != "" {
		if v, err := strconv.Atoi(arg); err == nil && v > 0 {
			n = v
		}
	}
	entries := r.client.Logs()
	if len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	for _, e := range entries {
		level := e.Level
		switch level {
		case "ERROR":
			level = errorStyle.Render(level)
		case "WARN":
			level = warningStyle.Render(level)
		default:
			level = infoStyle.Render(level)
		}
		fmt.Fprintf(r.out, "%s %s [%s] %s\n",
			dimStyle.Render(e.Timestamp.Format("15:04:05")), level, e.Source, e.Message)
	}
}
