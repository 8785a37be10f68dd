// ticketticket-chat is a terminal client for one TicketTicket conversation.
// Lines typed on stdin are sent as messages; new messages from the other
// side stream in over Server-Sent Events.
//
// Commands:
//
//	/retry     resend every failed message
//	/discard   drop every failed message
//	/quit      exit
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/chat"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		apiURL   string
		token    string
		convFlag string
		list     bool
		verbose  bool
	)

	flagSet := pflag.NewFlagSet("ticketticket-chat", pflag.ContinueOnError)
	flagSet.StringVar(&apiURL, "api", "http://localhost:8080", "API base URL")
	flagSet.StringVar(&token, "token", os.Getenv("TICKETTICKET_TOKEN"), "session token (default $TICKETTICKET_TOKEN)")
	flagSet.StringVarP(&convFlag, "conversation", "c", "", "conversation id to open")
	flagSet.BoolVarP(&list, "list", "l", false, "list conversations and exit")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if token == "" {
		return errors.New("a session token is required (--token or TICKETTICKET_TOKEN)")
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := chat.NewClient(apiURL, token, nil)

	if list || convFlag == "" {
		return listConversations(ctx, client, os.Stdout)
	}

	convID, err := uuid.Parse(convFlag)
	if err != nil {
		return fmt.Errorf("invalid --conversation: %w", err)
	}

	me, err := client.Me(ctx)
	if err != nil {
		return err
	}

	return chatLoop(ctx, client, me.ID, convID, os.Stdin, os.Stdout, logger)
}

func listConversations(ctx context.Context, client *chat.Client, out io.Writer) error {
	convs, err := client.Conversations(ctx)
	if err != nil {
		return err
	}

	if len(convs) == 0 {
		fmt.Fprintln(out, "no conversations yet")
		return nil
	}

	for _, c := range convs {
		last := ""
		if c.LastMessage != nil {
			last = c.LastMessage.Content
		}
		fmt.Fprintf(out, "%s  %-30s  unread:%-3d %s\n", c.ID, c.EventName, c.UnreadCount, last)
	}
	return nil
}

func chatLoop(
	ctx context.Context,
	client *chat.Client,
	selfID, convID uuid.UUID,
	in io.Reader,
	out io.Writer,
	logger *slog.Logger,
) error {
	session := chat.NewSession(client, selfID, convID, logger)

	r := &renderer{out: out, self: selfID, timeline: session.Timeline()}
	session.OnChange(r.render)

	if err := session.Load(ctx); err != nil {
		return err
	}

	go session.Follow(ctx, 2*time.Second)

	lines := bufio.NewScanner(in)
	for lines.Scan() {
		line := strings.TrimSpace(lines.Text())

		switch line {
		case "":
			continue
		case "/quit":
			return nil
		case "/retry":
			for _, id := range session.Timeline().Failed() {
				if err := session.Retry(ctx, id); err != nil {
					logger.Warn("retry failed", "error", err)
				}
			}
			continue
		case "/discard":
			for _, id := range session.Timeline().Failed() {
				_ = session.Timeline().Discard(id)
			}
			r.render()
			continue
		}

		session.Draft().Set(line)
		if err := session.Send(ctx); err != nil {
			fmt.Fprintf(out, "! not delivered: %v (type /retry)\n", err)
		}
	}

	return lines.Err()
}

type renderer struct {
	mu       sync.Mutex
	out      io.Writer
	self     uuid.UUID
	timeline *chat.Timeline
}

func (r *renderer) render() {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprint(r.out, "\033[H\033[2J")
	for _, e := range r.timeline.Entries() {
		who := "them"
		if e.Message.SenderID == r.self {
			who = "me"
		}

		mark := ""
		switch e.State {
		case chat.StatePending:
			mark = " (sending)"
		case chat.StateFailed:
			mark = " (failed)"
		}

		fmt.Fprintf(r.out, "%s %-4s %s%s\n", e.Message.CreatedAt.Local().Format("15:04"), who, e.Message.Content, mark)
	}
	fmt.Fprint(r.out, "> ")
}
