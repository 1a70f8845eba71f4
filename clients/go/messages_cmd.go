package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Arjunan-lab/ChattingApp/clients/go/chat"
	"github.com/Arjunan-lab/ChattingApp/internal/models"
	"github.com/Arjunan-lab/ChattingApp/internal/reconcile"
)

var (
	jsonOutput    bool
	sendRoom      bool
	historyRoom   bool
	watchRoom     bool
	watchInterval time.Duration
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output raw JSON")

	sendCmd.Flags().BoolVar(&sendRoom, "room", false, "Treat the target as a room id")
	historyCmd.Flags().BoolVar(&historyRoom, "room", false, "Treat the target as a room id")
	watchCmd.Flags().BoolVar(&watchRoom, "room", false, "Treat the target as a room id")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", reconcile.DefaultInterval, "Polling interval while watching")

	rootCmd.AddCommand(usersCmd, sendCmd, historyCmd, watchCmd)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printMessages(w io.Writer, self string, msgs []models.Message) {
	for _, m := range msgs {
		from := m.From
		if from == self && self != "" {
			from = "me"
		} else if len(from) > 8 {
			from = from[:8]
		}
		fmt.Fprintf(w, "[%s] %s: %s\n", m.CreatedAt.Local().Format("2006-01-02 15:04:05"), from, m.Content)
	}
}

type roomJoiner interface {
	JoinRoom(ctx context.Context, roomID string) error
}

// joinRoom subscribes to room pushes. On failure the watch still converges
// by polling, so the error is only reported.
func joinRoom(ctx context.Context, rt roomJoiner, roomID string, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rt.JoinRoom(ctx, roomID); err != nil {
		logger.Warn().Err(err).Str("room", roomID).Msg("join room failed, falling back to polling")
	}
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List users and who is online",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient()
		if err != nil {
			return err
		}
		users, err := client.Users(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), users)
		}
		for _, u := range users {
			dot := " "
			if u.Online {
				dot = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %-20s %s\n", dot, u.Name, u.ID)
		}
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <user-id> <message...>",
	Short: "Send a direct message (or a room message with --room)",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient()
		if err != nil {
			return err
		}
		content := strings.Join(args[1:], " ")

		var msg *models.Message
		if sendRoom {
			msg, err = client.SendToRoom(cmd.Context(), args[0], content)
		} else {
			msg, err = client.Send(cmd.Context(), args[0], content)
		}
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), msg)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sent: %s\n", msg.ID)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <user-id>",
	Short: "Print a conversation (or a room with --room)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg, err := newClient()
		if err != nil {
			return err
		}

		var msgs []models.Message
		if historyRoom {
			msgs, err = client.RoomMessages(cmd.Context(), args[0])
		} else {
			msgs, err = client.Conversation(cmd.Context(), args[0])
		}
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), msgs)
		}
		printMessages(cmd.OutOrStdout(), cfg.Auth.UserID, msgs)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <user-id>",
	Short: "Follow a conversation live until interrupted",
	Long: "Opens the conversation, reprints it whenever it changes and keeps it\n" +
		"current from pushes, falling back to polling when pushes are missed.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg, err := newClient()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		out := cmd.OutOrStdout()
		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			Level(zerolog.WarnLevel).
			With().
			Timestamp().
			Logger()

		target := reconcile.WithPeer(args[0])
		if watchRoom {
			target = reconcile.InRoom(args[0])
		}

		self := make(chan string, 1)
		rt := client.Realtime(chat.RealtimeConfig{AutoReconnect: true})
		rt.OnSession(func(p models.SessionPayload) {
			select {
			case self <- p.UserID:
			default:
			}
		})

		// The user id is needed to match pushes to the open conversation;
		// the session event supplies it when the config does not.
		userID := cfg.Auth.UserID
		errs := make(chan error, 1)
		go func() { errs <- rt.Run(ctx) }()
		if userID == "" {
			select {
			case userID = <-self:
			case err := <-errs:
				return fmt.Errorf("push connection: %w", err)
			case <-ctx.Done():
				return nil
			}
		}

		var last int
		loop := reconcile.New(client, userID, reconcile.Options{
			Interval: watchInterval,
			Logger:   logger,
			OnChange: func(v reconcile.View) {
				switch v.State {
				case reconcile.Synced:
					if len(v.Messages) < last {
						last = 0
					}
					if len(v.Messages) != last {
						printMessages(out, userID, v.Messages[last:])
						last = len(v.Messages)
					}
				case reconcile.Stale:
					fmt.Fprintf(os.Stderr, "(offline: %v)\n", v.Err)
				}
			},
		})
		defer loop.Close()

		rt.OnMessage(loop.Notify)
		rt.OnConnected(loop.Refresh)
		if watchRoom {
			rt.OnConnected(func() { joinRoom(ctx, rt, args[0], logger) })
		}
		loop.Select(target)
		if watchRoom && rt.Connected() {
			joinRoom(ctx, rt, args[0], logger)
		}

		select {
		case <-ctx.Done():
			return nil
		case err := <-errs:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("push connection: %w", err)
		}
	},
}
