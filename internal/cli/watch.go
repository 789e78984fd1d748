package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tOgg1/tribe/internal/chat"
	"github.com/tOgg1/tribe/internal/chatsync"
	"github.com/tOgg1/tribe/internal/logging"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		interval time.Duration
		backlog  int
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the chat and print messages as they arrive",
		Long:  "Print recent messages, then poll the server and print new and edited messages until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.open(cmd, logToStderr)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := rt.session.Start(ctx); err != nil {
				return err
			}
			if !cmd.Flags().Changed("interval") {
				interval = rt.cfg.Sync.PollInterval
			}

			w := newWatchPrinter(cmd.OutOrStdout(), rt.session.Directory())
			w.printBacklog(rt.session.Store().Messages(), backlog)

			store := rt.session.Store()
			poller := chatsync.NewPoller(rt.session, chatsync.PollerConfig{
				Interval: interval,
				OnPoll: func(int, error) {
					w.printNew(store.Messages())
				},
			})
			if err := poller.Start(ctx); err != nil {
				return err
			}
			log := logging.Component("watch")
			log.Debug().Dur("interval", interval).Msg("watching for new messages")

			<-ctx.Done()
			if err := poller.Stop(); err != nil && !errors.Is(err, chatsync.ErrPollerNotRunning) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", chatsync.DefaultPollInterval, "poll interval (default: sync.poll_interval)")
	cmd.Flags().IntVarP(&backlog, "backlog", "n", 10, "number of recent messages to print first")
	return cmd
}

// watchPrinter prints each message version once, oldest first.
type watchPrinter struct {
	out io.Writer
	dir chat.Lookup
	loc *time.Location

	mu   sync.Mutex
	seen map[string]time.Time
}

func newWatchPrinter(out io.Writer, dir chat.Lookup) *watchPrinter {
	return &watchPrinter{out: out, dir: dir, loc: time.Local, seen: make(map[string]time.Time)}
}

func (w *watchPrinter) printBacklog(msgs []chat.Message, n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := len(msgs) - 1; i >= 0; i-- {
		if i < n {
			fmt.Fprintln(w.out, formatLine(msgs[i], w.dir, w.loc))
		}
		w.seen[msgs[i].UUID] = msgs[i].LastUpdate()
	}
}

func (w *watchPrinter) printNew(msgs []chat.Message) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := len(msgs) - 1; i >= 0; i-- {
		msg := msgs[i]
		last, ok := w.seen[msg.UUID]
		if ok && !msg.LastUpdate().After(last) {
			continue
		}
		w.seen[msg.UUID] = msg.LastUpdate()
		fmt.Fprintln(w.out, formatLine(msg, w.dir, w.loc))
	}
}
