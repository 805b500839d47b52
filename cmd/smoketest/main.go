package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stake-plus/govproposals/src/commands"
	"github.com/stake-plus/govproposals/src/data"
	"github.com/stake-plus/govproposals/src/dispatch"
	"github.com/stake-plus/govproposals/src/executor"
	"github.com/stake-plus/govproposals/src/proposals"
)

type options struct {
	dsn      string
	prefix   string
	text     string
	timeout  time.Duration
	maxBytes int
}

// step is one scripted command and the prefix its reply must start with.
type step struct {
	text   string
	expect string
}

func main() {
	log.SetFlags(0)

	opts := options{}
	defaultDSN, err := data.GetDatabaseDSN()
	if err != nil {
		defaultDSN = "sqlite::memory:"
	}

	cmd := &cobra.Command{
		Use:           "smoketest",
		Short:         "Run a scripted submit/vote/view sequence against a database",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.dsn, "dsn", defaultDSN, "Database DSN (defaults to DATABASE_URL, then in-memory sqlite)")
	cmd.Flags().StringVar(&opts.prefix, "prefix", commands.DefaultPrefix, "Command prefix")
	cmd.Flags().StringVar(&opts.text, "text", "Smoke test proposal", "Proposal text to submit")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Per-command timeout")
	cmd.Flags().IntVar(&opts.maxBytes, "max-bytes", 1200, "Maximum bytes of each reply to print (0=unlimited)")

	if err := cmd.Execute(); err != nil {
		log.Printf("smoketest: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	db, err := data.Connect(opts.dsn, data.PoolConfig{})
	if err != nil {
		return err
	}
	defer data.Close(db)
	if err := proposals.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	store := proposals.NewStore(db, proposals.WithTimeout(opts.timeout))
	exec := executor.New(store, executor.WithPrefix(opts.prefix))
	d := dispatch.New(commands.NewParser(opts.prefix), exec, dispatch.Options{MaxConcurrent: 1})
	defer d.Stop(context.Background())

	fmt.Printf("=== smoketest (%s) ===\n", data.DriverFor(opts.dsn))

	failures := 0
	exchange := func(s step) {
		reply := d.Process(ctx, dispatch.Inbound{
			Transport:      "smoketest",
			ConversationID: "smoketest",
			SenderID:       "1",
			SenderName:     "smoketest",
			Text:           s.text,
		})
		status := "ok"
		if !strings.HasPrefix(reply, s.expect) {
			status = "FAIL"
			failures++
		}
		fmt.Printf("> %s\n%s\n[%s]\n\n", s.text, truncate(reply, opts.maxBytes), status)
	}

	p := opts.prefix
	exchange(step{text: p + "help", expect: commands.HelpText(p)})
	exchange(step{text: p + "submit " + opts.text, expect: "Proposal submitted: " + opts.text})

	id, err := newestProposal(ctx, store)
	if err != nil {
		return err
	}
	exchange(step{text: fmt.Sprintf("%svote %d", p, id), expect: "You voted for proposal: " + opts.text})
	exchange(step{text: fmt.Sprintf("%svote %d", p, id+1_000_000), expect: executor.InvalidProposalReply})
	exchange(step{text: p + "vote abc", expect: "Invalid argument"})
	exchange(step{text: p + "view", expect: "Proposals:\n"})
	exchange(step{text: p + "smoke", expect: "Unknown command: smoke"})

	if failures > 0 {
		return fmt.Errorf("%d step(s) failed", failures)
	}
	fmt.Println("all steps passed")
	return nil
}

func newestProposal(ctx context.Context, store *proposals.Store) (int64, error) {
	list, err := store.ListProposals(ctx)
	if err != nil {
		return 0, err
	}
	var newest int64
	for _, p := range list {
		if p.ID > newest {
			newest = p.ID
		}
	}
	if newest == 0 {
		return 0, fmt.Errorf("no proposal stored after submit")
	}
	return newest, nil
}

func truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	return text[:limit] + "…"
}
