// Command slot-seeder fills the slot store with AVAILABLE slots for the
// upcoming working days. Reruns never overwrite existing slots.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/config"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/libs/errs"
	"github.com/md-rashed-zaman/slotbook/libs/runtime"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/provisioning"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/storage"
	flag "github.com/spf13/pflag"
)

type env struct {
	DatabaseURL string `envconfig:"DATABASE_URL"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	AutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"true"`
}

type options struct {
	start        time.Time
	days         int
	labels       []string
	skipWeekends bool
	dryRun       bool
}

func main() {
	ctx, stop := runtime.SignalContext()
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, out, errOut io.Writer) int {
	opts, err := parseFlags(args, time.Now())
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 2
	}
	slots := provisioning.Plan(opts.start, opts.days, opts.labels, opts.skipWeekends)

	if opts.dryRun {
		for _, s := range slots {
			fmt.Fprintf(out, "%s\t%s\t%s\n", s.SlotID, s.Date, s.Time)
		}
		fmt.Fprintf(out, "%d slots planned\n", len(slots))
		return 0
	}

	var e env
	if err := config.Load(&e); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 2
	}
	if strings.TrimSpace(e.DatabaseURL) == "" {
		fmt.Fprintln(errOut, "error: DATABASE_URL is required unless --dry-run is set")
		return 2
	}
	logger := runtime.NewLogger("slot-seeder", e.LogLevel)

	pool, err := db.Open(ctx, e.DatabaseURL, db.Options{MaxConns: 2})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		return 1
	}
	defer pool.Close()

	store := storage.NewPostgresStore(pool)
	if e.AutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Error("schema migration failed", "err", err)
			return 1
		}
	}

	rep, err := provisioning.Seed(ctx, store, slots)
	if err != nil {
		logger.Error("seeding failed", "created", rep.Created, "skipped", rep.Skipped, "err", err)
		return 1
	}
	logger.Info("seeding complete", "created", rep.Created, "skipped", rep.Skipped, "from", opts.start.Format(model.DateLayout), "days", opts.days)
	return 0
}

func parseFlags(args []string, now time.Time) (options, error) {
	fs := flag.NewFlagSet("slot-seeder", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	start := fs.String("start", "", "First day to plan (YYYY-MM-DD, default tomorrow)")
	days := fs.Int("days", 13, "Number of calendar days to plan")
	times := fs.StringSlice("times", nil, "Explicit HH:MM labels; overrides the workday window")
	workdayStart := fs.String("workday-start", "09:00", "Start of the working window")
	workdayEnd := fs.String("workday-end", "18:00", "End of the working window")
	step := fs.Duration("step", time.Hour, "Distance between slot starts")
	length := fs.Duration("length", 0, "Slot length (default one step)")
	blackouts := fs.StringSlice("blackout", nil, "HH:MM-HH:MM spans without slots, repeatable")
	skipWeekends := fs.Bool("skip-weekends", true, "Skip Saturdays and Sundays")
	dryRun := fs.Bool("dry-run", false, "Print the plan without writing")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if *days <= 0 {
		return options{}, errs.New("--days must be positive")
	}

	opts := options{days: *days, skipWeekends: *skipWeekends, dryRun: *dryRun}
	if *start == "" {
		opts.start = now.AddDate(0, 0, 1)
	} else {
		t, err := time.ParseInLocation(model.DateLayout, *start, now.Location())
		if err != nil {
			return options{}, errs.Wrap(err, "invalid --start")
		}
		opts.start = t
	}

	if fs.Changed("times") {
		for _, raw := range *times {
			d, err := provisioning.ParseClock(raw)
			if err != nil {
				return options{}, err
			}
			opts.labels = append(opts.labels, provisioning.FormatClock(d))
		}
		return opts, nil
	}

	from, err := provisioning.ParseClock(*workdayStart)
	if err != nil {
		return options{}, err
	}
	to, err := provisioning.ParseClock(*workdayEnd)
	if err != nil {
		return options{}, err
	}
	var spans []provisioning.Interval
	for _, raw := range *blackouts {
		iv, err := provisioning.ParseInterval(raw)
		if err != nil {
			return options{}, err
		}
		spans = append(spans, iv)
	}
	slotLen := *length
	if slotLen <= 0 {
		slotLen = *step
	}
	opts.labels = provisioning.Labels(from, to, slotLen, *step, spans)
	if len(opts.labels) == 0 {
		return options{}, errs.New("the workday window yields no slots")
	}
	return opts, nil
}
