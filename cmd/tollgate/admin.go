// ABOUTME: Operator commands that act on the database without a running server
// ABOUTME: Bootstrap, usage reset and history, tier and subscription changes, session purge

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/lautrek/tollgate/internal/auth"
	"github.com/lautrek/tollgate/internal/billing"
	"github.com/lautrek/tollgate/internal/config"
	"github.com/lautrek/tollgate/internal/gateway"
	"github.com/lautrek/tollgate/internal/store"
)

// parseFlags reads "--name value" and "--name=value" pairs for the allowed
// names. Positional arguments and unknown flags are errors.
func parseFlags(args []string, allowed ...string) (map[string]string, error) {
	known := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		known[name] = true
	}

	values := make(map[string]string)
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			return nil, fmt.Errorf("unexpected argument: %s", arg)
		}

		name, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if !known[name] {
			return nil, fmt.Errorf("unknown flag: %s", arg)
		}
		if !hasValue {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--%s requires a value", name)
			}
			value = args[i+1]
			i++
		}
		values[name] = strings.TrimSpace(value)
	}
	return values, nil
}

// requireFlags checks that every name has a non-empty value.
func requireFlags(values map[string]string, names ...string) error {
	for _, name := range names {
		if values[name] == "" {
			return fmt.Errorf("--%s flag is required", name)
		}
	}
	return nil
}

// withStore loads the config, opens the store and runs fn against it.
func withStore(fn func(cfg *config.Config, s store.Store) error) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := gateway.OpenStore(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	return fn(cfg, s)
}

// cliAudit records an operator action. A failure is reported but does not
// undo the change.
func cliAudit(ctx context.Context, s store.AuditStore, out io.Writer, e *store.AuditEntry) {
	if e.Detail == nil {
		e.Detail = map[string]any{}
	}
	e.Detail["source"] = "cli"
	if err := s.AppendAuditLog(ctx, e); err != nil {
		color.New(color.FgYellow).Fprintf(out, "  ! audit log: %v\n", err)
	}
}

// runBootstrap performs first-time setup:
// 1. Creates a config file with a random JWT secret (if none exists)
// 2. Creates the database and a verified admin account
// 3. Prints the account's API key once
//
// This is a one-command setup: tollgate bootstrap --email you@example.com
func runBootstrap(ctx context.Context, args []string, out io.Writer) error {
	flags, err := parseFlags(args, "email", "tier")
	if err != nil {
		return err
	}
	if err := requireFlags(flags, "email"); err != nil {
		return err
	}

	email := store.NormalizeEmail(flags["email"])
	if !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email address: %s", flags["email"])
	}
	tier := store.TierFree
	if flags["tier"] != "" {
		if tier, err = store.ParseTier(flags["tier"]); err != nil {
			return err
		}
	}

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	configPath := config.DefaultPath()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		secret, err := generateSecret()
		if err != nil {
			return err
		}
		dataPath := getDataPath()
		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
		if err := os.MkdirAll(dataPath, 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}

		content := defaultConfig("bootstrap", "localhost:8080", filepath.Join(dataPath, "tollgate.db"), secret)
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
		green.Fprintf(out, "  ✓ Created config: %s\n", configPath)
	} else {
		cyan.Fprintf(out, "  Using existing config: %s\n", configPath)
	}

	var apiKey string
	var user *store.User
	err = withStore(func(cfg *config.Config, s store.Store) error {
		green.Fprintf(out, "  ✓ Database: %s\n", cfg.Database.Path)

		keys := auth.NewAPIKeyAuthority(s, cfg.Auth.APIKeyPrefix)
		apiKey, err = keys.Generate()
		if err != nil {
			return fmt.Errorf("generating api key: %w", err)
		}

		user = &store.User{
			ID:            uuid.New().String(),
			Email:         email,
			APIKeyHash:    auth.Fingerprint(apiKey),
			Tier:          tier,
			EmailVerified: true,
			IsAdmin:       true,
		}
		if err := s.CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrEmailExists) {
				return fmt.Errorf("bootstrap already complete: %s is registered", email)
			}
			return fmt.Errorf("creating user: %w", err)
		}

		cliAudit(ctx, s, out, &store.AuditEntry{
			UserID:       user.ID,
			Action:       store.AuditSignup,
			ResourceType: "user",
			ResourceID:   user.ID,
			Detail:       map[string]any{"bootstrap": true},
		})
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	green.Fprintln(out, "  Bootstrap complete!")
	fmt.Fprintln(out)
	cyan.Fprintln(out, "  Admin Account")
	cyan.Fprintln(out, "  -------------")
	fmt.Fprintf(out, "  ID:       %s\n", user.ID)
	fmt.Fprintf(out, "  Email:    %s\n", user.Email)
	fmt.Fprintf(out, "  Tier:     %s\n", user.Tier)
	fmt.Fprintf(out, "  API key:  %s\n", apiKey)
	fmt.Fprintln(out)
	yellow.Fprintln(out, "  The API key is shown once. Store it now.")
	fmt.Fprintln(out, "    tollgate serve    # start the server")
	fmt.Fprintln(out)

	return nil
}

func runUsageReset(ctx context.Context, args []string, out io.Writer) error {
	flags, err := parseFlags(args, "user", "period")
	if err != nil {
		return err
	}
	if err := requireFlags(flags, "user"); err != nil {
		return err
	}

	return withStore(func(_ *config.Config, s store.Store) error {
		user, err := s.GetUser(ctx, flags["user"])
		if err != nil {
			return fmt.Errorf("looking up user %s: %w", flags["user"], err)
		}

		ledger := billing.NewLedger(s, nil)
		period := flags["period"]
		if period == "" {
			period = ledger.Period()
		}
		existed, err := ledger.Reset(ctx, user.ID, period)
		if err != nil {
			return err
		}

		cliAudit(ctx, s, out, &store.AuditEntry{
			UserID:       user.ID,
			Action:       store.AuditUsageReset,
			ResourceType: "usage",
			ResourceID:   user.ID + ":" + period,
			Detail:       map[string]any{"period": period, "existed": existed},
		})

		if existed {
			color.New(color.FgGreen).Fprintf(out, "  ✓ Reset usage for %s in %s\n", user.Email, period)
		} else {
			fmt.Fprintf(out, "  No usage recorded for %s in %s\n", user.Email, period)
		}
		return nil
	})
}

// defaultHistoryMonths is how many buckets usage history shows without --limit.
const defaultHistoryMonths = 12

func runUsageHistory(ctx context.Context, args []string, out io.Writer) error {
	flags, err := parseFlags(args, "user", "limit")
	if err != nil {
		return err
	}
	if err := requireFlags(flags, "user"); err != nil {
		return err
	}
	limit := defaultHistoryMonths
	if flags["limit"] != "" {
		limit, err = strconv.Atoi(flags["limit"])
		if err != nil || limit < 1 {
			return fmt.Errorf("--limit must be a positive integer, got %q", flags["limit"])
		}
	}

	return withStore(func(cfg *config.Config, s store.Store) error {
		user, err := s.GetUser(ctx, flags["user"])
		if err != nil {
			return fmt.Errorf("looking up user %s: %w", flags["user"], err)
		}

		records, err := billing.NewLedger(s, nil).History(ctx, user.ID, limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintf(out, "  No usage recorded for %s\n", user.Email)
			return nil
		}

		quota := "unlimited"
		if limit := cfg.Billing.MonthlyLimits[string(user.Tier)]; limit >= 0 {
			quota = strconv.FormatInt(limit, 10) + "/month"
		}
		color.New(color.FgCyan).Fprintf(out, "  Usage for %s (%s, %s)\n", user.Email, user.Tier, quota)
		for _, r := range records {
			last := "-"
			if r.LastOperationAt != nil {
				last = r.LastOperationAt.UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(out, "  %s  %8d  last %s\n", r.YearMonth, r.OperationCount, last)
		}
		return nil
	})
}

func runUserTier(ctx context.Context, args []string, out io.Writer) error {
	flags, err := parseFlags(args, "user", "tier")
	if err != nil {
		return err
	}
	if err := requireFlags(flags, "user", "tier"); err != nil {
		return err
	}
	tier, err := store.ParseTier(flags["tier"])
	if err != nil {
		return err
	}

	return withStore(func(_ *config.Config, s store.Store) error {
		user, err := s.GetUser(ctx, flags["user"])
		if err != nil {
			return fmt.Errorf("looking up user %s: %w", flags["user"], err)
		}
		if user.Tier == tier {
			fmt.Fprintf(out, "  %s is already on %s\n", user.Email, tier)
			return nil
		}
		if err := s.UpdateTier(ctx, user.ID, tier); err != nil {
			return fmt.Errorf("updating tier: %w", err)
		}

		cliAudit(ctx, s, out, &store.AuditEntry{
			UserID:       user.ID,
			Action:       store.AuditTierChanged,
			ResourceType: "user",
			ResourceID:   user.ID,
			Detail:       map[string]any{"from": string(user.Tier), "to": string(tier)},
		})
		color.New(color.FgGreen).Fprintf(out, "  ✓ %s: %s -> %s\n", user.Email, user.Tier, tier)
		return nil
	})
}

func runUserSubscription(ctx context.Context, args []string, out io.Writer) error {
	flags, err := parseFlags(args, "user", "status")
	if err != nil {
		return err
	}
	if err := requireFlags(flags, "user", "status"); err != nil {
		return err
	}

	return withStore(func(_ *config.Config, s store.Store) error {
		user, err := s.GetUser(ctx, flags["user"])
		if err != nil {
			return fmt.Errorf("looking up user %s: %w", flags["user"], err)
		}
		if err := s.UpdateSubscriptionStatus(ctx, user.ID, flags["status"]); err != nil {
			return fmt.Errorf("updating subscription status: %w", err)
		}

		cliAudit(ctx, s, out, &store.AuditEntry{
			UserID:       user.ID,
			Action:       store.AuditSubscriptionSync,
			ResourceType: "user",
			ResourceID:   user.ID,
			Detail:       map[string]any{"from": user.SubscriptionStatus, "to": flags["status"]},
		})
		color.New(color.FgGreen).Fprintf(out, "  ✓ %s subscription: %s\n", user.Email, flags["status"])
		return nil
	})
}

func runSessionsPurge(ctx context.Context, args []string, out io.Writer) error {
	if _, err := parseFlags(args); err != nil {
		return err
	}

	return withStore(func(_ *config.Config, s store.Store) error {
		n, err := auth.NewSessionAuthority(s).PurgeExpired(ctx)
		if err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(out, "  ✓ Purged %d expired session(s)\n", n)
		return nil
	})
}
