package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nimburion/injurystore/pkg/health"
	"github.com/nimburion/injurystore/pkg/injury"
	"github.com/nimburion/injurystore/pkg/observability/logger"
	"github.com/nimburion/injurystore/pkg/store/factory"
)

// ReportedAtField is filled by "add" when missing.
const ReportedAtField = "reported_at"

// withStore loads configuration, opens the backend and runs fn against an
// injury store over it. The backend is closed afterwards.
func (a *app) withStore(cmd *cobra.Command, fn func(ctx context.Context, s *injury.Store, log logger.Logger) error) error {
	cfg, log, err := a.loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	backend, err := a.opts.OpenBackend(cfg, log, factory.WithMetrics(false))
	if err != nil {
		return err
	}
	defer closeQuietly(log, "store", backend)

	hooks, pub, err := a.openEvents(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	if pub != nil {
		defer closeQuietly(log, "events", pub)
	}

	s, err := injury.NewStore(backend, append([]injury.Option{
		injury.WithKey(cfg.Storage.Key),
		injury.WithLogger(log),
		injury.WithSerializedMutations(cfg.Store.SerializeMutations),
	}, hooks...)...)
	if err != nil {
		return err
	}
	return fn(cmd.Context(), s, log)
}

func (a *app) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the stored injuries as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, s *injury.Store, _ logger.Logger) error {
				return writeJSON(cmd.OutOrStdout(), s.GetInjuries(ctx))
			})
		},
	}
}

func (a *app) saveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "save <file|->",
		Short: "Replace the stored injuries with a JSON array read from a file or stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			var injuries []injury.Injury
			if err := json.Unmarshal(data, &injuries); err != nil {
				return fmt.Errorf("parse injuries: %w", err)
			}
			return a.withStore(cmd, func(ctx context.Context, s *injury.Store, _ logger.Logger) error {
				if err := s.SaveInjuries(ctx, injuries); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "saved %d injuries\n", len(injuries))
				return err
			})
		},
	}
}

func (a *app) addCommand() *cobra.Command {
	var noDefaults bool
	cmd := &cobra.Command{
		Use:   "add <json>",
		Short: "Append one injury record",
		Long: "Append one injury record. Unless --no-defaults is given, a record without an id\n" +
			"gets a random UUID and a record without " + ReportedAtField + " gets the current time.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := parseRecord(args[0])
			if err != nil {
				return err
			}
			if !noDefaults {
				applyDefaults(record, a.opts.Now())
			}
			return a.withStore(cmd, func(ctx context.Context, s *injury.Store, _ logger.Logger) error {
				injuries, err := s.AddInjury(ctx, record)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), injuries)
			})
		},
	}
	cmd.Flags().BoolVar(&noDefaults, "no-defaults", false, "store the record exactly as given")
	return cmd
}

func (a *app) updateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "update <json>",
		Short: "Replace the first stored injury with the same id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := parseRecord(args[0])
			if err != nil {
				return err
			}
			if _, ok := record[injury.IDField]; !ok {
				return errors.New("record has no id")
			}
			return a.withStore(cmd, func(ctx context.Context, s *injury.Store, _ logger.Logger) error {
				injuries, err := s.UpdateInjury(ctx, record)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), injuries)
			})
		},
	}
}

func (a *app) deleteCommand() *cobra.Command {
	var stringID bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove every stored injury with the given id",
		Long: "Remove every stored injury with the given id. Numeric-looking ids match numeric\n" +
			"ids only; pass --string-id to match a string id such as \"42\".",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := injury.ParseID(args[0], stringID)
			return a.withStore(cmd, func(ctx context.Context, s *injury.Store, _ logger.Logger) error {
				injuries, err := s.DeleteInjury(ctx, id)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), injuries)
			})
		},
	}
	cmd.Flags().BoolVar(&stringID, "string-id", false, "treat the id as a string even when it looks numeric")
	return cmd
}

func (a *app) clearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, s *injury.Store, _ logger.Logger) error {
				if err := s.ClearInjuries(ctx); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "cleared")
				return err
			})
		},
	}
}

func (a *app) healthcheckCommand() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check connectivity to the configured storage backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := a.loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			backend, err := a.opts.OpenBackend(cfg, log, factory.WithMetrics(false))
			if err != nil {
				return err
			}
			defer closeQuietly(log, "store", backend)

			result := health.NewRegistry(health.NewStoreChecker(cfg.Storage.Type, backend, timeout)).Check(cmd.Context())
			for _, check := range result.Checks {
				line := fmt.Sprintf("%s backend %s", check.Name, check.Status)
				if check.Error != "" {
					line += ": " + check.Error
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			if !result.IsHealthy() {
				return fmt.Errorf("%s backend unhealthy", cfg.Storage.Type)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "health check timeout")
	return cmd
}

func parseRecord(raw string) (injury.Injury, error) {
	var record injury.Injury
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("parse injury: %w", err)
	}
	if record == nil {
		return nil, errors.New("parse injury: expected a JSON object")
	}
	return record, nil
}

func applyDefaults(record injury.Injury, now time.Time) {
	if _, ok := record[injury.IDField]; !ok {
		record[injury.IDField] = uuid.NewString()
	}
	if _, ok := record[ReportedAtField]; !ok {
		record[ReportedAtField] = now.UTC().Format(time.RFC3339)
	}
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
