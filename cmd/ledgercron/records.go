package main

import (
	"encoding/json"
	"fmt"

	"github.com/aatumaykin/ledgercron/internal/config"
	"github.com/aatumaykin/ledgercron/internal/constants"
	"github.com/aatumaykin/ledgercron/internal/identity"
	"github.com/aatumaykin/ledgercron/internal/logger"
	"github.com/aatumaykin/ledgercron/internal/storage"
	"github.com/spf13/cobra"
)

type recordsOptions struct {
	*globalOptions

	persistent string
	prefix     string
	sender     string
}

func newRecordsCmd(global *globalOptions) *cobra.Command {
	opts := &recordsOptions{globalOptions: global}

	cmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect the persistent store",
	}
	cmd.PersistentFlags().StringVar(&opts.persistent, "persistent", "", "Path to the persistent store database")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(store *storage.Ledger) error {
				records, err := store.List(cmd.Context(), opts.prefix)
				if err != nil {
					return err
				}
				if opts.sender != "" {
					if records, err = filterBySender(records, opts.sender); err != nil {
						return err
					}
				}
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprint(out, constants.MsgNoRecords)
					return nil
				}
				for _, r := range records {
					if r.Err != nil {
						fmt.Fprintf(out, constants.MsgRecordUndecodable, r.Key, r.Err)
						continue
					}
					data, err := json.Marshal(r.Outcome)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s\t%s\n", r.Key, data)
				}
				return nil
			})
		},
	}
	listCmd.Flags().StringVar(&opts.prefix, "prefix", "/cron/", "Only list keys with this prefix")
	listCmd.Flags().StringVar(&opts.sender, "sender", "", "Only list records of this sender (hex or text identity)")

	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(store *storage.Ledger) error {
				o, ok, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf(constants.MsgRecordNotFound, args[0])
				}
				data, err := json.MarshalIndent(o, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
				return nil
			})
		},
	}

	cmd.AddCommand(listCmd, getCmd)
	return cmd
}

// withStore opens the configured store, runs fn and closes the store.
func (o *recordsOptions) withStore(cmd *cobra.Command, fn func(store *storage.Ledger) error) error {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return err
	}
	if o.persistent != "" {
		cfg.Storage.Path = o.persistent
	}

	store, err := openStore(cmd, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(store)
}

// filterBySender keeps the records whose key names sender as its first identity part.
func filterBySender(records []storage.Record, sender string) ([]storage.Record, error) {
	id, err := identity.Decode(sender)
	if err != nil {
		return nil, fmt.Errorf("invalid --sender: %w", err)
	}

	var kept []storage.Record
	for _, r := range records {
		if _, parts := storage.SplitKey(r.Key); len(parts) > 0 && parts[0] == id.String() {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

func openStore(cmd *cobra.Command, cfg *config.Config) (*storage.Ledger, error) {
	engine, err := storage.OpenSQLite(cmd.Context(), storage.SQLiteConfig{
		Path:        cfg.Storage.Path,
		BusyTimeout: cfg.Storage.LockTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open persistent store: %w", err)
	}
	return storage.NewLedger(engine, storage.Config{LockTimeout: cfg.Storage.LockTimeout()}, logger.Nop(), nil), nil
}
