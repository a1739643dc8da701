package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/BrandonDHaskell/tapbox/internal/config"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/service"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/store"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/types"
)

// withStore mounts the store for a one-shot command. These commands bypass
// the engine; run them while the device is stopped or use the HTTP API.
func withStore(cmd *cobra.Command, cfg *config.Config, fn func(fs store.FS) error) error {
	fs, unmount, err := openStore(cmd.Context(), *cfg)
	if err != nil {
		return err
	}
	defer unmount()
	return fn(fs)
}

func cardsCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "Inspect and edit the card registry",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List registered cards in storage order",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, cfg, func(fs store.FS) error {
					cards, err := service.NewCardRegistry(fs).List()
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "UID\tCOLOR\tANIMATION")
					for _, c := range cards {
						fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Color, c.Animation)
					}
					return tw.Flush()
				})
			},
		},
		&cobra.Command{
			Use:   "add UID COLOR ANIMATION",
			Short: "Register a card",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				rec, err := service.ParseCardRecord(args[0], args[1], args[2])
				if err != nil {
					return err
				}
				return withStore(cmd, cfg, func(fs store.FS) error {
					if err := service.NewCardRegistry(fs).Add(rec); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", rec.ID)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "delete UID",
			Short: "Remove every entry for a card",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := types.ParseTagID(args[0])
				if err != nil {
					return err
				}
				return withStore(cmd, cfg, func(fs store.FS) error {
					if err := service.NewCardRegistry(fs).Delete(id); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
					return nil
				})
			},
		},
	)
	return cmd
}

func activityCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Inspect the activity log",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print every activity record",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, cfg, func(fs store.FS) error {
					recs, err := service.NewActivityLog(fs).ReadAll()
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "TIME\tUID\tSTATUS")
					for _, r := range recs {
						fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Time, r.ID, r.Status)
					}
					return tw.Flush()
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete the activity log",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, cfg, func(fs store.FS) error {
					if err := service.NewActivityLog(fs).Clear(); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "activity log cleared")
					return nil
				})
			},
		},
	)
	return cmd
}

func configCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the device configuration",
	}
	var asYAML bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective device configuration after defaulting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, cfg, func(fs store.FS) error {
				dc, issues, err := service.NewConfigStore(fs).Load()
				if err != nil {
					return err
				}
				for _, field := range issues {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s is invalid, default used\n", field)
				}
				var out []byte
				if asYAML {
					out, err = yaml.Marshal(dc)
				} else {
					out, err = json.MarshalIndent(dc, "", "  ")
					out = append(out, '\n')
				}
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			})
		},
	}
	show.Flags().BoolVar(&asYAML, "yaml", false, "print YAML instead of JSON")
	cmd.AddCommand(show)
	return cmd
}
