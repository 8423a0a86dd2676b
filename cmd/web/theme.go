package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/taporibrain/internal/appearance"
	"github.com/zhouzirui/taporibrain/internal/service/theme"
	"github.com/zhouzirui/taporibrain/internal/storage/kv"
)

func newThemeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "theme",
		Short: "Show or change the stored theme preference",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the theme preference and the theme it resolves to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withThemes(cmd, func(themes *theme.Store) error {
				state := themes.State()
				fmt.Fprintf(cmd.OutOrStdout(), "preference: %s\neffective:  %s\n", state.Preference, state.Effective)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "set <light|dark|system>",
		Short:     "Store a theme preference",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(theme.Light), string(theme.Dark), string(theme.System)},
		RunE: func(cmd *cobra.Command, args []string) error {
			pref, err := theme.ParsePreference(args[0])
			if err != nil {
				return err
			}
			return a.withThemes(cmd, func(themes *theme.Store) error {
				if err := themes.Set(cmd.Context(), pref); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "theme set to %s\n", pref)
				return nil
			})
		},
	})

	return cmd
}

func (a *app) withThemes(cmd *cobra.Command, fn func(*theme.Store) error) error {
	store, err := kv.OpenSQLite(cmd.Context(), a.cfg.Client.StateDB)
	if err != nil {
		return err
	}
	defer store.Close()

	var source appearance.Source = appearance.Terminal()
	if a.cfg.Client.AppearanceFile != "" {
		source = appearance.NewFile(a.cfg.Client.AppearanceFile, a.logger)
	}

	themes, err := theme.New(cmd.Context(), store, source, a.logger)
	if err != nil {
		return err
	}
	defer themes.Close()
	return fn(themes)
}
