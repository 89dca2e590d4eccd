package main

import (
	"fmt"
	"strings"

	"github.com/pagewright/internal/config"
	"github.com/pagewright/internal/parts"
	"github.com/spf13/cobra"
)

var partsCmd = &cobra.Command{
	Use:   "parts",
	Short: "List the page part catalogue",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := config.NewViper(cfgFile)
		if err != nil {
			return err
		}
		cfg := config.Load(v)

		registry, err := parts.LoadDefault(cfg.PartsDir)
		if err != nil {
			return fmt.Errorf("load part catalogue: %w", err)
		}

		out := cmd.OutOrStdout()
		for _, key := range registry.Keys() {
			def, _ := registry.Definition(key)
			switch {
			case def.Container:
				fmt.Fprintf(out, "%-28s container  slots: %s\n", key, strings.Join(def.Slots, ", "))
			default:
				fmt.Fprintf(out, "%-28s fields: %s\n", key, strings.Join(def.FieldNames(), ", "))
			}
		}
		return nil
	},
}
