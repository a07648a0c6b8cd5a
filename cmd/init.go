package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/gosimple/slug"
	"github.com/shyim/kvprobe/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Creates a starter suite file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configFile); err == nil {
			return fmt.Errorf("suite already initialized (found %s)", configFile)
		}

		cfg := config.SuiteConfig{}

		cfg.Name, _ = cmd.Flags().GetString("name")
		cfg.Address, _ = cmd.Flags().GetString("address")
		presets, _ := cmd.Flags().GetStringSlice("preset")

		if cfg.Address == "" {
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Suite Name").
						Value(&cfg.Name),
					huh.NewInput().
						Title("Store Address (host:port or base URL of the store)").
						Placeholder("localhost:8080").
						Value(&cfg.Address).
						Validate(func(s string) error {
							if s == "" {
								return fmt.Errorf("address is required")
							}

							return nil
						}),
					huh.NewMultiSelect[string]().
						Title("Presets").
						Options(huh.NewOptions(config.PresetNames()...)...).
						Value(&presets),
				),
			)

			if err := form.RunWithContext(cmd.Context()); err != nil {
				return err
			}
		}

		cfg.Name = slug.Make(cfg.Name)
		cfg.FillDefaults()

		if len(presets) == 0 {
			presets = []string{"smoke"}
		}

		for _, preset := range presets {
			if err := config.AddPreset(&cfg, preset); err != nil {
				return err
			}
		}

		bytes, err := yaml.Marshal(cfg)

		if err != nil {
			return err
		}

		content := "# yaml-language-server: $schema=./schema.json\n" + string(bytes)

		if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
			return err
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created %s. Run kvprobe suite next\n", configFile)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().String("name", "", "Suite name")
	initCmd.Flags().String("address", "", "Store address, skips the prompts when set")
	initCmd.Flags().StringSlice("preset", nil, "Presets to add: smoke, conflict")
}
