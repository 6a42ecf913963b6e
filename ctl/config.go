package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	ghostline "github.com/Paranoid-AF/ghostline"
	"github.com/Paranoid-AF/ghostline/models"
)

const configLongDesc string = `Inspect the daemon's configuration.

The daemon reads config.json from $GHOSTLINE_CONFIG_DIR,
$XDG_CONFIG_HOME/ghostline or ~/.config/ghostline. Environment variables
prefixed with GHOSTLINE_ override file values, e.g.
GHOSTLINE_GENERATION_API_KEY.

Subcommands:
  ghostline config get        Print the effective configuration
  ghostline config defaults   Print the built-in defaults
  ghostline config validate   Report configuration problems
  ghostline config reload     Rebuild the daemon's engine from disk
  ghostline config prompt     Print the built-in prompt template`

// configActions maps subcommands to daemon config actions.
var configActions = []struct {
	use    string
	action string
	short  string
}{
	{"get", "get", "Print the effective configuration"},
	{"defaults", "defaults", "Print the built-in defaults"},
	{"validate", "validate", "Report configuration problems"},
	{"reload", "reload", "Rebuild the daemon's engine from disk"},
	{"prompt", "default_prompt", "Print the built-in prompt template"},
}

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the daemon's configuration",
		Long:  configLongDesc,
	}

	for _, a := range configActions {
		action := a.action
		cmd.AddCommand(&cobra.Command{
			Use:   a.use,
			Short: a.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				var resp ghostline.ConfigResponse
				if err := root.client().call(cmd.Context(), ghostline.ConfigRequest{Action: action}, &resp); err != nil {
					return err
				}
				if err := responseError(resp.Error); err != nil {
					return err
				}
				return printConfigResponse(cmd, action, &resp)
			},
		})
	}

	return cmd
}

func printConfigResponse(cmd *cobra.Command, action string, resp *ghostline.ConfigResponse) error {
	out := cmd.OutOrStdout()

	switch action {
	case "default_prompt":
		fmt.Fprintln(out, strings.TrimRight(resp.Prompt, "\n"))
		return nil
	case "validate":
		if len(resp.Warnings) == 0 {
			fmt.Fprintf(out, "%s configuration looks good\n", successMark)
			return nil
		}
		for _, w := range resp.Warnings {
			fmt.Fprintf(out, "%s %s\n", failMark, w)
		}
		return fmt.Errorf("%d configuration warning(s)", len(resp.Warnings))
	}

	if resp.Config == nil {
		return nil
	}
	redacted := *resp.Config
	if redacted.Generation.APIKey != "" {
		redacted.Generation.APIKey = "***"
	}
	if redacted.Embedding.APIKey != "" {
		redacted.Embedding.APIKey = "***"
	}
	data, err := json.MarshalIndent(redacted, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(data))
	if action == "reload" {
		fmt.Fprintf(out, "%s\n", dimStyle.Render("engine reload started"))
	}
	return nil
}

func newModelsCmd(root *rootOptions) *cobra.Command {
	var (
		plan   string
		chat   bool
		picker bool
	)

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models available on a plan",
		Long: `List code models. Without --plan the daemon answers for the plan in its
configuration; with --plan the built-in catalog is listed directly.

--chat lists chat models and --picker the curated chat list of the plan,
locked entries marked. Both read the catalog locally, using the plan from
the local configuration unless --plan is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			if chat || picker || cmd.Flags().Changed("plan") {
				if !cmd.Flags().Changed("plan") {
					cfg, err := ghostline.LoadConfig()
					if err != nil {
						return err
					}
					plan = cfg.Plan
				}
				p, err := models.ParsePlan(plan)
				if err != nil {
					return err
				}
				switch {
				case picker:
					for _, m := range models.PickerModels(p) {
						line := fmt.Sprintf("%s  %s", keyStyle.Render(m.Code), dimStyle.Render(m.Name))
						if m.Plan > p {
							line += "  " + failMark + dimStyle.Render(" requires "+m.Plan.String())
						}
						fmt.Fprintln(out, line)
					}
				case chat:
					printModels(out, models.ChatModels(p))
				default:
					printModels(out, models.CodeModels(p))
				}
				return nil
			}

			var resp ghostline.ConfigResponse
			if err := root.client().call(cmd.Context(), ghostline.ConfigRequest{Action: "models"}, &resp); err != nil {
				return err
			}
			if err := responseError(resp.Error); err != nil {
				return err
			}
			for _, code := range resp.Models {
				name := ""
				if m, ok := models.Lookup(code); ok {
					name = m.Name
				}
				fmt.Fprintf(out, "%s  %s\n", keyStyle.Render(code), dimStyle.Render(name))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&plan, "plan", "", "anonymous, free or individual")
	cmd.Flags().BoolVar(&chat, "chat", false, "list chat models instead of code models")
	cmd.Flags().BoolVar(&picker, "picker", false, "list the curated chat models of the plan")
	cmd.MarkFlagsMutuallyExclusive("chat", "picker")

	return cmd
}

func printModels(w io.Writer, list []models.Model) {
	for _, m := range list {
		fmt.Fprintf(w, "%s  %s\n", keyStyle.Render(m.Code), dimStyle.Render(m.Name))
	}
}
