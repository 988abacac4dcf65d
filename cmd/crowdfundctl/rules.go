package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"crowdfund/internal/compliance"
	"crowdfund/internal/countries"
)

type gatekeeperInput struct {
	State  compliance.VerificationState `json:"state"`
	Action struct {
		Kind   string          `json:"kind"`
		Role   compliance.Role `json:"role"`
		Fields map[string]any  `json:"fields,omitempty"`
	} `json:"action"`
}

type autoApproveInput struct {
	Profile compliance.RiskProfile    `json:"profile"`
	Action  string                    `json:"action"`
	Entity  compliance.EntitySnapshot `json:"entity"`
}

func gatekeeperCmd() *cobra.Command {
	var file string
	var failOnDeny bool
	cmd := &cobra.Command{
		Use:   "gatekeeper",
		Short: "Evaluate a gatekeeper verdict from JSON input",
		Long: `Reads {"state": {...}, "action": {"kind", "role"}} from --file or stdin
and prints the verdict.

Example:
  echo '{"state":{"kyc_status":"passed","fallback_kyc_status":"not_required",
    "country_payment_support":{"stripe_supported":true}},
    "action":{"kind":"invest","role":"investor"}}' | crowdfundctl gatekeeper`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in gatekeeperInput
			if err := decodeInput(cmd, file, &in); err != nil {
				return err
			}
			kind, err := compliance.ParseGateAction(in.Action.Kind)
			if err != nil {
				return err
			}
			verdict, err := compliance.EvaluateGatekeeper(in.State, compliance.ActionRequest{
				Kind:   kind,
				Role:   in.Action.Role,
				Fields: in.Action.Fields,
			})
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), verdict); err != nil {
				return err
			}
			if failOnDeny && !verdict.Allowed {
				return fmt.Errorf("denied: %s", verdict.Reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read input from file instead of stdin")
	cmd.Flags().BoolVar(&failOnDeny, "fail-on-deny", false, "exit non-zero when the verdict denies")
	return cmd
}

func autoApproveCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "auto-approve",
		Short: "Evaluate an auto-approval decision from JSON input",
		Long: `Reads {"profile": {...}, "action": "...", "entity": {...}} from --file or
stdin and prints the decision.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in autoApproveInput
			if err := decodeInput(cmd, file, &in); err != nil {
				return err
			}
			action, err := compliance.ParseApprovalAction(in.Action)
			if err != nil {
				return err
			}
			decision, err := compliance.DecideAutoApproval(in.Profile, action, in.Entity)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), decision)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read input from file instead of stdin")
	return cmd
}

func countriesCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "countries [code]",
		Short: "List the country support table or look up one code",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := countries.Default()
			if path != "" {
				table, err = countries.Load(path)
			}
			if err != nil {
				return err
			}
			if len(args) == 1 {
				support, err := table.Lookup(args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), support)
			}
			return printJSON(cmd.OutOrStdout(), table.List())
		},
	}
	cmd.Flags().StringVar(&path, "table", "", "country table YAML to load instead of the built-in one")
	return cmd
}

func decodeInput(cmd *cobra.Command, file string, v any) error {
	var r io.Reader = cmd.InOrStdin()
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
