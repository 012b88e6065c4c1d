package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kylerisse/bottled/pkg/plan"
	"github.com/kylerisse/bottled/pkg/service"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// errFailedResponse is returned when a service responds with a failure, so
// the process exits non-zero.
var errFailedResponse = errors.New("service responded with failure")

func listCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, name := range a.registry.Names() {
				attrs, err := a.registry.Describe(name)
				if err != nil {
					return err
				}
				parts := make([]string, 0, len(attrs))
				for _, attr := range attrs {
					parts = append(parts, attr.String())
				}
				fmt.Fprintf(out, "%s\t%s\n", name, strings.Join(parts, ", "))
			}
			return nil
		},
	}
}

type attributeView struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

func describeCmd(a *app) *cobra.Command {
	var asJSON bool

	c := &cobra.Command{
		Use:   "describe <service>",
		Short: "Show the attributes a service accepts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			attrs, err := a.registry.Describe(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !asJSON {
				for _, attr := range attrs {
					fmt.Fprintln(out, attr.String())
				}
				return nil
			}

			views := make([]attributeView, 0, len(attrs))
			for _, attr := range attrs {
				v := attributeView{Name: attr.Name, Type: "any", Required: attr.Required}
				if attr.Type != nil {
					v.Type = attr.Type.String()
				}
				views = append(views, v)
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(views)
		},
	}

	c.Flags().BoolVar(&asJSON, "json", false, "print attributes as JSON")
	return c
}

func callCmd(a *app) *cobra.Command {
	var file string
	var sets []string
	var yieldValue string
	var get string

	c := &cobra.Command{
		Use:   "call <service>",
		Short: "Invoke a service once and print its response as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.dumpMetrics(cmd.ErrOrStderr())

			attrs, err := readAttributes(file)
			if err != nil {
				return err
			}
			for _, kv := range sets {
				key, value, err := parseSet(kv)
				if err != nil {
					return err
				}
				attrs[key] = value
			}

			var yield service.Continuation
			if cmd.Flags().Changed("yield") {
				yield = func(context.Context) any { return yieldValue }
			}

			resp, err := a.dispatcher.Dispatch(cmd.Context(), args[0], attrs, yield)
			if err != nil {
				return err
			}

			data, err := json.Marshal(resp)
			if err != nil {
				return fmt.Errorf("encode response: %w", err)
			}
			if get != "" {
				res := gjson.GetBytes(data, get)
				if !res.Exists() {
					return fmt.Errorf("path %q not found in response", get)
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.String())
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
			}

			if resp.Failed() {
				return errFailedResponse
			}
			return nil
		},
	}

	c.Flags().StringVarP(&file, "file", "f", "", "YAML or JSON file with the attributes")
	c.Flags().StringArrayVar(&sets, "set", nil, "set an attribute as key=value; the value is parsed as YAML (repeatable)")
	c.Flags().StringVar(&yieldValue, "yield", "", "value the continuation returns when the service yields")
	c.Flags().StringVar(&get, "get", "", "print only the value at this path of the response, e.g. attributes.message")
	return c
}

type stepView struct {
	Step     string            `json:"step"`
	Service  string            `json:"service"`
	Response *service.Response `json:"response,omitempty"`
	Error    string            `json:"error,omitempty"`
}

func runCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run <plan.yaml>",
		Short: "Invoke the enabled steps of a plan file in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.dumpMetrics(cmd.ErrOrStderr())

			p, err := plan.Load(args[0])
			if err != nil {
				return err
			}

			outcomes, runErr := plan.Run(cmd.Context(), a.dispatcher, p)
			if err := printOutcomes(cmd.OutOrStdout(), outcomes); err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}

			if n := plan.Failures(outcomes); n > 0 {
				return fmt.Errorf("%w (%d of %d step(s))", errFailedResponse, n, len(outcomes))
			}
			return nil
		},
	}
}

func printOutcomes(w io.Writer, outcomes []plan.Outcome) error {
	enc := json.NewEncoder(w)
	for _, o := range outcomes {
		v := stepView{Step: o.Step.Name, Service: o.Step.Service, Response: o.Response}
		if o.Err != nil {
			v.Error = o.Err.Error()
		}
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode outcome: %w", err)
		}
	}
	return nil
}

// readAttributes loads a YAML (or JSON) mapping from path. An empty path
// yields an empty map.
func readAttributes(path string) (map[string]any, error) {
	attrs := map[string]any{}
	if path == "" {
		return attrs, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read attributes %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &attrs); err != nil {
		return nil, fmt.Errorf("could not parse attributes %s: %w", path, err)
	}
	if attrs == nil {
		attrs = map[string]any{}
	}
	return attrs, nil
}

// parseSet splits key=value and decodes value as a YAML scalar, so
// times=3 yields an int and upcase=true a bool. An empty value is the
// empty string.
func parseSet(kv string) (string, any, error) {
	key, raw, ok := strings.Cut(kv, "=")
	if !ok || key == "" {
		return "", nil, fmt.Errorf("invalid --set %q, want key=value", kv)
	}
	if raw == "" {
		return key, "", nil
	}
	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return key, raw, nil
	}
	return key, value, nil
}
