package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	opts "github.com/goliatone/go-optstore"
	"github.com/goliatone/go-optstore/internal/format"
	"github.com/goliatone/go-optstore/schema/openapi"
)

func (a *app) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the effective value of a dotted key",
		Args:  cobra.ExactArgs(1),
		RunE: a.action(func(cmd *cobra.Command, args []string) error {
			store, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			value, err := store.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, value.String())
			return nil
		}),
	}
}

func (a *app) setCommand() *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Assign a value and optionally write it to the override file",
		Long:  "set parses value as an integer, float, boolean or string, assigns it and prints the result. With --write every non-default value is saved to the --config file.",
		Args:  cobra.ExactArgs(2),
		RunE: a.action(func(cmd *cobra.Command, args []string) error {
			if write && a.settings.Config == "" {
				return usageError(errors.New("--write needs --config"))
			}
			store, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.SetWithContext(cmd.Context(), args[0], opts.ParseValue(args[1])); err != nil {
				return err
			}
			value, err := store.Get(args[0])
			if err != nil {
				return err
			}
			if write {
				if err := format.WriteFile(a.settings.Config, store.Overrides().Plain()); err != nil {
					return fmt.Errorf("write %s: %w", a.settings.Config, err)
				}
				a.log.Info().Str("path", a.settings.Config).Str("key", args[0]).Msg("override file written")
			}
			fmt.Fprintf(a.stdout, "%s = %s\n", args[0], value.String())
			return nil
		}),
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "save overrides to the --config file")
	return cmd
}

func (a *app) flatCommand() *cobra.Command {
	var provenance bool
	cmd := &cobra.Command{
		Use:   "flat <section>",
		Short: "List every leaf below a section",
		Args:  cobra.ExactArgs(1),
		RunE: a.action(func(cmd *cobra.Command, args []string) error {
			store, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			entries, err := store.FlattenWithProvenance(args[0])
			if err != nil {
				return err
			}
			for _, entry := range entries {
				if provenance {
					fmt.Fprintf(a.stdout, "%s = %s\t# %s\n", entry.Key, entry.Value.String(), entry.Scope)
					continue
				}
				fmt.Fprintf(a.stdout, "%s = %s\n", entry.Key, entry.Value.String())
			}
			return nil
		}),
	}
	cmd.Flags().BoolVarP(&provenance, "provenance", "p", false, "annotate each key with the layer that supplied it")
	return cmd
}

func (a *app) sectionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sections",
		Short: "List top-level sections",
		Args:  cobra.NoArgs,
		RunE: a.action(func(cmd *cobra.Command, args []string) error {
			store, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range store.Sections() {
				fmt.Fprintln(a.stdout, name)
			}
			return nil
		}),
	}
}

func (a *app) traceCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "trace <key>",
		Short: "Show which layers define a key, strongest first",
		Args:  cobra.ExactArgs(1),
		RunE: a.action(func(cmd *cobra.Command, args []string) error {
			store, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			value, trace, err := store.ResolveWithTrace(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				payload, err := trace.ToJSON()
				if err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, string(payload))
				return nil
			}
			fmt.Fprintf(a.stdout, "%s = %s\n", trace.Path, value.String())
			winner, _ := trace.Winner()
			for _, entry := range trace.Layers {
				marker := " "
				if entry.Found && entry.Scope.Name == winner.Scope.Name {
					marker = "*"
				}
				shown := "-"
				if entry.Found {
					shown = fmt.Sprint(entry.Value)
				}
				fmt.Fprintf(a.stdout, "%s %-10s %5d  %s\n", marker, entry.Scope.Name, entry.Scope.Priority, shown)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the trace as JSON")
	return cmd
}

func (a *app) evalCommand() *cobra.Command {
	var engine string
	cmd := &cobra.Command{
		Use:   "eval <expr>",
		Short: "Evaluate an expression against the effective configuration",
		Long:  "eval binds every top-level section as a variable, so 'loader.combo_min_pred > 3' works in each engine.",
		Args:  cobra.ExactArgs(1),
		RunE: a.action(func(cmd *cobra.Command, args []string) error {
			evaluator, err := opts.NewEvaluator(engine, opts.EngineWithProgramCache(opts.NewProgramCache()))
			if err != nil {
				return usageError(err)
			}
			store, err := a.open(cmd.Context(), opts.WithEvaluator(evaluator))
			if err != nil {
				return err
			}
			result, err := store.Evaluate(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, renderResult(result.Value))
			return nil
		}),
	}
	cmd.Flags().StringVarP(&engine, "engine", "e", opts.EngineExpr, "expression engine (expr, cel, js)")
	return cmd
}

func (a *app) dumpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: a.action(func(cmd *cobra.Command, args []string) error {
			store, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			out, err := store.Marshal(a.settings.OutputFormat())
			if err != nil {
				return err
			}
			fmt.Fprint(a.stdout, string(out))
			if len(out) > 0 && !strings.HasSuffix(string(out), "\n") {
				fmt.Fprintln(a.stdout)
			}
			return nil
		}),
	}
}

func (a *app) schemaCommand() *cobra.Command {
	var withOpenAPI, withScopes bool
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Describe the configuration as field descriptors or an OpenAPI document",
		Args:  cobra.NoArgs,
		RunE: a.action(func(cmd *cobra.Command, args []string) error {
			extra := []opts.Option{opts.WithScopeSchema(withScopes)}
			if withOpenAPI {
				extra = append(extra, openapi.Option(openapi.WithInfo("optsctl", version, "Effective configuration")))
			}
			store, err := a.open(cmd.Context(), extra...)
			if err != nil {
				return err
			}
			doc, err := store.Schema()
			if err != nil {
				return err
			}
			payload := map[string]any{
				"format":   doc.Format,
				"document": doc.Document,
			}
			if len(doc.Scopes) > 0 {
				payload["scopes"] = doc.Scopes
			}
			out, err := json.MarshalIndent(payload, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, string(out))
			return nil
		}),
	}
	cmd.Flags().BoolVar(&withOpenAPI, "openapi", false, "render an OpenAPI document instead of descriptors")
	cmd.Flags().BoolVar(&withScopes, "scopes", false, "include the applied layers")
	return cmd
}

func renderResult(value any) string {
	switch typed := value.(type) {
	case nil:
		return "null"
	case string:
		return typed
	case map[string]any, []any:
		out, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprint(typed)
		}
		return string(out)
	default:
		return fmt.Sprint(typed)
	}
}
