package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/net/html"
	"gopkg.in/yaml.v3"

	css "github.com/ericchiang/css-invalidation"
	"github.com/ericchiang/css-invalidation/internal/metrics"
	"github.com/ericchiang/css-invalidation/invalidation"
)

// app is the state shared by the subcommands.
type app struct {
	configPath string
	logLevel   string
	output     string

	cfg    Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "cssinvalidation",
		Short: "Inspect CSS selectors and the invalidation sets built from them",
		Long: `cssinvalidation parses selectors and stylesheets, shows the invalidation
sets a style engine would build from them, and replays DOM mutations
against an HTML document to list the elements that need restyling.

Files named "-" are read from standard input.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", "", "output format: text or yaml")

	root.AddCommand(
		a.tokenizeCmd(),
		a.selectorsCmd(),
		a.indexCmd(),
		a.traceCmd(),
		a.invalidateCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.output != "" {
		cfg.Output = a.output
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = cfg.Logger(cmd.ErrOrStderr())
	return nil
}

// readInput reads a named file, or standard input for "-".
func readInput(cmd *cobra.Command, name string) (string, error) {
	if name == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(b), nil
}

func (a *app) writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return enc.Close()
}

type tokenOutput struct {
	Pos   int    `yaml:"pos"`
	Type  string `yaml:"type"`
	Raw   string `yaml:"raw"`
	Value string `yaml:"value,omitempty"`
}

func (a *app) tokenizeCmd() *cobra.Command {
	var comments bool
	cmd := &cobra.Command{
		Use:   "tokenize FILE",
		Short: "Print the tokens of a CSS file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			t := css.NewTokenizer(src)
			var toks []css.Token
			for {
				var tok css.Token
				if comments {
					tok = t.NextWithComments()
				} else {
					tok = t.Next()
				}
				if tok.Type == css.TokenEOF {
					break
				}
				toks = append(toks, tok)
			}
			a.logger.Debug("tokenized input", "tokens", len(toks), "bytes", len(src))

			out := cmd.OutOrStdout()
			if a.cfg.Output == "yaml" {
				list := make([]tokenOutput, 0, len(toks))
				for _, tok := range toks {
					list = append(list, tokenOutput{Pos: tok.Pos, Type: tok.Type.String(), Raw: tok.Raw, Value: tok.Value})
				}
				return a.writeYAML(out, list)
			}
			for _, tok := range toks {
				fmt.Fprintf(out, "%d\t%s\t%q\n", tok.Pos, tok.Type, tok.Raw)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&comments, "comments", false, "include comment tokens")
	return cmd
}

func (a *app) selectorsCmd() *cobra.Command {
	var forgiving bool
	cmd := &cobra.Command{
		Use:   "selectors SELECTOR",
		Short: "Parse a selector list and print it in canonical form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := css.ParseWithOptions(args[0], css.ParseOptions{Forgiving: forgiving})
			if err != nil {
				return err
			}
			var texts []string
			for i := l.First(); i >= 0; i = l.Next(i) {
				texts = append(texts, l.ComplexText(i))
			}
			out := cmd.OutOrStdout()
			if a.cfg.Output == "yaml" {
				return a.writeYAML(out, texts)
			}
			for _, s := range texts {
				fmt.Fprintln(out, s)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&forgiving, "forgiving", false, "drop invalid complex selectors instead of failing")
	return cmd
}

// build parses a stylesheet and indexes it.
func (a *app) build(cmd *cobra.Command, name string, m *metrics.Metrics) (*css.StyleSheet, *invalidation.RuleData, error) {
	src, err := readInput(cmd, name)
	if err != nil {
		return nil, nil, err
	}
	sheet := css.ParseStyleSheet(src)
	for _, err := range sheet.Errors {
		a.logger.Warn("dropped rule", "error", err)
	}
	opts := a.cfg.Options(a.logger)
	opts.Metrics = m
	b := invalidation.NewBuilder(opts)
	b.AddStyleSheet(sheet)
	return sheet, b.Data(), nil
}

func (a *app) newMetrics() (*prometheus.Registry, *metrics.Metrics, error) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(a.cfg.MetricsNamespace, reg)
	if err != nil {
		return nil, nil, err
	}
	return reg, m, nil
}

// printMetrics writes the non-zero counters of reg, and the sample count of
// each histogram.
func printMetrics(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		var total float64
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				total += c.GetValue()
			}
			if h := m.GetHistogram(); h != nil {
				total += float64(h.GetSampleCount())
			}
		}
		if total != 0 {
			fmt.Fprintf(w, "%s %g\n", mf.GetName(), total)
		}
	}
	return nil
}

func (a *app) indexCmd() *cobra.Command {
	var showMetrics bool
	cmd := &cobra.Command{
		Use:   "index STYLESHEET",
		Short: "Build and print the invalidation sets of a stylesheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, m, err := a.newMetrics()
			if err != nil {
				return err
			}
			_, data, err := a.build(cmd, args[0], m)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.cfg.Output == "yaml" {
				if err := a.writeYAML(out, data.Summary()); err != nil {
					return err
				}
			} else {
				data.ForEachSet(func(key string, s *invalidation.Set) {
					fmt.Fprintf(out, "%s\t%s\n", key, s)
				})
				if data.NeedsFullRecalc() {
					fmt.Fprintln(out, "# selectors too deeply nested, every mutation restyles the document")
				}
			}
			if showMetrics {
				return printMetrics(cmd.ErrOrStderr(), reg)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "print indexing metrics to stderr")
	return cmd
}

func (a *app) traceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trace STYLESHEET [KEY]",
		Short: "Show which simple selectors feed an invalidation set",
		Long: `trace replays the indexing of a stylesheet and prints each change made to
the set named KEY, such as ".a", "#b", "[href]", ":hover" or ":nth-child".
Without KEY every change is printed.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sheet, data, err := a.build(cmd, args[0], nil)
			if err != nil {
				return err
			}
			t := invalidation.NewTracer(data, a.logger)
			var entries []invalidation.TraceEntry
			if len(args) == 2 {
				entries = t.TraceSet(sheet, args[1])
			} else {
				entries = t.TraceStyleSheet(sheet)
			}
			out := cmd.OutOrStdout()
			if a.cfg.Output == "yaml" {
				return a.writeYAML(out, entries)
			}
			for _, e := range entries {
				key := e.Key
				if e.Part != "" {
					key += "/" + e.Part
				}
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", key, e.Selector, e.Simple, e.Features)
			}
			return nil
		},
	}
}

// mutation is one of the invalidate command's mutation flags.
type mutation struct {
	set       string
	removeKey string
	state     string
	off       bool
	insert    string
	remove    bool
}

func (m *mutation) apply(inv *invalidation.Invalidator, n *html.Node) ([]*html.Node, error) {
	switch {
	case m.set != "":
		key, val, _ := strings.Cut(m.set, "=")
		if key == "" {
			return nil, fmt.Errorf("invalid attribute %q, want key=value", m.set)
		}
		return inv.SetAttribute(n, key, val), nil
	case m.removeKey != "":
		return inv.RemoveAttribute(n, m.removeKey), nil
	case m.state != "":
		p, err := pseudoClass(m.state)
		if err != nil {
			return nil, err
		}
		return inv.SetState(n, p, !m.off), nil
	case m.insert != "":
		return inv.InsertBefore(n, invalidation.NewElement(m.insert), nil), nil
	case m.remove:
		if n.Parent == nil {
			return nil, errors.New("can't remove the document root")
		}
		return inv.RemoveChild(n.Parent, n), nil
	}
	return nil, errors.New("no mutation given")
}

// pseudoClass resolves a pseudo-class name such as "hover".
func pseudoClass(name string) (css.PseudoType, error) {
	l, err := css.Parse(":" + strings.TrimPrefix(name, ":"))
	if err != nil || l.Len() != 1 {
		return css.PseudoUnknown, fmt.Errorf("unknown pseudo-class %q", name)
	}
	s := l.SelectorAt(0)
	if s.Match != css.MatchPseudoClass {
		return css.PseudoUnknown, fmt.Errorf("%q is not a pseudo-class", name)
	}
	return s.Pseudo, nil
}

// describe returns a short selector-like name for an element.
func describe(n *html.Node) string {
	var b strings.Builder
	b.WriteString(n.Data)
	for _, a := range n.Attr {
		if a.Namespace != "" {
			continue
		}
		switch a.Key {
		case "id":
			b.WriteString("#" + a.Val)
		case "class":
			for _, c := range strings.Fields(a.Val) {
				b.WriteString("." + c)
			}
		}
	}
	return b.String()
}

func (a *app) invalidateCmd() *cobra.Command {
	var (
		target      string
		m           mutation
		showMetrics bool
	)
	cmd := &cobra.Command{
		Use:   "invalidate STYLESHEET HTML",
		Short: "Apply a mutation to an HTML document and list the elements to restyle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := css.Parse(target)
			if err != nil {
				return fmt.Errorf("invalid --target: %w", err)
			}
			reg, met, err := a.newMetrics()
			if err != nil {
				return err
			}
			_, data, err := a.build(cmd, args[0], met)
			if err != nil {
				return err
			}
			src, err := readInput(cmd, args[1])
			if err != nil {
				return err
			}
			doc, err := html.Parse(strings.NewReader(src))
			if err != nil {
				return fmt.Errorf("failed to parse html: %w", err)
			}

			inv := invalidation.NewInvalidator(data, a.logger)
			inv.SetMetrics(met)
			nodes := targets.Select(doc)
			if len(nodes) == 0 {
				return fmt.Errorf("no element matches %q", target)
			}
			var scheduled []string
			seen := map[*html.Node]bool{}
			for _, n := range nodes {
				restyle, err := m.apply(inv, n)
				if err != nil {
					return err
				}
				for _, r := range restyle {
					if !seen[r] {
						seen[r] = true
						scheduled = append(scheduled, describe(r))
					}
				}
			}
			a.logger.Info("applied mutation", "targets", len(nodes), "scheduled", len(scheduled))

			out := cmd.OutOrStdout()
			if a.cfg.Output == "yaml" {
				if err := a.writeYAML(out, scheduled); err != nil {
					return err
				}
			} else {
				for _, s := range scheduled {
					fmt.Fprintln(out, s)
				}
			}
			if showMetrics {
				return printMetrics(cmd.ErrOrStderr(), reg)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&target, "target", "", "selector of the elements to mutate")
	f.StringVar(&m.set, "set", "", "set an attribute, as key=value")
	f.StringVar(&m.removeKey, "remove-attribute", "", "remove an attribute")
	f.StringVar(&m.state, "state", "", "put the element in a pseudo-class state such as hover")
	f.BoolVar(&m.off, "off", false, "with --state, take the element out of the state")
	f.StringVar(&m.insert, "insert", "", "append a new child element with this tag name")
	f.BoolVar(&m.remove, "remove", false, "remove the element")
	f.BoolVar(&showMetrics, "metrics", false, "print invalidation metrics to stderr")
	cmd.MarkFlagRequired("target")
	cmd.MarkFlagsMutuallyExclusive("set", "remove-attribute", "state", "insert", "remove")
	cmd.MarkFlagsOneRequired("set", "remove-attribute", "state", "insert", "remove")
	return cmd
}
