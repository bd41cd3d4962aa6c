package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/danmuck/rtmctl/internal/logging"
	"github.com/danmuck/rtmctl/internal/naming"
	"github.com/danmuck/rtmctl/internal/rtm"
	"github.com/danmuck/rtmctl/internal/system"
	"github.com/spf13/cobra"
)

func newLsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ls [path]",
		Short: "List bindings in a naming context (e.g. robot.host_cxt)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, s *session) error {
				nc := s.Naming().Root()
				if len(args) == 1 {
					path, err := naming.ParsePath(args[0])
					if err != nil {
						return err
					}
					if nc, err = s.Naming().ResolveContext(ctx, path); err != nil {
						return err
					}
				}
				bindings, err := nc.List(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tKIND\tTYPE")
				for _, b := range bindings {
					typ := "object"
					if b.IsContext {
						typ = "context"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", b.Name.ID, b.Name.Kind, typ)
				}
				return w.Flush()
			})
		},
	}
}

func newFactoriesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "factories",
		Short: "List component factories on the host's manager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, s *session) error {
				mgr, err := s.FindManager(ctx, s.host)
				if err != nil {
					return err
				}
				names, err := mgr.FactoryNames(ctx)
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	}
}

func newComponentsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "components",
		Short: "List component instances on the host's manager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, s *session) error {
				mgr, err := s.FindManager(ctx, s.host)
				if err != nil {
					return err
				}
				comps, err := mgr.Components(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tSTATE")
				for _, comp := range comps {
					name, err := comp.Name(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "%s\t%s\n", name, stateOf(ctx, comp))
				}
				return w.Flush()
			})
		},
	}
}

func newLoadCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "load <basename>",
		Short: "Load <basename>.so on the host's manager",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, s *session) error {
				mgr, err := s.FindManager(ctx, s.host)
				if err != nil {
					return err
				}
				if err := mgr.Load(ctx, args[0]); err != nil {
					var loadErr *rtm.LoadError
					if errors.As(err, &loadErr) {
						// Usually means the module is already loaded.
						logging.Warnf("rtmctl.load %v", err)
						return nil
					}
					return err
				}
				path, initFunc := rtm.ModulePaths(args[0])
				fmt.Fprintf(cmd.OutOrStdout(), "loaded %s (%s)\n", path, initFunc)
				return nil
			})
		},
	}
}

func newCreateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "create <factory>",
		Short: "Create a component instance from a loaded factory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, s *session) error {
				mgr, err := s.FindManager(ctx, s.host)
				if err != nil {
					return err
				}
				comp, err := mgr.Create(ctx, args[0])
				if err != nil {
					return err
				}
				if comp == nil {
					return fmt.Errorf("%w: %s", rtm.ErrComponentDeclined, args[0])
				}
				name, err := comp.Name(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), name)
				return nil
			})
		},
	}
}

func newStateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "state <component>",
		Short: "Show a component's lifecycle state and ports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, s *session) error {
				comp, err := s.component(ctx, opts, args[0])
				if err != nil {
					return err
				}
				ports, err := comp.PortNames(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "state: %s\n", stateOf(ctx, comp))
				for _, p := range ports {
					fmt.Fprintf(out, "port:  %s\n", p)
				}
				return nil
			})
		},
	}
}

func newLifecycleCmd(opts *options, activate bool) *cobra.Command {
	use, short := "stop <component>", "Deactivate a component on its execution context"
	if activate {
		use, short = "start <component>", "Activate a component on its execution context"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, s *session) error {
				comp, err := s.component(ctx, opts, args[0])
				if err != nil {
					return err
				}
				if comp.ExecutionContext() == nil {
					return fmt.Errorf("%w: %s", rtm.ErrNoExecutionContext, args[0])
				}
				if activate {
					err = comp.Start(ctx)
				} else {
					err = comp.Stop(ctx)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], stateOf(ctx, comp))
				return nil
			})
		},
	}
}

func newGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <component> <property>",
		Short: "Read a configuration property from the first configuration set",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, s *session) error {
				comp, err := s.component(ctx, opts, args[0])
				if err != nil {
					return err
				}
				value, ok, err := comp.Property(ctx, args[1])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%s has no property %q", args[0], args[1])
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			})
		},
	}
}

func newSetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set <component> <property> <value>",
		Short: "Write a configuration property and activate the default set",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, s *session) error {
				comp, err := s.component(ctx, opts, args[0])
				if err != nil {
					return err
				}
				return comp.SetProperty(ctx, args[1], args[2])
			})
		},
	}
}

func newConnectCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "connect <comp.outport> <comp.inport>",
		Short: "Connect two data ports; an existing connection is left alone",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outName, outPort, err := rtm.SplitPortSelector(args[0])
			if err != nil {
				return err
			}
			inName, inPort, err := rtm.SplitPortSelector(args[1])
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, s *session) error {
				out, err := s.component(ctx, opts, outName)
				if err != nil {
					return err
				}
				in, err := s.component(ctx, opts, inName)
				if err != nil {
					return err
				}
				return rtm.ConnectNamed(ctx, out, outPort, in, inPort)
			})
		},
	}
}

func newUnbindCmd(opts *options) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "unbind <name>",
		Short: "Remove a binding from the naming root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, s *session) error {
				return s.UnbindObject(ctx, args[0], kind)
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", naming.KindComponent, "binding kind")
	return cmd
}

func newApplyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <plan.yaml>",
		Short: "Bring a host to the state described by a system plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := system.Load(args[0])
			if err != nil {
				return err
			}
			if plan.Host == "" {
				plan.Host = opts.targetHost()
			}
			return opts.run(cmd, func(ctx context.Context, s *session) error {
				report, err := system.Apply(ctx, s.Client, plan)
				if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
					return perr
				}
				return err
			})
		},
	}
}

func stateOf(ctx context.Context, comp *rtm.Component) string {
	state, ok, err := comp.LifeCycleState(ctx)
	switch {
	case err != nil:
		return "ERROR(" + err.Error() + ")"
	case !ok:
		return "NO_CONTEXT"
	default:
		return state.String()
	}
}
