package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jaeone94/comfy-mobile-graph/graph"
	"github.com/jaeone94/comfy-mobile-graph/session"
	"github.com/jaeone94/comfy-mobile-graph/workflow"
)

var setCmd = &cobra.Command{
	Use:   "set <workflow> <node-id> <widget> <value>",
	Short: "Set a widget value and save the workflow",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		g, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		nodeID, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid node id %q", args[1])
		}
		if _, ok := g.NodeByID(nodeID); !ok {
			return graph.ErrNodeNotFound
		}

		stack := session.NewStack(g, args[0])
		bridge := workflow.NewBridge(store, stack, args[0])
		defer bridge.Close()

		bridge.StageWidget(nodeID, args[2], parseWidgetValue(args[3]))
		bridge.CommitOverlay()
		return bridge.Flush(cmd.Context())
	},
}

var connectCmd = &cobra.Command{
	Use:   "connect <workflow> <origin-id> <origin-slot> <target-id> <target-slot>",
	Short: "Create a link between two nodes and save the workflow",
	Args:  cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		g, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		ints := make([]int, 4)
		for i, a := range args[1:] {
			v, err := strconv.Atoi(a)
			if err != nil {
				return fmt.Errorf("invalid argument %q", a)
			}
			ints[i] = v
		}

		stack := session.NewStack(g, args[0])
		bridge := workflow.NewBridge(store, stack, args[0])
		defer bridge.Close()

		l, err := bridge.Connect(ints[0], ints[1], ints[2], ints[3])
		if err != nil {
			return err
		}
		fmt.Printf("link %d: %d[%d] -> %d[%d]\n", l.ID, l.OriginID, l.OriginSlot, l.TargetID, l.TargetSlot)
		return bridge.Flush(cmd.Context())
	},
}

// parseWidgetValue maps a command line token to the narrowest widget value
// kind it fits.
func parseWidgetValue(s string) graph.WidgetValue {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return graph.IntValue(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return graph.FloatValue(f)
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return graph.BoolValue(b)
	}
	return graph.StringValue(s)
}

func init() {
	rootCmd.AddCommand(setCmd, connectCmd)
}
