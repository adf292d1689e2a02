package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/jaeone94/comfy-mobile-graph/client"
	"github.com/jaeone94/comfy-mobile-graph/session"
	"github.com/jaeone94/comfy-mobile-graph/workflow"
	"github.com/rs/zerolog/log"
)

var runCmd = &cobra.Command{
	Use:   "run <workflow>",
	Short: "Queue a workflow on the server and follow its progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		store, err := openStore()
		if err != nil {
			return err
		}
		g, err := store.Load(ctx, args[0])
		if err != nil {
			return err
		}

		c, err := newClient()
		if err != nil {
			return err
		}

		// validate the document against the server's catalog before queueing
		reg, err := c.FetchRegistry(ctx)
		if err != nil {
			return err
		}
		if missing := reg.MissingTypes(g); len(missing) > 0 {
			return fmt.Errorf("server is missing node types: %v", missing)
		}
		reg.BindWidgetNames(g)

		stack := session.NewStack(g, args[0])
		bridge := workflow.NewBridge(store, stack, args[0], workflow.WithRegistry(reg))
		defer bridge.Close()

		prompt, err := bridge.BuildPrompt(c.ClientID())
		if err != nil {
			return err
		}

		events := c.Listen(ctx)
		exec, err := c.QueuePrompt(ctx, prompt)
		if err != nil {
			return err
		}
		log.Info().Str("prompt_id", exec.PromptID).Int("number", exec.Number).Msg("queued")

		return followExecution(ctx, exec.PromptID, events)
	},
}

// followExecution consumes status events for one prompt until it finishes,
// rendering node progress as it goes.
func followExecution(ctx context.Context, promptID string, events <-chan client.Event) error {
	var bar *progressbar.ProgressBar
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return errors.New("status stream closed")
			}
			switch data := ev.Data.(type) {
			case *client.ExecutingData:
				if data.PromptID != promptID {
					continue
				}
				if data.Node == nil {
					if bar != nil {
						bar.Finish()
					}
					fmt.Println("\ndone")
					return nil
				}
				fmt.Printf("\nexecuting node %s\n", *data.Node)
			case *client.ProgressData:
				if bar == nil || bar.GetMax() != data.Max {
					bar = progressbar.NewOptions(data.Max,
						progressbar.OptionSetDescription("sampling"),
						progressbar.OptionShowCount(),
					)
				}
				bar.Set(data.Value)
			case *client.ExecutedData:
				if data.PromptID != promptID {
					continue
				}
				for _, files := range data.Output {
					for _, f := range files {
						if f.Type == "text" {
							fmt.Printf("output: %s\n", f.Text)
						} else {
							fmt.Printf("output: %s/%s (%s)\n", f.Subfolder, f.Filename, f.Type)
						}
					}
				}
			case *client.ExecutionErrorData:
				if data.PromptID != promptID {
					continue
				}
				return fmt.Errorf("node %s (%s) failed: %s", data.Node, data.NodeType, data.ExceptionMessage)
			case *client.ExecutionInterruptedData:
				if data.PromptID != promptID {
					continue
				}
				return errors.New("execution interrupted")
			}
		}
	}
}

var interruptCmd = &cobra.Command{
	Use:   "interrupt",
	Short: "Stop the prompt the server is currently running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.Interrupt(cmd.Context()); err != nil {
			return err
		}
		remaining, err := c.QueueSize(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("interrupted; %d prompts remaining\n", remaining)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd, interruptCmd)
}
