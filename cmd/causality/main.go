// Command causality is a thin demonstration binary over the core engine: it
// is a worked example of the library's call sequence (parse, check, lower,
// register, run), not a product CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"causality/core"
	"causality/internal/testutil"
	"causality/pkg/utils"
)

func main() {
	rootCmd := &cobra.Command{Use: "causality"}
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(demoCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [program]",
		Short: "parse and type check a source program, printing its inferred type",
		Run: func(cmd *cobra.Command, args []string) {
			src := "(let x 1 x)"
			if len(args) > 0 {
				src = args[0]
			}
			term, err := core.ParseProgram(src)
			if err != nil {
				fmt.Fprintf(os.Stderr, "parse error: %v\n", err)
				os.Exit(1)
			}
			tc := core.NewTypeChecker()
			typ, _, err := tc.Check(term, core.NewCheckEnv(nil))
			if err != nil {
				fmt.Fprintf(os.Stderr, "type error: %v\n", err)
				os.Exit(1)
			}
			node := core.EliminateDeadCode(core.NewIrNode(term))
			fmt.Printf("type: %s\n", typ)
			fmt.Printf("ir id: %s\n", node.ID())
		},
	}
	return cmd
}

// demoCmd registers a resource and wires a two-node temporal effect graph —
// a local authorization check feeding a cross-domain transfer — and runs it
// against an in-memory domain adapter — end to end, no real chain.
func demoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "register a resource and run a two-node cross-domain transfer",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runDemo(); err != nil {
				fmt.Fprintf(os.Stderr, "demo failed: %v\n", err)
				os.Exit(1)
			}
		},
	}
	return cmd
}

func runDemo() error {
	var owner core.Address
	owner[0] = 1

	register := core.NewResourceRegister(core.NumberValue(42), owner)
	if err := register.Activate(); err != nil {
		return err
	}
	registry := core.NewResourceRegistry()
	registry.Register(register)
	fmt.Printf("registered resource %s in state %s\n", register.ID(), register.State())

	sourceDomain := testutil.NewFakeDomain("source-chain", map[string]bool{"lock": true})
	targetDomain := testutil.NewFakeDomain("target-chain", map[string]bool{"mint": true})
	domains := core.NewDomainRegistry()
	domains.Register(sourceDomain)
	domains.Register(targetDomain)

	capSystem := core.NewCapabilitySystem()
	capSystem.Create(&core.RigorousCapability{
		ResourceID: register.ID(),
		Rights:     core.RightSet(core.RightRead, core.RightUpdate, core.RightTransfer),
		Owner:      owner,
		Issuer:     owner,
		HasProof:   true,
	})
	effectCtx := core.NewEffectContext(owner, capSystem)
	effectCtx.GrantCrossDomain("transfer-assets")

	managers := core.TransferManagers{
		Registers:    registry,
		Locks:        core.NewLockManager(),
		Capabilities: capSystem,
		Dependencies: core.NewDependencyGraph(),
	}

	concurrency := utils.EnvOrDefaultUint64("CAUSALITY_DEMO_CONCURRENCY", 2)
	nodeTimeout := time.Duration(utils.EnvOrDefaultInt("CAUSALITY_DEMO_NODE_TIMEOUT_MS", 2000)) * time.Millisecond

	graph := core.NewTemporalEffectGraph(int64(concurrency))
	authorize := &authorizeEffect{BaseEffect: core.NewBaseEffect("authorize-transfer", core.EffectLocal), resourceID: register.ID()}
	transfer := core.NewCrossDomainTransferEffect(register.ID(), "source-chain", "target-chain", managers)

	if err := graph.AddNode("authorize", authorize, nodeTimeout, 0); err != nil {
		return err
	}
	if err := graph.AddNode("transfer", transfer, nodeTimeout, 1); err != nil {
		return err
	}
	if err := graph.AddEdge(core.TEGEdge{From: "authorize", To: "transfer", Condition: core.OnSuccess}); err != nil {
		return err
	}

	if err := graph.Run(context.Background(), effectCtx); err != nil {
		return err
	}
	fmt.Printf("authorize node: %s\n", graph.Node("authorize").Status())
	fmt.Printf("transfer node: %s\n", graph.Node("transfer").Status())
	fmt.Printf("resource now in state %s, owned in domain %s\n", register.State(), register.Metadata()["domain"])
	fmt.Printf("target domain capabilities: %v\n", targetDomain.Capabilities())
	return nil
}

// authorizeEffect is a local Effect that confirms the caller holds an Update
// right over the resource before the cross-domain transfer node runs; a
// minimal stand-in for whatever policy an embedding application would plug
// in ahead of a transfer.
type authorizeEffect struct {
	core.BaseEffect
	resourceID core.EntityID
}

func (e *authorizeEffect) Description() string { return "authorize transfer of " + e.resourceID.String() }

func (e *authorizeEffect) Validate(ctx *core.EffectContext) error { return nil }

func (e *authorizeEffect) Execute(ctx *core.EffectContext) (*core.EffectOutcome, error) {
	for _, cap := range ctx.Capabilities.ForResource(e.resourceID) {
		if cap.Owner != ctx.Caller {
			continue
		}
		if ok, err := ctx.Capabilities.CheckRights(cap.ID, core.RightUpdate); err == nil && ok {
			return core.NewEffectOutcome(e.ID()), nil
		}
	}
	return nil, core.NewErrorFor(core.ErrCapability, e.resourceID, "caller lacks update right")
}
