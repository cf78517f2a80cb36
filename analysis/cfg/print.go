package cfg

import (
	"fmt"
	"strings"

	"github.com/cs-au-dk/goat-flow/utils"

	"github.com/fatih/color"
)

var colorize = struct {
	Block  func(...interface{}) string
	Region func(...interface{}) string
	Op     func(...interface{}) string
	Branch func(...interface{}) string
}{
	Block: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiYellow).SprintFunc())(is...)
	},
	Region: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiBlue).SprintFunc())(is...)
	},
	Op: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiWhite).SprintFunc())(is...)
	},
	Branch: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiGreen).SprintFunc())(is...)
	},
}

// Print renders the graph as text, one block per paragraph.
func (g *Graph) Print() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", colorize.Region(g.Method))
	for _, blk := range g.Blocks {
		fmt.Fprintf(&sb, "%s %s", colorize.Block(blk), blk.Kind)
		if r := blk.EnclosingRegion; r.Kind != RegionRoot {
			fmt.Fprintf(&sb, " in %s", colorize.Region(r))
		}
		if !blk.IsReachable {
			sb.WriteString(" (unreachable)")
		}
		sb.WriteString("\n")
		for _, op := range blk.Operations {
			fmt.Fprintf(&sb, "  %s\n", colorize.Op(op))
		}
		if c := blk.Conditional; c != nil {
			fmt.Fprintf(&sb, "  if %s %s → %s\n", blk.BranchValue, blk.ConditionKind, colorize.Branch(c.Destination))
		}
		if f := blk.FallThrough; f != nil {
			switch f.Semantics {
			case BranchReturn:
				if blk.BranchValue != nil {
					fmt.Fprintf(&sb, "  return %s\n", blk.BranchValue)
				} else {
					sb.WriteString("  return\n")
				}
			case BranchThrow:
				fmt.Fprintf(&sb, "  throw %s\n", blk.BranchValue)
			case BranchRethrow:
				sb.WriteString("  rethrow\n")
			case BranchStructuredExceptionHandling:
				sb.WriteString("  endfinally\n")
			default:
				fmt.Fprintf(&sb, "  goto %s", colorize.Branch(f.Destination))
				if len(f.FinallyRegions) > 0 {
					fmt.Fprintf(&sb, " via %v", f.FinallyRegions)
				}
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}
