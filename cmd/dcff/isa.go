package main

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hexaflex/dcff/arch"
)

var isaCmd = &cobra.Command{
	Use:   "isa [mnemonic...]",
	Short: "List the instruction set, or the named instructions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printISA(cmd.OutOrStdout(), args...)
	},
}

func init() {
	rootCmd.AddCommand(isaCmd)
}

var classNames = map[arch.Class]string{
	arch.Control:   "control",
	arch.WriteDest: "write-dest",
	arch.WriteSrc:  "write-src",
	arch.Push:      "push",
	arch.Pop:       "pop",
	arch.PopSR:     "pop-sr",
}

// printISA writes a table of the given instructions, or of all of them
// when names is empty.
func printISA(w io.Writer, names ...string) error {
	var ops []int
	for _, name := range names {
		op, ok := arch.Opcode(name)
		if !ok {
			return errors.Errorf("unknown instruction %q", name)
		}
		ops = append(ops, op)
	}
	if len(names) == 0 {
		for op := 0; op < arch.OpcodeCount; op++ {
			ops = append(ops, op)
		}
	}

	fmt.Fprintf(w, "%-6s %-7s %4s  %-5s %-10s %s\n", "code", "name", "argc", "width", "class", "feature")
	for _, op := range ops {
		info, ok := arch.Lookup(op)
		if !ok || info.Name == "" {
			continue
		}

		fmt.Fprintf(w, "%-6s %-7s %4d  %-5s %-10s %s\n",
			fmt.Sprintf("%02x", op), info.Name, info.Argc, info.Width, classNames[info.Class], info.Feature)
	}
	return nil
}
