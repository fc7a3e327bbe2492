package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hexaflex/dcff/arch"
	"github.com/hexaflex/dcff/image"
)

var disCmd = &cobra.Command{
	Use:   "dis <image file>",
	Short: "Print a disassembly listing of an image",
	Args:  cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		img, err := image.Read(p)
		if err != nil {
			return errors.Wrapf(err, "load %s", args[0])
		}
		disassemble(cmd.OutOrStdout(), img)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(disCmd)
}

// disassemble writes one line per instruction in img. Bytes that do not
// decode are listed as data.
func disassemble(w io.Writer, img *image.Image) {
	code := img.Code

	for addr := 0; addr < len(code); {
		var in arch.Instruction
		n, err := in.Decode(code[addr:])

		var sb strings.Builder
		sb.Grow(80)

		if err != nil {
			n = 1
			fmt.Fprintf(&sb, "%04x  %02x", addr, code[addr])
			pad(&sb, 24)
			fmt.Fprintf(&sb, "db %02x", code[addr])
		} else {
			fmt.Fprintf(&sb, "%04x  % x", addr, code[addr:addr+n])
			pad(&sb, 24)
			sb.WriteString(in.String())
		}

		if dbg := img.Debug.Find(uint16(addr)); dbg != nil && dbg.File >= 0 && dbg.File < len(img.Debug.Files) {
			pad(&sb, 48)
			fmt.Fprintf(&sb, " ; %s:%d", img.Debug.Files[dbg.File], dbg.Line)
			if dbg.Flags&image.Breakpoint != 0 {
				sb.WriteString(" break")
			}
		}

		fmt.Fprintln(w, sb.String())
		addr += n
	}
}
