package main

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/hexaflex/dcff/arch"
	"github.com/hexaflex/dcff/devices"
	"github.com/hexaflex/dcff/system"
)

// predicate is a Starlark expression over the machine state. It is compiled
// once and evaluated after every tick.
type predicate struct {
	expr   string
	sys    *system.System
	prog   *starlark.Program
	thread *starlark.Thread
	env    starlark.StringDict
}

func newPredicate(expr string, sys *system.System) (*predicate, error) {
	p := &predicate{
		expr:   expr,
		sys:    sys,
		thread: &starlark.Thread{Name: "break"},
		env: starlark.StringDict{
			"mem": starlark.NewBuiltin("mem", func(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				var addr int
				if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &addr); err != nil {
					return nil, err
				}
				return starlark.MakeInt(int(sys.Peek(uint16(addr)))), nil
			}),
			"word": starlark.NewBuiltin("word", func(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				var addr int
				if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &addr); err != nil {
					return nil, err
				}
				return starlark.MakeInt(int(devices.PeekU16(sys, uint16(addr)))), nil
			}),
		},
	}
	p.update()

	src := "rc = bool(" + expr + ")\n"
	_, prog, err := starlark.SourceProgramOptions(&syntax.FileOptions{}, "break", src, p.env.Has)
	if err != nil {
		return nil, errors.Wrapf(err, "--break %q", expr)
	}
	p.prog = prog
	return p, nil
}

// update refreshes the register values visible to the expression.
func (p *predicate) update() {
	c := p.sys.CPU()
	for r := arch.R0; r < arch.RegisterCount; r++ {
		p.env[r.String()] = starlark.MakeInt(int(c.Register(r)))
	}
	p.env["ip"] = starlark.MakeInt(int(c.Intermediate().IP))
	p.env["ticks"] = starlark.MakeUint64(p.sys.Ticks())
}

// eval returns the current value of the expression.
func (p *predicate) eval() (bool, error) {
	p.update()
	globals, err := p.prog.Init(p.thread, p.env)
	if err != nil {
		return false, err
	}
	return bool(globals["rc"].Truth()), nil
}

// hook returns a hook halting the machine once the expression holds.
// Evaluation errors halt as well.
func (p *predicate) hook() *system.Hook {
	return &system.Hook{
		Name:      "break " + p.expr,
		Location:  system.RegisterAt(arch.PC),
		Condition: system.Always,
		Action: func(s *system.System, h *system.Hook) {
			ok, err := p.eval()
			if err != nil {
				logrus.WithError(err).WithField("expr", p.expr).Error("break")
				system.Halt(s, h)
				return
			}
			if ok {
				system.Halt(s, h)
			}
		},
	}
}
