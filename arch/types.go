package arch

import (
	"strings"
)

// Width defines the operand width of an instruction.
type Width byte

// Known operand widths.
const (
	U8  Width = 1
	U16 Width = 2
)

func (w Width) String() string {
	switch w {
	case U8:
		return "U8"
	case U16:
		return "U16"
	}
	return ""
}

// Feature is a capability bit. A CPU only executes instructions whose
// feature is part of its enabled Features set.
type Feature uint8

// Known features.
const (
	Base Feature = 1 << iota
	Mul
	Float16
	BFloat16
	Cache

	AllFeatures = Base | Mul | Float16 | BFloat16 | Cache
)

var featureNames = []struct {
	f    Feature
	name string
}{
	{Base, "base"},
	{Mul, "mul"},
	{Float16, "f16"},
	{BFloat16, "bf16"},
	{Cache, "cache"},
}

// Has returns true if every bit of x is enabled in f.
func (f Feature) Has(x Feature) bool {
	return f&x == x
}

func (f Feature) String() string {
	var names []string
	for _, v := range featureNames {
		if f&v.f != 0 {
			names = append(names, v.name)
		}
	}
	return strings.Join(names, ",")
}

// ParseFeatures parses a comma-separated list of feature names.
// The base feature is always included. Returns false if a name is not recognized.
func ParseFeatures(s string) (Feature, bool) {
	f := Base
	for _, name := range strings.Split(s, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if name == "all" {
			f |= AllFeatures
			continue
		}

		found := false
		for _, v := range featureNames {
			if v.name == name {
				f |= v.f
				found = true
				break
			}
		}
		if !found {
			return 0, false
		}
	}
	return f, true
}
