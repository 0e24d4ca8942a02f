package uci

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

var errOptionRange = errors.New("argument out of range")

type Option interface {
	UciName() string
	UciString() string
	Set(s string) error
}

type IntOption struct {
	Name  string
	Min   int
	Max   int
	Value *int
}

func (opt *IntOption) UciName() string {
	return opt.Name
}

func (opt *IntOption) UciString() string {
	return fmt.Sprintf("option name %v type %v default %v min %v max %v",
		opt.Name, "spin", *opt.Value, opt.Min, opt.Max)
}

func (opt *IntOption) Set(s string) error {
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("option %v: %w", opt.Name, err)
	}
	if v < opt.Min || v > opt.Max {
		return fmt.Errorf("option %v: %w: %v not in [%v, %v]", opt.Name, errOptionRange, v, opt.Min, opt.Max)
	}
	*opt.Value = v
	return nil
}

// findOption matches names case-insensitively, as GUIs are not consistent.
func findOption(options []Option, name string) (Option, bool) {
	return lo.Find(options, func(o Option) bool {
		return strings.EqualFold(o.UciName(), name)
	})
}
