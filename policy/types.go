package policy

import "fmt"

// TransferMode decides how often spot funds are moved into margin
type TransferMode struct {
	value string
}

var (
	TransferEveryCycle = TransferMode{"every-cycle"}
	TransferOnce       = TransferMode{"once"}
)

func (m TransferMode) String() string {
	return m.value
}

func (m TransferMode) IsValid() bool {
	switch m {
	case TransferEveryCycle, TransferOnce:
		return true
	default:
		return false
	}
}

// CloseFailure decides what the driver does when closing a position fails
type CloseFailure struct {
	value string
}

var (
	CloseFailureSkip  = CloseFailure{"skip"}
	CloseFailureAbort = CloseFailure{"abort"}
)

func (c CloseFailure) String() string {
	return c.value
}

func (c CloseFailure) IsValid() bool {
	switch c {
	case CloseFailureSkip, CloseFailureAbort:
		return true
	default:
		return false
	}
}

// PositionMode selects who opens and closes the position.
// In manual mode the operator closes it in the exchange app during the countdown.
type PositionMode struct {
	value string
}

var (
	PositionManual = PositionMode{"manual"}
	PositionAuto   = PositionMode{"auto"}
)

func (p PositionMode) String() string {
	return p.value
}

func (p PositionMode) IsValid() bool {
	switch p {
	case PositionManual, PositionAuto:
		return true
	default:
		return false
	}
}

// ParseTransferMode maps a config string to a TransferMode
func ParseTransferMode(s string) (TransferMode, error) {
	m := TransferMode{s}
	if !m.IsValid() {
		return TransferMode{}, fmt.Errorf("unknown transfer mode %q", s)
	}
	return m, nil
}

// ParseCloseFailure maps a config string to a CloseFailure policy
func ParseCloseFailure(s string) (CloseFailure, error) {
	c := CloseFailure{s}
	if !c.IsValid() {
		return CloseFailure{}, fmt.Errorf("unknown close failure policy %q", s)
	}
	return c, nil
}

// ParsePositionMode maps a config string to a PositionMode
func ParsePositionMode(s string) (PositionMode, error) {
	p := PositionMode{s}
	if !p.IsValid() {
		return PositionMode{}, fmt.Errorf("unknown position mode %q", s)
	}
	return p, nil
}
