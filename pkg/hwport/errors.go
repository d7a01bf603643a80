package hwport

import "errors"

var (
	ErrOpenTAP      = errors.New("hwport: open tap device")
	ErrConfigureTAP = errors.New("hwport: configure tap device")
	ErrSetNonblock  = errors.New("hwport: set non-blocking")
	ErrFrameTooLarge = errors.New("hwport: received frame does not fit the rx buffer")
)
