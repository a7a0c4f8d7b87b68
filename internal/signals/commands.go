package signals

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/yegors/fsuipc-bridge/internal/validate"
)

var (
	// ErrUnknownCommand is returned for command names missing from the table
	ErrUnknownCommand = errors.New("unknown command")
	// ErrInvalidValue is returned when a command value cannot be encoded
	ErrInvalidValue = errors.New("invalid command value")
)

const (
	throttleMax     = 16384
	gearDownRaw     = 16383
	flapsFullRaw    = 16383
	parkingBrakeSet = 32767
)

// Names of the writable commands
const (
	CommandGear         = "GEAR_HANDLE"
	CommandThrottle     = "throttle"
	CommandFlaps        = "flaps"
	CommandParkingBrake = "PARKING_BRAKE"
	CommandCom1Standby  = "COM1_STANDBY"
	CommandTransponder  = "TRANSPONDER"
)

// EncodeFunc maps an application value to the raw integer written to the offset
type EncodeFunc func(value any) (int64, error)

// Command describes one writable offset
type Command struct {
	Name     string
	Address  int
	Encoding Encoding
	Size     int

	encode EncodeFunc
}

// Encode converts value to the raw offset value
func (c Command) Encode(value any) (int64, error) {
	if c.encode == nil {
		return 0, fmt.Errorf("%s: %w", c.Name, ErrUnknownCommand)
	}
	raw, err := c.encode(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", c.Name, err)
	}
	return raw, nil
}

// CommandTable is the immutable set of writable commands
type CommandTable struct {
	commands map[string]Command
	names    []string
}

// NewCommandTable builds the command table
func NewCommandTable() *CommandTable {
	cmds := []Command{
		{Name: CommandGear, Address: 0x0BE8, Encoding: EncodingInt, Size: 4, encode: encodeGear},
		{Name: CommandThrottle, Address: 0x088C, Encoding: EncodingShort, Size: 2, encode: encodeThrottle},
		{Name: CommandFlaps, Address: 0x0BDC, Encoding: EncodingInt, Size: 4, encode: encodeFlaps},
		{Name: CommandParkingBrake, Address: 0x0BC8, Encoding: EncodingInt, Size: 4, encode: encodeParkingBrake},
		{Name: CommandCom1Standby, Address: 0x311A, Encoding: EncodingUint, Size: 2, encode: encodeComFrequency},
		{Name: CommandTransponder, Address: 0x0354, Encoding: EncodingUint, Size: 2, encode: encodeSquawk},
	}

	t := &CommandTable{commands: make(map[string]Command, len(cmds))}
	for _, c := range cmds {
		t.commands[c.Name] = c
		t.names = append(t.names, c.Name)
	}
	sort.Strings(t.names)
	return t
}

// Lookup finds a command by name
func (t *CommandTable) Lookup(name string) (Command, error) {
	c, ok := t.commands[name]
	if !ok {
		return Command{}, fmt.Errorf("%q: %w", name, ErrUnknownCommand)
	}
	return c, nil
}

// Names returns the sorted command names advertised as write capabilities
func (t *CommandTable) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

func encodeGear(value any) (int64, error) {
	if !validate.GearCommand(value) {
		return 0, ErrInvalidValue
	}
	v, _ := validate.AsFloat(value)
	if v != 0 {
		return gearDownRaw, nil
	}
	return 0, nil
}

// encodeThrottle accepts -1..1 (idle to full) or a raw lever position in -16384..16384
func encodeThrottle(value any) (int64, error) {
	if !validate.ThrottleCommand(value) {
		return 0, ErrInvalidValue
	}
	v, _ := validate.AsFloat(value)
	if v >= -1 && v <= 1 {
		raw := math.RoundToEven((v + 1) * 0.5 * throttleMax)
		return int64(math.Max(0, math.Min(throttleMax, raw))), nil
	}
	return int64(math.Max(-throttleMax, math.Min(throttleMax, math.Trunc(v)))), nil
}

// encodeFlaps accepts 0..1 of travel or a raw handle position in 0..16383
func encodeFlaps(value any) (int64, error) {
	v, ok := validate.AsFloat(value)
	if !ok {
		return 0, ErrInvalidValue
	}
	switch {
	case v >= 0 && v <= 1:
		return int64(math.Round(v * flapsFullRaw)), nil
	case v > 1 && v <= flapsFullRaw && v == math.Trunc(v):
		return int64(v), nil
	}
	return 0, ErrInvalidValue
}

func encodeParkingBrake(value any) (int64, error) {
	switch v := value.(type) {
	case bool:
		if v {
			return parkingBrakeSet, nil
		}
		return 0, nil
	case nil:
		return 0, ErrInvalidValue
	}
	if !validate.GearCommand(value) {
		return 0, ErrInvalidValue
	}
	if validate.SanitizeBool(value, false) {
		return parkingBrakeSet, nil
	}
	return 0, nil
}

// encodeComFrequency accepts kHz (122750) or MHz (122.75) and packs 1xx.yy as BCD
func encodeComFrequency(value any) (int64, error) {
	v, ok := validate.AsFloat(value)
	if !ok {
		return 0, ErrInvalidValue
	}
	if v < 1000 {
		v *= 1000
	}
	khz := int(math.Round(v/10) * 10)
	if !validate.ComFrequency(khz) {
		return 0, ErrInvalidValue
	}
	raw, ok := EncodeBCD((khz - 100000) / 10)
	if !ok {
		return 0, ErrInvalidValue
	}
	return raw, nil
}

func encodeSquawk(value any) (int64, error) {
	v, ok := validate.AsFloat(value)
	if !ok || v != math.Trunc(v) || !validate.TransponderCode(int(v)) {
		return 0, ErrInvalidValue
	}
	raw, ok := EncodeBCD(int(v))
	if !ok {
		return 0, ErrInvalidValue
	}
	return raw, nil
}
