package engine

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/nativecall"
	"github.com/wippyai/nativecall/errors"
)

// memory adapts a wazero linear memory to nativecall.Memory. Address 0 is
// the null pointer and never readable.
type memory struct {
	mem api.Memory
}

var _ nativecall.Memory = (*memory)(nil)
var _ nativecall.MemorySizer = (*memory)(nil)

func (m *memory) check(offset, length uint32) error {
	if m.mem == nil {
		return errors.New(errors.PhaseNative, errors.KindInternal).Detail("library not instantiated").Build()
	}
	if offset == 0 {
		return errors.OutOfBounds(errors.PhaseNative, offset, length)
	}
	return nil
}

func oob(offset, length uint32) error {
	return errors.OutOfBounds(errors.PhaseNative, offset, length)
}

// Read copies length bytes out of linear memory. The copy stays valid
// across memory growth.
func (m *memory) Read(offset uint32, length uint32) ([]byte, error) {
	if err := m.check(offset, length); err != nil {
		return nil, err
	}
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, oob(offset, length)
	}
	return append([]byte(nil), data...), nil
}

func (m *memory) Write(offset uint32, data []byte) error {
	if err := m.check(offset, uint32(len(data))); err != nil {
		return err
	}
	if !m.mem.Write(offset, data) {
		return oob(offset, uint32(len(data)))
	}
	return nil
}

func (m *memory) ReadU8(offset uint32) (uint8, error) {
	if err := m.check(offset, 1); err != nil {
		return 0, err
	}
	v, ok := m.mem.ReadByte(offset)
	if !ok {
		return 0, oob(offset, 1)
	}
	return v, nil
}

func (m *memory) ReadU16(offset uint32) (uint16, error) {
	if err := m.check(offset, 2); err != nil {
		return 0, err
	}
	v, ok := m.mem.ReadUint16Le(offset)
	if !ok {
		return 0, oob(offset, 2)
	}
	return v, nil
}

func (m *memory) ReadU32(offset uint32) (uint32, error) {
	if err := m.check(offset, 4); err != nil {
		return 0, err
	}
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, oob(offset, 4)
	}
	return v, nil
}

func (m *memory) ReadU64(offset uint32) (uint64, error) {
	if err := m.check(offset, 8); err != nil {
		return 0, err
	}
	v, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, oob(offset, 8)
	}
	return v, nil
}

func (m *memory) WriteU8(offset uint32, value uint8) error {
	if err := m.check(offset, 1); err != nil {
		return err
	}
	if !m.mem.WriteByte(offset, value) {
		return oob(offset, 1)
	}
	return nil
}

func (m *memory) WriteU16(offset uint32, value uint16) error {
	if err := m.check(offset, 2); err != nil {
		return err
	}
	if !m.mem.WriteUint16Le(offset, value) {
		return oob(offset, 2)
	}
	return nil
}

func (m *memory) WriteU32(offset uint32, value uint32) error {
	if err := m.check(offset, 4); err != nil {
		return err
	}
	if !m.mem.WriteUint32Le(offset, value) {
		return oob(offset, 4)
	}
	return nil
}

func (m *memory) WriteU64(offset uint32, value uint64) error {
	if err := m.check(offset, 8); err != nil {
		return err
	}
	if !m.mem.WriteUint64Le(offset, value) {
		return oob(offset, 8)
	}
	return nil
}

// Size returns the current linear memory size in bytes.
func (m *memory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}
