//go:build linux

package cursor

import (
	"encoding/binary"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DefaultUinputPath is the uinput control device.
const DefaultUinputPath = "/dev/uinput"

// Linux input event codes used by the virtual mouse.
const (
	evSyn = 0x00
	evKey = 0x01
	evRel = 0x02

	synReport = 0x00
	relX      = 0x00
	relY      = 0x01
	btnLeft   = 0x110

	busVirtual = 0x06
)

// ioctl request encoding (Linux _IOC macro)
const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocNone  = 0
	iocWrite = 1
)

func ioc(dir, typ, nr, size uint32) uint {
	return uint((dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift))
}

var (
	uiDevCreate  = ioc(iocNone, 'U', 1, 0)
	uiDevDestroy = ioc(iocNone, 'U', 2, 0)
	uiSetEvBit   = ioc(iocWrite, 'U', 100, uint32(unsafe.Sizeof(int32(0))))
	uiSetKeyBit  = ioc(iocWrite, 'U', 101, uint32(unsafe.Sizeof(int32(0))))
	uiSetRelBit  = ioc(iocWrite, 'U', 102, uint32(unsafe.Sizeof(int32(0))))
)

// uinput_user_dev layout: name[80], input_id, ff_effects_max and four
// ABS_CNT arrays of int32.
const (
	uinputNameLen = 80
	absCnt        = 64
	userDevSize   = uinputNameLen + 8 + 4 + 4*absCnt*4
)

// inputEventSize is sizeof(struct input_event) for this platform's timeval.
var inputEventSize = int(unsafe.Sizeof(unix.Timeval{})) + 8

// UinputSink moves the pointer through a virtual relative mouse created
// with the kernel uinput module.
type UinputSink struct {
	mu     sync.Mutex
	fd     int
	acc    Accumulator
	closed bool
}

// NewUinputSink opens the uinput device at path (DefaultUinputPath when empty)
// and registers a virtual mouse called name.
func NewUinputSink(path, name string) (*UinputSink, error) {
	if path == "" {
		path = DefaultUinputPath
	}
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := setupVirtualMouse(fd, name); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &UinputSink{fd: fd}, nil
}

func setupVirtualMouse(fd int, name string) error {
	bits := []struct {
		req  uint
		val  int
		what string
	}{
		{uiSetEvBit, evKey, "EV_KEY"},
		{uiSetKeyBit, btnLeft, "BTN_LEFT"},
		{uiSetEvBit, evRel, "EV_REL"},
		{uiSetRelBit, relX, "REL_X"},
		{uiSetRelBit, relY, "REL_Y"},
		{uiSetEvBit, evSyn, "EV_SYN"},
	}
	for _, b := range bits {
		if err := unix.IoctlSetInt(fd, b.req, b.val); err != nil {
			return fmt.Errorf("uinput enable %s: %w", b.what, err)
		}
	}

	if _, err := unix.Write(fd, encodeUserDev(name)); err != nil {
		return fmt.Errorf("uinput write device description: %w", err)
	}
	if err := ioctlNoArg(fd, uiDevCreate); err != nil {
		return fmt.Errorf("uinput create device: %w", err)
	}
	return nil
}

func ioctlNoArg(fd int, req uint) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// encodeUserDev builds a legacy uinput_user_dev record.
func encodeUserDev(name string) []byte {
	buf := make([]byte, userDevSize)
	if len(name) >= uinputNameLen {
		name = name[:uinputNameLen-1]
	}
	copy(buf, name)
	binary.NativeEndian.PutUint16(buf[uinputNameLen:], busVirtual)
	binary.NativeEndian.PutUint16(buf[uinputNameLen+2:], 0x1209) // vendor
	binary.NativeEndian.PutUint16(buf[uinputNameLen+4:], 0xacc0) // product
	binary.NativeEndian.PutUint16(buf[uinputNameLen+6:], 1)      // version
	return buf
}

// encodeEvent builds one input_event with a zero timestamp; the kernel
// stamps events written through uinput.
func encodeEvent(typ, code uint16, value int32) []byte {
	buf := make([]byte, inputEventSize)
	off := inputEventSize - 8
	binary.NativeEndian.PutUint16(buf[off:], typ)
	binary.NativeEndian.PutUint16(buf[off+2:], code)
	binary.NativeEndian.PutUint32(buf[off+4:], uint32(value))
	return buf
}

// moveReport encodes the event batch for one relative move. Zero axes are
// omitted; a move with no whole pixels yields nil.
func moveReport(ix, iy int32) []byte {
	if ix == 0 && iy == 0 {
		return nil
	}
	var out []byte
	if ix != 0 {
		out = append(out, encodeEvent(evRel, relX, ix)...)
	}
	if iy != 0 {
		out = append(out, encodeEvent(evRel, relY, iy)...)
	}
	return append(out, encodeEvent(evSyn, synReport, 0)...)
}

// Move emits the whole-pixel part of (dx, dy) and carries the rest.
func (s *UinputSink) Move(dx, dy float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	report := moveReport(s.acc.Add(dx, dy))
	if report == nil {
		return nil
	}
	if _, err := unix.Write(s.fd, report); err != nil {
		return fmt.Errorf("uinput write: %w", err)
	}
	return nil
}

// Close destroys the virtual device and closes the file descriptor.
func (s *UinputSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	destroyErr := ioctlNoArg(s.fd, uiDevDestroy)
	if err := unix.Close(s.fd); err != nil {
		return fmt.Errorf("close uinput: %w", err)
	}
	if destroyErr != nil {
		return fmt.Errorf("uinput destroy device: %w", destroyErr)
	}
	return nil
}
