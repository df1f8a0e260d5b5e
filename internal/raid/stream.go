package raid

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/thnak/raidstream/internal/disk"
	"github.com/thnak/raidstream/internal/xorkit"
)

// Stream virtualizes N backing stores into one seekable byte stream with
// RAID5 striping: each stripe spreads N-1 data units across the disks and
// keeps their XOR in a rotating parity unit, so any single disk can drop
// out without losing the logical byte range.
//
// A Stream owns its stores for its lifetime and is not safe for concurrent
// use; exactly one caller may drive it at a time.
type Stream struct {
	stores []disk.Store
	unit   int64 // stripe unit size U
	n      int   // disk count
	data   int   // data units per stripe, N-1
	stripe int64 // logical bytes per stripe, U*(N-1)

	failed diskSet
	length int64
	pos    int64
	closed bool

	// Unit-sized scratch, reused across every operation. unitBuf holds
	// whichever single unit is in flight, parityBuf accumulates XOR.
	unitBuf   []byte
	parityBuf []byte
}

// New builds a RAID5 stream over the given stores with the given stripe
// unit size. It requires at least 3 stores (2 data + 1 parity). The initial
// logical length is the largest whole number of stripes that fits in the
// smallest store. The stream takes ownership of the stores.
func New(stores []disk.Store, unitSize int64) (*Stream, error) {
	if len(stores) < 3 {
		return nil, fmt.Errorf("%w (2 data + 1 parity), got %d", ErrTooFewDisks, len(stores))
	}
	if unitSize <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidUnitSize, unitSize)
	}
	for i, s := range stores {
		if s == nil {
			return nil, fmt.Errorf("backing store %d is nil", i)
		}
	}

	minLen := int64(-1)
	for i, s := range stores {
		l, err := s.Length()
		if err != nil {
			return nil, fmt.Errorf("failed to size backing store %d: %w", i, err)
		}
		if minLen < 0 || l < minLen {
			minLen = l
		}
	}

	n := len(stores)
	st := &Stream{
		stores:    stores,
		unit:      unitSize,
		n:         n,
		data:      n - 1,
		stripe:    unitSize * int64(n-1),
		failed:    newDiskSet(n),
		unitBuf:   make([]byte, unitSize),
		parityBuf: make([]byte, unitSize),
	}
	st.length = (minLen / unitSize) * st.stripe

	logrus.Debugf("[RAID5] stream over %d disks, unit %d, initial length %d", n, unitSize, st.length)
	return st, nil
}

// Length returns the current logical length of the stream.
func (s *Stream) Length() int64 { return s.length }

// Position returns the current logical position.
func (s *Stream) Position() int64 { return s.pos }

// SetPosition seeks to an absolute position.
func (s *Stream) SetPosition(p int64) error {
	_, err := s.Seek(p, io.SeekStart)
	return err
}

// Seek implements io.Seeker. Seeking past the logical length is allowed;
// the next read reports end of stream, the next write extends it.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	if s.closed {
		return 0, ErrClosed
	}

	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = s.pos + offset
	case io.SeekEnd:
		target = s.length + offset
	default:
		return 0, fmt.Errorf("invalid seek whence %d", whence)
	}
	if target < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegativeSeek, target)
	}

	s.pos = target
	return s.pos, nil
}

// Read implements io.Reader at the current position. When the target data
// disk of a slice is failed, the unit is reconstructed as the XOR of the
// other N-1 units, which requires that no second disk is failed.
func (s *Stream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}

	remaining := int64(len(p))
	if max := s.length - s.pos; max < remaining {
		remaining = max
	}
	if remaining <= 0 {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}

	read := 0
	for remaining > 0 {
		loc := locate(s.pos, s.unit, s.data, s.n)

		chunk := s.unit - loc.offInUnit
		if remaining < chunk {
			chunk = remaining
		}

		if !s.failed.has(loc.dataDisk) {
			err := disk.ReadFull(s.stores[loc.dataDisk], loc.physOff+loc.offInUnit, p[read:read+int(chunk)])
			if err != nil {
				return read, fmt.Errorf("failed to read disk %d stripe %d: %w", loc.dataDisk, loc.stripe, err)
			}
		} else {
			if err := s.reconstructUnit(loc); err != nil {
				return read, err
			}
			copy(p[read:read+int(chunk)], s.parityBuf[loc.offInUnit:])
		}

		s.pos += chunk
		read += int(chunk)
		remaining -= chunk
	}

	return read, nil
}

// reconstructUnit rebuilds the unit addressed by loc into parityBuf as the
// XOR of every other disk's unit at the same stripe. Reconstruction always
// works on whole units even when the caller wants a sub-unit slice.
func (s *Stream) reconstructUnit(loc location) error {
	if s.failed.count() > 1 {
		return fmt.Errorf("%w (stripe %d)", ErrIntegrity, loc.stripe)
	}

	logrus.Debugf("[RAID5] reconstructing disk %d unit at stripe %d", loc.dataDisk, loc.stripe)

	xorkit.Zero(s.parityBuf)
	for j := 0; j < s.n; j++ {
		if j == loc.dataDisk {
			continue
		}
		if s.failed.has(j) {
			return fmt.Errorf("%w (stripe %d)", ErrIntegrity, loc.stripe)
		}
		if err := disk.ReadFull(s.stores[j], loc.physOff, s.unitBuf); err != nil {
			return fmt.Errorf("failed to read disk %d for reconstruction of stripe %d: %w", j, loc.stripe, err)
		}
		xorkit.XorInto(s.parityBuf, s.unitBuf)
	}
	return nil
}

// Write implements io.Writer at the current position, extending the stream
// when the write runs past the end. Each intra-unit slice is a
// read-modify-write: old data and old parity come in, the new parity is
// old_parity ^ old_data ^ new_data, and both units go back out in that
// order. A write is refused while the slice's data disk or parity disk is
// marked failed.
func (s *Stream) Write(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}

	if end := s.pos + int64(len(p)); end > s.length {
		if err := s.SetLength(end); err != nil {
			return 0, fmt.Errorf("failed to extend stream to %d: %w", end, err)
		}
	}

	written := 0
	remaining := int64(len(p))
	for remaining > 0 {
		loc := locate(s.pos, s.unit, s.data, s.n)

		chunk := s.unit - loc.offInUnit
		if remaining < chunk {
			chunk = remaining
		}

		if s.failed.has(loc.dataDisk) {
			return written, fmt.Errorf("cannot write stripe %d: data disk %d: %w", loc.stripe, loc.dataDisk, ErrDiskFailed)
		}
		if s.failed.has(loc.parityDisk) {
			return written, fmt.Errorf("cannot write stripe %d: parity disk %d: %w", loc.stripe, loc.parityDisk, ErrDiskFailed)
		}

		if err := disk.ReadFull(s.stores[loc.dataDisk], loc.physOff, s.unitBuf); err != nil {
			return written, fmt.Errorf("failed to read old data unit, disk %d stripe %d: %w", loc.dataDisk, loc.stripe, err)
		}
		if err := disk.ReadFull(s.stores[loc.parityDisk], loc.physOff, s.parityBuf); err != nil {
			return written, fmt.Errorf("failed to read old parity unit, disk %d stripe %d: %w", loc.parityDisk, loc.stripe, err)
		}

		// Fold the old data out of the parity, overlay the caller's bytes
		// to form the new data unit, fold the new data back in.
		xorkit.XorInto(s.parityBuf, s.unitBuf)
		copy(s.unitBuf[loc.offInUnit:loc.offInUnit+chunk], p[written:])
		xorkit.XorInto(s.parityBuf, s.unitBuf)

		if err := disk.WriteFull(s.stores[loc.dataDisk], loc.physOff, s.unitBuf); err != nil {
			return written, fmt.Errorf("failed to write data unit, disk %d stripe %d: %w", loc.dataDisk, loc.stripe, err)
		}
		if err := disk.WriteFull(s.stores[loc.parityDisk], loc.physOff, s.parityBuf); err != nil {
			return written, fmt.Errorf("failed to write parity unit, disk %d stripe %d: %w", loc.parityDisk, loc.stripe, err)
		}

		logrus.Debugf("[RAID5] stripe %d slot %d: wrote %d bytes at unit offset %d (data disk %d, parity disk %d)",
			loc.stripe, loc.slot, chunk, loc.offInUnit, loc.dataDisk, loc.parityDisk)

		s.pos += chunk
		written += int(chunk)
		remaining -= chunk
	}

	return written, nil
}

// SetLength sets the logical length. Non-failed stores grow to hold the
// covering whole number of stripes; physical stores are never shrunk, and
// the position is left untouched.
func (s *Stream) SetLength(v int64) error {
	if s.closed {
		return ErrClosed
	}
	if v < 0 {
		return fmt.Errorf("length must be non-negative, got %d", v)
	}

	required := ((v + s.stripe - 1) / s.stripe) * s.unit
	for i, store := range s.stores {
		if s.failed.has(i) {
			continue
		}
		l, err := store.Length()
		if err != nil {
			return fmt.Errorf("failed to size backing store %d: %w", i, err)
		}
		if l < required {
			if err := store.Truncate(required); err != nil {
				return fmt.Errorf("failed to grow backing store %d to %d: %w", i, required, err)
			}
		}
	}

	s.length = v
	return nil
}

// Flush syncs every non-failed store.
func (s *Stream) Flush() error {
	if s.closed {
		return ErrClosed
	}
	for i, store := range s.stores {
		if s.failed.has(i) {
			continue
		}
		if err := store.Sync(); err != nil {
			return fmt.Errorf("failed to flush backing store %d: %w", i, err)
		}
	}
	return nil
}

// Close releases every backing store, failed or not.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	for i, store := range s.stores {
		if err := store.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close backing store %d: %w", i, err)
		}
	}
	return firstErr
}

// FailDisk marks disk i failed. Idempotent, no I/O.
func (s *Stream) FailDisk(i int) error {
	if s.closed {
		return ErrClosed
	}
	if i < 0 || i >= s.n {
		return fmt.Errorf("%w: %d of %d", ErrDiskIndex, i, s.n)
	}

	s.failed.set(i)
	logrus.Warnf("[RAID5] disk %d marked failed", i)
	return nil
}

// DiskFailed reports whether disk i is marked failed.
func (s *Stream) DiskFailed(i int) (bool, error) {
	if s.closed {
		return false, ErrClosed
	}
	if i < 0 || i >= s.n {
		return false, fmt.Errorf("%w: %d of %d", ErrDiskIndex, i, s.n)
	}
	return s.failed.has(i), nil
}

// RecoverDisk rebuilds disk i from the surviving disks and clears its
// failure mark. Recovering a healthy disk is a no-op with no I/O. The
// store standing in for the recovered disk must already be large enough to
// hold every stripe the survivors cover.
func (s *Stream) RecoverDisk(i int) error {
	if s.closed {
		return ErrClosed
	}
	if i < 0 || i >= s.n {
		return fmt.Errorf("%w: %d of %d", ErrDiskIndex, i, s.n)
	}
	if !s.failed.has(i) {
		return nil
	}

	stripes, err := s.rebuildRange()
	if err != nil {
		return err
	}

	l, err := s.stores[i].Length()
	if err != nil {
		return fmt.Errorf("failed to size recovering store %d: %w", i, err)
	}
	if l < stripes*s.unit {
		return fmt.Errorf("store for disk %d holds %d bytes, rebuild needs %d", i, l, stripes*s.unit)
	}

	logrus.Infof("[RAID5] rebuilding disk %d, %d stripes (%s)", i, stripes, humanize.IBytes(uint64(stripes*s.unit)))

	if err := s.rebuildDisk(i, stripes); err != nil {
		return err
	}

	s.failed.clear(i)
	logrus.Infof("[RAID5] disk %d recovered", i)
	return nil
}

// rebuildRange returns how many stripes a rebuild must cover: every stripe
// the smallest surviving store holds in full.
func (s *Stream) rebuildRange() (int64, error) {
	minLen := int64(-1)
	for j, store := range s.stores {
		if s.failed.has(j) {
			continue
		}
		l, err := store.Length()
		if err != nil {
			return 0, fmt.Errorf("failed to size backing store %d: %w", j, err)
		}
		if minLen < 0 || l < minLen {
			minLen = l
		}
	}
	return minLen / s.unit, nil
}

// rebuildDisk rewrites every unit of disk i as the XOR of the other disks'
// units at the same stripe.
func (s *Stream) rebuildDisk(i int, stripes int64) error {
	for stripe := int64(0); stripe < stripes; stripe++ {
		physOff := stripe * s.unit

		xorkit.Zero(s.parityBuf)
		for j := 0; j < s.n; j++ {
			if j == i {
				continue
			}
			if s.failed.has(j) {
				return fmt.Errorf("%w (stripe %d)", ErrIntegrity, stripe)
			}
			if err := disk.ReadFull(s.stores[j], physOff, s.unitBuf); err != nil {
				return fmt.Errorf("rebuild failed reading disk %d stripe %d: %w", j, stripe, err)
			}
			xorkit.XorInto(s.parityBuf, s.unitBuf)
		}

		if err := disk.WriteFull(s.stores[i], physOff, s.parityBuf); err != nil {
			return fmt.Errorf("rebuild failed writing disk %d stripe %d: %w", i, stripe, err)
		}

		if stripe > 0 && stripe%1024 == 0 {
			logrus.Debugf("[RAID5] rebuild progress: %d/%d stripes", stripe, stripes)
		}
	}
	return nil
}

// DiskCount returns N.
func (s *Stream) DiskCount() int { return s.n }

// UnitSize returns the stripe unit size U.
func (s *Stream) UnitSize() int64 { return s.unit }
