package raid

// Left-symmetric rotating parity: stripe 0 keeps its parity unit on disk
// N-1, stripe 1 on disk N-2, and so on, wrapping every N stripes. Data
// slots fill the remaining disks in ascending index order, skipping the
// parity disk. The mapping is a pure function of (stripe, N) and is part of
// the on-disk layout contract.

// parityDisk returns the physical disk holding the parity unit of stripe s.
func parityDisk(s int64, n int) int {
	return (n - 1) - int(s%int64(n))
}

// dataDisk maps a logical data slot within a stripe to its physical disk,
// skipping over the stripe's parity disk.
func dataDisk(slot, parity int) int {
	if slot < parity {
		return slot
	}
	return slot + 1
}

// location is the fully resolved physical address of one logical byte.
type location struct {
	stripe     int64 // stripe index
	slot       int   // logical data slot within the stripe
	offInUnit  int64 // byte offset within the unit
	parityDisk int   // disk holding this stripe's parity unit
	dataDisk   int   // disk holding the addressed data unit
	physOff    int64 // unit start offset on both disks
}

// locate resolves logical position p against unit size u and d data slots
// per stripe on an n-disk array.
func locate(p, u int64, d, n int) location {
	stripeSize := u * int64(d)
	stripe := p / stripeSize
	slot := int((p % stripeSize) / u)
	parity := parityDisk(stripe, n)

	return location{
		stripe:     stripe,
		slot:       slot,
		offInUnit:  p % u,
		parityDisk: parity,
		dataDisk:   dataDisk(slot, parity),
		physOff:    stripe * u,
	}
}
