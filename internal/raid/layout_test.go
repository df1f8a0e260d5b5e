package raid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParityDisk_LeftSymmetricRotation(t *testing.T) {
	t.Run("3Disks", func(t *testing.T) {
		// stripe 0 -> disk 2, stripe 1 -> disk 1, stripe 2 -> disk 0, repeat
		want := []int{2, 1, 0, 2, 1, 0}
		for s, p := range want {
			assert.Equal(t, p, parityDisk(int64(s), 3), "stripe %d", s)
		}
	})

	t.Run("5Disks", func(t *testing.T) {
		want := []int{4, 3, 2, 1, 0, 4, 3}
		for s, p := range want {
			assert.Equal(t, p, parityDisk(int64(s), 5), "stripe %d", s)
		}
	})
}

func TestDataDisk_SkipsParity(t *testing.T) {
	// Parity on disk 2 of 4: slots 0,1 stay put, slot 2 lands on disk 3.
	assert.Equal(t, 0, dataDisk(0, 2))
	assert.Equal(t, 1, dataDisk(1, 2))
	assert.Equal(t, 3, dataDisk(2, 2))

	// Parity on disk 0: every slot shifts up by one.
	assert.Equal(t, 1, dataDisk(0, 0))
	assert.Equal(t, 2, dataDisk(1, 0))
	assert.Equal(t, 3, dataDisk(2, 0))
}

func TestLocate(t *testing.T) {
	t.Run("3Disks_Unit128", func(t *testing.T) {
		// S = 256 logical bytes per stripe.
		loc := locate(0, 128, 2, 3)
		assert.Equal(t, int64(0), loc.stripe)
		assert.Equal(t, 0, loc.slot)
		assert.Equal(t, int64(0), loc.offInUnit)
		assert.Equal(t, 2, loc.parityDisk)
		assert.Equal(t, 0, loc.dataDisk)
		assert.Equal(t, int64(0), loc.physOff)

		loc = locate(130, 128, 2, 3)
		assert.Equal(t, int64(0), loc.stripe)
		assert.Equal(t, 1, loc.slot)
		assert.Equal(t, int64(2), loc.offInUnit)
		assert.Equal(t, 2, loc.parityDisk)
		assert.Equal(t, 1, loc.dataDisk)

		loc = locate(300, 128, 2, 3)
		assert.Equal(t, int64(1), loc.stripe)
		assert.Equal(t, 0, loc.slot)
		assert.Equal(t, int64(44), loc.offInUnit)
		assert.Equal(t, 1, loc.parityDisk)
		assert.Equal(t, 0, loc.dataDisk)
		assert.Equal(t, int64(128), loc.physOff)

		loc = locate(500, 128, 2, 3)
		assert.Equal(t, int64(1), loc.stripe)
		assert.Equal(t, 1, loc.slot)
		assert.Equal(t, int64(116), loc.offInUnit)
		assert.Equal(t, 1, loc.parityDisk)
		assert.Equal(t, 2, loc.dataDisk)

		// Third stripe rotates parity onto disk 0, shifting both slots up.
		loc = locate(512, 128, 2, 3)
		assert.Equal(t, int64(2), loc.stripe)
		assert.Equal(t, 0, loc.parityDisk)
		assert.Equal(t, 1, loc.dataDisk)
	})

	t.Run("4Disks_Unit256", func(t *testing.T) {
		// S = 768. Stripe 1 parity sits on disk 2; slot 2 skips to disk 3.
		loc := locate(768+2*256+10, 256, 3, 4)
		assert.Equal(t, int64(1), loc.stripe)
		assert.Equal(t, 2, loc.slot)
		assert.Equal(t, int64(10), loc.offInUnit)
		assert.Equal(t, 2, loc.parityDisk)
		assert.Equal(t, 3, loc.dataDisk)
		assert.Equal(t, int64(256), loc.physOff)
	})
}

func TestDiskSet(t *testing.T) {
	set := newDiskSet(70)
	assert.Equal(t, 0, set.count())

	set.set(0)
	set.set(69)
	set.set(69) // idempotent
	assert.True(t, set.has(0))
	assert.True(t, set.has(69))
	assert.False(t, set.has(1))
	assert.Equal(t, 2, set.count())

	set.clear(0)
	assert.False(t, set.has(0))
	assert.Equal(t, 1, set.count())
}
