package amm_v3

import (
	"fmt"
	"math/big"
)

// TickArraySpan is the tick distance covered by one tick-array account.
func TickArraySpan(tickSpacing uint16) int32 {
	return int32(tickSpacing) * TickArraySize
}

// TickArrayStartIndex returns the start index of the tick array containing
// tick, rounding toward negative infinity.
func TickArrayStartIndex(tick int32, tickSpacing uint16) int32 {
	span := int64(TickArraySpan(tickSpacing))
	start := int64(tick) / span
	if int64(tick) < 0 && int64(tick)%span != 0 {
		start--
	}
	return int32(start * span)
}

// MaxTickInBitmap is the highest tick boundary addressable by the pool's
// default bitmap for a given spacing. The extension account covers the rest.
func MaxTickInBitmap(tickSpacing uint16) int32 {
	return TickArrayBitmapSize * TickArraySpan(tickSpacing)
}

// MergeTickArrayBitmap packs little-endian bitmap words into one big.Int so
// bit positions can be scanned across word boundaries.
func MergeTickArrayBitmap(words []uint64) *big.Int {
	result := new(big.Int)
	for i, word := range words {
		result.Add(result, new(big.Int).Lsh(new(big.Int).SetUint64(word), uint(64*i)))
	}
	return result
}

// IsTickArrayInitialized reports whether the array containing tick is marked
// in the pool's default bitmap.
func IsTickArrayInitialized(bitmap [16]uint64, tick int32, tickSpacing uint16) bool {
	startIndex := TickArrayStartIndex(tick, tickSpacing)
	compressed := startIndex/TickArraySpan(tickSpacing) + TickArrayBitmapSize
	bitPos := int(absInt64(int64(compressed)))

	wordPos := bitPos / 64
	if wordPos >= len(bitmap) {
		return false
	}
	return bitmap[wordPos]&(1<<uint(bitPos%64)) != 0
}

// IsOverflowDefaultBitmap reports whether the array containing tick lives
// outside the default bitmap and must be looked up in the extension account.
func IsOverflowDefaultBitmap(tick int32, tickSpacing uint16) bool {
	startIndex := TickArrayStartIndex(tick, tickSpacing)
	maxBoundary := MaxTickInBitmap(tickSpacing)
	minBoundary := -maxBoundary
	if maxBoundary > MaxTick {
		maxBoundary = TickArrayStartIndex(MaxTick, tickSpacing) + TickArraySpan(tickSpacing)
	}
	if minBoundary < MinTick {
		minBoundary = TickArrayStartIndex(MinTick, tickSpacing)
	}
	return startIndex >= maxBoundary || startIndex < minBoundary
}

// extensionBitmapOffset locates the extension word group covering a tick
// array start index. Indexes inside the default bitmap's reach are an error;
// the caller should consult the pool bitmap instead.
func extensionBitmapOffset(tickIndex int32, tickSpacing uint16) (int, error) {
	ticksInOneBitmap := int64(MaxTickInBitmap(tickSpacing))
	if int64(tickIndex) >= -ticksInOneBitmap && int64(tickIndex) < ticksInOneBitmap {
		return 0, fmt.Errorf("tick %d covered by the default bitmap", tickIndex)
	}

	offset := absInt64(int64(tickIndex))/ticksInOneBitmap - 1
	if tickIndex < 0 && absInt64(int64(tickIndex))%ticksInOneBitmap == 0 {
		offset--
	}
	if offset < 0 || offset >= ExtensionBitmapSize {
		return 0, fmt.Errorf("tick %d outside extension bitmap", tickIndex)
	}
	return int(offset), nil
}

// extensionBitmap returns the 512-bit word group of the extension covering a
// tick array start index.
func (e *TickArrayBitmapExtension) extensionBitmap(tickIndex int32, tickSpacing uint16) ([]uint64, error) {
	offset, err := extensionBitmapOffset(tickIndex, tickSpacing)
	if err != nil {
		return nil, err
	}
	if tickIndex < 0 {
		return e.NegativeTickArrayBitmap[offset][:], nil
	}
	return e.PositiveTickArrayBitmap[offset][:], nil
}

// IsTickArrayInitializedExtension reports whether the array containing tick
// is marked in the extension bitmap.
func (e *TickArrayBitmapExtension) IsTickArrayInitialized(tickArrayStartIndex int32, tickSpacing uint16) bool {
	bitmap, err := e.extensionBitmap(tickArrayStartIndex, tickSpacing)
	if err != nil {
		return false
	}
	offset := tickArrayOffsetInBitmap(tickArrayStartIndex, tickSpacing)
	return bitmap[offset/64]&(1<<uint(offset%64)) != 0
}

// tickArrayOffsetInBitmap is the bit position of a tick array inside its 512
// bit word group.
func tickArrayOffsetInBitmap(tickArrayStartIndex int32, tickSpacing uint16) int64 {
	maxTick := int64(MaxTickInBitmap(tickSpacing))
	m := absInt64(int64(tickArrayStartIndex)) % maxTick
	offset := m / int64(TickArraySpan(tickSpacing))

	if tickArrayStartIndex < 0 && m != 0 {
		offset = TickArrayBitmapSize - offset
	}
	return offset
}

// bitmapTickBoundary returns the [min, max) tick range of the 512-bit word
// group containing a tick array start index.
func bitmapTickBoundary(tickArrayStartIndex int32, tickSpacing uint16) (int32, int32) {
	ticksInOneBitmap := int64(MaxTickInBitmap(tickSpacing))
	m := absInt64(int64(tickArrayStartIndex)) / ticksInOneBitmap
	if tickArrayStartIndex < 0 && absInt64(int64(tickArrayStartIndex))%ticksInOneBitmap != 0 {
		m++
	}

	minValue := ticksInOneBitmap * m
	if tickArrayStartIndex < 0 {
		return int32(-minValue), int32(-minValue + ticksInOneBitmap)
	}
	return int32(minValue), int32(minValue + ticksInOneBitmap)
}

// NextInitializedTickArrayStartIndex walks from the array containing
// tickCurrent in the swap direction until it finds an initialized array,
// consulting first the pool bitmap and then the extension. Returns false
// when no initialized array exists in that direction.
func NextInitializedTickArrayStartIndex(
	ext *TickArrayBitmapExtension,
	tickCurrent int32,
	tickSpacing uint16,
	bitmap [16]uint64,
	zeroForOne bool,
) (bool, int32, error) {
	lastStartIndex := TickArrayStartIndex(tickCurrent, tickSpacing)
	merged := MergeTickArrayBitmap(bitmap[:])

	for {
		found, startIndex := nextInitializedInDefaultBitmap(merged, lastStartIndex, tickSpacing, zeroForOne)
		if found {
			return true, startIndex, nil
		}
		lastStartIndex = startIndex

		if ext == nil {
			return false, 0, nil
		}
		found, tickIndex, err := ext.nextInitializedTickArray(lastStartIndex, tickSpacing, zeroForOne)
		if err != nil {
			return false, 0, err
		}
		if found {
			return true, tickIndex, nil
		}
		lastStartIndex = tickIndex

		if lastStartIndex < MinTick || lastStartIndex > MaxTick {
			return false, 0, nil
		}
	}
}

// nextInitializedInDefaultBitmap scans the pool's 1024-bit bitmap for the
// next initialized array past lastStartIndex. When none remains on the
// bitmap's side it returns false with the boundary start index to continue
// from.
func nextInitializedInDefaultBitmap(merged *big.Int, lastStartIndex int32, tickSpacing uint16, zeroForOne bool) (bool, int32) {
	span := TickArraySpan(tickSpacing)
	tickBoundary := MaxTickInBitmap(tickSpacing)

	var next int32
	if zeroForOne {
		next = lastStartIndex - span
	} else {
		next = lastStartIndex + span
	}
	if next < -tickBoundary || next >= tickBoundary {
		return false, lastStartIndex
	}

	bitPos := int(next/span) + TickArrayBitmapSize

	if zeroForOne {
		offsetBitmap := new(big.Int).Lsh(merged, uint(2*TickArrayBitmapSize-bitPos-1))
		nextBit := leadingZeros(2*TickArrayBitmapSize, offsetBitmap)
		if nextBit == nil {
			return false, -tickBoundary
		}
		return true, int32(bitPos-*nextBit-TickArrayBitmapSize) * span
	}

	offsetBitmap := new(big.Int).Rsh(merged, uint(bitPos))
	nextBit := trailingZeros(2*TickArrayBitmapSize, offsetBitmap)
	if nextBit == nil {
		return false, tickBoundary - span
	}
	return true, int32(bitPos+*nextBit-TickArrayBitmapSize) * span
}

// nextInitializedTickArray scans the single extension word group adjacent to
// lastStartIndex in the swap direction.
func (e *TickArrayBitmapExtension) nextInitializedTickArray(lastStartIndex int32, tickSpacing uint16, zeroForOne bool) (bool, int32, error) {
	span := TickArraySpan(tickSpacing)

	var next int32
	if zeroForOne {
		next = lastStartIndex - span
	} else {
		next = lastStartIndex + span
	}

	bitmap, err := e.extensionBitmap(next, tickSpacing)
	if err != nil {
		return false, 0, err
	}

	minBoundary, maxBoundary := bitmapTickBoundary(next, tickSpacing)
	offset := tickArrayOffsetInBitmap(next, tickSpacing)
	merged := MergeTickArrayBitmap(bitmap)

	if zeroForOne {
		offsetBitmap := new(big.Int).Lsh(merged, uint(int64(TickArrayBitmapSize)-1-offset))
		nextBit := leadingZeros(TickArrayBitmapSize, offsetBitmap)
		if nextBit == nil {
			return false, minBoundary, nil
		}
		return true, next - int32(*nextBit)*span, nil
	}

	offsetBitmap := new(big.Int).Rsh(merged, uint(offset))
	nextBit := trailingZeros(TickArrayBitmapSize, offsetBitmap)
	if nextBit == nil {
		return false, maxBoundary - span, nil
	}
	return true, next + int32(*nextBit)*span, nil
}

// InitializedTickArrayStartIndexes collects up to count initialized array
// start indexes on each side of the array containing tickCurrent, nearest
// first. It feeds account prefetch for swaps.
func InitializedTickArrayStartIndexes(
	bitmap [16]uint64,
	ext *TickArrayBitmapExtension,
	tickCurrent int32,
	tickSpacing uint16,
	count int,
) []int32 {
	offset := int64(TickArrayStartIndex(tickCurrent, tickSpacing)) / int64(TickArraySpan(tickSpacing))

	result := searchBitsFromStart(bitmap, ext, offset-1, count, tickSpacing, true)
	result = append(result, searchBitsFromStart(bitmap, ext, offset, count, tickSpacing, false)...)
	return result
}

// searchBitsFromStart walks the concatenated extension-negative, default and
// extension-positive bitmaps linearly from a bit offset, downward for
// zeroForOne swaps, upward otherwise.
func searchBitsFromStart(
	bitmap [16]uint64,
	ext *TickArrayBitmapExtension,
	startOffset int64,
	expectedCount int,
	tickSpacing uint16,
	downward bool,
) []int32 {
	var groups []*big.Int
	if ext != nil {
		for i := ExtensionBitmapSize - 1; i >= 0; i-- {
			groups = append(groups, MergeTickArrayBitmap(ext.NegativeTickArrayBitmap[i][:]))
		}
	} else {
		for i := 0; i < ExtensionBitmapSize; i++ {
			groups = append(groups, new(big.Int))
		}
	}
	groups = append(groups, MergeTickArrayBitmap(bitmap[0:8]), MergeTickArrayBitmap(bitmap[8:16]))
	if ext != nil {
		for i := 0; i < ExtensionBitmapSize; i++ {
			groups = append(groups, MergeTickArrayBitmap(ext.PositiveTickArrayBitmap[i][:]))
		}
	} else {
		for i := 0; i < ExtensionBitmapSize; i++ {
			groups = append(groups, new(big.Int))
		}
	}

	// Bit 0 of the concatenation sits at array offset -(14*512 + 512) =
	// -7680.
	const bias = (ExtensionBitmapSize + 1) * TickArrayBitmapSize

	found := make([]int32, 0, expectedCount)
	offset := startOffset
	for len(found) < expectedCount {
		if downward && offset < -bias {
			break
		}
		if !downward && offset >= bias {
			break
		}
		pos := offset + bias
		if groups[pos/TickArrayBitmapSize].Bit(int(pos%TickArrayBitmapSize)) == 1 {
			found = append(found, int32(offset)*TickArraySpan(tickSpacing))
		}
		if downward {
			offset--
		} else {
			offset++
		}
	}
	return found
}
