package link

import (
	"testing"

	"github.com/marmos91/dittolink/pkg/store/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPad() ScratchPad {
	return ScratchPad{MetadataID: object.NewObjectID(), AttributeID: object.NewObjectID()}
}

func TestScratchPad_RoundTrip(t *testing.T) {
	pad := testPad()

	got, err := DecodeScratchPad(EncodeScratchPad(pad), ChecksumStore)
	require.NoError(t, err)
	assert.Equal(t, pad, got)
}

func TestScratchPad_TamperedChecksum(t *testing.T) {
	data := EncodeScratchPad(testPad())
	data[3] ^= 0xff

	_, err := DecodeScratchPad(data, ChecksumStore)
	requireCode(t, err, ErrIntegrity)

	// Verification is off unless the scope covers the store.
	_, err = DecodeScratchPad(data, ChecksumTransfer|ChecksumMemory)
	assert.NoError(t, err)
}

func TestScratchPad_ZeroChecksumSkipsVerification(t *testing.T) {
	data := EncodeScratchPad(testPad())
	for i := 32; i < 40; i++ {
		data[i] = 0
	}

	_, err := DecodeScratchPad(data, ChecksumStore)
	assert.NoError(t, err)
}

func TestScratchPad_WrongSize(t *testing.T) {
	_, err := DecodeScratchPad(make([]byte, 12), 0)
	requireCode(t, err, ErrCorruptData)
}

func TestParseChecksumScope(t *testing.T) {
	s, err := ParseChecksumScope([]string{"store", " Transfer "})
	require.NoError(t, err)
	assert.Equal(t, ChecksumStore|ChecksumTransfer, s)
	assert.True(t, s.VerifiesStore())
	assert.Equal(t, "transfer|store", s.String())

	s, err = ParseChecksumScope(nil)
	require.NoError(t, err)
	assert.Equal(t, "none", s.String())

	_, err = ParseChecksumScope([]string{"disk"})
	assert.Error(t, err)
}
