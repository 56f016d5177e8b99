package vhash

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// On-disk container: 4-byte magic, big-endian u16 version, 32-byte cache
// key, CBOR body. Files are written whole to a temp path and renamed, so a
// valid header implies a complete body follows.
const (
	codecMagic   = "VHSH"
	codecVersion = uint16(1)

	// KeySize is the byte length of the content-addressed cache key
	// embedded in each container.
	KeySize = 32
)

// ErrBadContainer reports a .vhash file that is not a valid container.
// Readers treat it as a cache miss and discard the file.
var ErrBadContainer = errors.New("invalid vhash container")

// Encode writes the versioned container for vh under the given cache key.
func Encode(w io.Writer, key [KeySize]byte, vh *VideoHash) error {
	body, err := canonicalEnc.Marshal(vh)
	if err != nil {
		return fmt.Errorf("encode vhash body: %w", err)
	}

	header := make([]byte, 0, len(codecMagic)+2+KeySize)
	header = append(header, codecMagic...)
	header = binary.BigEndian.AppendUint16(header, codecVersion)
	header = append(header, key[:]...)

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// Decode reads one container, returning the embedded key and the decoded
// VideoHash. Any malformed header, unknown version, or undecodable body
// yields ErrBadContainer.
func Decode(r io.Reader) ([KeySize]byte, *VideoHash, error) {
	var key [KeySize]byte

	header := make([]byte, len(codecMagic)+2+KeySize)
	if _, err := io.ReadFull(r, header); err != nil {
		return key, nil, fmt.Errorf("%w: short header: %v", ErrBadContainer, err)
	}
	if string(header[:len(codecMagic)]) != codecMagic {
		return key, nil, fmt.Errorf("%w: bad magic %q", ErrBadContainer, header[:len(codecMagic)])
	}
	version := binary.BigEndian.Uint16(header[len(codecMagic) : len(codecMagic)+2])
	if version != codecVersion {
		return key, nil, fmt.Errorf("%w: unsupported version %d", ErrBadContainer, version)
	}
	copy(key[:], header[len(codecMagic)+2:])

	body, err := io.ReadAll(r)
	if err != nil {
		return key, nil, fmt.Errorf("%w: read body: %v", ErrBadContainer, err)
	}

	var vh VideoHash
	if err := cbor.Unmarshal(body, &vh); err != nil {
		return key, nil, fmt.Errorf("%w: decode body: %v", ErrBadContainer, err)
	}
	if len(vh.Spatial) == 0 || vh.DurationMS <= 0 {
		return key, nil, fmt.Errorf("%w: body fails invariants", ErrBadContainer)
	}
	return key, &vh, nil
}
