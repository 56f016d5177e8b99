package cache

import (
	"encoding/hex"
	"io"
	"os"

	"lukechampine.com/blake3"

	"vidsift/pkg/vhash"
)

// FileDigestSize is the byte length of the content digest.
const FileDigestSize = 32

// Key addresses one cache entry: the blake3 digest of the full file bytes
// combined with the hashing-parameter digest. Re-encoding a file or
// changing any hash knob lands on a different key.
type Key struct {
	File   [FileDigestSize]byte
	Params [vhash.ParamsDigestSize]byte
}

// Sum collapses the key to the 32-byte identifier used for file names and
// the .vhash container header.
func (k Key) Sum() [vhash.KeySize]byte {
	h := blake3.New(vhash.KeySize, nil)
	h.Write(k.File[:])
	h.Write(k.Params[:])

	var out [vhash.KeySize]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Hex returns the hexadecimal entry name for the key.
func (k Key) Hex() string {
	sum := k.Sum()
	return hex.EncodeToString(sum[:])
}

// FileDigest streams the whole file through blake3.
func FileDigest(path string) ([FileDigestSize]byte, error) {
	var out [FileDigestSize]byte

	f, err := os.Open(path)
	if err != nil {
		return out, err
	}
	defer f.Close()

	h := blake3.New(FileDigestSize, nil)
	if _, err := io.Copy(h, f); err != nil {
		return out, err
	}
	copy(out[:], h.Sum(nil))
	return out, nil
}
