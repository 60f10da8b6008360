package apktool

import (
	"encoding/hex"
	"io"
	"os"

	"github.com/zeebo/blake3"

	"github.com/apkbridge/apkbridge/internal/protocol"
)

// Fingerprint computes the BLAKE3 hash of the file at path. Decode records
// it on the workspace so history rows and diagnostics can tell whether the
// source APK changed between operations.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", protocol.WrapError(protocol.KindPathNotFound, err,
			"APK file not found: %s", path)
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", protocol.WrapError(protocol.KindInternal, err,
			"hash %s: %v", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
