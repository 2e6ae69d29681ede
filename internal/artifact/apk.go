package artifact

import (
	"archive/zip"
	"crypto"
	_ "crypto/sha256" // registers crypto.SHA256
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mholt/archiver"
)

// manifestName is the entry every APK carries at its root.
const manifestName = "AndroidManifest.xml"

// ChecksumFunction hashes artifacts for logs and reports.
const ChecksumFunction = crypto.SHA256

var (
	// ErrNotAFile is returned when the artifact path is a directory or a device.
	ErrNotAFile = errors.New("artifact is not a regular file")
	// ErrNotAnAPK is returned when the artifact is not a zip with an Android manifest.
	ErrNotAnAPK = errors.New("artifact is not an APK")

	errHashUnavailable = errors.New("hash function is unavailable")
)

// Info describes a checked artifact.
type Info struct {
	// Path is the absolute path of the APK.
	Path string
	// Size is the file size in bytes.
	Size int64
	// Checksum is the hex encoded SHA-256 of the file.
	Checksum string
}

// Inspect checks that path is a readable APK and returns its description.
func Inspect(path string) (*Info, error) {
	absolute, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("resolve artifact path: %w", err)
	}

	stat, err := os.Stat(absolute)
	if err != nil {
		return nil, fmt.Errorf("stat artifact: %w", err)
	}

	if !stat.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotAFile, absolute)
	}

	if err = checkManifest(absolute); err != nil {
		return nil, err
	}

	checksum, err := FileChecksum(absolute)
	if err != nil {
		return nil, err
	}

	return &Info{
		Path:     absolute,
		Size:     stat.Size(),
		Checksum: hex.EncodeToString(checksum),
	}, nil
}

// FileChecksum streams path through ChecksumFunction.
func FileChecksum(path string) ([]byte, error) {
	if !ChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := ChecksumFunction.New()
	if _, err = io.Copy(hasher, file); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}

// checkManifest walks the archive until it meets the root manifest entry.
func checkManifest(path string) error {
	var found bool

	err := archiver.NewZip().Walk(path, func(f archiver.File) error {
		header, ok := f.Header.(zip.FileHeader)
		if ok && header.Name == manifestName {
			found = true

			return archiver.ErrStopWalk
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNotAnAPK, path, err)
	}

	if !found {
		return fmt.Errorf("%w: %s has no %s", ErrNotAnAPK, path, manifestName)
	}

	return nil
}
