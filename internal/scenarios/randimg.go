package scenarios

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"
)

// WriteRandomImage fills path with size bytes of random data. The
// verify-mismatch and section-lock scenarios write or compare this
// buffer against the chip; full-entropy content guarantees it can never
// coincide with real flash contents.
func WriteRandomImage(path string, size int64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating random image: %w", err)
	}
	if _, err := io.CopyN(f, rand.Reader, size); err != nil {
		f.Close()
		return fmt.Errorf("filling random image: %w", err)
	}
	return f.Close()
}
