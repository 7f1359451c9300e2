package events

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joseph-ayodele/cryotrace/constants"
	"github.com/joseph-ayodele/cryotrace/internal/common"
)

// PhotoStore writes event photos under Dir/<kind>_photos.
type PhotoStore struct {
	Dir      string
	MaxBytes int64
	now      func() time.Time
}

func NewPhotoStore(dir string, maxBytes int64) *PhotoStore {
	return &PhotoStore{Dir: dir, MaxBytes: maxBytes, now: time.Now}
}

// Save stores r as "<manifest>_<ulid>.<ext>" and returns the path relative
// to Dir. The ulid keeps names unique and time-ordered.
func (p *PhotoStore) Save(kind constants.EventType, manifestID, filename string, r io.Reader) (string, error) {
	ext := constants.NormalizeExt(filepath.Ext(filename))
	if _, ok := constants.PhotoExtensions[ext]; !ok {
		return "", common.InvalidInputErrorf("photo must be one of jpg, jpeg, png, heic (got %q)", filepath.Ext(filename))
	}

	sub := strings.ToLower(string(kind)) + "_photos"
	if err := os.MkdirAll(filepath.Join(p.Dir, sub), 0o755); err != nil {
		return "", fmt.Errorf("create photo dir: %w", err)
	}

	id, err := ulid.New(ulid.Timestamp(p.now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate photo id: %w", err)
	}
	rel := filepath.Join(sub, fmt.Sprintf("%s_%s.%s", safeName(manifestID), id.String(), ext))
	full := filepath.Join(p.Dir, rel)

	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create photo: %w", err)
	}

	src := r
	if p.MaxBytes > 0 {
		src = io.LimitReader(r, p.MaxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && p.MaxBytes > 0 && n > p.MaxBytes {
		err = common.InvalidInputErrorf("photo exceeds %d bytes", p.MaxBytes)
	}
	if err != nil {
		_ = os.Remove(full)
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
