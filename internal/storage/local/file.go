// Package local — долговременное key/value хранилище процесса (аналог
// браузерного localStorage) с квотой на суммарный объём значений.
package local

import (
	"bufio"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/Gunvolt24/resto_sync/internal/ports"
	"github.com/Gunvolt24/resto_sync/pkg/apperr"
)

var _ ports.DurableStorage = (*FileStore)(nil)

const (
	fileExt   = ".kv"
	hashedExt = ".kvh"

	// длиннее — имя файла заменяется на sha256(key), а сам ключ пишется первой строкой
	maxEncodedName = 200
)

// FileStore — по файлу на ключ в каталоге dir. Имя файла — base64url(key);
// для длинных ключей (URL с query) — sha256(key) с ключом в заголовке файла.
type FileStore struct {
	dir   string
	quota int64

	sizes map[string]int64
	total int64

	mu sync.Mutex
}

// OpenFileStore — создаёт каталог при необходимости и индексирует существующие записи.
// quota <= 0 — без ограничения.
func OpenFileStore(dir string, quota int64) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read storage dir: %w", err)
	}

	s := &FileStore{dir: dir, quota: quota, sizes: make(map[string]int64)}
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}

		var (
			key  string
			size = info.Size()
		)
		switch {
		case strings.HasSuffix(name, fileExt):
			if key, err = decodeKey(strings.TrimSuffix(name, fileExt)); err != nil {
				continue
			}
		case strings.HasSuffix(name, hashedExt):
			var header int64
			if key, header, err = readHashedKey(filepath.Join(dir, name)); err != nil {
				continue
			}
			size -= header
		default:
			continue
		}
		s.sizes[key] = size
		s.total += size
	}
	return s, nil
}

func (s *FileStore) GetItem(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sizes[key]; !ok {
		return "", false, nil
	}
	path, hashed := s.path(key)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read item %q: %w", key, err)
	}
	if hashed {
		_, value, _ := strings.Cut(string(b), "\n")
		return value, true, nil
	}
	return string(b), true, nil
}

func (s *FileStore) SetItem(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := int64(len(value))
	next := s.total - s.sizes[key] + size
	if s.quota > 0 && next > s.quota {
		return apperr.Wrap(apperr.ErrStorageFull, apperr.CodeStorageFull,
			"set item %q (%d bytes, used %d of %d)", key, size, s.total, s.quota)
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	path, hashed := s.path(key)
	content := value
	if hashed {
		content = encodeKey(key) + "\n" + value
	}
	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write item %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close item %q: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("commit item %q: %w", key, err)
	}

	s.total = next
	s.sizes[key] = size
	return nil
}

func (s *FileStore) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	size, ok := s.sizes[key]
	if !ok {
		return nil
	}
	path, _ := s.path(key)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove item %q: %w", key, err)
	}
	delete(s.sizes, key)
	s.total -= size
	return nil
}

func (s *FileStore) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.sizes))
	for k := range s.sizes {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

// Used — занятый объём в байтах.
func (s *FileStore) Used() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// path — файл ключа; hashed — имя построено из хэша, ключ лежит в первой строке.
func (s *FileStore) path(key string) (path string, hashed bool) {
	enc := encodeKey(key)
	if len(enc) <= maxEncodedName {
		return filepath.Join(s.dir, enc+fileExt), false
	}
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+hashedExt), true
}

// readHashedKey — ключ из заголовка файла и длина заголовка в байтах.
func readHashedKey(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil {
		if err == io.EOF {
			err = fmt.Errorf("no key header in %s", path)
		}
		return "", 0, err
	}
	key, err := decodeKey(strings.TrimSuffix(line, "\n"))
	if err != nil {
		return "", 0, err
	}
	return key, int64(len(line)), nil
}

func encodeKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func decodeKey(name string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(name)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
