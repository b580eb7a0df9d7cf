// Package docstore — общее для адаптеров хранилища документов: пути и
// раскладка JSON-поддерева на листья "путь → значение" и обратно.
//
// Объекты раскладываются по ключам; массивы, строки, числа и bool хранятся
// целиком как лист. null и пустой объект листьев не дают (запись null = удаление).
package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Gunvolt24/resto_sync/pkg/apperr"
)

const forbidden = ".#$[]"

// CleanPath — путь без ведущих/замыкающих "/" с проверкой сегментов.
func CleanPath(p string) (string, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return "", apperr.Wrap(apperr.ErrInvalidArgument, apperr.CodeInvalidArgument, "empty document path")
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || strings.ContainsAny(seg, forbidden) {
			return "", apperr.Wrap(apperr.ErrInvalidArgument, apperr.CodeInvalidArgument, "invalid document path %q", p)
		}
	}
	return p, nil
}

// Join — дочерний путь.
func Join(parent, child string) string {
	return parent + "/" + strings.Trim(child, "/")
}

// Within — child совпадает с parent или лежит в его поддереве.
func Within(child, parent string) bool {
	return child == parent || strings.HasPrefix(child, parent+"/")
}

// Ancestors — все строгие предки пути, от корня.
func Ancestors(p string) []string {
	var out []string
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			out = append(out, p[:i])
		}
	}
	return out
}

// Flatten — листья значения value, записанного по пути base.
func Flatten(base string, value json.RawMessage) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage)
	if err := flatten(base, value, out); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInvalidArgument, "flatten %s", base)
	}
	return out, nil
}

func flatten(path string, value json.RawMessage, out map[string]json.RawMessage) error {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] != '{' {
		if !json.Valid(trimmed) {
			return fmt.Errorf("invalid JSON at %s", path)
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return err
		}
		out[path] = buf.Bytes()
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return err
	}
	for k, v := range obj {
		if k == "" || strings.ContainsAny(k, forbidden+"/") {
			return fmt.Errorf("invalid key %q at %s", k, path)
		}
		if err := flatten(path+"/"+k, v, out); err != nil {
			return err
		}
	}
	return nil
}

// Assemble — собирает значение по пути base из листьев поддерева.
// ok=false, если листьев нет.
func Assemble(base string, leaves map[string]json.RawMessage) (json.RawMessage, bool, error) {
	if v, ok := leaves[base]; ok {
		return v, true, nil
	}
	if len(leaves) == 0 {
		return nil, false, nil
	}

	paths := make([]string, 0, len(leaves))
	for p := range leaves {
		if strings.HasPrefix(p, base+"/") {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return nil, false, nil
	}
	sort.Strings(paths)

	root := map[string]any{}
	for _, p := range paths {
		segs := strings.Split(strings.TrimPrefix(p, base+"/"), "/")
		node := root
		for _, seg := range segs[:len(segs)-1] {
			child, ok := node[seg].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[seg] = child
			}
			node = child
		}
		node[segs[len(segs)-1]] = leaves[p]
	}

	raw, err := json.Marshal(root)
	if err != nil {
		return nil, false, fmt.Errorf("assemble %s: %w", base, err)
	}
	return raw, true, nil
}
