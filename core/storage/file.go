package storage

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/cogpy/atomspace/core/atom"
)

// FileBackend is the minimally-conformant file backend of spec.md §6: one
// S-expression per atom, fields (type, name | outgoing-handles,
// truth-strength, truth-confidence). No corpus library owns this format,
// so it is implemented directly over bufio/strconv (see DESIGN.md).
type FileBackend struct {
	mu        sync.RWMutex
	path      string
	connected bool
	fetchIdx  map[atom.Handle]AtomRecord
}

// NewFileBackend returns a backend that reads/writes path on Open/StoreGraph.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path, fetchIdx: make(map[atom.Handle]AtomRecord)}
}

func (f *FileBackend) Open(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	if _, err := os.Stat(f.path); err == nil {
		if err := f.loadIndexLocked(); err != nil {
			return atom.NewError(atom.StorageUnavailable, "FileBackend.Open", err)
		}
	}
	return nil
}

func (f *FileBackend) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *FileBackend) Connected() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.connected
}

func (f *FileBackend) StoreAtom(ctx context.Context, rec AtomRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchIdx[rec.Handle] = rec
	return f.appendLocked(rec)
}

func (f *FileBackend) FetchAtom(ctx context.Context, h atom.Handle) (*AtomRecord, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	rec, ok := f.fetchIdx[h]
	if !ok {
		return nil, false, nil
	}
	return &rec, true, nil
}

func (f *FileBackend) StoreGraph(ctx context.Context, src GraphSource) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Create(f.path)
	if err != nil {
		return atom.NewError(atom.StorageUnavailable, "FileBackend.StoreGraph", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	for _, rec := range src.AllAtoms() {
		if _, err := w.WriteString(encodeSExpr(rec)); err != nil {
			return atom.NewError(atom.StorageUnavailable, "FileBackend.StoreGraph", err)
		}
		f.fetchIdx[rec.Handle] = rec
	}
	return w.Flush()
}

func (f *FileBackend) LoadGraph(ctx context.Context, sink GraphSink) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.path)
	if err != nil {
		return atom.NewError(atom.StorageUnavailable, "FileBackend.LoadGraph", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rec, err := decodeSExpr(line)
		if err != nil {
			return atom.NewError(atom.InvalidArgument, "FileBackend.LoadGraph", err)
		}
		if _, err := sink.ImportAtom(rec); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (f *FileBackend) Stats(ctx context.Context) (map[string]any, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return map[string]any{"path": f.path, "atoms": len(f.fetchIdx)}, nil
}

func (f *FileBackend) loadIndexLocked() error {
	file, err := os.Open(f.path)
	if err != nil {
		return err
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rec, err := decodeSExpr(line)
		if err != nil {
			return err
		}
		f.fetchIdx[rec.Handle] = rec
	}
	return scanner.Err()
}

func (f *FileBackend) appendLocked(rec AtomRecord) error {
	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = file.WriteString(encodeSExpr(rec))
	return err
}

// encodeSExpr renders one AtomRecord as the S-expression format spec.md §6
// names: (type, name | outgoing-handles, truth-strength, truth-confidence).
func encodeSExpr(rec AtomRecord) string {
	var payload string
	if rec.Kind == atom.KindNode {
		payload = strconv.Quote(rec.Name)
	} else {
		parts := make([]string, len(rec.Outgoing))
		for i, h := range rec.Outgoing {
			parts[i] = strconv.FormatUint(uint64(h), 10)
		}
		payload = "(" + strings.Join(parts, " ") + ")"
	}
	return fmt.Sprintf("(%d %s %s %s %.17g %.17g)\n",
		rec.Handle, kindTag(rec.Kind), string(rec.Type), payload, rec.Strength, rec.Confidence)
}

func kindTag(k atom.Kind) string {
	if k == atom.KindLink {
		return "link"
	}
	return "node"
}

// decodeSExpr is a small hand-rolled parser for the line format above. It
// is deliberately not a general S-expression reader: the format has a
// fixed field count and no nested lists beyond one outgoing tuple.
func decodeSExpr(line string) (AtomRecord, error) {
	line = strings.TrimPrefix(line, "(")
	line = strings.TrimSuffix(line, ")")

	fields, err := tokenizeSExpr(line)
	if err != nil {
		return AtomRecord{}, err
	}
	if len(fields) != 6 {
		return AtomRecord{}, fmt.Errorf("malformed atom record: %q", line)
	}

	handle, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return AtomRecord{}, fmt.Errorf("malformed handle: %w", err)
	}
	rec := AtomRecord{Handle: atom.Handle(handle), Type: atom.Type(fields[2])}
	if fields[1] == "link" {
		rec.Kind = atom.KindLink
		inner := strings.TrimPrefix(strings.TrimSuffix(fields[3], ")"), "(")
		if inner != "" {
			for _, tok := range strings.Fields(inner) {
				h, err := strconv.ParseUint(tok, 10, 64)
				if err != nil {
					return AtomRecord{}, fmt.Errorf("malformed outgoing handle: %w", err)
				}
				rec.Outgoing = append(rec.Outgoing, atom.Handle(h))
			}
		}
	} else {
		rec.Kind = atom.KindNode
		rec.Name, err = strconv.Unquote(fields[3])
		if err != nil {
			return AtomRecord{}, fmt.Errorf("malformed name: %w", err)
		}
	}
	rec.Strength, err = strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return AtomRecord{}, fmt.Errorf("malformed strength: %w", err)
	}
	rec.Confidence, err = strconv.ParseFloat(fields[5], 64)
	if err != nil {
		return AtomRecord{}, fmt.Errorf("malformed confidence: %w", err)
	}
	return rec, nil
}

// tokenizeSExpr splits on spaces that are not inside a quoted name or a
// parenthesised outgoing tuple.
func tokenizeSExpr(s string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	depth := 0
	inQuote := false
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' && (i == 0 || s[i-1] != '\\'):
			inQuote = !inQuote
			cur.WriteByte(c)
		case inQuote:
			cur.WriteByte(c)
		case c == '(':
			depth++
			cur.WriteByte(c)
		case c == ')':
			depth--
			cur.WriteByte(c)
		case c == ' ' && depth == 0:
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	if depth != 0 || inQuote {
		return nil, fmt.Errorf("unbalanced s-expression: %q", s)
	}
	return tokens, nil
}
