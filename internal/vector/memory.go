package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// passageVec pairs a passage ID with its normalized embedding.
type passageVec struct {
	id  string
	vec []float32
}

// MemoryIndex holds passage embeddings in memory and answers queries by
// brute-force inner product. Reference corpora here are tens of thousands of
// passages at most, which brute force over normalized vectors handles
// comfortably.
type MemoryIndex struct {
	dimensions int
	passages   []passageVec
	pos        map[string]int
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory passage index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{
		dimensions: dimensions,
		pos:        make(map[string]int),
	}, nil
}

// Add indexes passage embeddings. A passage ID already present has its
// vector replaced in place, so re-ingesting a revised source never leaves
// stale duplicates behind.
func (m *MemoryIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range ids {
		if len(vectors[i]) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), m.dimensions)
		}
		vec := make([]float32, m.dimensions)
		copy(vec, vectors[i])
		if at, ok := m.pos[id]; ok {
			m.passages[at].vec = vec
			continue
		}
		m.pos[id] = len(m.passages)
		m.passages = append(m.passages, passageVec{id: id, vec: vec})
	}
	return nil
}

// Search returns the k most similar passages by inner product, which equals
// cosine similarity over the normalized embeddings stored here.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.passages) == 0 {
		return nil, nil
	}
	hits := make([]*VectorResult, len(m.passages))
	for i, p := range m.passages {
		var dot float64
		for j := 0; j < m.dimensions; j++ {
			dot += float64(query[j] * p.vec[j])
		}
		hits[i] = &VectorResult{ID: p.id, Score: dot}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Remove drops passages by ID, rebuilding the backing slice and position map.
func (m *MemoryIndex) Remove(ctx context.Context, ids []string) error {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := make([]passageVec, 0, len(m.passages))
	pos := make(map[string]int, len(m.passages))
	for _, p := range m.passages {
		if drop[p.id] {
			continue
		}
		pos[p.id] = len(kept)
		kept = append(kept, p)
	}
	m.passages = kept
	m.pos = pos
	return nil
}

// Save persists the index to path. Directory is created if needed. Format:
// dimension (4), n (4), then per passage: idLen (4), id bytes, vector
// (dimension*4 bytes).
func (m *MemoryIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, uint32(m.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(m.passages))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, p := range m.passages {
		idBytes := []byte(p.id)
		if err := binary.Write(f, binary.LittleEndian, uint32(len(idBytes))); err != nil {
			return fmt.Errorf("write id len: %w", err)
		}
		if _, err := f.Write(idBytes); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if _, err := f.Write(float32SliceToBytes(p.vec)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load reads the index from path and replaces the in-memory contents.
// Dimensions must match. A missing file leaves the index empty rather than
// erroring, so a fresh deployment starts clean.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != m.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, m.dimensions)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passages = make([]passageVec, 0, n)
	m.pos = make(map[string]int, n)
	buf := make([]byte, m.dimensions*4)
	for i := uint32(0); i < n; i++ {
		var idLen uint32
		if err := binary.Read(f, binary.LittleEndian, &idLen); err != nil {
			return fmt.Errorf("read id len: %w", err)
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(f, idBytes); err != nil {
			return fmt.Errorf("read id: %w", err)
		}
		if _, err := io.ReadFull(f, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		id := string(idBytes)
		m.pos[id] = len(m.passages)
		m.passages = append(m.passages, passageVec{id: id, vec: bytesToFloat32Slice(buf)})
	}
	return nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}

// Size returns the number of indexed passages.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.passages)
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}

// CosineSimilarity returns cosine similarity between two normalized vectors,
// clamped to [0,1].
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i] * b[i])
	}
	return math.Max(0, math.Min(1, dot))
}
