package lsh

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"log"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/gcbaptista/go-dupfinder/internal/errors"
	"github.com/gcbaptista/go-dupfinder/internal/tokenizer"
	"github.com/gcbaptista/go-dupfinder/model"
)

// mersennePrime is the modulus of the universal hash family used for minhashing.
const mersennePrime = (1 << 31) - 1

// MemoryEngine keeps matrices in process memory.
// It implements the Engine interface.
type MemoryEngine struct {
	mu          sync.RWMutex
	matrices    map[string]*memoryMatrix
	maxMatrices int
}

// NewMemoryEngine creates an engine holding at most maxMatrices live matrices.
// A maxMatrices of zero or less means unbounded.
func NewMemoryEngine(maxMatrices int) *MemoryEngine {
	return &MemoryEngine{
		matrices:    make(map[string]*memoryMatrix),
		maxMatrices: maxMatrices,
	}
}

// CreateMatrix validates params and allocates a new empty matrix.
func (e *MemoryEngine) CreateMatrix(_ context.Context, params Params) (string, error) {
	if params.Rows <= 0 || params.Bands <= 0 {
		return "", errors.NewValidationError("rows/bands", "must be positive")
	}
	if params.MinhashModulo <= 0 {
		return "", errors.NewValidationError("minhash_modulo", "must be positive")
	}
	shingler, err := tokenizer.ParseScheme(params.ShingleType)
	if err != nil {
		return "", errors.NewValidationError("shingle_type", err.Error())
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.maxMatrices > 0 && len(e.matrices) >= e.maxMatrices {
		return "", errors.NewIndexingUnavailableError("matrix allocation failed",
			fmt.Errorf("engine holds %d of %d matrices", len(e.matrices), e.maxMatrices))
	}

	m := newMemoryMatrix(uuid.New().String(), params, shingler)
	e.matrices[m.id] = m
	log.Printf("Created matrix %s (%s) with %d rows x %d bands, shingles %s, modulo %d",
		m.id, params.Filename, params.Rows, params.Bands, params.ShingleType, params.MinhashModulo)
	return m.id, nil
}

// FindMatrix looks up a matrix by ID.
func (e *MemoryEngine) FindMatrix(_ context.Context, matrixID string) (Matrix, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	m, exists := e.matrices[matrixID]
	if !exists {
		return nil, errors.NewMatrixNotFoundError(matrixID)
	}
	return m, nil
}

// PurgeMatrix removes a matrix if present.
func (e *MemoryEngine) PurgeMatrix(_ context.Context, matrixID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.matrices[matrixID]; exists {
		delete(e.matrices, matrixID)
		log.Printf("Purged matrix %s", matrixID)
	}
	return nil
}

// Len returns the number of live matrices.
func (e *MemoryEngine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.matrices)
}

type memoryMatrix struct {
	id       string
	params   Params
	shingler tokenizer.Shingler
	coeffA   []uint64
	coeffB   []uint64

	mu    sync.RWMutex
	order []string
	rows  map[string][]model.BucketID
}

func newMemoryMatrix(id string, params Params, shingler tokenizer.Shingler) *memoryMatrix {
	n := params.Rows * params.Bands

	// Coefficients depend only on the signature size so that equal texts hash
	// identically across matrices created with the same parameters.
	rng := rand.New(rand.NewSource(int64(n)))
	coeffA := make([]uint64, n)
	coeffB := make([]uint64, n)
	for i := 0; i < n; i++ {
		coeffA[i] = uint64(rng.Int63n(mersennePrime-1)) + 1
		coeffB[i] = uint64(rng.Int63n(mersennePrime))
	}

	return &memoryMatrix{
		id:       id,
		params:   params,
		shingler: shingler,
		coeffA:   coeffA,
		coeffB:   coeffB,
		rows:     make(map[string][]model.BucketID),
	}
}

func (m *memoryMatrix) ID() string { return m.id }

func (m *memoryMatrix) Params() Params { return m.params }

// CreateDocument adds or replaces the row for docID.
// Texts without any shingle are recorded with no buckets.
func (m *memoryMatrix) CreateDocument(ctx context.Context, docID, text string, _ map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if docID == "" {
		return errors.NewValidationError("doc_id", "cannot be empty")
	}

	buckets := m.buckets(m.signature(m.shingler(text)))

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rows[docID]; !exists {
		m.order = append(m.order, docID)
	}
	m.rows[docID] = buckets
	return nil
}

// FindChildRows returns a copy of every row in insertion order.
func (m *memoryMatrix) FindChildRows(ctx context.Context) ([]model.BucketAssignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]model.BucketAssignment, 0, len(m.order))
	for _, docID := range m.order {
		buckets := make([]model.BucketID, len(m.rows[docID]))
		copy(buckets, m.rows[docID])
		result = append(result, model.BucketAssignment{DocID: docID, Buckets: buckets})
	}
	return result, nil
}

// signature computes the minhash signature of a shingle set, or nil when it is empty.
func (m *memoryMatrix) signature(shingles []string) []uint64 {
	if len(shingles) == 0 {
		return nil
	}

	hashes := make([]uint64, len(shingles))
	for i, s := range shingles {
		h := fnv.New32a()
		_, _ = h.Write([]byte(s))
		hashes[i] = uint64(h.Sum32()) % mersennePrime
	}

	modulo := uint64(m.params.MinhashModulo)
	sig := make([]uint64, len(m.coeffA))
	for i := range sig {
		minValue := ^uint64(0)
		for _, x := range hashes {
			v := (m.coeffA[i]*x + m.coeffB[i]) % mersennePrime % modulo
			if v < minValue {
				minValue = v
			}
		}
		sig[i] = minValue
	}
	return sig
}

// buckets hashes each band of the signature, together with the band index, into a bucket id.
func (m *memoryMatrix) buckets(sig []uint64) []model.BucketID {
	if sig == nil {
		return make([]model.BucketID, 0)
	}

	rows := m.params.Rows
	result := make([]model.BucketID, m.params.Bands)
	buf := make([]byte, 8)
	for band := 0; band < m.params.Bands; band++ {
		h := fnv.New64a()
		binary.BigEndian.PutUint64(buf, uint64(band))
		_, _ = h.Write(buf)
		for _, v := range sig[band*rows : (band+1)*rows] {
			binary.BigEndian.PutUint64(buf, v)
			_, _ = h.Write(buf)
		}
		result[band] = model.BucketID(h.Sum64())
	}
	return result
}
