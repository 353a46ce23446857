package verify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"slices"
	"sort"
	"sync"

	"github.com/cottand/sigil/axiom"
	"github.com/hashicorp/go-set/v3"
	xset "github.com/xtgo/set"
)

// Cache stores definitive results of symbolic assertions, tagged with the
// structures whose axioms they were checked against
type Cache interface {
	Get(ctx context.Context, key string) (Result, bool, error)
	Put(ctx context.Context, key string, r Result, structures []string) error
	// Invalidate drops every result tagged with structure
	Invalidate(ctx context.Context, structure string) error
}

// CacheKey hashes the goal of plan with the set of its axioms: plans with the
// same goal and the same axioms, in any order, share a key
func CacheKey(plan *axiom.Plan) string {
	h := sha256.New()
	writeAxiomSet(h, plan.Axioms)
	h.Write([]byte{0})
	if plan.Goal != nil {
		h.Write([]byte(plan.Goal.String()))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// AxiomSetKey hashes a set of axioms, ignoring their order and repetitions
func AxiomSetKey(axioms []axiom.Axiom) string {
	h := sha256.New()
	writeAxiomSet(h, axioms)
	return hex.EncodeToString(h.Sum(nil))
}

func writeAxiomSet(w io.Writer, axioms []axiom.Axiom) {
	fingerprints := make([]string, len(axioms))
	for i, ax := range axioms {
		fingerprints[i] = ax.Fingerprint()
	}
	sort.Strings(fingerprints)
	fingerprints = fingerprints[:xset.Uniq(sort.StringSlice(fingerprints))]
	for _, fp := range fingerprints {
		_, _ = io.WriteString(w, fp)
		_, _ = w.Write([]byte{0})
	}
}

type memoryEntry struct {
	result     Result
	structures *set.Set[string]
}

// MemoryCache is a Cache for the lifetime of the process
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

var _ Cache = (*MemoryCache)(nil)

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (Result, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return Result{}, false, nil
	}
	r := e.result
	r.Counterexample = slices.Clone(r.Counterexample)
	return r, true, nil
}

func (c *MemoryCache) Put(_ context.Context, key string, r Result, structures []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	r.Counterexample = slices.Clone(r.Counterexample)
	c.entries[key] = memoryEntry{result: r, structures: set.From(structures)}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, structure string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if e.structures.Contains(structure) {
			delete(c.entries, key)
		}
	}
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// NoCache never stores anything
type NoCache struct{}

func (NoCache) Get(context.Context, string) (Result, bool, error)   { return Result{}, false, nil }
func (NoCache) Put(context.Context, string, Result, []string) error { return nil }
func (NoCache) Invalidate(context.Context, string) error            { return nil }
