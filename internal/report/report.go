// Package report groups documents that share LSH buckets into duplicate sets
// and renders them as text.
package report

import (
	"context"
	"crypto/md5" // #nosec G501 -- set identity digest, not a security boundary
	"fmt"
	"log"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/gcbaptista/go-dupfinder/internal/lsh"
	"github.com/gcbaptista/go-dupfinder/model"
	"github.com/gcbaptista/go-dupfinder/store"
)

// setHashModulus reduces a set digest to seven decimal digits.
var setHashModulus = big.NewInt(10_000_000)

// Reporter builds duplicate reports from a matrix's bucket assignments.
type Reporter struct {
	matrices lsh.Engine
	store    store.Store
}

// NewReporter creates a Reporter.
func NewReporter(matrices lsh.Engine, st store.Store) *Reporter {
	return &Reporter{matrices: matrices, store: st}
}

// Report builds and renders the duplicate sets of a matrix.
// It fails with errors.ErrMatrixNotFound when the matrix does not exist.
func (r *Reporter) Report(ctx context.Context, matrixID, recordID string) (string, error) {
	sets, err := r.Build(ctx, matrixID, recordID)
	if err != nil {
		return "", err
	}
	return Render(sets), nil
}

// Build reads the live bucket assignments of a matrix and groups the
// documents of recordID by identical bucket co-membership. Buckets with fewer
// than two distinct documents are ignored. Sets are returned in the order
// their first bucket was discovered.
func (r *Reporter) Build(ctx context.Context, matrixID, recordID string) ([]model.DuplicateSet, error) {
	matrix, err := r.matrices.FindMatrix(ctx, matrixID)
	if err != nil {
		return nil, err
	}
	rows, err := matrix.FindChildRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of matrix '%s': %w", matrixID, err)
	}

	buckets, order := invert(rows)
	log.Printf("Matrix %s for record '%s' has %d rows in %d buckets", matrixID, recordID, len(rows), len(order))

	var sets []model.DuplicateSet
	index := make(map[string]int)
	for _, bucket := range order {
		members := memberKeys(recordID, buckets[bucket])
		if len(members) < 2 {
			continue
		}

		hash := SetHash(members)
		if i, exists := index[hash]; exists {
			sets[i].Buckets = append(sets[i].Buckets, bucket)
			continue
		}
		index[hash] = len(sets)
		sets = append(sets, model.DuplicateSet{
			SetHash: hash,
			Members: members,
			Buckets: []model.BucketID{bucket},
		})
	}

	for i := range sets {
		docs, err := r.store.GetDocuments(ctx, sets[i].Members)
		if err != nil {
			return nil, fmt.Errorf("failed to load members of set %s: %w", sets[i].SetHash, err)
		}
		sets[i].Groups = groupByText(docs)
	}
	return sets, nil
}

// invert maps every bucket to its documents in first-seen order and returns
// the buckets in discovery order.
func invert(rows []model.BucketAssignment) (map[model.BucketID][]string, []model.BucketID) {
	buckets := make(map[model.BucketID][]string)
	var order []model.BucketID
	for _, row := range rows {
		for _, bucket := range row.Buckets {
			if _, seen := buckets[bucket]; !seen {
				order = append(order, bucket)
			}
			buckets[bucket] = append(buckets[bucket], row.DocID)
		}
	}
	return buckets, order
}

// memberKeys returns the distinct document keys of a bucket sorted by their
// serialized form. A document repeated within a bucket counts once.
func memberKeys(recordID string, docIDs []string) []model.DocKey {
	seen := make(map[string]struct{}, len(docIDs))
	keys := make([]model.DocKey, 0, len(docIDs))
	for _, id := range docIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		keys = append(keys, model.DocKey{RecordID: recordID, DocID: id})
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// SetHash digests the sorted serialized keys of a set into a seven digit
// decimal string. Equal key sets always produce equal hashes.
func SetHash(keys []model.DocKey) string {
	serialized := make([]string, len(keys))
	for i, key := range keys {
		serialized[i] = key.String()
	}
	sort.Strings(serialized)

	sum := md5.Sum([]byte(strings.Join(serialized, ""))) // #nosec G401
	n := new(big.Int).SetBytes(sum[:])
	return fmt.Sprintf("%07d", n.Mod(n, setHashModulus))
}

// groupByText groups documents by exact text. Documents are taken in fetch
// order, so groups and the ids within them follow it.
func groupByText(docs []model.Document) []model.TextGroup {
	ordered := make([]model.Document, len(docs))
	copy(ordered, docs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return fetchOrderLess(ordered[i].ID, ordered[j].ID)
	})

	var groups []model.TextGroup
	index := make(map[string]int)
	for _, doc := range ordered {
		if i, exists := index[doc.Text]; exists {
			groups[i].DocIDs = append(groups[i].DocIDs, doc.ID)
			continue
		}
		index[doc.Text] = len(groups)
		groups = append(groups, model.TextGroup{DocIDs: []string{doc.ID}, Text: doc.Text})
	}
	return groups
}

// fetchOrderLess compares local document ids numerically, falling back to
// string order for ids that are not numbers.
func fetchOrderLess(a, b string) bool {
	x, errA := strconv.Atoi(a)
	y, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return x < y
	}
	if (errA == nil) != (errB == nil) {
		return errA == nil
	}
	return a < b
}

// Render formats duplicate sets, one header line per set followed by an
// indented id list and text per distinct text. No sets render as "".
func Render(sets []model.DuplicateSet) string {
	var b strings.Builder
	for _, set := range sets {
		fmt.Fprintf(&b, "\nFor %d tweets, %d buckets: %v", len(set.Members), len(set.Buckets), set.Buckets)
		for _, group := range set.Groups {
			fmt.Fprintf(&b, "\n    %v", group.DocIDs)
			fmt.Fprintf(&b, "\n    %s", group.Text)
		}
	}
	return b.String()
}
