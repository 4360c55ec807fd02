package indexing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gcbaptista/go-dupfinder/internal/lsh"
	"github.com/gcbaptista/go-dupfinder/model"
	"github.com/gcbaptista/go-dupfinder/store"
)

// generateStatuses creates tweet-like texts where every tenth one repeats an earlier text.
func generateStatuses(count int) []model.Document {
	docs := make([]model.Document, count)
	for i := 0; i < count; i++ {
		text := fmt.Sprintf("Status %d about topic %d with a little filler text #tag%d", i, i%7, i%10)
		if i%10 == 9 {
			text = docs[i-1].Text
		}
		docs[i] = model.Document{ID: fmt.Sprint(i + 1), Text: text}
	}
	return docs
}

// BenchmarkServiceRun measures one full indexing pass for typical fetch sizes.
func BenchmarkServiceRun(b *testing.B) {
	sizes := []int{40, 200, 1000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("docs_%d", size), func(b *testing.B) {
			ctx := context.Background()
			docs := generateStatuses(size)

			for i := 0; i < b.N; i++ {
				b.StopTimer()
				st := store.NewMemoryStore()
				engine := lsh.NewMemoryEngine(0)
				service, _ := NewService(engine, st, 0)

				rec := model.NewTrackingRecord(model.User{ID: "bench"}, time.Now())
				if _, err := st.Supersede(ctx, rec, docs); err != nil {
					b.Fatal(err)
				}
				matrixID, err := engine.CreateMatrix(ctx, lsh.DefaultParams())
				if err != nil {
					b.Fatal(err)
				}
				if err := st.ClaimIndexing(ctx, rec.ID, matrixID); err != nil {
					b.Fatal(err)
				}
				b.StartTimer()

				if err := service.Run(ctx, rec.ID, matrixID, nil); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
