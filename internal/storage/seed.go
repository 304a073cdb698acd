package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/stolasapp/notebook/internal/storage/db"
)

// Seed corpus constants.
const (
	minSeedParagraphs   = 1
	maxExtraParagraphs  = 3
	minSeedSentences    = 2
	maxExtraSentences   = 4
	minSeedWords        = 6
	maxExtraSeedWords   = 10
	seedCreatedInterval = 90 * time.Minute
)

// SeedNotes inserts count generated notes for the user. The same seed always
// produces the same titles and contents, which keeps development data stable.
func (d *DB) SeedNotes(ctx context.Context, userID string, count int, seed uint64) error {
	faker := gofakeit.New(seed)
	start := d.clock().Add(-time.Duration(count) * seedCreatedInterval)
	return d.inTx(ctx, func(q *db.Queries) error {
		for i := range count {
			_, err := q.InsertNote(ctx, db.Note{
				ID:        int64(d.ids.Next()), //nolint:gosec // snowflake ids fit in 63 bits
				UserID:    userID,
				Title:     seedTitle(faker),
				Content:   seedContent(faker),
				CreatedAt: start.Add(time.Duration(i) * seedCreatedInterval),
			})
			if err != nil {
				return fmt.Errorf("failed to seed note %d: %w", i, err)
			}
		}
		return nil
	})
}

func seedTitle(faker *gofakeit.Faker) string {
	patterns := []func(*gofakeit.Faker) string{
		func(f *gofakeit.Faker) string { return "Buy " + f.Noun() },
		func(f *gofakeit.Faker) string { return fmt.Sprintf("Call %s", f.FirstName()) },
		func(f *gofakeit.Faker) string { return fmt.Sprintf("Ideas for the %s %s", f.Adjective(), f.Noun()) },
		func(f *gofakeit.Faker) string { return fmt.Sprintf("Notes on %s", f.Noun()) },
	}
	return patterns[faker.IntN(len(patterns))](faker)
}

func seedContent(faker *gofakeit.Faker) string {
	paragraphs := make([]string, minSeedParagraphs+faker.IntN(maxExtraParagraphs))
	for i := range paragraphs {
		sentences := make([]string, minSeedSentences+faker.IntN(maxExtraSentences))
		for j := range sentences {
			sentences[j] = faker.Sentence(minSeedWords + faker.IntN(maxExtraSeedWords))
		}
		paragraphs[i] = strings.Join(sentences, " ")
	}
	return strings.Join(paragraphs, "\n\n")
}
