package mail

import (
	"context"

	"github.com/rs/zerolog"
)

// Batch is the outcome of one fetch. A failed batch and an empty one are
// distinct: Failed reports that the listing (or every message) failed,
// Empty that the label simply has no messages.
type Batch struct {
	Label    string
	Snippets []Snippet
	// Skipped holds the per-message failures that were left out.
	Skipped []*FetchError
	Err     *FetchError
}

func (b Batch) Failed() bool { return b.Err != nil }

func (b Batch) Empty() bool { return b.Err == nil && len(b.Snippets) == 0 }

// Texts returns the snippet bodies in order.
func (b Batch) Texts() []string {
	texts := make([]string, len(b.Snippets))
	for i, s := range b.Snippets {
		texts[i] = s.Text
	}
	return texts
}

// Fetch lists up to maxResults messages with label and fetches each snippet.
// Errors never escape as values; they are carried by the Batch.
func Fetch(ctx context.Context, p Provider, label string, maxResults int64, log zerolog.Logger) Batch {
	log = log.With().Str("component", "mail").Str("label", label).Logger()
	batch := Batch{Label: label}

	ids, err := p.ListMessages(ctx, label, maxResults)
	if err != nil {
		batch.Err = &FetchError{Label: label, Op: "list", Err: err, Unauthorized: isUnauthorized(err)}
		log.Error().Err(err).Msg("listing messages failed")
		return batch
	}
	if len(ids) == 0 {
		log.Info().Msg("no messages found")
		return batch
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			batch.Err = &FetchError{Label: label, Op: "fetch", Err: err}
			return batch
		}
		text, err := p.FetchSnippet(ctx, id)
		if err != nil {
			fe := &FetchError{Label: label, ID: id, Op: "fetch", Err: err, Unauthorized: isUnauthorized(err)}
			if fe.Unauthorized {
				batch.Err = fe
				log.Error().Err(err).Str("id", id).Msg("credential rejected")
				return batch
			}
			batch.Skipped = append(batch.Skipped, fe)
			log.Warn().Err(err).Str("id", id).Msg("skipping message")
			continue
		}
		batch.Snippets = append(batch.Snippets, Snippet{ID: id, Text: text})
	}

	if len(batch.Snippets) == 0 {
		batch.Err = &FetchError{Label: label, Op: "fetch", Err: batch.Skipped[0].Err}
		log.Error().Int("skipped", len(batch.Skipped)).Msg("every message failed")
		return batch
	}
	log.Info().Int("fetched", len(batch.Snippets)).Int("skipped", len(batch.Skipped)).Msg("fetched snippets")
	return batch
}
