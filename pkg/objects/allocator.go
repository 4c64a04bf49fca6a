package objects

import "context"

// SequenceSource mints monotonically increasing sequence numbers for a
// prefix. The prefix service implements this over its atomic counter.
type SequenceSource interface {
	NextSequence(ctx context.Context, prefix string) (int64, error)
}

// Allocator mints draft identifiers from a sequence source
type Allocator struct {
	sequences SequenceSource
}

// NewAllocator creates an allocator
func NewAllocator(sequences SequenceSource) *Allocator {
	return &Allocator{sequences: sequences}
}

// MintDraft allocates the next sequence under the prefix and returns the
// draft identifier for it. Allocation is permanent: a minted number is
// consumed even if the caller never persists a draft with it.
func (a *Allocator) MintDraft(ctx context.Context, prefix string) (string, int64, error) {
	sequence, err := a.sequences.NextSequence(ctx, prefix)
	if err != nil {
		return "", 0, err
	}
	return FormatDraftID(prefix, sequence), sequence, nil
}
