package services

import (
	"context"
	"fmt"
)

const (
	accountIDPrefix = "A"
	seedAccountID   = "A0001"
)

type Sequencer interface {
	NextSequence(ctx context.Context) (int64, error)
}

// IdentifierGenerator hands out account ids of the form A0001, A0002, ...
// Numbers come from an atomic store sequence rather than a row count, so
// concurrent openings cannot collide.
type IdentifierGenerator struct {
	seq Sequencer
}

func NewIdentifierGenerator(seq Sequencer) *IdentifierGenerator {
	return &IdentifierGenerator{seq: seq}
}

func (g *IdentifierGenerator) Next(ctx context.Context) (string, error) {
	n, err := g.seq.NextSequence(ctx)
	if err != nil {
		return "", err
	}
	if n < 1 {
		return seedAccountID, nil
	}
	return fmt.Sprintf("%s%04d", accountIDPrefix, n), nil
}
