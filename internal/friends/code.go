package friends

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/alexjbarnes/wordswipe-sync/internal/docstore"
	wserrors "github.com/alexjbarnes/wordswipe-sync/internal/errors"
)

const (
	// CodeAlphabet omits I, O, 0 and 1, which are easy to confuse when
	// a code is read aloud or typed from a screenshot.
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// CodeLength is the number of characters in a friend code.
	CodeLength = 6

	// maxCodeAttempts bounds regeneration when a code is already taken.
	maxCodeAttempts = 5
)

var alphabetSize = big.NewInt(int64(len(CodeAlphabet)))

// GenerateCode draws CodeLength characters uniformly from CodeAlphabet
// using r. A nil r uses crypto/rand.
func GenerateCode(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}

	buf := make([]byte, CodeLength)
	for i := range buf {
		n, err := rand.Int(r, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("generating friend code: %w", err)
		}

		buf[i] = CodeAlphabet[n.Int64()]
	}

	return string(buf), nil
}

// NewCode returns a code no existing profile uses, regenerating on
// collision up to maxCodeAttempts times.
func (s *Service) NewCode(ctx context.Context) (string, error) {
	for range maxCodeAttempts {
		code, err := GenerateCode(s.rand)
		if err != nil {
			return "", err
		}

		docs, err := s.store.QueryByField(ctx, docstore.UsersCollection, "friendCode", code)
		if err != nil {
			return "", fmt.Errorf("checking friend code: %w", err)
		}

		if len(docs) == 0 {
			return code, nil
		}

		s.logger.Debug("friend code collision, regenerating")
	}

	return "", wserrors.ErrCodeExhausted
}
