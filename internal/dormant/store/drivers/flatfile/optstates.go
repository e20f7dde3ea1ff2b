package flatfile

import (
	"context"
	"time"

	"github.com/aussiebroadwan/dormant/internal/dormant/domain"
	"github.com/aussiebroadwan/dormant/internal/dormant/store"
)

// dateLayout is the on-disk date format of the opt lists (user=YYYY-MM-DD).
const dateLayout = "2006-01-02"

// optStatesRepo persists opt-in and opt-out as two key=value files. Both
// files are rewritten under the store lock, so recording one status always
// clears the other in the same logical transaction.
type optStatesRepo struct {
	s *Store
}

func (r *optStatesRepo) Get(ctx context.Context, user string) (domain.OptState, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	in, err := readKV(r.s.path(optInFile))
	if err != nil {
		return domain.OptState{}, err
	}
	if date, ok := in[user]; ok {
		return optState(user, domain.OptedIn, date), nil
	}

	out, err := readKV(r.s.path(optOutFile))
	if err != nil {
		return domain.OptState{}, err
	}
	if date, ok := out[user]; ok {
		return optState(user, domain.OptedOut, date), nil
	}

	return domain.OptState{}, store.ErrNotFound
}

func (r *optStatesRepo) Set(ctx context.Context, state domain.OptState) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	inPath := r.s.path(optInFile)
	outPath := r.s.path(optOutFile)

	in, err := readKV(inPath)
	if err != nil {
		return err
	}
	out, err := readKV(outPath)
	if err != nil {
		return err
	}

	delete(in, state.User)
	delete(out, state.User)

	date := state.Since.Format(dateLayout)
	switch state.Status {
	case domain.OptedIn:
		in[state.User] = date
	case domain.OptedOut:
		out[state.User] = date
	}

	if err := writeKV(inPath, in); err != nil {
		return err
	}
	return writeKV(outPath, out)
}

func optState(user string, status domain.OptStatus, date string) domain.OptState {
	since, _ := time.ParseInLocation(dateLayout, date, time.UTC)
	return domain.OptState{User: user, Status: status, Since: since}
}
