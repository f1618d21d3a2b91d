package redis

import (
	"errors"
	"testing"

	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/ragpipe/internal/db"
)

// newMockStore returns a text-capable store over a gomock rueidis client.
func newMockStore(t *testing.T) (*Store, *mock.Client) {
	t.Helper()
	c := mock.NewClient(gomock.NewController(t))
	return newStore(c, true), c
}

// ftCommand matches any command whose name is cmd and records its arguments.
func ftCommand(cmd string, got *[]string) gomock.Matcher {
	return mock.MatchFn(func(args []string) bool {
		if args[0] != cmd {
			return false
		}
		if got != nil {
			*got = args
		}
		return true
	})
}

func asDBError(t *testing.T, err error) *db.Error {
	t.Helper()
	var dbErr *db.Error
	if !errors.As(err, &dbErr) {
		t.Fatalf("expected *db.Error, got %T: %v", err, err)
	}
	return dbErr
}
