package pipeline

import (
	"context"
	"testing"
)

func TestRunEmptyRequestsSkipsConnection(t *testing.T) {
	results, err := Run(context.Background(), nil, nil, 0)
	if err != nil {
		t.Errorf("expected nil error for empty requests, got %v", err)
	}
	if results != nil {
		t.Errorf("expected nil results for empty requests, got %v", results)
	}
}

func TestCollectErrAllSucceed(t *testing.T) {
	results := []Result{{Index: 0}, {Index: 1}, {Index: 2}}
	if err := CollectErr(results); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestCollectErrReturnsFirstError(t *testing.T) {
	boom := errTest("boom")
	results := []Result{{Index: 0}, {Index: 1, Err: boom}, {Index: 2, Err: errTest("later")}}
	if err := CollectErr(results); err != boom {
		t.Errorf("got %v, want %v", err, boom)
	}
}

func TestCollectErrEmpty(t *testing.T) {
	if err := CollectErr(nil); err != nil {
		t.Errorf("expected nil for empty results, got %v", err)
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
