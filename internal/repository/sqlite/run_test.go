package sqlite

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/sakif/jsmemes/internal/apperror"
	"github.com/sakif/jsmemes/internal/executor"
	"github.com/sakif/jsmemes/internal/model"
	"github.com/sakif/jsmemes/internal/repository"
)

func TestCreateRun_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	run := &model.Run{
		SessionID: "session-a",
		Code:      `console.log(1+1); undeclared`,
		Succeeded: true,
		Events: []executor.CapturedEvent{
			{Channel: executor.ChannelLog, Args: []string{"2"}, Timestamp: 1700000000000},
			{Channel: executor.ChannelError, Args: []string{`"undeclared is not defined"`}, Timestamp: 1700000000001},
		},
		Result:     "undefined",
		DurationMS: 3,
	}
	if err := db.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	if run.ID == "" || run.CreatedAt.IsZero() {
		t.Fatalf("CreateRun() did not fill ID/CreatedAt: %+v", run)
	}

	got, err := db.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if !reflect.DeepEqual(got.Events, run.Events) {
		t.Errorf("Events = %+v, want %+v", got.Events, run.Events)
	}
	if got.SessionID != "session-a" || !got.Succeeded || got.Result != "undefined" || got.DurationMS != 3 {
		t.Errorf("GetRun() = %+v", got)
	}
}

func TestCreateRun_NilEventsStoredAsEmpty(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	run := &model.Run{SessionID: "s", Code: "while(true){}", Error: "code contains an unsafe operation"}
	if err := db.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	got, err := db.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Events == nil || len(got.Events) != 0 {
		t.Errorf("Events = %#v, want empty slice", got.Events)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetRun(context.Background(), "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetRun() error = %v, want ErrNotFound", err)
	}
}

func TestListRunsBySession(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, code := range []string{"1", "2", "3"} {
		if err := db.CreateRun(ctx, &model.Run{SessionID: "mine", Code: code}); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.CreateRun(ctx, &model.Run{SessionID: "theirs", Code: "4"}); err != nil {
		t.Fatal(err)
	}

	runs, err := db.ListRunsBySession(ctx, "mine", repository.ListOptions{Limit: 10})
	if err != nil {
		t.Fatalf("ListRunsBySession() error = %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("ListRunsBySession() returned %d runs, want 3", len(runs))
	}
	if runs[0].Code != "3" {
		t.Errorf("newest run first: got code %q, want %q", runs[0].Code, "3")
	}
	for _, r := range runs {
		if r.SessionID != "mine" {
			t.Errorf("run from session %q leaked into listing", r.SessionID)
		}
	}

	page, err := db.ListRunsBySession(ctx, "mine", repository.ListOptions{Limit: 1, Offset: 1})
	if err != nil || len(page) != 1 || page[0].Code != "2" {
		t.Errorf("second page = %+v, err %v", page, err)
	}
}
