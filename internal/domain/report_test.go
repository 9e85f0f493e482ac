package domain

import (
	"testing"
	"time"
)

func TestRunReport_Finalize_SortsAndSummarizes(t *testing.T) {
	rr := RunReport{
		StartedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.FixedZone("X", 3*3600)),
		FinishedAt: time.Date(2025, 6, 1, 12, 5, 0, 0, time.FixedZone("X", 3*3600)),
		Items: []ItemResult{
			{URL: "https://site/film/b", Status: StatusResolved, Degraded: true},
			{URL: "", Status: StatusFailed, ErrorCode: ErrCodeConfigInvalid},
			{URL: "https://site/film/a", Status: StatusDropped},
			{URL: "https://site/film/c", Status: StatusResolved},
		},
	}
	rr.Finalize()

	if rr.StartedAt.Location() != time.UTC || rr.FinishedAt.Location() != time.UTC {
		t.Fatalf("Finalize 后时间必须是 UTC")
	}

	wantOrder := []string{"https://site/film/a", "https://site/film/b", "https://site/film/c", ""}
	for i, want := range wantOrder {
		if rr.Items[i].URL != want {
			t.Fatalf("排序不符合预期：idx=%d 期望 %q 实际 %q", i, want, rr.Items[i].URL)
		}
	}

	s := rr.Summary
	if s.Resolved != 2 || s.Dropped != 1 || s.Failed != 1 || s.Degraded != 1 {
		t.Fatalf("summary 不符合预期：%+v", s)
	}
}
