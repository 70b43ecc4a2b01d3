package grade

import "testing"

func TestParseBucket(t *testing.T) {
	cases := []struct {
		name string
		want ScoreState
		ok   bool
	}{
		{"skip", Skip(), true},
		{"0", Score(0), true},
		{"12", Score(12), true},
		{"-1", ScoreState{}, false},
		{"name", ScoreState{}, false},
		{"3a", ScoreState{}, false},
	}
	for _, tc := range cases {
		got, ok := ParseBucket(tc.name)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseBucket(%q) = %v, %v; want %v, %v", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseScore(t *testing.T) {
	if got, err := ParseScore("7"); err != nil || got != Score(7) {
		t.Errorf("ParseScore(7) = %v, %v", got, err)
	}
	if got, err := ParseScore("skip"); err != nil || got != Skip() {
		t.Errorf("ParseScore(skip) = %v, %v", got, err)
	}
	for _, bad := range []string{"", "-2", "abc", "ungraded"} {
		if _, err := ParseScore(bad); err == nil {
			t.Errorf("ParseScore(%q) accepted", bad)
		}
	}
}

func TestBucketNames(t *testing.T) {
	if Score(5).Bucket() != "5" || Skip().Bucket() != "skip" || (ScoreState{}).Bucket() != "" {
		t.Error("bucket name mapping broken")
	}
	if Score(5).String() != "5" || Skip().String() != "skip" || (ScoreState{}).String() != "ungraded" {
		t.Error("string mapping broken")
	}
}
