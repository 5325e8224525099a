package util

import (
	"reflect"
	"testing"
)

func TestSplitKeywords(t *testing.T) {
	got := SplitKeywords("breaking, urgent")
	want := []string{"breaking", "urgent"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("split = %v, want %v", got, want)
	}
}

func TestSplitKeywordsDropsEmptyAndDuplicates(t *testing.T) {
	got := SplitKeywords(" , breaking,, breaking , urgent ,")
	want := []string{"breaking", "urgent"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("split = %v, want %v", got, want)
	}
}

func TestSplitJoinIdempotent(t *testing.T) {
	first := SplitKeywords("  breaking ,urgent,  news ")
	joined := JoinKeywords(first)
	second := SplitKeywords(joined)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("split after join = %v, want %v", second, first)
	}
	if rejoined := JoinKeywords(second); rejoined != joined {
		t.Fatalf("join not stable: %q vs %q", rejoined, joined)
	}
}

func TestHideBotToken(t *testing.T) {
	if got := HideBotToken("123456789:AAAbbbCCC"); got != "1234...bCCC" {
		t.Fatalf("masked = %q", got)
	}
	if got := HideBotToken("abcdef"); got != "ab...ef" {
		t.Fatalf("short masked = %q", got)
	}
	if got := HideBotToken("ab"); got != "ab" {
		t.Fatalf("tiny token must pass through, got %q", got)
	}
}
