package session

import (
	"sync"
	"testing"
	"time"
)

func TestIssueTokenSupersedesPrevious(t *testing.T) {
	r := NewRegistry()

	a := r.IssueChatToken("s1")
	if r.IsChatStale("s1", a) {
		t.Fatal("freshly issued token should not be stale")
	}

	b := r.IssueChatToken("s1")
	if !r.IsChatStale("s1", a) {
		t.Error("token A should be stale after B was issued")
	}
	if r.IsChatStale("s1", b) {
		t.Error("token B should be current")
	}
}

func TestOnlyLastOfManyTokensIsCurrent(t *testing.T) {
	r := NewRegistry()

	tokens := make([]string, 10)
	for i := range tokens {
		tokens[i] = r.IssueToken("s1", ScopeChat)
	}

	for i, tok := range tokens[:len(tokens)-1] {
		if !r.IsStale("s1", ScopeChat, tok) {
			t.Errorf("token %d should be stale", i)
		}
	}
	if r.IsStale("s1", ScopeChat, tokens[len(tokens)-1]) {
		t.Error("last issued token should be current")
	}
}

func TestIsStaleFailSafeDefaults(t *testing.T) {
	r := NewRegistry()

	if !r.IsStale("never-seen", ScopeChat, "whatever") {
		t.Error("unknown session should be stale")
	}

	r.IssueToken("s1", "/projects")
	if !r.IsStale("s1", "/tasks", "whatever") {
		t.Error("unknown scope should be stale")
	}
}

func TestScopesAreIndependent(t *testing.T) {
	r := NewRegistry()

	chat := r.IssueChatToken("s1")
	api := r.IssueToken("s1", "/projects")

	r.IssueToken("s1", "/projects") // supersede the API request only

	if !r.IsStale("s1", "/projects", api) {
		t.Error("superseded API token should be stale")
	}
	if r.IsChatStale("s1", chat) {
		t.Error("chat token must be unaffected by API-scope supersession")
	}
}

func TestCancelMarksStaleWithoutReplacingToken(t *testing.T) {
	r := NewRegistry()

	tok := r.IssueChatToken("s1")
	if !r.Cancel("s1", ScopeChat) {
		t.Fatal("Cancel should succeed for an existing slot")
	}
	if !r.IsChatStale("s1", tok) {
		t.Error("cancelled slot should report stale")
	}
	if got := r.ActiveToken("s1", ScopeChat); got != "" {
		t.Errorf("cancelled slot should have no active token, got %q", got)
	}

	if r.Cancel("missing", ScopeChat) {
		t.Error("Cancel on unknown session should return false")
	}
}

func TestClearSession(t *testing.T) {
	r := NewRegistry()

	tok := r.IssueChatToken("s1")
	r.ClearSession("s1")

	if !r.IsChatStale("s1", tok) {
		t.Error("token should be stale after ClearSession")
	}
	if sessions, _ := r.Stats(); sessions != 0 {
		t.Errorf("expected 0 sessions, got %d", sessions)
	}
}

func TestEvictExpired(t *testing.T) {
	r := NewRegistry()

	current := time.Now()
	r.now = func() time.Time { return current }

	old := r.IssueChatToken("stale-session")
	current = current.Add(2 * time.Hour)
	fresh := r.IssueChatToken("fresh-session")

	evicted := r.EvictExpired(time.Hour)
	if evicted != 1 {
		t.Fatalf("expected 1 session evicted, got %d", evicted)
	}
	if !r.IsChatStale("stale-session", old) {
		t.Error("evicted slot should be stale")
	}
	if r.IsChatStale("fresh-session", fresh) {
		t.Error("fresh slot should survive eviction")
	}
}

func TestConcurrentIssueLeavesExactlyOneCurrent(t *testing.T) {
	r := NewRegistry()

	const n = 64
	tokens := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i] = r.IssueChatToken("s1")
		}(i)
	}
	wg.Wait()

	currentCount := 0
	for _, tok := range tokens {
		if !r.IsChatStale("s1", tok) {
			currentCount++
		}
	}
	if currentCount != 1 {
		t.Errorf("expected exactly one current token, got %d", currentCount)
	}
}
