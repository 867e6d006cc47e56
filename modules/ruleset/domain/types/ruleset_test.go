package types

import "testing"

func TestScope_CacheKey(t *testing.T) {
	full := Scope{Vertical: "education", Market: "de", OrganizationID: "org-acme", AppID: "app-1"}
	if got := full.CacheKey(); got != "education|de|org-acme|app-1" {
		t.Fatalf("key=%q", got)
	}
	if got := (Scope{}).CacheKey(); got != "none|none|none|none" {
		t.Fatalf("key=%q", got)
	}
	if got := (Scope{Market: " de "}).CacheKey(); got != "none|de|none|none" {
		t.Fatalf("key=%q", got)
	}
}

func TestScope_Covers(t *testing.T) {
	broad := Scope{Vertical: "education"}
	narrow := Scope{Vertical: "education", Market: "de", OrganizationID: "org-acme"}

	if !broad.Covers(narrow) {
		t.Fatal("broad should cover narrow")
	}
	if narrow.Covers(broad) {
		t.Fatal("narrow should not cover broad")
	}
	if !(Scope{}).Covers(narrow) {
		t.Fatal("zero scope should cover everything")
	}
	if broad.Covers(Scope{Vertical: "fitness"}) {
		t.Fatal("different vertical covered")
	}
}

func TestScopeForLayer(t *testing.T) {
	if got := ScopeForLayer(LayerVertical, "education"); got != (Scope{Vertical: "education"}) {
		t.Fatalf("scope=%+v", got)
	}
	if got := ScopeForLayer(LayerMarket, " de "); got != (Scope{Market: "de"}) {
		t.Fatalf("scope=%+v", got)
	}
	if got := ScopeForLayer(LayerClient, "org-acme:app-1"); got != (Scope{OrganizationID: "org-acme", AppID: "app-1"}) {
		t.Fatalf("scope=%+v", got)
	}
	if got := ScopeForLayer(LayerClient, "org-acme"); got != (Scope{OrganizationID: "org-acme"}) {
		t.Fatalf("scope=%+v", got)
	}
	if got := ScopeForLayer(LayerBase, "global"); got != (Scope{}) {
		t.Fatalf("scope=%+v", got)
	}
}

func TestKnownKind(t *testing.T) {
	if !KnownKind(KindTokenRelevance) || !KnownKind(KindRecommendation) {
		t.Fatal("known kinds rejected")
	}
	if KnownKind(Kind("sentiment_table")) {
		t.Fatal("unknown kind accepted")
	}
}

func TestRuleSet_Empty(t *testing.T) {
	rs := NewRuleSet()
	if !rs.Empty() {
		t.Fatal("fresh ruleset not empty")
	}
	rs.Stopwords["the"] = struct{}{}
	if rs.Empty() {
		t.Fatal("ruleset with stopword reported empty")
	}
}
