package prompts

import (
	"strings"
	"testing"
)

func TestAnalysisIncludesJobDescriptionOnlyWhenGiven(t *testing.T) {
	plain := Analysis("Go developer, 5 years", "", "", `{"type":"object"}`)
	if strings.Contains(plain, "job_description") {
		t.Fatal("plain analysis must not mention a job description")
	}
	if !strings.HasPrefix(plain, "Analyze CV:") || !strings.Contains(plain, "JSON-SCHEMA") {
		t.Fatalf("unexpected prompt: %s", plain)
	}

	match := Analysis("Go developer", "Senior Go engineer at Acme", "German", "")
	if !strings.HasPrefix(match, "Match CV against job description:") {
		t.Fatalf("unexpected task header: %s", match)
	}
	if !strings.Contains(match, "Senior Go engineer at Acme") || !strings.Contains(match, "German") {
		t.Fatal("job match prompt should carry the job description and language")
	}
}

func TestArtifactListsOnlyGivenChanges(t *testing.T) {
	p := Artifact("# CV\nOld summary", []Change{{Kind: "summary", Original: "Old summary", Proposed: "New summary"}}, "")
	for _, want := range []string{"Old summary", "New summary", "English", "Merge approved changes"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
