package fingerprint

import "testing"

func TestLooksLikePrompt(t *testing.T) {
	cases := []struct {
		tail string
		want bool
	}{
		{"user@host:~/proj$ ", true},
		{"user@host:~/proj$", true},
		{"% ", true},
		{"root@host:/# ", true},
		{"C:\\Users\\dev> ", true},
		{"~ ❯ ", true},
		{"~ ➜  proj git:(main) ", false}, // shapes are trailing: a tail ending in ")" is not one
		{"λ ", true},
		{"⚡ ", true},
		{"(venv) $ ", true},
		{"compiling module foo.go", false},
		{"", false},
	}
	for _, c := range cases {
		if got := LooksLikePrompt([]byte(c.tail)); got != c.want {
			t.Errorf("LooksLikePrompt(%q) = %v, want %v", c.tail, got, c.want)
		}
	}
}

func TestKeywordRules_CoverAllScoredCategories(t *testing.T) {
	seen := map[Category]bool{}
	for _, r := range KeywordRules {
		seen[r.Category] = true
	}
	for _, c := range AllCategories {
		if !seen[c] {
			t.Errorf("category %s has no keyword rule", c)
		}
	}
}

func TestRequirements_CoverAllScoredCategories(t *testing.T) {
	for _, c := range AllCategories {
		reqs, ok := Requirements[c]
		if !ok || len(reqs) == 0 {
			t.Errorf("category %s has no requirements entry", c)
		}
	}
	if _, ok := Requirements[CategoryUnknown]; ok {
		t.Errorf("unknown category should not carry a requirements entry")
	}
}

func TestErrorRules_MatchKnownSignatures(t *testing.T) {
	cases := []struct {
		text string
		cat  Category
	}{
		{"npm ERR! code ENOENT", CategoryInstallation},
		{"panic: runtime error: index out of range", CategoryRuntime},
		{"dial tcp: connect: connection refused (ECONNREFUSED)", CategoryNetwork},
		{"chmod: /etc/passwd: Permission denied (EACCES)", CategoryPermissions},
		{"fatal: not a git repository", CategoryGit},
		{"Cannot connect to the Docker daemon", CategoryDocker},
	}
	for _, c := range cases {
		matched := false
		for _, r := range ErrorRules {
			if r.Category == c.cat && r.Pattern.MatchString(c.text) {
				matched = true
			}
		}
		if !matched {
			t.Errorf("expected an ErrorRule for category %s to match %q", c.cat, c.text)
		}
	}
}
