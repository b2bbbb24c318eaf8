// Package gitstate captures repository state for a working directory
// using go-git, diffs captures taken on different hook invocations into
// human-readable change descriptions, and infers a rough guess at the
// feature currently underway from branch and commit signals.
package gitstate

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/odvcencio/recall/pkg/cache"
	"github.com/odvcencio/recall/pkg/paths"
)

// State is one capture of a repository at a point in time.
type State struct {
	RepoName      string    `json:"repoName"`
	Branch        string    `json:"branch"`
	Commit        string    `json:"commit"`
	CommitSubject string    `json:"commitSubject,omitempty"`
	DirtyFiles    []string  `json:"dirtyFiles,omitempty"`
	CapturedAt    time.Time `json:"capturedAt"`
}

// Commit is one entry from the recent history.
type Commit struct {
	Hash    string    `json:"hash"`
	Subject string    `json:"subject"`
	When    time.Time `json:"when"`
}

// ChangeType tags a detected difference between two captures.
type ChangeType string

const (
	ChangeBranchSwitch  ChangeType = "branch_switch"
	ChangeNewCommits    ChangeType = "new_commits"
	ChangeNewDirtyFiles ChangeType = "new_dirty_files"
)

// Change is one human-readable difference between two captures.
type Change struct {
	Type        ChangeType `json:"type"`
	Description string     `json:"description"`
}

// FeatureContext is an inferred guess about the work underway.
type FeatureContext struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords,omitempty"`
	Confidence  float64  `json:"confidence"`
}

// Capture reads the current branch, head commit, and dirty-file list for
// a working directory. Returns an error when dir is not inside a git
// repository; callers treat that as "no git context this invocation".
func Capture(dir string) (*State, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	state := &State{CapturedAt: time.Now()}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("read HEAD: %w", err)
	}
	if head.Name().IsBranch() {
		state.Branch = head.Name().Short()
	} else {
		// Detached HEAD: record the short hash in place of a branch.
		state.Branch = head.Hash().String()[:8]
	}
	state.Commit = head.Hash().String()
	if commit, err := repo.CommitObject(head.Hash()); err == nil {
		state.CommitSubject = subjectOf(commit)
	}

	wt, err := repo.Worktree()
	if err == nil {
		state.RepoName = filepath.Base(wt.Filesystem.Root())
		if status, err := wt.Status(); err == nil {
			for file, s := range status {
				if s.Worktree != git.Unmodified || s.Staging != git.Unmodified {
					state.DirtyFiles = append(state.DirtyFiles, file)
				}
			}
			sort.Strings(state.DirtyFiles)
		}
	}
	return state, nil
}

// RecentCommits lists the n most recent commits reachable from HEAD.
func RecentCommits(dir string, n int) ([]Commit, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("read HEAD: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	var commits []Commit
	err = iter.ForEach(func(c *object.Commit) error {
		commits = append(commits, Commit{
			Hash:    c.Hash.String(),
			Subject: subjectOf(c),
			When:    c.Author.When,
		})
		if len(commits) >= n {
			return storer.ErrStop
		}
		return nil
	})
	if err != nil && err != storer.ErrStop {
		return nil, fmt.Errorf("walk log: %w", err)
	}
	return commits, nil
}

func subjectOf(c *object.Commit) string {
	msg := strings.TrimSpace(c.Message)
	if idx := strings.IndexByte(msg, '\n'); idx >= 0 {
		msg = msg[:idx]
	}
	return msg
}

// Diff compares a previously cached capture with a current one and
// returns the detected changes. Either side may be nil.
func Diff(prev, cur *State) []Change {
	if prev == nil || cur == nil {
		return nil
	}

	var changes []Change
	if prev.Branch != cur.Branch {
		changes = append(changes, Change{
			Type:        ChangeBranchSwitch,
			Description: fmt.Sprintf("switched branch from %s to %s", prev.Branch, cur.Branch),
		})
	}
	if prev.Commit != cur.Commit {
		desc := fmt.Sprintf("new commits since last run (now at %.8s)", cur.Commit)
		if cur.CommitSubject != "" {
			desc = fmt.Sprintf("new commits since last run: %q (%.8s)", cur.CommitSubject, cur.Commit)
		}
		changes = append(changes, Change{Type: ChangeNewCommits, Description: desc})
	}
	if added := newEntries(prev.DirtyFiles, cur.DirtyFiles); len(added) > 0 {
		changes = append(changes, Change{
			Type:        ChangeNewDirtyFiles,
			Description: fmt.Sprintf("newly modified: %s", strings.Join(added, ", ")),
		})
	}
	return changes
}

func newEntries(prev, cur []string) []string {
	seen := make(map[string]bool, len(prev))
	for _, f := range prev {
		seen[f] = true
	}
	var added []string
	for _, f := range cur {
		if !seen[f] {
			added = append(added, f)
		}
	}
	return added
}

// branchTypePrefixes maps conventional branch prefixes to feature types.
var branchTypePrefixes = map[string]string{
	"feature":  "feature",
	"feat":     "feature",
	"fix":      "bugfix",
	"bugfix":   "bugfix",
	"hotfix":   "bugfix",
	"refactor": "refactor",
	"chore":    "chore",
	"docs":     "docs",
}

// InferFeature guesses the feature currently underway from the branch
// name and recent commit subjects. Confidence grows with the number of
// agreeing signals; a bare main/master branch with no commits yields nil.
func InferFeature(state *State, commits []Commit) *FeatureContext {
	if state == nil {
		return nil
	}

	feature := &FeatureContext{Type: "unknown", Confidence: 0.2}

	branch := strings.ToLower(state.Branch)
	if branch == "main" || branch == "master" || branch == "" {
		if len(commits) == 0 {
			return nil
		}
	} else {
		for prefix, kind := range branchTypePrefixes {
			if strings.HasPrefix(branch, prefix+"/") || strings.HasPrefix(branch, prefix+"-") {
				feature.Type = kind
				feature.Confidence = 0.6
				rest := strings.TrimPrefix(strings.TrimPrefix(branch, prefix+"/"), prefix+"-")
				feature.Description = strings.ReplaceAll(rest, "-", " ")
				feature.Keywords = keywordsFrom(rest)
				break
			}
		}
		if feature.Type == "unknown" {
			feature.Description = strings.ReplaceAll(branch, "-", " ")
			feature.Keywords = keywordsFrom(branch)
			feature.Confidence = 0.4
		}
	}

	if len(commits) > 0 {
		if feature.Description == "" {
			feature.Description = commits[0].Subject
		}
		for _, c := range commits {
			feature.Keywords = appendUnique(feature.Keywords, keywordsFrom(c.Subject)...)
		}
		// Commit history corroborating the branch signal raises confidence.
		if feature.Confidence < 0.8 {
			feature.Confidence += 0.2
		}
	}
	if feature.Description == "" {
		return nil
	}
	return feature
}

func keywordsFrom(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == '-' || r == '_' || r == '/' || r == ' ' || r == ':'
	})
	var out []string
	for _, f := range fields {
		if len(f) > 3 {
			out = append(out, f)
		}
	}
	return out
}

func appendUnique(dst []string, src ...string) []string {
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[s] = true
	}
	for _, s := range src {
		if !seen[s] {
			dst = append(dst, s)
			seen[s] = true
		}
	}
	return dst
}

// cachedStates is the on-disk shape of the git-state cache, keyed by
// working directory so parallel sessions do not clobber each other.
type cachedStates struct {
	States map[string]*State `json:"states,omitempty"`
}

// LoadPrevious returns the capture stored by the last invocation for a
// working directory, or nil when none exists.
func LoadPrevious(cwd string) *State {
	var doc cachedStates
	cache.LoadInto(paths.GitStatePath(), &doc)
	return doc.States[cwd]
}

// SavePrevious stores a capture for the next invocation's diff.
func SavePrevious(cwd string, state *State) error {
	var doc cachedStates
	cache.LoadInto(paths.GitStatePath(), &doc)
	if doc.States == nil {
		doc.States = make(map[string]*State)
	}
	doc.States[cwd] = state
	return cache.Save(paths.GitStatePath(), doc)
}
