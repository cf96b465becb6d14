package suggest

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"reup-suggest-backend/internal/tasks"
)

const (
	DefaultLimit = 5

	recencyHalfLife   = 72 * time.Hour
	recentWindow      = 14 * 24 * time.Hour
	highPriorityBonus = 0.05
)

// Request is one generation input. Now defaults to the wall clock.
type Request struct {
	tasks.Snapshot

	Usage    map[string]UsageStat
	Location string
	Now      time.Time
}

type Options struct {
	Limit   int
	Catalog *Catalog
}

type candidate struct {
	kind       Kind
	confidence float64
	pattern    string
}

// kinds earlier in this list win confidence ties for the same task
var kindRank = []Kind{KindCompletion, KindPattern, KindRecent, KindContext}

// Generate ranks suggestions for a snapshot. It has no side effects.
//
// Each task yields at most one suggestion (its best scoring kind). Catalog
// templates are added after the tasks. The result is sorted by confidence,
// then most recent use, then the order the tasks were supplied in, and is
// capped at opts.Limit.
func Generate(req Request, opts Options) ([]Suggestion, error) {
	if err := validate(req.Snapshot); err != nil {
		return nil, err
	}
	// nothing to base templates on either
	if len(req.Tasks) == 0 {
		return []Suggestion{}, nil
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	fold := newFolder()

	labels := make(map[string]string, len(req.Categories))
	byLabel := make(map[string]string, len(req.Categories))
	for _, c := range req.Categories {
		labels[c.ID] = c.Label
		byLabel[fold(c.Label)] = c.Label
	}

	activeTitles := make(map[string]struct{})
	for _, t := range req.Tasks {
		if t.IsActive() && strings.TrimSpace(t.Title) != "" {
			activeTitles[fold(t.Title)] = struct{}{}
		}
	}

	patterns, covered := detectPatterns(req.Tasks, fold, activeTitles)
	recentCategory := mostRecentCategory(req.Tasks, req.Usage, labels)

	out := make([]Suggestion, 0, len(req.Tasks))
	for i, t := range req.Tasks {
		if t.Status == tasks.StatusCanceled || strings.TrimSpace(t.Title) == "" {
			continue
		}
		if _, ok := covered[t.ID]; ok {
			continue
		}

		stat := req.Usage[t.ID]
		lastUsed := usageTime(t, stat, now)

		cands := make(map[Kind]candidate, len(kindRank))
		if c, ok := completionCandidate(t, now); ok {
			cands[c.kind] = c
		}
		if desc, ok := patterns[t.ID]; ok {
			cands[KindPattern] = candidate{kind: KindPattern, confidence: desc.confidence, pattern: desc.text}
		}
		if lastUsed != nil {
			cands[KindRecent] = candidate{kind: KindRecent, confidence: recentConfidence(stat.Count, *lastUsed, now)}
		}
		if c, ok := contextCandidate(t, req.Location, recentCategory); ok {
			cands[c.kind] = c
		}

		best, ok := pick(cands)
		if !ok {
			continue
		}
		if t.Priority == tasks.PriorityHigh {
			best.confidence += highPriorityBonus
		}

		s := Suggestion{
			ID:         string(best.kind) + ":" + t.ID,
			Kind:       best.kind,
			Title:      strings.TrimSpace(t.Title),
			TaskID:     t.ID,
			Category:   labels[t.CategoryID],
			Priority:   t.Priority,
			Location:   t.Location,
			Confidence: clamp01(best.confidence),
			origin:     i,
		}
		if stat.Count > 0 || lastUsed != nil || best.pattern != "" {
			s.Metadata = &Metadata{UsageCount: stat.Count, LastUsed: lastUsed, Pattern: best.pattern}
		}
		out = append(out, s)
	}

	if opts.Catalog != nil {
		for j, tpl := range opts.Catalog.Templates {
			if _, exists := activeTitles[fold(tpl.Title)]; exists {
				continue
			}
			label := ""
			if tpl.Category != "" {
				l, ok := byLabel[fold(tpl.Category)]
				if !ok {
					continue
				}
				label = l
			}
			out = append(out, Suggestion{
				ID:         string(KindTemplate) + ":" + tpl.ID,
				Kind:       KindTemplate,
				Title:      tpl.Title,
				Category:   label,
				Priority:   tpl.Priority,
				Location:   tpl.Location,
				Confidence: clamp01(tpl.Weight),
				origin:     len(req.Tasks) + j,
			})
		}
	}

	out = dedupe(out)
	rank(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func validate(s tasks.Snapshot) error {
	seen := make(map[string]struct{}, len(s.Tasks))
	for i, t := range s.Tasks {
		if strings.TrimSpace(t.ID) == "" {
			return fmt.Errorf("%w: task #%d has no id", ErrInvalidInput, i)
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("%w: duplicate task id %q", ErrInvalidInput, t.ID)
		}
		seen[t.ID] = struct{}{}
		if !t.Priority.Valid() {
			return fmt.Errorf("%w: task %q has invalid priority %q", ErrInvalidInput, t.ID, t.Priority)
		}
	}

	cats := make(map[string]struct{}, len(s.Categories))
	for i, c := range s.Categories {
		if strings.TrimSpace(c.ID) == "" {
			return fmt.Errorf("%w: category #%d has no id", ErrInvalidInput, i)
		}
		if _, dup := cats[c.ID]; dup {
			return fmt.Errorf("%w: duplicate category id %q", ErrInvalidInput, c.ID)
		}
		cats[c.ID] = struct{}{}
	}
	return nil
}

// newFolder returns a case-folding, whitespace-collapsing key function.
// cases.Caser keeps state, so each generation gets its own.
func newFolder() func(string) string {
	caser := cases.Fold()
	return func(s string) string {
		return strings.Join(strings.Fields(caser.String(s)), " ")
	}
}

func completionCandidate(t tasks.Task, now time.Time) (candidate, bool) {
	if !t.IsActive() || t.DueAt == nil {
		return candidate{}, false
	}
	until := t.DueAt.Sub(now)
	switch {
	case until < 0:
		return candidate{kind: KindCompletion, confidence: 0.9}, true
	case until <= 24*time.Hour:
		return candidate{kind: KindCompletion, confidence: 0.8}, true
	case until <= 72*time.Hour:
		return candidate{kind: KindCompletion, confidence: 0.6}, true
	}
	return candidate{}, false
}

func contextCandidate(t tasks.Task, location, recentCategory string) (candidate, bool) {
	if !t.IsActive() {
		return candidate{}, false
	}
	if location != "" && t.Location != "" && strings.EqualFold(strings.TrimSpace(t.Location), strings.TrimSpace(location)) {
		return candidate{kind: KindContext, confidence: 0.7}, true
	}
	if recentCategory != "" && t.CategoryID == recentCategory {
		return candidate{kind: KindContext, confidence: 0.5}, true
	}
	return candidate{}, false
}

// usageTime is the last time a task was used: the recorded usage, or a
// completion inside the recent window.
func usageTime(t tasks.Task, stat UsageStat, now time.Time) *time.Time {
	if stat.Count > 0 && !stat.LastUsed.IsZero() {
		lu := stat.LastUsed
		return &lu
	}
	if t.Status == tasks.StatusDone && t.CompletedAt != nil && now.Sub(*t.CompletedAt) <= recentWindow {
		lu := *t.CompletedAt
		return &lu
	}
	return nil
}

func recentConfidence(count int, lastUsed, now time.Time) float64 {
	age := now.Sub(lastUsed)
	if age < 0 {
		age = 0
	}
	decay := math.Pow(0.5, float64(age)/float64(recencyHalfLife))
	freq := math.Min(1, float64(count)/10)
	return 0.3 + 0.5*decay + 0.2*freq
}

type patternDesc struct {
	confidence float64
	text       string
}

// detectPatterns finds titles completed at least twice and attaches one
// pattern candidate to the newest task of each group. The older members are
// returned as covered so the same title is not suggested twice. Groups that
// already have an active task are skipped.
func detectPatterns(all []tasks.Task, fold func(string) string, active map[string]struct{}) (map[string]patternDesc, map[string]struct{}) {
	type member struct {
		idx int
		at  time.Time
	}
	groups := make(map[string][]member)
	for i, t := range all {
		if t.Status != tasks.StatusDone || strings.TrimSpace(t.Title) == "" {
			continue
		}
		at := t.CreatedAt
		if t.CompletedAt != nil {
			at = *t.CompletedAt
		}
		key := fold(t.Title)
		groups[key] = append(groups[key], member{idx: i, at: at})
	}

	out := make(map[string]patternDesc)
	covered := make(map[string]struct{})
	for key, ms := range groups {
		if len(ms) < 2 {
			continue
		}
		if _, ok := active[key]; ok {
			continue
		}
		sort.SliceStable(ms, func(a, b int) bool {
			if !ms[a].at.Equal(ms[b].at) {
				return ms[a].at.Before(ms[b].at)
			}
			return ms[a].idx < ms[b].idx
		})

		n := len(ms)
		text := fmt.Sprintf("done %d times", n)
		if span := ms[n-1].at.Sub(ms[0].at); span > 0 {
			days := int(math.Round(span.Hours() / 24 / float64(n-1)))
			if days < 1 {
				days = 1
			}
			text = fmt.Sprintf("done %d times, about every %d days", n, days)
		}

		newest := all[ms[n-1].idx]
		out[newest.ID] = patternDesc{
			confidence: math.Min(0.95, 0.4+0.15*float64(n)),
			text:       text,
		}
		for _, m := range ms[:n-1] {
			covered[all[m.idx].ID] = struct{}{}
		}
	}
	return out, covered
}

// mostRecentCategory returns the category of the most recently used task,
// or "" when nothing with a known category has been used.
func mostRecentCategory(all []tasks.Task, usage map[string]UsageStat, labels map[string]string) string {
	var (
		best   string
		bestAt time.Time
	)
	for _, t := range all {
		if _, ok := labels[t.CategoryID]; !ok {
			continue
		}
		stat, ok := usage[t.ID]
		if !ok || stat.Count == 0 {
			continue
		}
		if best == "" || stat.LastUsed.After(bestAt) {
			best, bestAt = t.CategoryID, stat.LastUsed
		}
	}
	return best
}

func pick(cands map[Kind]candidate) (candidate, bool) {
	var (
		best  candidate
		found bool
	)
	for _, k := range kindRank {
		c, ok := cands[k]
		if !ok {
			continue
		}
		if !found || c.confidence > best.confidence {
			best, found = c, true
		}
	}
	return best, found
}

func dedupe(in []Suggestion) []Suggestion {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}
		out = append(out, s)
	}
	return out
}

func rank(s []Suggestion) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Confidence != s[j].Confidence {
			return s[i].Confidence > s[j].Confidence
		}
		li, lj := s[i].lastUsed(), s[j].lastUsed()
		switch {
		case li != nil && lj != nil && !li.Equal(*lj):
			return li.After(*lj)
		case li != nil && lj == nil:
			return true
		case li == nil && lj != nil:
			return false
		}
		return s[i].origin < s[j].origin
	})
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
