// Package entropy applies adversarial perturbations to benchmark tasks:
// schema drift (renaming data-field identifiers) and context rot (injecting
// irrelevant distractor records). Perturbation is a pure function of
// (task, config, seed) so every run can be reproduced exactly.
package entropy

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/entropix/gauntlet/internal/corpus"
)

// Level is an entropy intensity level shared by schema drift and context rot.
type Level string

const (
	None   Level = "none"
	Low    Level = "low"
	Medium Level = "medium"
	High   Level = "high"
)

var ErrInvalidLevel = errors.New("invalid entropy level")

func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case None, Low, Medium, High:
		return Level(s), nil
	default:
		return "", fmt.Errorf("%w: %q (want none, low, medium or high)", ErrInvalidLevel, s)
	}
}

// RenameFraction is the fraction of detected schema fields renamed under
// drift at this level.
func (l Level) RenameFraction() float64 {
	switch l {
	case Low:
		return 0.10
	case Medium:
		return 0.30
	case High:
		return 0.50
	default:
		return 0
	}
}

// distractorRange is the inclusive count range of injected records under rot
// at this level.
func (l Level) distractorRange() (int, int) {
	switch l {
	case Low:
		return 1, 2
	case Medium:
		return 3, 4
	case High:
		return 5, 7
	default:
		return 0, 0
	}
}

// Config selects perturbation intensity for an assessment run.
type Config struct {
	Drift   Level
	Rot     Level
	OrgType string
}

func (c Config) Validate() error {
	if _, err := ParseLevel(string(c.Drift)); err != nil {
		return fmt.Errorf("drift_level: %w", err)
	}
	if _, err := ParseLevel(string(c.Rot)); err != nil {
		return fmt.Errorf("rot_level: %w", err)
	}
	return nil
}

// PerturbedTask is the per-run view of a task after drift and rot. The
// rename map is audit data only and must never be sent to the agent.
type PerturbedTask struct {
	Task            *corpus.Task
	Prompt          string
	RequiredContext string
	FieldRenameMap  map[string]string
	DistractorCount int
	Seed            int64
}

// aliasTable maps canonical schema field names to the aliases drift may
// rename them to.
var aliasTable = map[string][]string{
	"id":           {"identifier", "key", "uid", "ref"},
	"name":         {"title", "label", "displayname"},
	"email":        {"emailaddress", "mail", "contact_email"},
	"phone":        {"telephone", "phonenumber", "mobile"},
	"status":       {"state", "condition", "statuscode"},
	"description":  {"details", "summary", "desc"},
	"owner_id":     {"assigned_to", "assignee", "agent_id"},
	"account_id":   {"customer_id", "client_id", "company_id"},
	"case_number":  {"ticket_number", "case_id", "incident_id"},
	"priority":     {"urgency", "importance", "severity"},
	"amount":       {"value", "total", "price"},
	"stage":        {"phase", "step", "milestone"},
	"created_date": {"create_dt", "opened_on", "created_at"},
	"subject":      {"topic", "headline", "case_title"},
	"region":       {"territory", "zone", "district"},
	"close_date":   {"closed_on", "resolution_date", "end_date"},
}

// distractorEntities are off-answer organizations used when fabricating
// distractor records. None of them appear in any corpus reference answer.
var distractorEntities = []string{
	"Halcyon Dynamics",
	"Vantage Orbital",
	"Bluewater Logistics",
	"Meridian Fabrication",
	"Copperline Analytics",
	"Ashford Industrial",
	"Northgate Provisioning",
	"Tidewater Components",
}

// TaskSeed derives the per-task perturbation seed from the task id and the
// run seed.
func TaskSeed(taskID string, runSeed int64) int64 {
	h := fnv.New64a()
	h.Write([]byte(taskID))
	return int64(h.Sum64()) ^ runSeed
}

// Perturb derives the perturbed view of task for the given config and seed.
// The same (task, cfg, seed) always yields an identical result.
func Perturb(task *corpus.Task, cfg Config, seed int64) (*PerturbedTask, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(seed))
	pt := &PerturbedTask{
		Task:            task,
		Prompt:          task.Prompt,
		RequiredContext: task.RequiredContext,
		FieldRenameMap:  map[string]string{},
		Seed:            seed,
	}

	applyDrift(rng, pt, cfg.Drift)
	applyRot(rng, pt, cfg.Rot, task)
	return pt, nil
}

// applyDrift renames a seeded subset of the schema fields detected in the
// task text and rewrites every occurrence.
func applyDrift(rng *rand.Rand, pt *PerturbedTask, level Level) {
	frac := level.RenameFraction()
	if frac == 0 {
		return
	}

	text := pt.Prompt + "\n" + pt.RequiredContext
	fields := detectFields(text)
	if len(fields) == 0 {
		return
	}

	n := int(frac*float64(len(fields)) + 0.5)
	if n == 0 {
		return
	}
	if n > len(fields) {
		n = len(fields)
	}

	shuffled := append([]string(nil), fields...)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	selected := shuffled[:n]
	sort.Strings(selected)

	used := make(map[string]bool)
	for _, f := range fields {
		used[f] = true
	}
	for _, field := range selected {
		alias := pickAlias(rng, field, used)
		used[alias] = true
		pt.FieldRenameMap[field] = alias
	}

	// Rewrite longer names first so e.g. owner_id is rewritten before id.
	renamed := make([]string, 0, len(pt.FieldRenameMap))
	for f := range pt.FieldRenameMap {
		renamed = append(renamed, f)
	}
	sort.Slice(renamed, func(i, j int) bool {
		if len(renamed[i]) != len(renamed[j]) {
			return len(renamed[i]) > len(renamed[j])
		}
		return renamed[i] < renamed[j]
	})
	for _, f := range renamed {
		re := wordPattern(f)
		pt.Prompt = re.ReplaceAllString(pt.Prompt, pt.FieldRenameMap[f])
		pt.RequiredContext = re.ReplaceAllString(pt.RequiredContext, pt.FieldRenameMap[f])
	}
}

// pickAlias chooses an unused alias for field, scanning candidates from a
// seeded offset so the choice varies by run seed but stays reproducible.
func pickAlias(rng *rand.Rand, field string, used map[string]bool) string {
	candidates := aliasTable[field]
	if len(candidates) == 0 {
		return field + "_val"
	}
	start := rng.Intn(len(candidates))
	for i := 0; i < len(candidates); i++ {
		alias := candidates[(start+i)%len(candidates)]
		if !used[alias] {
			return alias
		}
	}
	return field + "_val"
}

// detectFields returns the canonical schema fields present in text, in a
// fixed order.
func detectFields(text string) []string {
	names := make([]string, 0, len(aliasTable))
	for f := range aliasTable {
		names = append(names, f)
	}
	sort.Strings(names)

	var found []string
	for _, f := range names {
		if wordPattern(f).MatchString(text) {
			found = append(found, f)
		}
	}
	return found
}

func wordPattern(word string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)
}

// applyRot injects synthetic distractor records at seeded positions in the
// context record sequence. Distractors are built from real records with all
// answer-bearing values swapped out, so they can never satisfy the
// reference answer.
func applyRot(rng *rand.Rand, pt *PerturbedTask, level Level, task *corpus.Task) {
	lo, hi := level.distractorRange()
	if hi == 0 {
		return
	}

	records := splitRecords(pt.RequiredContext)
	if len(records) == 0 {
		return
	}

	count := lo + rng.Intn(hi-lo+1)
	forbidden := append(append([]string(nil), task.ReferenceAnswers...), task.ProtectedValues...)

	for i := 0; i < count; i++ {
		template := records[rng.Intn(len(records))]
		distractor := makeDistractor(rng, template, forbidden)
		pos := rng.Intn(len(records) + 1)
		records = append(records, "")
		copy(records[pos+1:], records[pos:])
		records[pos] = distractor
	}

	pt.RequiredContext = strings.Join(records, "\n")
	pt.DistractorCount = count
}

func splitRecords(context string) []string {
	var records []string
	for _, line := range strings.Split(context, "\n") {
		if strings.TrimSpace(line) != "" {
			records = append(records, line)
		}
	}
	return records
}

// makeDistractor clones a real record, replacing every forbidden value with
// an off-answer entity and jittering numerics so the record describes a
// different entity with the same shape.
func makeDistractor(rng *rand.Rand, template string, forbidden []string) string {
	s := template
	for _, v := range forbidden {
		if strings.TrimSpace(v) == "" {
			continue
		}
		ent := distractorEntities[rng.Intn(len(distractorEntities))]
		s = replaceFold(s, v, ent)
	}
	s = jitterDigits(rng, s)
	if s == template {
		ent := distractorEntities[rng.Intn(len(distractorEntities))]
		s = ent + " " + s
	}
	return s
}

// replaceFold replaces all case-insensitive occurrences of old with new.
// Matching walks s rune by rune; case folding can change byte length (İ
// lowers to a 1-byte i), so offsets into a lowercased copy cannot be trusted.
func replaceFold(s, old, new string) string {
	if old == "" {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); {
		if n := foldMatchLen(s[i:], old); n > 0 {
			b.WriteString(new)
			i += n
			continue
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		b.WriteString(s[i : i+size])
		i += size
	}
	return b.String()
}

// foldMatchLen returns the byte length of a case-insensitive match of old at
// the start of s, or 0 when s does not start with old.
func foldMatchLen(s, old string) int {
	i := 0
	for _, or := range old {
		sr, size := utf8.DecodeRuneInString(s[i:])
		if size == 0 {
			return 0
		}
		if sr != or && unicode.ToLower(sr) != unicode.ToLower(or) {
			return 0
		}
		i += size
	}
	return i
}

func jitterDigits(rng *rand.Rand, s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= '0' && c <= '9' {
			out[i] = byte('0' + rng.Intn(10))
		}
	}
	return string(out)
}

// StaleReferences counts references to pre-drift field names in an agent
// trace. A renamed field's old name no longer exists in the schema the agent
// was shown, so each hit is a hallucinated entity.
func StaleReferences(trace string, renames map[string]string) int {
	if trace == "" || len(renames) == 0 {
		return 0
	}
	olds := make([]string, 0, len(renames))
	for old := range renames {
		olds = append(olds, old)
	}
	sort.Strings(olds)

	count := 0
	for _, old := range olds {
		count += len(wordPattern(old).FindAllStringIndex(trace, -1))
	}
	return count
}
