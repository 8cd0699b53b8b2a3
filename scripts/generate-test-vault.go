//go:build ignore

// Package main generates a synthetic note vault for exercising the
// watcher and the indexing pipeline by hand.
// Usage: go run scripts/generate-test-vault.go -notes 500 -output testdata/vault
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	numNotes   = flag.Int("notes", 500, "Number of notes to generate")
	outputDir  = flag.String("output", "testdata/vault", "Output directory")
	seed       = flag.Int64("seed", 42, "Random seed for reproducibility")
	configured = flag.Bool("configured", false, "Write an .inkdown/settings.json with auto-indexing enabled")
)

var dailyTemplate = `---
created: %s
tags: [daily]
---

# %s

## Standup

- Working on [[%s]]
- Waiting on %s to review the %s changes

## Notes

%s

%s

## Tomorrow

- Follow up with %s about [[%s]]
`

var projectTemplate = `---
status: %s
owner: %s
tags: [project, %s]
---

# %s

## Goal

%s

## Current state

%s

## Next steps

- [ ] %s
- [ ] %s
- [ ] Write up the decision in [[%s]]

## Links

- Meeting notes: [[%s]]
`

var meetingTemplate = `---
date: %s
tags: [meeting]
---

# %s sync

Attendees: %s, %s, %s

## Agenda

- Status of [[%s]]
- %s

## Decisions

- %s

## Action items

- [ ] %s: %s
- [ ] %s: follow up on the %s question
`

var readingTemplate = `---
source: https://example.com/articles/%s
tags: [reading, %s]
---

# Notes on "%s"

## Highlights

> %s

> %s

## Takeaways

%s

Related: [[%s]]
`

var inboxTemplate = `# %s

%s

#%s
`

// Word pools for generating plausible note content.
var (
	projects = []string{
		"Atlas Migration", "Billing Rewrite", "Search Quality", "Mobile Sync",
		"Onboarding Revamp", "API Gateway", "Data Retention", "Design System",
		"Offline Mode", "Plugin SDK", "Import Tool", "Release Automation",
	}
	people = []string{
		"Sam", "Riley", "Jordan", "Casey", "Morgan", "Alex",
		"Taylor", "Devon", "Quinn", "Avery",
	}
	topics = []string{
		"storage", "sync", "caching", "auth", "pagination", "migration",
		"rollout", "pricing", "latency", "backup", "schema", "testing",
	}
	statuses = []string{"active", "planning", "blocked", "wrapping-up"}
	sentences = []string{
		"The tricky part is keeping the local state consistent while edits stream in.",
		"We agreed the migration runs in two phases, with the second behind a flag.",
		"Most of the delay comes from cold starts, not from the queries themselves.",
		"Rolling back is cheap as long as we keep the old tables for a week.",
		"The spike showed the simple approach is fast enough for vaults under 10k notes.",
		"Worth revisiting once the new importer lands, the formats overlap a lot.",
		"Error rates held steady after the rollout, so the retry change seems safe.",
		"Customers mostly hit this through the mobile app, not the desktop client.",
		"Batching the writes cut sync time roughly in half on the test vault.",
		"The edge case is empty folders, which the old code silently dropped.",
	}
	actions = []string{
		"draft the rollout plan", "benchmark the import path", "clean up the feature flags",
		"write the runbook", "review the schema change", "close out the old tickets",
		"update the architecture doc", "set up the dashboard",
	}
	articleTitles = []string{
		"Local-First Software", "The Tail at Scale", "How Databases Sync",
		"Designing Data-Intensive Apps", "Files Are Hard", "Why Writes Are Slow",
		"Incremental Indexing in Practice", "CRDTs for Mere Mortals",
	}
)

const settingsDoc = `{
  "indexing": {
    "embeddingProvider": "ollama",
    "embeddingModel": "nomic-embed-text",
    "autoIndex": true
  }
}
`

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	subdirs := []string{"inbox", "daily", "projects", "meetings", "reading", "assets"}
	for _, subdir := range subdirs {
		if err := os.MkdirAll(filepath.Join(*outputDir, subdir), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating directory %s: %v\n", subdir, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Generating %d notes in %s...\n", *numNotes, *outputDir)

	// Distribute notes across the vault's folders
	daily := *numNotes * 30 / 100
	project := *numNotes * 25 / 100
	meeting := *numNotes * 20 / 100
	reading := *numNotes * 15 / 100
	inbox := *numNotes - daily - project - meeting - reading

	generated := 0
	for i := 0; i < daily; i++ {
		if err := generateDailyNote(rng, i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating daily note %d: %v\n", i, err)
			continue
		}
		generated++
	}
	for i := 0; i < project; i++ {
		if err := generateProjectNote(rng, i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating project note %d: %v\n", i, err)
			continue
		}
		generated++
	}
	for i := 0; i < meeting; i++ {
		if err := generateMeetingNote(rng, i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating meeting note %d: %v\n", i, err)
			continue
		}
		generated++
	}
	for i := 0; i < reading; i++ {
		if err := generateReadingNote(rng, i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating reading note %d: %v\n", i, err)
			continue
		}
		generated++
	}
	for i := 0; i < inbox; i++ {
		if err := generateInboxNote(rng, i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating inbox note %d: %v\n", i, err)
			continue
		}
		generated++
	}

	// A few non-note files so the watcher has something to ignore
	attachments := *numNotes/50 + 1
	for i := 0; i < attachments; i++ {
		if err := generateAttachment(rng, i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating attachment %d: %v\n", i, err)
		}
	}

	if *configured {
		settingsPath := filepath.Join(*outputDir, ".inkdown", "settings.json")
		if err := os.MkdirAll(filepath.Dir(settingsPath), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating settings directory: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(settingsPath, []byte(settingsDoc), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing settings: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Wrote .inkdown/settings.json with auto-indexing enabled.")
	}

	fmt.Printf("Generated %d notes and %d attachments.\n", generated, attachments)
}

func randomWord(rng *rand.Rand, pool []string) string {
	return pool[rng.Intn(len(pool))]
}

// slugify turns "Billing Rewrite" into "billing-rewrite".
func slugify(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "-"))
}

func generateDailyNote(rng *rand.Rand, index int) error {
	day := time.Now().AddDate(0, 0, -index)
	date := day.Format("2006-01-02")

	content := fmt.Sprintf(dailyTemplate,
		date,
		date,
		randomWord(rng, projects),
		randomWord(rng, people), randomWord(rng, topics),
		randomWord(rng, sentences),
		randomWord(rng, sentences),
		randomWord(rng, people), randomWord(rng, projects),
	)

	filename := filepath.Join(*outputDir, "daily", date+".md")
	return os.WriteFile(filename, []byte(content), 0o644)
}

func generateProjectNote(rng *rand.Rand, index int) error {
	name := randomWord(rng, projects)

	content := fmt.Sprintf(projectTemplate,
		randomWord(rng, statuses),
		randomWord(rng, people),
		randomWord(rng, topics),
		name,
		randomWord(rng, sentences),
		randomWord(rng, sentences),
		randomWord(rng, actions),
		randomWord(rng, actions),
		randomWord(rng, projects),
		time.Now().AddDate(0, 0, -rng.Intn(30)).Format("2006-01-02")+" "+name+" sync",
	)

	filename := filepath.Join(*outputDir, "projects", fmt.Sprintf("%s-%d.md", slugify(name), index))
	return os.WriteFile(filename, []byte(content), 0o644)
}

func generateMeetingNote(rng *rand.Rand, index int) error {
	name := randomWord(rng, projects)
	day := time.Now().AddDate(0, 0, -rng.Intn(60))
	date := day.Format("2006-01-02")

	content := fmt.Sprintf(meetingTemplate,
		date,
		name,
		randomWord(rng, people), randomWord(rng, people), randomWord(rng, people),
		name,
		randomWord(rng, sentences),
		randomWord(rng, sentences),
		randomWord(rng, people), randomWord(rng, actions),
		randomWord(rng, people), randomWord(rng, topics),
	)

	filename := filepath.Join(*outputDir, "meetings", fmt.Sprintf("%s-%s-%d.md", date, slugify(name), index))
	return os.WriteFile(filename, []byte(content), 0o644)
}

func generateReadingNote(rng *rand.Rand, index int) error {
	title := randomWord(rng, articleTitles)

	content := fmt.Sprintf(readingTemplate,
		slugify(title),
		randomWord(rng, topics),
		title,
		randomWord(rng, sentences),
		randomWord(rng, sentences),
		randomWord(rng, sentences),
		randomWord(rng, projects),
	)

	filename := filepath.Join(*outputDir, "reading", fmt.Sprintf("%s-%d.md", slugify(title), index))
	return os.WriteFile(filename, []byte(content), 0o644)
}

func generateInboxNote(rng *rand.Rand, index int) error {
	content := fmt.Sprintf(inboxTemplate,
		randomWord(rng, actions),
		randomWord(rng, sentences),
		randomWord(rng, topics),
	)

	filename := filepath.Join(*outputDir, "inbox", fmt.Sprintf("capture-%d.md", index))
	return os.WriteFile(filename, []byte(content), 0o644)
}

// generateAttachment writes a small non-note file. The watcher must
// skip these, so a realistic vault needs a few.
func generateAttachment(rng *rand.Rand, index int) error {
	switch index % 3 {
	case 0:
		// Minimal PNG header, enough to look like an image
		data := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
		filename := filepath.Join(*outputDir, "assets", fmt.Sprintf("sketch-%d.png", index))
		return os.WriteFile(filename, data, 0o644)
	case 1:
		data := fmt.Sprintf("{\"exported\": \"%s\", \"topic\": %q}\n",
			time.Now().Format(time.RFC3339), randomWord(rng, topics))
		filename := filepath.Join(*outputDir, "assets", fmt.Sprintf("export-%d.json", index))
		return os.WriteFile(filename, []byte(data), 0o644)
	default:
		data := fmt.Sprintf("date,owner,topic\n%s,%s,%s\n",
			time.Now().Format("2006-01-02"), randomWord(rng, people), randomWord(rng, topics))
		filename := filepath.Join(*outputDir, "assets", fmt.Sprintf("tracker-%d.csv", index))
		return os.WriteFile(filename, []byte(data), 0o644)
	}
}
