package pipeline

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sells-group/promo-cli/internal/config"
	"github.com/sells-group/promo-cli/internal/grounding"
	"github.com/sells-group/promo-cli/internal/model"
)

// stageState carries everything stages read and write during one run. Each
// stage writes only its own result slot; evidence fields are written by the
// retrieval stages and read by later levels, after the level barrier.
type stageState struct {
	product model.Product
	results map[model.StageID]*model.StageResult

	mu       sync.Mutex
	evidence *grounding.Evidence
	context  []grounding.Doc
}

func (s *stageState) setEvidence(ev *grounding.Evidence) {
	s.mu.Lock()
	s.evidence = ev
	s.mu.Unlock()
}

func (s *stageState) setContext(docs []grounding.Doc) {
	s.mu.Lock()
	s.context = docs
	s.mu.Unlock()
}

func (s *stageState) docs() []grounding.Doc {
	s.mu.Lock()
	defer s.mu.Unlock()
	var docs []grounding.Doc
	if s.evidence != nil {
		docs = append(docs, s.evidence.Docs...)
	}
	docs = append(docs, s.context...)
	return docs
}

// output returns the recorded output of a finished stage, or nil.
func (s *stageState) output(id model.StageID) *model.StageOutput {
	res, ok := s.results[id]
	if !ok {
		return nil
	}
	return res.Output
}

// stageDef describes how one generation stage builds its engine call and
// shapes the raw text that comes back.
type stageDef struct {
	model    func(cfg config.AnthropicConfig) string
	system   string
	prompt   func(sc *stageState) string
	parse    func(text string) *model.StageOutput
	fallback func(sc *stageState) *model.StageOutput
}

func haiku(cfg config.AnthropicConfig) string  { return cfg.HaikuModel }
func sonnet(cfg config.AnthropicConfig) string { return cfg.SonnetModel }

var stageDefs = map[model.StageID]stageDef{
	model.StageDescription: {
		model:  sonnet,
		system: "You write grounded product marketing copy. Cite evidence with [n] markers referencing the numbered sources.",
		prompt: func(sc *stageState) string {
			var b strings.Builder
			fmt.Fprintf(&b, "Write a product description for %q in %s.\n\n", sc.product.Name, sc.product.Language)
			fmt.Fprintf(&b, "Raw content:\n%s\n", truncate(sc.product.Body, 4000))
			writeEvidence(&b, sc.docs())
			return b.String()
		},
		parse: func(text string) *model.StageOutput {
			return &model.StageOutput{Text: strings.TrimSpace(text)}
		},
		fallback: func(sc *stageState) *model.StageOutput {
			return &model.StageOutput{
				Text: fmt.Sprintf("%s. %s", sc.product.Name, firstSentence(sc.product.Body)),
			}
		},
	},

	model.StageUSP: {
		model:  haiku,
		system: "You extract unique selling points as a plain bullet list, one per line, no numbering.",
		prompt: func(sc *stageState) string {
			var b strings.Builder
			fmt.Fprintf(&b, "Extract the unique selling points of %q.\n\n", sc.product.Name)
			if desc := sc.output(model.StageDescription); desc != nil {
				fmt.Fprintf(&b, "Description:\n%s\n\n", desc.Text)
			}
			fmt.Fprintf(&b, "Raw content:\n%s\n", truncate(sc.product.Body, 4000))
			return b.String()
		},
		parse: parseBullets,
		fallback: func(sc *stageState) *model.StageOutput {
			return &model.StageOutput{
				Items: []model.StageItem{{Title: fmt.Sprintf("Key benefits of %s", sc.product.Name)}},
			}
		},
	},

	model.StageChapters: {
		model:  haiku,
		system: "You split content into chapters. One chapter per line as 'Title | one-line summary'.",
		prompt: func(sc *stageState) string {
			var b strings.Builder
			fmt.Fprintf(&b, "Propose chapters for a long-form piece about %q.\n\n", sc.product.Name)
			writeUSPs(&b, sc)
			fmt.Fprintf(&b, "Raw content:\n%s\n", truncate(sc.product.Body, 4000))
			return b.String()
		},
		parse: parseTitled,
		fallback: func(sc *stageState) *model.StageOutput {
			return &model.StageOutput{Items: []model.StageItem{
				{Title: "Introduction", Anchor: "introduction"},
				{Title: "Overview", Anchor: "overview"},
				{Title: "Conclusion", Anchor: "conclusion"},
			}}
		},
	},

	model.StageFAQ: {
		model:  haiku,
		system: "You write FAQ entries. Alternate lines strictly: 'Q: question' then 'A: answer'. Cite evidence with [n] markers.",
		prompt: func(sc *stageState) string {
			var b strings.Builder
			fmt.Fprintf(&b, "Write frequently asked questions for %q in %s.\n\n", sc.product.Name, sc.product.Language)
			writeUSPs(&b, sc)
			fmt.Fprintf(&b, "Raw content:\n%s\n", truncate(sc.product.Body, 4000))
			writeEvidence(&b, sc.docs())
			return b.String()
		},
		parse: parseFAQ,
		fallback: func(sc *stageState) *model.StageOutput {
			return &model.StageOutput{Items: []model.StageItem{{
				Title: fmt.Sprintf("What is %s?", sc.product.Name),
				Body:  firstSentence(sc.product.Body),
			}}}
		},
	},

	model.StageHowTo: {
		model:  haiku,
		system: "You write step-by-step instructions. One numbered step per line: '1. instruction'.",
		prompt: func(sc *stageState) string {
			var b strings.Builder
			fmt.Fprintf(&b, "Write how-to steps for getting started with %q.\n\n", sc.product.Name)
			writeUSPs(&b, sc)
			fmt.Fprintf(&b, "Raw content:\n%s\n", truncate(sc.product.Body, 4000))
			return b.String()
		},
		parse: parseSteps,
		fallback: func(sc *stageState) *model.StageOutput {
			return &model.StageOutput{Items: []model.StageItem{
				{Title: "Step 1", Body: fmt.Sprintf("Review the %s documentation.", sc.product.Name)},
				{Title: "Step 2", Body: "Follow the setup instructions for your environment."},
			}}
		},
	},

	model.StageCaseStudies: {
		model:  sonnet,
		system: "You write short usage scenarios grounded in the provided evidence. Separate scenarios with a blank line; first line of each is its title. Cite evidence with [n] markers.",
		prompt: func(sc *stageState) string {
			var b strings.Builder
			fmt.Fprintf(&b, "Write usage scenarios for %q.\n\n", sc.product.Name)
			writeUSPs(&b, sc)
			fmt.Fprintf(&b, "Raw content:\n%s\n", truncate(sc.product.Body, 4000))
			writeEvidence(&b, sc.docs())
			return b.String()
		},
		parse: parseParagraphs,
		fallback: func(sc *stageState) *model.StageOutput {
			return &model.StageOutput{
				Text: fmt.Sprintf("Usage scenarios for %s are not available yet.", sc.product.Name),
			}
		},
	},

	model.StageKeywords: {
		model:  haiku,
		system: "You produce search keywords, comma separated, lowercase, no commentary.",
		prompt: func(sc *stageState) string {
			var b strings.Builder
			fmt.Fprintf(&b, "List search keywords for %q in %s.\n", sc.product.Name, sc.product.Language)
			if len(sc.product.Keywords) > 0 {
				fmt.Fprintf(&b, "Seed keywords: %s\n", strings.Join(sc.product.Keywords, ", "))
			}
			fmt.Fprintf(&b, "\nRaw content:\n%s\n", truncate(sc.product.Body, 3000))
			return b.String()
		},
		parse: parseKeywords,
		fallback: func(sc *stageState) *model.StageOutput {
			items := make([]model.StageItem, 0, len(sc.product.Keywords))
			for _, kw := range sc.product.Keywords {
				items = append(items, model.StageItem{Title: strings.ToLower(strings.TrimSpace(kw))})
			}
			return &model.StageOutput{Items: items}
		},
	},

	model.StageHashtags: {
		model:  haiku,
		system: "You produce social media hashtags, one per line, each starting with '#'.",
		prompt: func(sc *stageState) string {
			var b strings.Builder
			fmt.Fprintf(&b, "Produce hashtags for %q.\n", sc.product.Name)
			if kws := sc.output(model.StageKeywords); kws != nil {
				var terms []string
				for _, it := range kws.Items {
					terms = append(terms, it.Title)
				}
				fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(terms, ", "))
			}
			return b.String()
		},
		parse: parseHashtags,
		fallback: func(sc *stageState) *model.StageOutput {
			items := make([]model.StageItem, 0, len(sc.product.Keywords))
			for _, kw := range sc.product.Keywords {
				tag := "#" + strings.ReplaceAll(strings.ToLower(strings.TrimSpace(kw)), " ", "")
				items = append(items, model.StageItem{Title: tag})
			}
			return &model.StageOutput{Items: items}
		},
	},
}

// writeEvidence appends the numbered source list stages cite with [n] markers.
func writeEvidence(b *strings.Builder, docs []grounding.Doc) {
	if len(docs) == 0 {
		return
	}
	b.WriteString("\nSources:\n")
	for i, d := range docs {
		if i >= 10 {
			break
		}
		fmt.Fprintf(b, "[%d] %s - %s\n", i+1, d.Title, d.URL)
		if d.Snippet != "" {
			fmt.Fprintf(b, "    %s\n", truncate(d.Snippet, 300))
		}
	}
}

func writeUSPs(b *strings.Builder, sc *stageState) {
	usp := sc.output(model.StageUSP)
	if usp == nil || len(usp.Items) == 0 {
		return
	}
	b.WriteString("Selling points:\n")
	for _, it := range usp.Items {
		fmt.Fprintf(b, "- %s\n", it.Title)
	}
	b.WriteString("\n")
}

// --- output parsing ---

func parseBullets(text string) *model.StageOutput {
	var items []model.StageItem
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*• \t"))
		if line == "" {
			continue
		}
		items = append(items, model.StageItem{Title: line})
	}
	return &model.StageOutput{Text: strings.TrimSpace(text), Items: items}
}

func parseTitled(text string) *model.StageOutput {
	var items []model.StageItem
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*0123456789. \t"))
		if line == "" {
			continue
		}
		title, body := line, ""
		if idx := strings.Index(line, "|"); idx >= 0 {
			title = strings.TrimSpace(line[:idx])
			body = strings.TrimSpace(line[idx+1:])
		}
		if title == "" {
			continue
		}
		items = append(items, model.StageItem{Title: title, Body: body, Anchor: anchor(title)})
	}
	return &model.StageOutput{Text: strings.TrimSpace(text), Items: items}
}

func parseFAQ(text string) *model.StageOutput {
	var items []model.StageItem
	var current *model.StageItem
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Q:"):
			if current != nil && current.Title != "" {
				items = append(items, *current)
			}
			current = &model.StageItem{Title: strings.TrimSpace(strings.TrimPrefix(line, "Q:"))}
		case strings.HasPrefix(line, "A:") && current != nil:
			current.Body = strings.TrimSpace(strings.TrimPrefix(line, "A:"))
		case line != "" && current != nil && current.Body != "":
			current.Body += " " + line
		}
	}
	if current != nil && current.Title != "" {
		items = append(items, *current)
	}
	return &model.StageOutput{Text: strings.TrimSpace(text), Items: items}
}

func parseSteps(text string) *model.StageOutput {
	var items []model.StageItem
	n := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		trimmed := strings.TrimLeft(line, "0123456789.) \t")
		if trimmed == "" || trimmed == line {
			continue
		}
		n++
		items = append(items, model.StageItem{
			Title: fmt.Sprintf("Step %d", n),
			Body:  strings.TrimSpace(trimmed),
		})
	}
	return &model.StageOutput{Text: strings.TrimSpace(text), Items: items}
}

func parseParagraphs(text string) *model.StageOutput {
	var items []model.StageItem
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		title := para
		body := ""
		if idx := strings.Index(para, "\n"); idx >= 0 {
			title = strings.TrimSpace(para[:idx])
			body = strings.TrimSpace(para[idx+1:])
		}
		items = append(items, model.StageItem{Title: title, Body: body})
	}
	return &model.StageOutput{Text: strings.TrimSpace(text), Items: items}
}

func parseKeywords(text string) *model.StageOutput {
	seen := make(map[string]bool)
	var items []model.StageItem
	for _, field := range strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == '\n' }) {
		kw := strings.ToLower(strings.TrimSpace(field))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		items = append(items, model.StageItem{Title: kw})
	}
	return &model.StageOutput{Text: strings.TrimSpace(text), Items: items}
}

func parseHashtags(text string) *model.StageOutput {
	seen := make(map[string]bool)
	var items []model.StageItem
	for _, field := range strings.Fields(text) {
		if !strings.HasPrefix(field, "#") || len(field) < 2 {
			continue
		}
		tag := strings.ToLower(strings.TrimRight(field, ".,;"))
		if seen[tag] {
			continue
		}
		seen[tag] = true
		items = append(items, model.StageItem{Title: tag})
	}
	return &model.StageOutput{Text: strings.TrimSpace(text), Items: items}
}

// --- small text helpers ---

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexAny(s, ".!?"); idx >= 0 {
		return s[:idx+1]
	}
	return truncate(s, 200)
}

func anchor(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = strings.Join(strings.FieldsFunc(slug, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}), "-")
	return slug
}
