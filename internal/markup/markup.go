// Package markup converts between Jira wiki markup and plain markdown.
// The conversion is line-oriented and intentionally lossy for exotic
// constructs (tables, panels); headings, emphasis, code, lists and links
// round-trip.
package markup

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	wikiHeading = regexp.MustCompile(`^h([1-6])\.\s+(.*)$`)
	mdHeading   = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)

	wikiCodeOpen = regexp.MustCompile(`^\{code(?::([a-zA-Z0-9+-]+))?\}\s*$`)
	wikiCodeEnd  = regexp.MustCompile(`^\{code\}\s*$`)
	wikiNoformat = regexp.MustCompile(`^\{noformat\}\s*$`)
	mdFence      = regexp.MustCompile("^```([a-zA-Z0-9+-]*)\\s*$")

	wikiOrdered   = regexp.MustCompile(`^#\s+(.*)$`)
	wikiUnordered = regexp.MustCompile(`^\*\s+(.*)$`)
	mdOrdered     = regexp.MustCompile(`^\d+\.\s+(.*)$`)
	mdUnordered   = regexp.MustCompile(`^[-*]\s+(.*)$`)

	wikiBold  = regexp.MustCompile(`\*([^*\n]+)\*`)
	mdBold    = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	wikiMono  = regexp.MustCompile(`\{\{([^}\n]+)\}\}`)
	mdCode    = regexp.MustCompile("`([^`\n]+)`")
	wikiLink  = regexp.MustCompile(`\[([^|\]\n]+)\|([^\]\n]+)\]`)
	mdLink    = regexp.MustCompile(`\[([^\]\n]+)\]\(([^)\n]+)\)`)
	wikiQuote = regexp.MustCompile(`^bq\.\s+(.*)$`)
	mdQuote   = regexp.MustCompile(`^>\s+(.*)$`)
)

// ToMarkdown converts Jira wiki markup to markdown.
func ToMarkdown(wiki string) string {
	lines := strings.Split(wiki, "\n")
	out := make([]string, 0, len(lines))
	inCode := false

	for _, line := range lines {
		if inCode {
			if wikiCodeEnd.MatchString(line) || wikiNoformat.MatchString(line) {
				out = append(out, "```")
				inCode = false
			} else {
				out = append(out, line)
			}
			continue
		}

		if m := wikiCodeOpen.FindStringSubmatch(line); m != nil {
			out = append(out, "```"+m[1])
			inCode = true
			continue
		}
		if wikiNoformat.MatchString(line) {
			out = append(out, "```")
			inCode = true
			continue
		}

		if m := wikiHeading.FindStringSubmatch(line); m != nil {
			level := int(m[1][0] - '0')
			out = append(out, strings.Repeat("#", level)+" "+inlineToMarkdown(m[2]))
			continue
		}
		if m := wikiQuote.FindStringSubmatch(line); m != nil {
			out = append(out, "> "+inlineToMarkdown(m[1]))
			continue
		}
		if m := wikiOrdered.FindStringSubmatch(line); m != nil {
			out = append(out, "1. "+inlineToMarkdown(m[1]))
			continue
		}
		if m := wikiUnordered.FindStringSubmatch(line); m != nil {
			out = append(out, "- "+inlineToMarkdown(m[1]))
			continue
		}

		out = append(out, inlineToMarkdown(line))
	}

	return strings.Join(out, "\n")
}

// ToWiki converts markdown to Jira wiki markup.
func ToWiki(md string) string {
	lines := strings.Split(md, "\n")
	out := make([]string, 0, len(lines))
	inCode := false

	for _, line := range lines {
		if inCode {
			if mdFence.MatchString(line) {
				out = append(out, "{code}")
				inCode = false
			} else {
				out = append(out, line)
			}
			continue
		}

		if m := mdFence.FindStringSubmatch(line); m != nil {
			if m[1] != "" {
				out = append(out, "{code:"+m[1]+"}")
			} else {
				out = append(out, "{code}")
			}
			inCode = true
			continue
		}

		if m := mdHeading.FindStringSubmatch(line); m != nil {
			out = append(out, fmt.Sprintf("h%d. %s", len(m[1]), inlineToWiki(m[2])))
			continue
		}
		if m := mdQuote.FindStringSubmatch(line); m != nil {
			out = append(out, "bq. "+inlineToWiki(m[1]))
			continue
		}
		if m := mdOrdered.FindStringSubmatch(line); m != nil {
			out = append(out, "# "+inlineToWiki(m[1]))
			continue
		}
		if m := mdUnordered.FindStringSubmatch(line); m != nil {
			out = append(out, "* "+inlineToWiki(m[1]))
			continue
		}

		out = append(out, inlineToWiki(line))
	}

	return strings.Join(out, "\n")
}

func inlineToMarkdown(s string) string {
	s = wikiBold.ReplaceAllString(s, "**$1**")
	s = wikiMono.ReplaceAllString(s, "`$1`")
	s = wikiLink.ReplaceAllString(s, "[$1]($2)")
	return s
}

func inlineToWiki(s string) string {
	s = mdBold.ReplaceAllString(s, "*$1*")
	s = mdCode.ReplaceAllString(s, "{{$1}}")
	s = mdLink.ReplaceAllString(s, "[$1|$2]")
	return s
}
