// Package parser reads the Markdown conventions of a vault note: a leading
// YAML front matter block, [[wiki links]] and #tags.
package parser

import (
	"bufio"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const delim = "---"

var (
	wikiLinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([\p{L}][\p{L}\p{N}_/-]*)`)
)

// Document is a parsed note.
type Document struct {
	FrontMatter map[string]any
	Body        string
	Links       []string
	Tags        []string
	Heading     string
}

// Parse splits content into front matter and body and collects the body's
// links and tags. Malformed front matter is left in the body.
func Parse(content string) Document {
	fm, body := split(content)
	return Document{
		FrontMatter: fm,
		Body:        body,
		Links:       links(body),
		Tags:        tags(body, fm),
		Heading:     heading(body),
	}
}

// StripFrontMatter returns content without a leading front matter block.
func StripFrontMatter(content string) string {
	_, body := split(content)
	return body
}

// split separates a leading YAML block from the body. Content without a
// closing delimiter, or with YAML that does not decode to a mapping, is all body.
func split(content string) (map[string]any, string) {
	trimmed := strings.TrimLeft(content, "\r\n")
	if !strings.HasPrefix(trimmed, delim) {
		return nil, content
	}
	rest := trimmed[len(delim):]
	end := strings.Index(rest, "\n"+delim)
	if end < 0 {
		return nil, content
	}

	var fm map[string]any
	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return nil, content
	}
	body := rest[end+1+len(delim):]
	return fm, strings.TrimLeft(body, "\r\n")
}

func links(body string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, m := range wikiLinkRe.FindAllStringSubmatch(body, -1) {
		target, _, _ := strings.Cut(m[1], "|")
		target, _, _ = strings.Cut(target, "#")
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// tags merges front matter tags (list or comma separated string) with inline
// #tags found outside fenced code blocks. Order is first occurrence.
func tags(body string, fm map[string]any) []string {
	var out []string
	seen := map[string]struct{}{}
	add := func(t string) {
		t = strings.TrimPrefix(strings.TrimSpace(t), "#")
		if t == "" {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	switch v := fm["tags"].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			add(s)
		}
	}

	fenced := false
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			fenced = !fenced
			continue
		}
		if fenced {
			continue
		}
		for _, m := range tagRe.FindAllStringSubmatch(line, -1) {
			add(m[1])
		}
	}
	return out
}

// heading returns the first level-one heading, or "".
func heading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if h, ok := strings.CutPrefix(line, "# "); ok {
			return strings.TrimSpace(h)
		}
	}
	return ""
}
