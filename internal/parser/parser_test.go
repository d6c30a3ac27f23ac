package parser

import (
	"reflect"
	"testing"
)

func TestParse_FrontMatterAndBody(t *testing.T) {
	doc := Parse("---\ncreated: 2024-05-01 10:00\ntags: [ideas, ai]\n---\n\n# Ideas\nBody with [[Other Note]].\n")

	if doc.Heading != "Ideas" {
		t.Errorf("heading = %q, want %q", doc.Heading, "Ideas")
	}
	if want := []string{"ideas", "ai"}; !reflect.DeepEqual(doc.Tags, want) {
		t.Errorf("tags = %v, want %v", doc.Tags, want)
	}
	if doc.Body != "# Ideas\nBody with [[Other Note]].\n" {
		t.Errorf("body = %q", doc.Body)
	}
	if want := []string{"Other Note"}; !reflect.DeepEqual(doc.Links, want) {
		t.Errorf("links = %v, want %v", doc.Links, want)
	}
}

func TestParse_NoFrontMatter(t *testing.T) {
	doc := Parse("# Just a heading\nSome text.\n")
	if doc.FrontMatter != nil {
		t.Errorf("expected nil front matter, got %v", doc.FrontMatter)
	}
	if doc.Body != "# Just a heading\nSome text.\n" {
		t.Errorf("body = %q", doc.Body)
	}
}

func TestParse_UnclosedFrontMatterIsBody(t *testing.T) {
	in := "---\ntags: [a]\nno closing line\n"
	if got := StripFrontMatter(in); got != in {
		t.Errorf("StripFrontMatter = %q, want input unchanged", got)
	}
}

func TestParse_InvalidYAMLIsBody(t *testing.T) {
	in := "---\n: invalid: yaml: {{{\n---\nBody\n"
	doc := Parse(in)
	if doc.FrontMatter != nil {
		t.Errorf("expected nil front matter on invalid YAML")
	}
	if doc.Body != in {
		t.Errorf("body = %q", doc.Body)
	}
}

func TestStripFrontMatter(t *testing.T) {
	got := StripFrontMatter("---\ntitle: x\n---\nHello")
	if got != "Hello" {
		t.Errorf("got %q, want %q", got, "Hello")
	}
}

func TestLinks(t *testing.T) {
	got := links("See [[Note A]] and [[Note B|alias]] and [[Note A#Section]]. [[ ]] [[|x]]")
	want := []string{"Note A", "Note B"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("links = %v, want %v", got, want)
	}
}

func TestTags_InlineAndFrontMatter(t *testing.T) {
	fm := map[string]any{"tags": []any{"alpha"}}
	got := tags("Some text #beta and #alpha again.\n# Heading is not a tag", fm)
	want := []string{"alpha", "beta"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tags = %v, want %v", got, want)
	}
}

func TestTags_CommaSeparatedString(t *testing.T) {
	got := tags("", map[string]any{"tags": "one, #two ,"})
	want := []string{"one", "two"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tags = %v, want %v", got, want)
	}
}

func TestTags_SkipsFencedCode(t *testing.T) {
	body := "#real\n```\n#include <stdio.h>\n```\nafter #also"
	got := tags(body, nil)
	want := []string{"real", "also"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tags = %v, want %v", got, want)
	}
}

func TestTags_Unicode(t *testing.T) {
	got := tags("notes #café and #日本", nil)
	want := []string{"café", "日本"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tags = %v, want %v", got, want)
	}
}
