package mcpserver

// NoteFormatContract describes the Markdown format of the notes vaultchat
// writes, so MCP clients can read and extend the vault consistently.
const NoteFormatContract = `# vaultchat Note Format

Notes are plain UTF-8 Markdown files with the ` + "`" + `.md` + "`" + ` extension, anywhere below
the vault root. Notes written by vaultchat look like this:

` + "```" + `markdown
---
created: 2025-01-20 14:05
tags: [claude-generated, baking]
---

# Sourdough starters

Body text in standard Markdown with [[wiki links]] and #tags.
` + "```" + `

## Rules

1. The front matter block is delimited by ` + "`" + `---` + "`" + ` lines and holds exactly two keys:
   ` + "`" + `created` + "`" + ` (local time, minute precision, ` + "`" + `YYYY-MM-DD HH:MM` + "`" + `) and ` + "`" + `tags` + "`" + `
   (an inline YAML list). A blank line separates it from the body.
2. ` + "`" + `claude-generated` + "`" + ` is always the first tag of a generated note.
3. The file name is the note title with everything except ASCII letters, digits,
   spaces, hyphens and underscores removed. A title with nothing left becomes
   ` + "`" + `note-YYYYMMDD-HHMMSS.md` + "`" + `.
4. Saving never replaces an existing note unless ` + "`" + `overwrite` + "`" + ` is set.
5. Wiki links use the target's file name without extension: ` + "`" + `[[Sourdough starters]]` + "`" + `,
   or ` + "`" + `[[target|alias]]` + "`" + ` for different display text.
6. Search is a case-insensitive substring match over the full file content.
`
