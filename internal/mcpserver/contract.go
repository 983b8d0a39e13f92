package mcpserver

// PieceFormatContract describes the canonical Markdown piece format that
// LLM consumers should follow when creating pieces.
const PieceFormatContract = `# Luzzle Piece Format Contract

Every Markdown piece stored in Luzzle MUST follow this structure.

## Structure

` + "```" + `markdown
---
title: Human-readable title        # fields depend on the piece type
author: Author Name
rating: 9
tags:
  - tag-one
  - tag-two
---

Free-form Markdown note body.
` + "```" + `

## Rules

1. **YAML frontmatter is mandatory** when the type declares required fields.
   The ` + "```" + `---` + "```" + ` fences must be the first thing in the file.
2. **Only declared fields are allowed.** Undeclared frontmatter keys are
   rejected; every type has a fixed schema (see below).
3. **Dates** use ISO-8601 (` + "`" + `2025-01-15` + "`" + ` or a full timestamp).
4. **Asset references** point under the tree's asset area:
   ` + "`" + `.assets/<type>/<id>/<filename>` + "`" + `.
5. **Tags** are YAML string lists.
6. **File placement:** a piece of type T lives at ` + "`" + `T/<slug>.md` + "`" + `,
   or carries a ` + "`" + `.T.` + "`" + ` infix in its filename (e.g. ` + "`" + `dune.books.md` + "`" + `).
7. **Encoding** is UTF-8 with a trailing newline.

## Types

### books
Required: ` + "`" + `title` + "`" + `, ` + "`" + `author` + "`" + `.
Optional: ` + "`" + `rating` + "`" + ` (int), ` + "`" + `favorite` + "`" + ` (bool), ` + "`" + `date_read` + "`" + ` (date), ` + "`" + `cover` + "`" + ` (asset), ` + "`" + `tags` + "`" + ` (list).

### links
Required: ` + "`" + `url` + "`" + `, ` + "`" + `title` + "`" + `.
Optional: ` + "`" + `date_saved` + "`" + ` (date), ` + "`" + `favorite` + "`" + ` (bool), ` + "`" + `tags` + "`" + ` (list).

### texts
Required: ` + "`" + `title` + "`" + `.
Optional: ` + "`" + `date_published` + "`" + ` (date), ` + "`" + `draft` + "`" + ` (bool), ` + "`" + `cover` + "`" + ` (asset), ` + "`" + `tags` + "`" + ` (list).

## Example

` + "```" + `markdown
---
title: Dune
author: Frank Herbert
rating: 9
date_read: 2025-01-20
tags:
  - sci-fi
---

A desert planet epic. Worth rereading for the ecology alone.
` + "```" + `
`
